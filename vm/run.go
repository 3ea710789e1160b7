package vm

import (
	"bufio"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
)

// RunVector runs addr to completion with the garbage collector disabled,
// the same trade the teacher makes in its own RunProgram: memory here is
// a single fixed-size array allocated up front, so the only allocation
// pressure during a tight instruction loop comes from stack growth, and
// it isn't worth paying a GC pass for it.
func (cpu *CPU) RunVector(addr uint16) error {
	key, ok := os.LookupEnv("GOGC")
	if !ok {
		key = "100"
	}
	gcPercent, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		gcPercent = 100
	}

	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(int(gcPercent))

	cpu.Cycle()
	return cpu.EvalVector(addr)
}

// RunVectorDebugMode drives addr one instruction at a time from an
// interactive prompt, breaking on PC addresses the user has armed.
// Commands: n/next, r/run, b/break <hex addr>, state.
func (cpu *CPU) RunVectorDebugMode(addr uint16) error {
	cpu.pc = addr
	cpu.Cycle()
	fmt.Printf("Commands:\n\tn or next: execute next instruction\n\tr or run: run program\n\tb or break <hex addr>: break at address (or remove break there)\n\n")
	cpu.printState()

	reader := bufio.NewReader(os.Stdin)
	waitForInput := true
	breakpoints := make(map[uint16]struct{})
	lastBreak := uint16(0xFFFF)

	for {
		line := ""
		if waitForInput {
			fmt.Print("\n->")
			line, _ = reader.ReadString('\n')
			line = strings.ToLower(strings.TrimSpace(line))
		} else {
			if _, ok := breakpoints[cpu.pc]; ok && cpu.pc != lastBreak {
				fmt.Println("breakpoint")
				cpu.printState()
				waitForInput = true
				lastBreak = cpu.pc
				continue
			}
		}

		if !waitForInput || line == "n" || line == "next" {
			lastBreak = 0xFFFF

			halted, err := cpu.step()
			if waitForInput {
				cpu.printState()
			}
			if err != nil {
				return err
			}
			if halted {
				return nil
			}
		} else if line == "state" {
			cpu.printState()
		} else if line == "r" || line == "run" {
			waitForInput = false
		} else if strings.HasPrefix(line, "b") {
			arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "break"), "b"))
			arg = strings.TrimPrefix(arg, "0x")
			addr, err := strconv.ParseUint(arg, 16, 16)
			if err != nil {
				fmt.Println("unknown address:", err)
				continue
			}
			a := uint16(addr)
			if _, ok := breakpoints[a]; ok {
				delete(breakpoints, a)
			} else {
				breakpoints[a] = struct{}{}
			}
		}
	}
}

func (cpu *CPU) printState() {
	fmt.Printf("pc=%#04x wst=%v rst=%v\n", cpu.pc, cpu.WST(), cpu.RST())
}
