package vm

import (
	"fmt"
	"log/slog"
	"os"
)

const (
	memSize    = 0x10000
	romEntry   = 0x0100
	maxRomSize = memSize - romEntry
)

// CPU owns the flat memory, the program counter, both stacks, and the
// device gateway. It has no notion of registers beyond the PC; all other
// state lives on the stacks or in memory, per the data model.
type CPU struct {
	mem [memSize]byte
	pc  uint16

	wst *stack
	rst *stack

	devices deviceTable

	// Debug mirrors the teacher's vm.Debug flag: when set, the fetch
	// loop logs one Debug-level structured line per instruction through
	// Logger instead of staying silent. The Logger that Construct
	// installs only passes Warn and above, so those lines appear only
	// once Logger is replaced with one that enables Debug level.
	Debug  bool
	Logger *slog.Logger

	errcode error
}

// Construct builds a CPU with zeroed memory, PC at the ROM entry point,
// empty stacks, and no mounted devices.
func Construct() *CPU {
	return &CPU{
		pc:     romEntry,
		wst:    newStack(),
		rst:    newStack(),
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
}

// MountDevice installs a device at the given slot (0-15). Mounting a
// second device at an already-occupied slot is a setup error.
func (cpu *CPU) MountDevice(slot int, d Device) error {
	if slot < 0 || slot >= numDeviceSlots {
		return fmt.Errorf("%w: slot %d out of range", errSlotOutOfRange, slot)
	}
	if err := cpu.devices.mount(slot, d, cpu); err != nil {
		return fmt.Errorf("%w: slot %d", err, slot)
	}
	return nil
}

// LoadROM copies bytes into memory starting at the ROM entry point and
// resets PC to that entry point. The ROM format is a raw byte stream:
// no header, no checksum, no metadata.
func (cpu *CPU) LoadROM(data []byte) error {
	if len(data) > maxRomSize {
		return fmt.Errorf("%w: %d bytes exceeds %d-byte window", errRomTooLarge, len(data), maxRomSize)
	}
	copy(cpu.mem[romEntry:], data)
	cpu.pc = romEntry
	return nil
}

// readByte/writeByte/readShort/writeShort wrap every address modulo
// 2^16: memory access never faults, per the failure semantics.
func (cpu *CPU) readByte(addr uint16) byte {
	return cpu.mem[addr]
}

func (cpu *CPU) writeByte(addr uint16, v byte) {
	cpu.mem[addr] = v
}

func (cpu *CPU) readShort(addr uint16) uint16 {
	hi := cpu.mem[addr]
	lo := cpu.mem[addr+1]
	return uint16(hi)<<8 | uint16(lo)
}

func (cpu *CPU) writeShort(addr uint16, v uint16) {
	cpu.mem[addr] = byte(v >> 8)
	cpu.mem[addr+1] = byte(v)
}

// WST/RST expose read-only views of the working and return stacks, for
// host tooling and tests; the core never hands out mutable access
// beyond the opcode handlers themselves.
func (cpu *CPU) WST() []byte {
	return append([]byte(nil), cpu.wst.data...)
}

func (cpu *CPU) RST() []byte {
	return append([]byte(nil), cpu.rst.data...)
}

func (cpu *CPU) PC() uint16 {
	return cpu.pc
}

// Cycle invokes every mounted device's Cycle hook once. Per the
// concurrency model, this is assumed to run between vector evaluations,
// not during one; RunVector and RunVectorDebugMode call it before each
// EvalVector so a host driving repeated short vectors (e.g. one per
// frame) exercises background device work without wiring it by hand.
func (cpu *CPU) Cycle() {
	cpu.devices.cycle(cpu)
}

// PeekMemory lets a device read a run of CPU memory without going
// through the opcode path. Used by the screen device's memory-blit port
// (devices.Screen) to draw a run of characters sourced from memory.
func (cpu *CPU) PeekMemory(addr uint16, length int) []byte {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i] = cpu.mem[uint16(int(addr)+i)]
	}
	return out
}

// PokeMemory lets a device write a run of bytes into CPU memory
// directly. Used by the file device's load port (devices.File) to copy
// buffered file contents into memory, mirroring the design note that
// devices take the CPU as an explicit argument rather than holding a
// back-reference into it.
func (cpu *CPU) PokeMemory(addr uint16, data []byte) {
	for i, b := range data {
		cpu.mem[uint16(int(addr)+i)] = b
	}
}
