package vm

import "fmt"

// EvalVector sets PC to addr and runs the fetch-decode-dispatch loop
// until a terminating BRK is reached or an execution fault occurs.
// Setup errors never originate here; only StackUnderflow, StackOverflow
// and InvalidOpcode can stop a vector early.
func (cpu *CPU) EvalVector(addr uint16) error {
	cpu.pc = addr
	for {
		halted, err := cpu.step()
		if err != nil {
			cpu.errcode = err
			return err
		}
		if halted {
			return nil
		}
	}
}

// step fetches one instruction, advances PC past its base byte, and
// dispatches it. It returns halted=true only for a plain BRK.
func (cpu *CPU) step() (halted bool, err error) {
	base := cpu.readByte(cpu.pc)
	cpu.pc++
	d := decodeInstruction(base)

	if cpu.Debug {
		cpu.Logger.Debug("step", "pc", fmt.Sprintf("%#04x", cpu.pc-1), "byte", fmt.Sprintf("%#02x", base), "op", d.op.String())
	}

	if d.op == OpBRK {
		return cpu.execBRK(brkMode(d.mode))
	}

	ws, rs := cpu.wst, cpu.rst
	if d.retrn {
		ws, rs = rs, ws
	}
	if d.keep {
		ws.setKeepMode(true)
	}
	err = cpu.execOp(d, ws, rs)
	ws.setKeepMode(false)
	return false, err
}

// execBRK handles opcode 0's polymorphism: its own mode nibble selects
// one of eight immediate-style instructions rather than meaning
// keep/return/short.
func (cpu *CPU) execBRK(mode brkMode) (bool, error) {
	switch mode {
	case brkBRK:
		return true, nil

	case brkJCI:
		cond, err := cpu.wst.popByte()
		if err != nil {
			return false, err
		}
		imm := cpu.readShort(cpu.pc)
		if cond != 0 {
			cpu.pc = cpu.pc + 2 + imm
		} else {
			cpu.pc += 2
		}
		return false, nil

	case brkJMI:
		imm := cpu.readShort(cpu.pc)
		cpu.pc = cpu.pc + 2 + imm
		return false, nil

	case brkJSI:
		ret := cpu.pc + 2
		if err := cpu.rst.pushShort(ret); err != nil {
			return false, err
		}
		imm := cpu.readShort(cpu.pc)
		cpu.pc = cpu.pc + 2 + imm
		return false, nil

	case brkLIT:
		b := cpu.readByte(cpu.pc)
		cpu.pc++
		return false, cpu.wst.pushByte(b)

	case brkLIT2:
		v := cpu.readShort(cpu.pc)
		cpu.pc += 2
		return false, cpu.wst.pushShort(v)

	case brkLITr:
		b := cpu.readByte(cpu.pc)
		cpu.pc++
		return false, cpu.rst.pushByte(b)

	case brkLIT2r:
		v := cpu.readShort(cpu.pc)
		cpu.pc += 2
		return false, cpu.rst.pushShort(v)
	}

	return false, fmt.Errorf("%w: BRK mode %d", errInvalidOpcode, mode)
}

func widthMask(short bool) uint32 {
	if short {
		return 0xFFFF
	}
	return 0xFF
}

func maskWidth(v uint32, short bool) uint16 {
	return uint16(v & widthMask(short))
}

// jumpTarget resolves a popped JMP/JCN/JSR operand into an absolute PC:
// byte width is a signed 8-bit offset from the current PC, short width
// is an absolute address.
func jumpTarget(pc uint16, addr uint16, short bool) uint16 {
	if short {
		return addr
	}
	return pc + uint16(int16(int8(byte(addr))))
}

// execOp dispatches every opcode except BRK. ws/rs are the working and
// return stacks after the instruction's return-bit swap has already
// been applied by the caller.
func (cpu *CPU) execOp(d decoded, ws, rs *stack) error {
	w := d.short

	switch d.op {
	case OpINC:
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		return ws.pushWidth(maskWidth(uint32(v)+1, w), w)

	case OpPOP:
		_, err := ws.popWidth(w)
		return err

	case OpNIP:
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if _, err := ws.popWidth(w); err != nil {
			return err
		}
		return ws.pushWidth(a, w)

	case OpSWP:
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		b, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if err := ws.pushWidth(a, w); err != nil {
			return err
		}
		return ws.pushWidth(b, w)

	case OpROT:
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		b, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		c, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if err := ws.pushWidth(b, w); err != nil {
			return err
		}
		if err := ws.pushWidth(a, w); err != nil {
			return err
		}
		return ws.pushWidth(c, w)

	case OpDUP:
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if err := ws.pushWidth(a, w); err != nil {
			return err
		}
		return ws.pushWidth(a, w)

	case OpOVR:
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		b, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if err := ws.pushWidth(b, w); err != nil {
			return err
		}
		if err := ws.pushWidth(a, w); err != nil {
			return err
		}
		return ws.pushWidth(b, w)

	case OpEQU, OpNEQ, OpGTH, OpLTH:
		b, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		var result bool
		switch d.op {
		case OpEQU:
			result = a == b
		case OpNEQ:
			result = a != b
		case OpGTH:
			result = a > b
		case OpLTH:
			result = a < b
		}
		if result {
			return ws.pushByte(1)
		}
		return ws.pushByte(0)

	case OpJMP:
		addr, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		cpu.pc = jumpTarget(cpu.pc, addr, w)
		return nil

	case OpJCN:
		addr, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		cond, err := ws.popByte()
		if err != nil {
			return err
		}
		if cond != 0 {
			cpu.pc = jumpTarget(cpu.pc, addr, w)
		}
		return nil

	case OpJSR:
		addr, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if err := rs.pushShort(cpu.pc); err != nil {
			return err
		}
		cpu.pc = jumpTarget(cpu.pc, addr, w)
		return nil

	case OpSTH:
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		return rs.pushWidth(v, w)

	case OpLDZ:
		addr, err := ws.popByte()
		if err != nil {
			return err
		}
		v := cpu.loadWidth(uint16(addr), w)
		return ws.pushWidth(v, w)

	case OpSTZ:
		addr, err := ws.popByte()
		if err != nil {
			return err
		}
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		cpu.storeWidth(uint16(addr), v, w)
		return nil

	case OpLDR:
		offset, err := ws.popByte()
		if err != nil {
			return err
		}
		addr := cpu.pc + uint16(int16(int8(offset)))
		v := cpu.loadWidth(addr, w)
		return ws.pushWidth(v, w)

	case OpSTR:
		offset, err := ws.popByte()
		if err != nil {
			return err
		}
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		addr := cpu.pc + uint16(int16(int8(offset)))
		cpu.storeWidth(addr, v, w)
		return nil

	case OpLDA:
		addr, err := ws.popShort()
		if err != nil {
			return err
		}
		v := cpu.loadWidth(addr, w)
		return ws.pushWidth(v, w)

	case OpSTA:
		addr, err := ws.popShort()
		if err != nil {
			return err
		}
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		cpu.storeWidth(addr, v, w)
		return nil

	case OpDEI:
		port, err := ws.popByte()
		if err != nil {
			return err
		}
		if w {
			return ws.pushShort(cpu.devices.readShort(cpu, port))
		}
		return ws.pushByte(cpu.devices.readByte(cpu, port))

	case OpDEO:
		port, err := ws.popByte()
		if err != nil {
			return err
		}
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		if w {
			cpu.devices.writeShort(cpu, port, v)
		} else {
			cpu.devices.writeByte(cpu, port, byte(v))
		}
		return nil

	case OpADD, OpSUB, OpMUL, OpDIV, OpAND, OpORA, OpEOR:
		b, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		a, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		var result uint32
		switch d.op {
		case OpADD:
			result = uint32(a) + uint32(b)
		case OpSUB:
			result = uint32(a) - uint32(b)
		case OpMUL:
			result = uint32(a) * uint32(b)
		case OpDIV:
			if b == 0 {
				result = 0
			} else {
				result = uint32(a) / uint32(b)
			}
		case OpAND:
			result = uint32(a) & uint32(b)
		case OpORA:
			result = uint32(a) | uint32(b)
		case OpEOR:
			result = uint32(a) ^ uint32(b)
		}
		return ws.pushWidth(maskWidth(result, w), w)

	case OpSFT:
		v, err := ws.popWidth(w)
		if err != nil {
			return err
		}
		s, err := ws.popByte()
		if err != nil {
			return err
		}
		right := uint32(s & 0x0F)
		left := uint32((s >> 4) & 0x0F)
		result := (uint32(v) >> right) << left
		return ws.pushWidth(maskWidth(result, w), w)
	}

	return fmt.Errorf("%w: %#02x", errInvalidOpcode, byte(d.op))
}

func (cpu *CPU) loadWidth(addr uint16, short bool) uint16 {
	if short {
		return cpu.readShort(addr)
	}
	return uint16(cpu.readByte(addr))
}

func (cpu *CPU) storeWidth(addr uint16, v uint16, short bool) {
	if short {
		cpu.writeShort(addr, v)
		return
	}
	cpu.writeByte(addr, byte(v))
}
