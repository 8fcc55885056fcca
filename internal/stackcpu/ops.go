package stackcpu

import "encoding/binary"

// ops.go implements every opcode's semantics. Each case pops its operands
// off the internal stack, computes a result, and (usually) pushes it back.
// Binary operators follow stack order: the first-popped value is the
// right-hand operand, the second-popped is the left-hand operand, matching
// how they were pushed (left, then right).

// execute decodes and runs a single instruction, advancing c.ip past any
// trailing immediate bytes the instruction consumes. A non-nil return is a
// fatal fault that shuts the CPU down (spec §5 Host-visible vs. in-sim
// faults: an instruction-fetch bus error is the one in-sim condition this
// implementation treats as fatal to the device's Boot).
func (c *CPU) execute(instr Instruction) error {
	t := ValueType(instr.Argument)

	switch instr.Op {
	case OpNop:
		// no-op

	case OpAdd:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(t, typedAdd(t, a, b))

	case OpSub:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(t, typedSub(t, a, b))

	case OpMul:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(t, typedMul(t, a, b))

	case OpDiv:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		result, ok := typedDiv(t, a, b)
		if !ok {
			c.fault(ErrorInvalidArgument)
			result = 0
		}
		c.pushValue(t, result)

	case OpAnd:
		if !c.requireType(t) {
			break
		}
		it := t.intType()
		before := c.errs
		b, a := c.popValue(it), c.popValue(it)
		if c.faulted(before) {
			break
		}
		c.pushValue(it, typedAnd(it, a, b))

	case OpOr:
		if !c.requireType(t) {
			break
		}
		it := t.intType()
		before := c.errs
		b, a := c.popValue(it), c.popValue(it)
		if c.faulted(before) {
			break
		}
		c.pushValue(it, typedOr(it, a, b))

	case OpXor:
		if !c.requireType(t) {
			break
		}
		it := t.intType()
		before := c.errs
		b, a := c.popValue(it), c.popValue(it)
		if c.faulted(before) {
			break
		}
		c.pushValue(it, typedXor(it, a, b))

	case OpNot:
		if !c.requireType(t) {
			break
		}
		it := t.intType()
		before := c.errs
		a := c.popValue(it)
		if c.faulted(before) {
			break
		}
		c.pushValue(it, typedNot(it, a))

	case OpNeg:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		a := c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(t, typedNeg(t, a))

	case OpLess:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a < b }, func(a, b float64) bool { return a < b }))

	case OpGreater:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a > b }, func(a, b float64) bool { return a > b }))

	case OpLessEq:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a <= b }, func(a, b float64) bool { return a <= b }))

	case OpGreaterEq:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a >= b }, func(a, b float64) bool { return a >= b }))

	case OpEqual:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a == b }, func(a, b float64) bool { return a == b }))

	case OpNotEqual:
		if !c.requireType(t) {
			break
		}
		before := c.errs
		b, a := c.popValue(t), c.popValue(t)
		if c.faulted(before) {
			break
		}
		c.pushValue(TypeU32, compareOp(t, a, b, func(a, b uint64) bool { return a != b }, func(a, b float64) bool { return a != b }))

	case OpDup:
		if !c.requireType(t) {
			break
		}
		ws := c.pop(t.WordWidth())
		c.push(ws)
		c.push(ws)

	case OpDiscard:
		if !c.requireType(t) {
			break
		}
		c.pop(t.WordWidth())

	case OpReadMem:
		if !c.requireType(t) {
			break
		}
		addr := c.popValue(TypeU64)
		buf := make([]byte, t.ByteWidth())
		if err := c.host.ReadBytes(addr, buf); err != nil {
			c.pushValue(t, 0)
			break
		}
		c.pushValue(t, bytesToRaw(buf))

	case OpReadImm:
		if !c.requireType(t) {
			break
		}
		width := t.ByteWidth()
		buf := make([]byte, width)
		if err := c.host.ReadBytes(c.ip, buf); err != nil {
			return err
		}
		c.ip += uint64(width)
		c.pushValue(t, bytesToRaw(buf))

	case OpWriteMem:
		if !c.requireType(t) {
			break
		}
		addr := c.popValue(TypeU64)
		value := c.popValue(t)
		_ = c.host.WriteBytes(addr, rawToBytes(value, t.ByteWidth()))

	case OpShift:
		// Quirk (spec §9): the value is popped normally, then sp is
		// decremented a second time by width-in-words, and that small
		// integer is used directly as the global write address.
		if !c.requireType(t) {
			break
		}
		value := c.popValue(t)
		c.sp -= uint32(t.WordWidth())
		_ = c.host.WriteBytes(uint64(c.sp), rawToBytes(value, t.ByteWidth()))

	case OpUnshift:
		// Reads from global memory at sp and pushes the value without
		// moving sp (spec §4.2): push normally, then restore sp.
		if !c.requireType(t) {
			break
		}
		buf := make([]byte, t.ByteWidth())
		_ = c.host.ReadBytes(uint64(c.sp), buf)
		saved := c.sp
		c.pushValue(t, bytesToRaw(buf))
		c.sp = saved

	case OpRegRead:
		c.pushValue(TypeU64, c.readRegister(RegisterID(instr.Argument)))

	case OpRegWrite:
		reg := RegisterID(instr.Argument)
		value := c.popValue(TypeU64)
		if reg.protected() && c.settings&SettingsProtectedMode != 0 {
			c.fault(ErrorProtectionFault)
			break
		}
		c.writeRegister(reg, value)

	case OpResize:
		src, dst := resizeTypes(instr.Argument)
		raw := c.popValue(src)
		c.pushValue(dst, castValue(src, dst, raw))

	case OpSwap:
		b := c.pop(t.WordWidth())
		a := c.pop(t.WordWidth())
		c.push(b)
		c.push(a)

	case OpCondJump:
		addr := c.popValue(TypeU64)
		cond := c.popValue(t)
		if cond != 0 {
			c.ip = addr
		}

	case OpInterrupt:
		code := uint32(c.popValue(TypeU32))
		_ = c.Interrupt(code)

	default:
		c.fault(ErrorInvalidOpcode)
	}

	return nil
}

// requireType reports whether t is a defined type code, faulting with
// ErrorInvalidArgument and returning false otherwise (spec §4.2: unknown
// type codes set errors bit 1).
func (c *CPU) requireType(t ValueType) bool {
	if !t.Valid() {
		c.fault(ErrorInvalidArgument)
		return false
	}

	return true
}

// faulted reports whether a new errors bit was set since before, used to
// detect an underflowed operand pop so the result push can be skipped
// instead of moving sp past its bounds (spec §8 scenario 2).
func (c *CPU) faulted(before Errors) bool {
	return c.errs&^before != 0
}

func (c *CPU) readRegister(reg RegisterID) uint64 {
	switch reg {
	case RegInterruptStack:
		return c.interruptStack
	case RegInterruptTable:
		return c.interruptTable
	case RegInterruptCount:
		return uint64(c.interruptCount)
	case RegSettings:
		return uint64(c.settings)
	case RegErrors:
		return uint64(c.errs)
	case RegSP:
		return uint64(c.sp)
	case RegIP:
		return c.ip
	default:
		c.fault(ErrorInvalidArgument)
		return 0
	}
}

func (c *CPU) writeRegister(reg RegisterID, value uint64) {
	switch reg {
	case RegInterruptStack:
		c.interruptStack = value
	case RegInterruptTable:
		c.interruptTable = value
	case RegInterruptCount:
		c.interruptCount = uint32(value)
	case RegSettings:
		c.settings = Settings(value)
	case RegErrors:
		c.errs = Errors(value)
	case RegSP:
		c.sp = uint32(value)
	case RegIP:
		c.ip = value
	default:
		c.fault(ErrorInvalidArgument)
	}
}

// bytesToRaw decodes up to 8 little-endian bytes into a zero-extended
// uint64.
func bytesToRaw(buf []byte) uint64 {
	var padded [8]byte
	copy(padded[:], buf)
	return binary.LittleEndian.Uint64(padded[:])
}

// rawToBytes encodes the low width bytes of raw, little-endian.
func rawToBytes(raw uint64, width int) []byte {
	var full [8]byte
	binary.LittleEndian.PutUint64(full[:], raw)
	return full[:width]
}
