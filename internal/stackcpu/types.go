// Package stackcpu implements the stack-CPU device: a stack-oriented
// virtual processor with a typed two-byte instruction encoding, a 32-bit
// word internal stack, a memory-backed "shift" stack, and software/hardware
// interrupt handling.
package stackcpu

import "fmt"

// ValueType is the one-byte argument used by size-polymorphic opcodes to
// select operand width and numeric interpretation.
type ValueType byte

// Type codes, per spec.
const (
	TypeF32 ValueType = 2
	TypeU8  ValueType = 3
	TypeU16 ValueType = 4
	TypeU32 ValueType = 5
	TypeU64 ValueType = 6
	TypeF64 ValueType = 7
)

func (t ValueType) String() string {
	switch t {
	case TypeF32:
		return "f32"
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeF64:
		return "f64"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// Valid reports whether t is one of the six defined type codes.
func (t ValueType) Valid() bool {
	switch t {
	case TypeF32, TypeU8, TypeU16, TypeU32, TypeU64, TypeF64:
		return true
	default:
		return false
	}
}

// ByteWidth is the width in bytes of a value of this type.
func (t ValueType) ByteWidth() int {
	switch t {
	case TypeU8:
		return 1
	case TypeU16:
		return 2
	case TypeF32, TypeU32:
		return 4
	case TypeU64, TypeF64:
		return 8
	default:
		return 0
	}
}

// WordWidth is the width in 32-bit stack words of a value of this type: 1
// for widths up to 4 bytes, 2 for 8-byte values (spec §3, §4.2 Stack
// representation).
func (t ValueType) WordWidth() int {
	if t.ByteWidth() > 4 {
		return 2
	}

	return 1
}

// intType coerces integer-only opcode arguments (&, |, ^, ~) to the nearest
// integer type: codes 2 (f32) and 7 (f64) silently map to u32 and u64
// respectively, per spec §4.2.
func (t ValueType) intType() ValueType {
	switch t {
	case TypeF32:
		return TypeU32
	case TypeF64:
		return TypeU64
	default:
		return t
	}
}

// isFloat reports whether t is a floating-point type.
func (t ValueType) isFloat() bool {
	return t == TypeF32 || t == TypeF64
}

// RegisterID selects an architectural register for the P (read) and p
// (write) opcodes. The original contract names these registers but does not
// assign them numeric codes; the layout below is this implementation's
// choice (see DESIGN.md).
type RegisterID byte

const (
	RegInterruptStack RegisterID = 0
	RegInterruptTable RegisterID = 1
	RegInterruptCount RegisterID = 2
	RegSettings       RegisterID = 3
	RegErrors         RegisterID = 4
	RegSP             RegisterID = 5
	RegIP             RegisterID = 6
)

func (r RegisterID) String() string {
	switch r {
	case RegInterruptStack:
		return "interrupt_stack"
	case RegInterruptTable:
		return "interrupt_table"
	case RegInterruptCount:
		return "interrupt_count"
	case RegSettings:
		return "settings"
	case RegErrors:
		return "errors"
	case RegSP:
		return "sp"
	case RegIP:
		return "ip"
	default:
		return fmt.Sprintf("register(%d)", byte(r))
	}
}

// protected reports whether writes to this register via the p opcode are
// subject to the protected-mode check (spec §4.2, Protection).
func (r RegisterID) protected() bool {
	switch r {
	case RegInterruptStack, RegInterruptTable, RegInterruptCount, RegSettings:
		return true
	default:
		return false
	}
}

// Settings is the CPU's settings bitvector.
type Settings uint32

const (
	SettingsInterruptsEnabled Settings = 1 << 0
	SettingsProtectedMode     Settings = 1 << 1
)

// Errors is the CPU's errors bitvector. Bits accumulate; they are cleared
// only by Reset or by the simulated program explicitly writing Errors via p.
type Errors uint32

const (
	ErrorInvalidOpcode   Errors = 1 << 0
	ErrorInvalidArgument Errors = 1 << 1
	ErrorStackUnderflow  Errors = 1 << 2
	ErrorStackOverflow   Errors = 1 << 3
	ErrorProtectionFault Errors = 1 << 4
)
