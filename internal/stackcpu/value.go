package stackcpu

import "math"

// value.go holds the numeric conversion and arithmetic helpers the opcode
// table dispatches into. Values move around as raw uint64 bit patterns;
// ValueType says how to interpret those bits.

// wordsToRaw reassembles one or two 32-bit words, low word first, into a
// raw 64-bit value.
func wordsToRaw(ws []uint32) uint64 {
	if len(ws) == 1 {
		return uint64(ws[0])
	}

	return uint64(ws[0]) | uint64(ws[1])<<32
}

// rawToWords splits a raw 64-bit value into wordWidth words, low word
// first.
func rawToWords(raw uint64, wordWidth int) []uint32 {
	if wordWidth == 1 {
		return []uint32{uint32(raw)}
	}

	return []uint32{uint32(raw), uint32(raw >> 32)}
}

// mask is the bitmask of a type's value domain: all-ones for the type's
// byte width. Used to wrap integer arithmetic the way a fixed-width
// register would.
func mask(t ValueType) uint64 {
	bits := t.ByteWidth() * 8
	if bits >= 64 {
		return math.MaxUint64
	}

	return 1<<uint(bits) - 1
}

// asFloat64 interprets a raw value of type t as a float64, widening f32 as
// needed.
func asFloat64(t ValueType, raw uint64) float64 {
	if t == TypeF32 {
		return float64(math.Float32frombits(uint32(raw)))
	}

	return math.Float64frombits(raw)
}

// fromFloat64 re-encodes a float64 as the raw bits of type t, narrowing to
// f32 as needed.
func fromFloat64(t ValueType, f float64) uint64 {
	if t == TypeF32 {
		return uint64(math.Float32bits(float32(f)))
	}

	return math.Float64bits(f)
}

// binaryOp applies fn to a and b, interpreted and re-encoded as type t:
// float arithmetic for float types, masked unsigned arithmetic otherwise.
func binaryOp(t ValueType, a, b uint64, intFn func(a, b uint64) uint64, floatFn func(a, b float64) float64) uint64 {
	if t.isFloat() {
		return fromFloat64(t, floatFn(asFloat64(t, a), asFloat64(t, b)))
	}

	return intFn(a, b) & mask(t)
}

func typedAdd(t ValueType, a, b uint64) uint64 {
	return binaryOp(t, a, b, func(a, b uint64) uint64 { return a + b }, func(a, b float64) float64 { return a + b })
}

func typedSub(t ValueType, a, b uint64) uint64 {
	return binaryOp(t, a, b, func(a, b uint64) uint64 { return a - b }, func(a, b float64) float64 { return a - b })
}

func typedMul(t ValueType, a, b uint64) uint64 {
	return binaryOp(t, a, b, func(a, b uint64) uint64 { return a * b }, func(a, b float64) float64 { return a * b })
}

// typedDiv divides a by b. Integer division by zero yields zero and sets
// ok=false; the caller turns that into ErrorInvalidArgument rather than
// panicking, since the original ABI has no room to propagate a Go panic.
func typedDiv(t ValueType, a, b uint64) (result uint64, ok bool) {
	if t.isFloat() {
		return fromFloat64(t, asFloat64(t, a)/asFloat64(t, b)), true
	}

	if b == 0 {
		return 0, false
	}

	return (a / b) & mask(t), true
}

func typedNeg(t ValueType, a uint64) uint64 {
	if t.isFloat() {
		return fromFloat64(t, -asFloat64(t, a))
	}

	return (-a) & mask(t)
}

func typedNot(t ValueType, a uint64) uint64 {
	return (^a) & mask(t)
}

func typedAnd(t ValueType, a, b uint64) uint64 { return (a & b) & mask(t) }
func typedOr(t ValueType, a, b uint64) uint64  { return (a | b) & mask(t) }
func typedXor(t ValueType, a, b uint64) uint64 { return (a ^ b) & mask(t) }

// compareOp evaluates a relational operator over a and b, interpreted as
// type t, and returns it as a one-word boolean (0 or 1).
func compareOp(t ValueType, a, b uint64, intCmp func(a, b uint64) bool, floatCmp func(a, b float64) bool) uint64 {
	var result bool
	if t.isFloat() {
		result = floatCmp(asFloat64(t, a), asFloat64(t, b))
	} else {
		result = intCmp(a, b)
	}

	if result {
		return 1
	}

	return 0
}

// castValue numerically converts a raw value from src's domain to dst's
// domain: the numeric value is preserved (subject to dst's range), not the
// bit pattern. Float-to-int truncates toward zero; int-to-float rounds to
// the nearest representable value.
func castValue(src, dst ValueType, raw uint64) uint64 {
	if src == dst {
		return raw
	}

	if src.isFloat() && dst.isFloat() {
		return fromFloat64(dst, asFloat64(src, raw))
	}

	if src.isFloat() && !dst.isFloat() {
		f := asFloat64(src, raw)
		if f < 0 {
			f = 0
		}

		return uint64(f) & mask(dst)
	}

	if !src.isFloat() && dst.isFloat() {
		return fromFloat64(dst, float64(raw&mask(src)))
	}

	return (raw & mask(src)) & mask(dst)
}
