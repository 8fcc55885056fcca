package stackcpu

// stack.go implements the CPU's internal 32-bit-word stack. It grows up:
// sp is the index of the next free word, and push appends at sp while pop
// reads from below it. Values wider than one word (u64, f64) occupy two
// consecutive words, low word first.

// push appends ws to the top of the stack. If there is not enough room it
// sets ErrorStackOverflow and discards the entire push, leaving sp
// unchanged, per spec §4.2 Stack discipline.
func (c *CPU) push(ws []uint32) {
	if uint64(c.sp)+uint64(len(ws)) > uint64(len(c.stack)) {
		c.fault(ErrorStackOverflow)
		return
	}

	for _, w := range ws {
		c.stack[c.sp] = w
		c.sp++
	}
}

// pop removes and returns the top n words. If fewer than n words are
// present it sets ErrorStackUnderflow, leaves sp unchanged, and returns a
// zero-filled slice, per spec §4.2 Stack discipline.
func (c *CPU) pop(n int) []uint32 {
	if uint64(n) > uint64(c.sp) {
		c.fault(ErrorStackUnderflow)
		return make([]uint32, n)
	}

	out := make([]uint32, n)
	for i := n - 1; i >= 0; i-- {
		c.sp--
		out[i] = c.stack[c.sp]
	}

	return out
}

// pushValue pushes a raw value of the given type's word width, low word
// first.
func (c *CPU) pushValue(t ValueType, raw uint64) {
	c.push(rawToWords(raw, t.WordWidth()))
}

// popValue pops a value of the given type's word width and reassembles it
// into a raw 64-bit value.
func (c *CPU) popValue(t ValueType) uint64 {
	return wordsToRaw(c.pop(t.WordWidth()))
}
