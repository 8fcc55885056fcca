package stackcpu

// intr.go implements interrupt delivery. Hardware interrupts arrive via
// Interrupt (the board.InterruptSink capability, called from another
// device's goroutine); software interrupts arrive via the I opcode, which
// calls the same Interrupt method directly, since I always targets the
// CPU's own interrupt processor. Either way they land in the mailbox and
// are only serviced by the dispatch loop between instructions, with
// interrupts enabled.

// Interrupt enqueues code for later delivery. It never blocks.
func (c *CPU) Interrupt(code uint32) error {
	c.mailbox.enqueue(code)
	return nil
}

// handleInterrupt services one dequeued interrupt code. If interrupt_table
// is configured and code names a valid entry, the current ip is saved to
// the memory-backed shift region addressed by interrupt_stack and
// execution jumps to the vector; otherwise the interrupt is dropped
// silently, since a program that never set up a table made no contract to
// be interrupted.
func (c *CPU) handleInterrupt(code uint32) {
	if c.interruptTable == 0 || code >= c.interruptCount {
		return
	}

	c.interruptStack -= 8
	_ = c.host.WriteBytes(c.interruptStack, rawToBytes(c.ip, 8))

	vectorAddr := c.interruptTable + uint64(code)*8
	buf := make([]byte, 8)
	_ = c.host.ReadBytes(vectorAddr, buf)
	c.ip = bytesToRaw(buf)
}
