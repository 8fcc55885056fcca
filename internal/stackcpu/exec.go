package stackcpu

// exec.go is the dispatch loop: the function that runs on the CPU's own
// goroutine once the board boots it.

// Boot runs the fetch-decode-execute loop until Halt is called or the
// program itself requests shutdown by delivering interrupt code 0 while
// interrupts are enabled. A non-nil return means an instruction fetch hit a
// device error, which is a simulator fault, not an in-sim one: it is
// returned to the motherboard, whose Boot reports it once every device loop
// has returned.
func (c *CPU) Boot() error {
	for {
		select {
		case <-c.haltCh:
			return nil
		default:
		}

		if c.settings&SettingsInterruptsEnabled != 0 {
			if code, ok := c.mailbox.dequeue(); ok {
				if code == 0 {
					return nil
				}

				c.handleInterrupt(code)
				continue
			}
		}

		var buf [2]byte
		if err := c.host.ReadBytes(c.ip, buf[:]); err != nil {
			return err
		}

		instr := DecodeInstruction(buf)
		c.ip += 2

		if err := c.execute(instr); err != nil {
			return err
		}
	}
}

// Halt asks the dispatch loop to return promptly. It is idempotent: calling
// it more than once is safe.
func (c *CPU) Halt() error {
	c.haltOnce.Do(func() { close(c.haltCh) })
	return nil
}
