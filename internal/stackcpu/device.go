package stackcpu

import "github.com/bridgesim/bridgesim/internal/board"

// device.go wires CPU into the board.Device contract.

// DeviceType identifies this device as the stack-CPU.
func (*CPU) DeviceType() board.DeviceType { return board.DeviceTypeStackCPU }

// ExportMemorySize is always zero: the CPU contributes no addressable
// memory of its own.
func (*CPU) ExportMemorySize() uint32 { return 0 }

// LoadBytes zero-fills out: the CPU exports no memory, so reads of its
// (nonexistent) range always read as zero.
func (*CPU) LoadBytes(_ uint32, out []byte) error {
	for i := range out {
		out[i] = 0
	}

	return nil
}

// WriteBytes is a silent no-op: the CPU exports no memory to write to.
func (*CPU) WriteBytes(_ uint32, _ []byte) error { return nil }

// RegisterMotherboard stores the host callback table the CPU uses to fetch
// instructions and read and write global memory. Software interrupts (the I
// opcode) go straight to the CPU's own mailbox, not through the host.
func (c *CPU) RegisterMotherboard(mb *board.Motherboard, host board.HostCallbacks) error {
	c.host = host
	return nil
}

// Init allocates the internal stack.
func (c *CPU) Init() error {
	c.stack = make([]uint32, c.stackSize)
	return nil
}

// Reset clears all architectural state to power-on defaults: empty stack,
// sp and ip at zero, settings and errors cleared, interrupt registers
// cleared, mailbox emptied.
func (c *CPU) Reset() error {
	for i := range c.stack {
		c.stack[i] = 0
	}

	c.sp = 0
	c.ip = 0
	c.interruptStack = 0
	c.interruptTable = 0
	c.interruptCount = 0
	c.settings = 0
	c.errs = 0
	c.mailbox.reset()

	return nil
}

// Cleanup releases the internal stack.
func (c *CPU) Cleanup() error {
	c.stack = nil
	return nil
}
