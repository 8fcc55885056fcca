package stackcpu

import (
	"fmt"
	"sync"

	"github.com/bridgesim/bridgesim/internal/board"
	"github.com/bridgesim/bridgesim/internal/log"
)

// Config configures a new CPU. StackSize must be nonzero.
type Config struct {
	StackSize uint32
}

// CPU is the stack-CPU device: a stack-oriented virtual processor with a
// 32-bit-word internal stack, memory-backed "shift" stack, and software and
// hardware interrupt handling (spec §3, §4.2).
type CPU struct {
	stackSize uint32
	stack     []uint32 // allocated by Init, released by Cleanup.
	sp        uint32   // word index into stack; grows up.
	ip        uint64   // global address of the next instruction.

	interruptStack uint64
	interruptTable uint64
	interruptCount uint32
	settings       Settings
	errs           Errors

	mailbox *mailbox

	host board.HostCallbacks

	haltCh   chan struct{}
	haltOnce sync.Once

	log *log.Logger
}

// New creates a stack-CPU device. It fails with board.ErrInvalidConfig if
// cfg.StackSize is zero.
func New(cfg Config) (*CPU, error) {
	if cfg.StackSize == 0 {
		return nil, fmt.Errorf("%w: stack size must be nonzero", board.ErrInvalidConfig)
	}

	return &CPU{
		stackSize: cfg.StackSize,
		mailbox:   newMailbox(),
		haltCh:    make(chan struct{}),
		log:       log.DefaultLogger(),
	}, nil
}

// StackSize returns the configured internal stack capacity, in words.
func (c *CPU) StackSize() uint32 { return c.stackSize }

// SP returns the current internal stack pointer.
func (c *CPU) SP() uint32 { return c.sp }

// IP returns the current instruction pointer.
func (c *CPU) IP() uint64 { return c.ip }

// ErrorsRegister returns the CPU's errors bitvector.
func (c *CPU) ErrorsRegister() Errors { return c.errs }

// SettingsRegister returns the CPU's settings bitvector.
func (c *CPU) SettingsRegister() Settings { return c.settings }

func (c *CPU) fault(e Errors) {
	c.errs |= e
}

var (
	_ board.Device        = (*CPU)(nil)
	_ board.Registrar     = (*CPU)(nil)
	_ board.Initializer   = (*CPU)(nil)
	_ board.Resetter      = (*CPU)(nil)
	_ board.Cleaner       = (*CPU)(nil)
	_ board.Runnable      = (*CPU)(nil)
	_ board.InterruptSink = (*CPU)(nil)
)
