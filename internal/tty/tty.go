// Package tty provides an interactive serial console device, adapting Unix
// terminal I/O[^1] for use as a plugged-in machine device: one memory-mapped
// byte register doubling as keyboard input (reads) and display output
// (writes), like the shared data register of an electromechanical teletype.
//
// [1]: See: tty(4), termios(4).
package tty

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/bridgesim/bridgesim/internal/board"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Config configures a Console device.
type Config struct {
	// InterruptTarget is the device ID notified on every keypress.
	InterruptTarget uint32

	// InterruptCode is the interrupt code sent to InterruptTarget on every
	// keypress.
	InterruptCode uint32
}

// Console is a serial console device, backed by the process's own
// stdin/stdout. Keys pressed at the terminal are latched into its one-byte
// register and announced with a hardware interrupt to InterruptTarget;
// bytes written to the register by a running program are echoed to the
// terminal.
type Console struct {
	cfg Config

	fd    int
	in    *os.File
	out   *term.Terminal
	state *term.State

	mu      sync.Mutex
	lastKey byte

	host     board.HostCallbacks
	haltCh   chan struct{}
	haltOnce sync.Once
}

// ErrNoTTY is returned by Boot, wrapping the cause, if standard input is a
// terminal but cannot be put into raw mode. Console can still be plugged in
// without a live terminal: if standard input is not a terminal, Boot returns
// nil immediately, leaving the machine without interactive input.
var ErrNoTTY error = errors.New("console: not a TTY")

// New creates a Console bound to the process's stdin/stdout.
func New(cfg Config) *Console {
	return &Console{cfg: cfg, haltCh: make(chan struct{})}
}

var (
	_ board.Device    = (*Console)(nil)
	_ board.Registrar = (*Console)(nil)
	_ board.Resetter  = (*Console)(nil)
	_ board.Runnable  = (*Console)(nil)
)

// DeviceType identifies this device as the console.
func (*Console) DeviceType() board.DeviceType { return board.DeviceTypeConsole }

// ExportMemorySize is always 1: a single shared data register.
func (*Console) ExportMemorySize() uint32 { return 1 }

// LoadBytes reads the latched last keypress at local address 0. Any other
// address, or an empty out, reads as zero.
func (c *Console) LoadBytes(localAddr uint32, out []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range out {
		if localAddr+uint32(i) == 0 {
			out[i] = c.lastKey
			continue
		}

		out[i] = 0
	}

	return nil
}

// WriteBytes echoes bytes written at local address 0 to the terminal.
// Writes to any other address are dropped.
func (c *Console) WriteBytes(localAddr uint32, in []byte) error {
	if c.out == nil {
		return nil
	}

	for i, b := range in {
		if localAddr+uint32(i) != 0 {
			continue
		}

		if _, err := fmt.Fprintf(c.out, "%c", rune(b)); err != nil {
			return err
		}
	}

	return nil
}

// RegisterMotherboard stores the host callback table, used to deliver
// keypress interrupts.
func (c *Console) RegisterMotherboard(_ *board.Motherboard, host board.HostCallbacks) error {
	c.host = host
	return nil
}

// Reset clears the latched key. It does not affect terminal state.
func (c *Console) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastKey = 0

	return nil
}

// Boot enters raw terminal mode and reads keys until Halt is called. If
// stdin is not a terminal, Boot logs nothing and returns immediately: a
// console with no TTY behind it is a no-op device, not a fatal error.
func (c *Console) Boot() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}

	saved, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoTTY, err)
	}

	c.fd = fd
	c.in = os.Stdin
	c.out = term.NewTerminal(os.Stdin, "")
	c.state = saved

	if err := c.setTerminalParams(1, 0); err != nil {
		return err
	}

	defer func() {
		_ = os.Stdin.SetReadDeadline(time.Now())
		_ = term.Restore(c.fd, c.state)
	}()

	return c.readLoop()
}

// Halt makes Boot's read loop return promptly by forcing the blocked stdin
// read to time out.
func (c *Console) Halt() error {
	c.haltOnce.Do(func() {
		close(c.haltCh)
		_ = os.Stdin.SetReadDeadline(time.Now())
	})

	return nil
}

func (c *Console) setTerminalParams(vmin, vtime byte) error {
	_ = syscall.SetNonblock(c.fd, true)

	termIO, err := unix.IoctlGetTermios(c.fd, getTermiosIoctl)
	if err != nil {
		return err
	}

	termIO.Cc[unix.VMIN] = vmin
	termIO.Cc[unix.VTIME] = vtime

	if err := unix.IoctlSetTermios(c.fd, setTermiosIoctl, termIO); err != nil {
		return err
	}

	_ = os.Stdin.SetReadDeadline(time.Time{})

	return nil
}

func (c *Console) readLoop() error {
	buf := bufio.NewReader(c.in)

	_ = syscall.SetNonblock(c.fd, false)

	for {
		select {
		case <-c.haltCh:
			return nil
		default:
		}

		b, err := buf.ReadByte()
		if err != nil {
			select {
			case <-c.haltCh:
				return nil
			default:
				return err
			}
		}

		c.mu.Lock()
		c.lastKey = b
		c.mu.Unlock()

		if c.host != nil {
			_ = c.host.SendInterrupt(c.cfg.InterruptTarget, c.cfg.InterruptCode)
		}
	}
}
