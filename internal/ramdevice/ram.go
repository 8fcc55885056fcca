// Package ramdevice implements the RAM device: a trivial linear byte buffer
// behind the standard board.Device contract, grounded on original_source's
// ram/ram.c.
package ramdevice

import (
	"fmt"
	"sync"

	"github.com/bridgesim/bridgesim/internal/board"
)

// Config configures a RAM device. MemorySize must be nonzero.
type Config struct {
	MemorySize uint32
}

// RAM is a fixed-size, byte-addressable memory device. Reads and writes
// beyond the end of the buffer are truncated to a best-effort partial fill,
// exactly like ram.c's `dest+i < memory_size` loop bound: out-of-range bytes
// are simply not touched rather than returned as an error.
type RAM struct {
	mu  sync.Mutex
	mem []byte
}

// New creates a RAM device. It fails with board.ErrInvalidConfig if
// cfg.MemorySize is zero.
func New(cfg Config) (*RAM, error) {
	if cfg.MemorySize == 0 {
		return nil, fmt.Errorf("%w: memory size must be nonzero", board.ErrInvalidConfig)
	}

	return &RAM{mem: make([]byte, cfg.MemorySize)}, nil
}

var _ board.Device = (*RAM)(nil)
var _ board.Resetter = (*RAM)(nil)

// DeviceType identifies this device as RAM.
func (*RAM) DeviceType() board.DeviceType { return board.DeviceTypeRAM }

// ExportMemorySize is the configured size of the backing buffer.
func (r *RAM) ExportMemorySize() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return uint32(len(r.mem))
}

// LoadBytes copies from the buffer at localAddr into out, truncating at the
// end of the buffer if the request would overrun it.
func (r *RAM) LoadBytes(localAddr uint32, out []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range out {
		if uint64(localAddr)+uint64(i) >= uint64(len(r.mem)) {
			break
		}

		out[i] = r.mem[uint64(localAddr)+uint64(i)]
	}

	return nil
}

// WriteBytes copies from in into the buffer at localAddr, truncating at the
// end of the buffer if the request would overrun it.
func (r *RAM) WriteBytes(localAddr uint32, in []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range in {
		if uint64(localAddr)+uint64(i) >= uint64(len(r.mem)) {
			break
		}

		r.mem[uint64(localAddr)+uint64(i)] = in[i]
	}

	return nil
}

// Reset zeroes the entire buffer.
func (r *RAM) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.mem {
		r.mem[i] = 0
	}

	return nil
}
