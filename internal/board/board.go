// Package board implements the motherboard fabric: a fixed-capacity slot
// table of pluggable devices sharing one global memory address space and one
// interrupt bus.
package board

import (
	"fmt"
	"sync"

	"github.com/bridgesim/bridgesim/internal/log"
)

// slot is an entry in the motherboard's device table.
type slot struct {
	device   Device
	deviceID uint32
}

// Config configures a new Motherboard.
type Config struct {
	MaxDevices uint32
}

// Motherboard is the fabric that hosts a fixed-capacity set of devices,
// routes memory accesses to the device that owns the addressed range, and
// routes interrupts point-to-point between devices.
type Motherboard struct {
	mu sync.RWMutex // guards slots, nextID and memMap during setup/teardown

	slots      []*slot
	maxDevices uint32
	nextID     uint32

	memMap  memoryMap
	mapped  bool
	running sync.WaitGroup

	log *log.Logger
}

// New allocates a motherboard with a fixed device capacity.
func New(cfg Config) (*Motherboard, error) {
	if cfg.MaxDevices == 0 {
		return nil, fmt.Errorf("%w: max devices must be nonzero", ErrInvalidConfig)
	}

	return &Motherboard{
		maxDevices: cfg.MaxDevices,
		log:        log.DefaultLogger(),
	}, nil
}

// NumSlots returns the motherboard's total device capacity.
func (mb *Motherboard) NumSlots() uint32 {
	return mb.maxDevices
}

// SlotsFilled returns the number of devices currently registered.
func (mb *Motherboard) SlotsFilled() uint32 {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	return uint32(len(mb.slots))
}

// IsFull reports whether every slot is occupied.
func (mb *Motherboard) IsFull() bool {
	return mb.SlotsFilled() == mb.maxDevices
}

// AddDevice registers a device in the next free slot, assigning it a
// motherboard-scoped device ID. It fails with ErrFull if no slot remains,
// ErrInvalidArgument if device is nil, and ErrInvalidDeviceContract if the
// device has a Boot method without a Halt method, or a Halt without a Boot.
func (mb *Motherboard) AddDevice(device Device) (uint32, error) {
	if device == nil {
		return 0, fmt.Errorf("%w: nil device", ErrInvalidArgument)
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if uint32(len(mb.slots)) >= mb.maxDevices {
		return 0, ErrFull
	}

	if err := checkContract(device); err != nil {
		return 0, err
	}

	id := mb.nextID
	mb.nextID++

	mb.slots = append(mb.slots, &slot{device: device, deviceID: id})

	mb.log.Debug("board: device added", "type", device.DeviceType(), "id", id)

	return id, nil
}

// checkContract enforces "if boot is provided, halt must also be provided."
// A type with only one of the two methods does not satisfy Runnable, so the
// board would silently never boot it; this check looks for each method on
// its own and rejects such a device instead.
func checkContract(device Device) error {
	_, hasBoot := device.(interface{ Boot() error })
	_, hasHalt := device.(interface{ Halt() error })

	if hasBoot != hasHalt {
		return ErrInvalidDeviceContract
	}

	return nil
}

// ReadBytes resolves a global address to a device slot and forwards the read
// to it. Addresses outside any mapped range are zero-filled; a request that
// straddles the end of a slot's range is forwarded as-is and the device is
// expected to perform a best-effort partial fill.
func (mb *Motherboard) ReadBytes(globalAddr uint64, out []byte) error {
	mb.mu.RLock()
	mm := mb.memMap
	mb.mu.RUnlock()

	region, ok := mm.find(globalAddr)
	if !ok {
		for i := range out {
			out[i] = 0
		}

		return nil
	}

	localAddr := uint32(globalAddr - region.base)

	return region.slot.device.LoadBytes(localAddr, out)
}

// WriteBytes resolves a global address to a device slot and forwards the
// write to it. Writes to addresses outside any mapped range are dropped.
func (mb *Motherboard) WriteBytes(globalAddr uint64, in []byte) error {
	mb.mu.RLock()
	mm := mb.memMap
	mb.mu.RUnlock()

	region, ok := mm.find(globalAddr)
	if !ok {
		return nil
	}

	localAddr := uint32(globalAddr - region.base)

	return region.slot.device.WriteBytes(localAddr, in)
}

// SendInterrupt routes code to the device identified by targetID. It is a
// silent no-op if the target has no InterruptSink capability, and returns
// ErrUnknownDevice if targetID names no registered device.
func (mb *Motherboard) SendInterrupt(targetID uint32, code uint32) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	for _, s := range mb.slots {
		if s.deviceID != targetID {
			continue
		}

		if sink, ok := s.device.(InterruptSink); ok {
			return sink.Interrupt(code)
		}

		return nil
	}

	return fmt.Errorf("%w: id %d", ErrUnknownDevice, targetID)
}

var _ HostCallbacks = (*Motherboard)(nil)
