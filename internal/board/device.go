package board

// device.go defines the device contract every plugged-in device implements.
//
// The original C/Rust ABI this is modelled on passes a struct of raw
// function pointers plus an opaque `void*` handle: a manual vtable. Here the
// same shape is re-expressed as a Go interface with optional capability
// sub-interfaces, discovered with a type assertion when a device is added to
// the board. A device's capability set is therefore whatever it actually
// implements, not a table of nullable pointers.

import "fmt"

// DeviceType identifies the class of a device. The low bits distinguish
// variants within a class (see original_source: RAM is `(1<<32)|1`).
type DeviceType uint64

// Well-known device types.
const (
	DeviceTypeRAM      DeviceType = (1 << 32) | 1
	DeviceTypeStackCPU DeviceType = 2
	DeviceTypeConsole  DeviceType = 3
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeRAM:
		return "RAM"
	case DeviceTypeStackCPU:
		return "Stack-CPU"
	case DeviceTypeConsole:
		return "Console"
	default:
		return fmt.Sprintf("device-type(%#x)", uint64(t))
	}
}

// Device is the capability every plugged-in device must implement. It is
// intentionally minimal: the required surface of the original ABI
// (load_bytes, write_bytes, register_motherboard) plus the bookkeeping the
// slot table needs to identify and size the device.
type Device interface {
	MemoryMapped

	// DeviceType identifies the class of device for diagnostics and for
	// callers that want to discriminate by kind.
	DeviceType() DeviceType

	// ExportMemorySize is the number of bytes this device contributes to
	// the global memory map. Zero means the device exports no memory.
	ExportMemorySize() uint32
}

// MemoryMapped devices can be read and written through the local address
// space handed to them by the motherboard. Implementations must be safe for
// concurrent use: any number of device goroutines may call these methods at
// once (see spec §5).
//
// Reads and writes should ignore addresses beyond the device's own size and
// fill/consume as much of the request as they can (a best-effort partial
// fill), mirroring the original ram.c loop bound.
type MemoryMapped interface {
	LoadBytes(localAddr uint32, out []byte) error
	WriteBytes(localAddr uint32, in []byte) error
}

// Registrar devices want a copy of the host callback table before init,
// reset or boot are called.
type Registrar interface {
	RegisterMotherboard(mb *Motherboard, host HostCallbacks) error
}

// Initializer devices run start-up logic once, before the first reset.
// Device init order is undefined; a device must not depend on any other
// device's state from within Init.
type Initializer interface {
	Init() error
}

// Resetter devices clear their architectural state to power-on defaults.
// Called after Init, and again on every Reboot. Reset order is undefined.
type Resetter interface {
	Reset() error
}

// Cleaner devices release resources acquired during Init. Called after
// every device's Boot (if any) has returned. Cleanup order is undefined.
type Cleaner interface {
	Cleanup() error
}

// Runnable devices run a loop on their own goroutine once the board boots.
// A device that implements Runnable must also make its Boot loop return
// promptly when Halt is called; the board will hang otherwise. Providing
// Boot without Halt is a contract violation (ErrInvalidDeviceContract) that
// is caught at AddDevice time, not at boot time.
type Runnable interface {
	Boot() error
	Halt() error
}

// InterruptSink devices can receive interrupts routed by the motherboard's
// interrupt bus. Interrupt must be safe for concurrent use; per-sender
// ordering at the sink is a requirement on the implementation (typically a
// mutex-guarded FIFO mailbox; see stackcpu.CPU).
type InterruptSink interface {
	Interrupt(code uint32) error
}

// HostCallbacks are the functions the motherboard lends to every device so
// devices can talk to the rest of the machine without holding a reference to
// the motherboard's internals.
type HostCallbacks interface {
	// ReadBytes resolves a global address to a slot and forwards to its
	// LoadBytes. Addresses outside any mapped range are zero-filled.
	ReadBytes(globalAddr uint64, out []byte) error

	// WriteBytes resolves a global address to a slot and forwards to its
	// WriteBytes. Writes to addresses outside any mapped range are
	// dropped silently.
	WriteBytes(globalAddr uint64, in []byte) error

	// SendInterrupt routes code to the device identified by targetID. It
	// returns ErrUnknownDevice if no such device is registered, and is a
	// silent no-op if the target has no InterruptSink capability.
	SendInterrupt(targetID uint32, code uint32) error
}
