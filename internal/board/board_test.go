package board

import (
	"errors"
	"sync"
	"testing"
)

// fakeDevice is a minimal Device used to exercise the fabric without
// depending on the ram or stackcpu packages.
type fakeDevice struct {
	typ  DeviceType
	size uint32
	mem  []byte
	mu   sync.Mutex

	interrupts []uint32
}

func newFakeDevice(typ DeviceType, size uint32) *fakeDevice {
	return &fakeDevice{typ: typ, size: size, mem: make([]byte, size)}
}

func (d *fakeDevice) DeviceType() DeviceType   { return d.typ }
func (d *fakeDevice) ExportMemorySize() uint32 { return d.size }

func (d *fakeDevice) LoadBytes(addr uint32, out []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range out {
		if uint64(addr)+uint64(i) >= uint64(len(d.mem)) {
			break
		}

		out[i] = d.mem[addr+uint32(i)]
	}

	return nil
}

func (d *fakeDevice) WriteBytes(addr uint32, in []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range in {
		if uint64(addr)+uint64(i) >= uint64(len(d.mem)) {
			break
		}

		d.mem[addr+uint32(i)] = in[i]
	}

	return nil
}

func (d *fakeDevice) Interrupt(code uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interrupts = append(d.interrupts, code)

	return nil
}

// runnableDevice embeds fakeDevice and adds Boot/Halt so AddDevice's
// contract check sees a matched pair.
type runnableDevice struct {
	*fakeDevice
	halt chan struct{}
}

func newRunnableDevice(typ DeviceType) *runnableDevice {
	return &runnableDevice{fakeDevice: newFakeDevice(typ, 0), halt: make(chan struct{})}
}

func (r *runnableDevice) Boot() error {
	<-r.halt
	return nil
}

func (r *runnableDevice) Halt() error {
	close(r.halt)
	return nil
}

// bootOnlyDevice implements Boot but not Halt, to exercise the contract
// check in AddDevice.
type bootOnlyDevice struct {
	*fakeDevice
}

func (bootOnlyDevice) Boot() error { return nil }

func TestAddDevice(t *testing.T) {
	mb, err := New(Config{MaxDevices: 2})
	if err != nil {
		t.Fatal(err)
	}

	if mb.SlotsFilled() != 0 {
		t.Fatalf("want 0 slots filled, got %d", mb.SlotsFilled())
	}

	id, err := mb.AddDevice(newFakeDevice(DeviceTypeRAM, 16))
	if err != nil {
		t.Fatal(err)
	}

	if id != 0 {
		t.Fatalf("want first device id 0, got %d", id)
	}

	if mb.SlotsFilled() != 1 {
		t.Fatalf("want 1 slot filled, got %d", mb.SlotsFilled())
	}

	if mb.IsFull() {
		t.Fatal("board should not be full yet")
	}

	if _, err := mb.AddDevice(newFakeDevice(DeviceTypeRAM, 16)); err != nil {
		t.Fatal(err)
	}

	if !mb.IsFull() {
		t.Fatal("board should be full")
	}

	if _, err := mb.AddDevice(newFakeDevice(DeviceTypeRAM, 16)); !errors.Is(err, ErrFull) {
		t.Fatalf("want ErrFull, got %v", err)
	}
}

func TestAddDeviceRejectsNil(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 1})

	if _, err := mb.AddDevice(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(Config{MaxDevices: 0}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}
}

func TestAddDeviceRejectsBootWithoutHalt(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 1})

	dev := bootOnlyDevice{fakeDevice: newFakeDevice(DeviceTypeStackCPU, 0)}

	if _, err := mb.AddDevice(dev); !errors.Is(err, ErrInvalidDeviceContract) {
		t.Fatalf("want ErrInvalidDeviceContract, got %v", err)
	}
}

func TestMemoryMapResolvesAndZeroFills(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 2})

	ramA := newFakeDevice(DeviceTypeRAM, 8)
	ramB := newFakeDevice(DeviceTypeRAM, 8)

	if _, err := mb.AddDevice(ramA); err != nil {
		t.Fatal(err)
	}

	if _, err := mb.AddDevice(ramB); err != nil {
		t.Fatal(err)
	}

	// Neither device is Runnable, so Boot finalizes the memory map, runs
	// the init/reset lifecycle, and returns immediately.
	if err := mb.Boot(); err != nil {
		t.Fatal(err)
	}

	payload := []byte{1, 2, 3, 4}
	if err := mb.WriteBytes(0, payload); err != nil {
		t.Fatal(err)
	}

	out := make([]byte, 4)
	if err := mb.ReadBytes(0, out); err != nil {
		t.Fatal(err)
	}

	for i := range payload {
		if out[i] != payload[i] {
			t.Fatalf("region A: want %v, got %v", payload, out)
		}
	}

	if err := mb.WriteBytes(8, payload); err != nil {
		t.Fatal(err)
	}

	out2 := make([]byte, 4)
	if err := mb.ReadBytes(8, out2); err != nil {
		t.Fatal(err)
	}

	for i := range payload {
		if out2[i] != payload[i] {
			t.Fatalf("region B: want %v, got %v", payload, out2)
		}
	}

	unmapped := make([]byte, 4)
	for i := range unmapped {
		unmapped[i] = 0xff
	}

	if err := mb.ReadBytes(1000, unmapped); err != nil {
		t.Fatal(err)
	}

	for _, b := range unmapped {
		if b != 0 {
			t.Fatalf("unmapped read should zero-fill, got %v", unmapped)
		}
	}

	// Writes to unmapped addresses are silently dropped, not errors.
	if err := mb.WriteBytes(1000, payload); err != nil {
		t.Fatal(err)
	}
}

func TestSendInterruptUnknownDevice(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 1})

	if err := mb.SendInterrupt(42, 1); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("want ErrUnknownDevice, got %v", err)
	}
}

func TestSendInterruptDeliversToSink(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 1})

	dev := newFakeDevice(DeviceTypeRAM, 0)

	id, err := mb.AddDevice(dev)
	if err != nil {
		t.Fatal(err)
	}

	if err := mb.SendInterrupt(id, 7); err != nil {
		t.Fatal(err)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()

	if len(dev.interrupts) != 1 || dev.interrupts[0] != 7 {
		t.Fatalf("want [7], got %v", dev.interrupts)
	}
}

func TestBootRunsRunnableDevicesAndHaltStopsThem(t *testing.T) {
	mb, _ := New(Config{MaxDevices: 1})

	dev := newRunnableDevice(DeviceTypeStackCPU)

	if _, err := mb.AddDevice(dev); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)

	go func() {
		done <- mb.Boot()
	}()

	if err := mb.Halt(); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("boot returned error: %v", err)
		}
	}
}
