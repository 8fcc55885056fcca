package stackcpu

import (
	"encoding/binary"
	"testing"

	"github.com/bridgesim/bridgesim/internal/board"
)

// fakeHost is a minimal board.HostCallbacks backed by a flat byte slice,
// used to unit test CPU's opcode semantics without a real Motherboard.
type fakeHost struct {
	mem         []byte
	interrupts  []fakeInterrupt
	interruptFn func(target, code uint32) error
}

type fakeInterrupt struct {
	target, code uint32
}

func newFakeHost(size int) *fakeHost {
	return &fakeHost{mem: make([]byte, size)}
}

func (h *fakeHost) ReadBytes(addr uint64, out []byte) error {
	for i := range out {
		if addr+uint64(i) >= uint64(len(h.mem)) {
			out[i] = 0
			continue
		}

		out[i] = h.mem[addr+uint64(i)]
	}

	return nil
}

func (h *fakeHost) WriteBytes(addr uint64, in []byte) error {
	for i := range in {
		if addr+uint64(i) >= uint64(len(h.mem)) {
			continue
		}

		h.mem[addr+uint64(i)] = in[i]
	}

	return nil
}

func (h *fakeHost) SendInterrupt(target, code uint32) error {
	h.interrupts = append(h.interrupts, fakeInterrupt{target, code})

	if h.interruptFn != nil {
		return h.interruptFn(target, code)
	}

	return nil
}

var _ board.HostCallbacks = (*fakeHost)(nil)

func newTestCPU(t *testing.T, stackWords uint32) *CPU {
	t.Helper()

	c, err := New(Config{StackSize: stackWords})
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Init(); err != nil {
		t.Fatal(err)
	}

	c.host = newFakeHost(4096)

	return c
}

// Scenario 1: addition.
func TestAdditionPushesSum(t *testing.T) {
	c := newTestCPU(t, 8)

	c.pushValue(TypeU32, 2)
	c.pushValue(TypeU32, 3)

	if err := c.execute(Instruction{Op: OpAdd, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if got := c.popValue(TypeU32); got != 5 {
		t.Fatalf("want 5, got %d", got)
	}

	if c.errs != 0 {
		t.Fatalf("want no errors, got %#x", c.errs)
	}
}

// Scenario 2: underflow.
func TestAddOnEmptyStackSetsUnderflow(t *testing.T) {
	c := newTestCPU(t, 8)

	if err := c.execute(Instruction{Op: OpAdd, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.errs&ErrorStackUnderflow == 0 {
		t.Fatalf("want ErrorStackUnderflow set, got %#x", c.errs)
	}

	if c.sp != 0 {
		t.Fatalf("want sp unchanged at 0, got %d", c.sp)
	}

	if got := c.popValue(TypeU32); got != 0 {
		t.Fatalf("want 0 from popping the still-empty stack after underflow, got %d", got)
	}
}

// Scenario 3: unknown opcode.
func TestUnknownOpcodeSetsInvalidOpcode(t *testing.T) {
	c := newTestCPU(t, 8)

	if err := c.execute(Instruction{Op: Op(0xFE)}); err != nil {
		t.Fatal(err)
	}

	if c.errs&ErrorInvalidOpcode == 0 {
		t.Fatalf("want ErrorInvalidOpcode set, got %#x", c.errs)
	}

	if c.sp != 0 {
		t.Fatalf("want stack untouched, sp=%d", c.sp)
	}
}

// Scenario 4: conditional jump. Push order matches spec's documented stack
// layout, bottom to top: cond, then addr (addr on top, popped first).
func TestCondJumpTakenWhenNonzero(t *testing.T) {
	c := newTestCPU(t, 8)

	c.pushValue(TypeU32, 1)
	c.pushValue(TypeU64, 0x1000)

	if err := c.execute(Instruction{Op: OpCondJump, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.ip != 0x1000 {
		t.Fatalf("want ip=0x1000, got %#x", c.ip)
	}
}

func TestCondJumpNotTakenWhenZero(t *testing.T) {
	c := newTestCPU(t, 8)
	c.ip = 42

	c.pushValue(TypeU32, 0)
	c.pushValue(TypeU64, 0x1000)

	if err := c.execute(Instruction{Op: OpCondJump, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.ip != 42 {
		t.Fatalf("want ip unchanged at 42, got %#x", c.ip)
	}
}

// Scenario 6: protected write rejection.
func TestProtectedRegisterWriteRejectedInProtectedMode(t *testing.T) {
	c := newTestCPU(t, 8)
	c.settings = SettingsProtectedMode

	c.pushValue(TypeU64, 0xffff)

	if err := c.execute(Instruction{Op: OpRegWrite, Argument: byte(RegSettings)}); err != nil {
		t.Fatal(err)
	}

	if c.errs&ErrorProtectionFault == 0 {
		t.Fatalf("want ErrorProtectionFault set, got %#x", c.errs)
	}

	if c.settings != SettingsProtectedMode {
		t.Fatalf("want settings unchanged, got %#x", c.settings)
	}
}

func TestUnprotectedRegisterWriteAllowedInProtectedMode(t *testing.T) {
	c := newTestCPU(t, 8)
	c.settings = SettingsProtectedMode

	c.pushValue(TypeU64, 7)

	if err := c.execute(Instruction{Op: OpRegWrite, Argument: byte(RegSP)}); err != nil {
		t.Fatal(err)
	}

	if c.errs&ErrorProtectionFault != 0 {
		t.Fatalf("want no protection fault for sp, got %#x", c.errs)
	}

	if c.sp != 7 {
		t.Fatalf("want sp=7, got %d", c.sp)
	}
}

// Round-trip properties.

func TestResizeIdentity(t *testing.T) {
	types := []ValueType{TypeF32, TypeU8, TypeU16, TypeU32, TypeU64, TypeF64}

	for _, ty := range types {
		c := newTestCPU(t, 8)

		var raw uint64 = 41
		if ty.isFloat() {
			raw = fromFloat64(ty, 41)
		}

		c.pushValue(ty, raw)

		arg := byte(ty) | byte(ty)<<3
		if err := c.execute(Instruction{Op: OpResize, Argument: arg}); err != nil {
			t.Fatal(err)
		}

		if got := c.popValue(ty); got != raw {
			t.Fatalf("type %s: want %#x, got %#x", ty, raw, got)
		}
	}
}

func TestSwapSwapIsIdentity(t *testing.T) {
	c := newTestCPU(t, 8)

	c.pushValue(TypeU32, 1)
	c.pushValue(TypeU32, 2)

	instr := Instruction{Op: OpSwap, Argument: byte(TypeU32)}
	if err := c.execute(instr); err != nil {
		t.Fatal(err)
	}
	if err := c.execute(instr); err != nil {
		t.Fatal(err)
	}

	b := c.popValue(TypeU32)
	a := c.popValue(TypeU32)

	if a != 1 || b != 2 {
		t.Fatalf("want (1,2), got (%d,%d)", a, b)
	}
}

func TestDupThenDiscardIsIdentity(t *testing.T) {
	c := newTestCPU(t, 8)

	c.pushValue(TypeU32, 99)
	spBefore := c.sp

	if err := c.execute(Instruction{Op: OpDup, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}
	if err := c.execute(Instruction{Op: OpDiscard, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.sp != spBefore {
		t.Fatalf("want sp=%d, got %d", spBefore, c.sp)
	}

	if got := c.popValue(TypeU32); got != 99 {
		t.Fatalf("want 99, got %d", got)
	}
}

func TestTypedPushPopRoundTrip(t *testing.T) {
	cases := []struct {
		ty  ValueType
		raw uint64
	}{
		{TypeU8, 0xab},
		{TypeU16, 0xbeef},
		{TypeU32, 0xdeadbeef},
		{TypeU64, 0x0102030405060708},
		{TypeF32, fromFloat64(TypeF32, 3.5)},
		{TypeF64, fromFloat64(TypeF64, -2.25)},
	}

	for _, tc := range cases {
		c := newTestCPU(t, 8)
		c.pushValue(tc.ty, tc.raw)

		if got := c.popValue(tc.ty); got != tc.raw {
			t.Fatalf("type %s: want %#x, got %#x", tc.ty, tc.raw, got)
		}
	}
}

// I pops a single u32 code and delivers it to the CPU's own mailbox; it
// never touches the host's SendInterrupt (that path is for other devices
// targeting this CPU, not for self-delivery).
func TestInterruptOpcodeEnqueuesToOwnMailbox(t *testing.T) {
	c := newTestCPU(t, 8)

	c.pushValue(TypeU32, 99) // code

	if err := c.execute(Instruction{Op: OpInterrupt}); err != nil {
		t.Fatal(err)
	}

	code, ok := c.mailbox.dequeue()
	if !ok || code != 99 {
		t.Fatalf("want (99, true), got (%d, %v)", code, ok)
	}

	host := c.host.(*fakeHost)
	if len(host.interrupts) != 0 {
		t.Fatalf("want no SendInterrupt calls, got %v", host.interrupts)
	}
}

// An unknown type code (not one of the six defined codes) must fault
// rather than silently execute as a bogus 1-word type.
func TestInvalidTypeCodeSetsInvalidArgument(t *testing.T) {
	c := newTestCPU(t, 8)
	c.pushValue(TypeU32, 1)
	c.pushValue(TypeU32, 2)

	if err := c.execute(Instruction{Op: OpAdd, Argument: 0}); err != nil {
		t.Fatal(err)
	}

	if c.errs&ErrorInvalidArgument == 0 {
		t.Fatalf("want ErrorInvalidArgument set, got %#x", c.errs)
	}
}

// S's documented quirk (spec §9): the value is popped normally (sp moves
// down by one word), then sp is decremented again by width-in-words, and
// that small integer is used directly as the global write address.
func TestShiftWritesPoppedValueToGlobalAddressAtSP(t *testing.T) {
	c := newTestCPU(t, 8)
	c.pushValue(TypeU32, 5)
	c.pushValue(TypeU32, 0x1234)

	if err := c.execute(Instruction{Op: OpShift, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.sp != 0 {
		t.Fatalf("want sp=0 after shift, got %d", c.sp)
	}

	host := c.host.(*fakeHost)
	if got := binary.LittleEndian.Uint32(host.mem[0:4]); got != 0x1234 {
		t.Fatalf("want 0x1234 at global address 0, got %#x", got)
	}
}

// U reads from global memory at sp and pushes the value without moving sp.
func TestUnshiftReadsFromSPWithoutMovingIt(t *testing.T) {
	c := newTestCPU(t, 8)
	binary.LittleEndian.PutUint32(c.host.(*fakeHost).mem[0:4], 0xbeef)
	c.sp = 0

	if err := c.execute(Instruction{Op: OpUnshift, Argument: byte(TypeU32)}); err != nil {
		t.Fatal(err)
	}

	if c.sp != 0 {
		t.Fatalf("want sp unchanged at 0, got %d", c.sp)
	}

	if c.stack[0] != 0xbeef {
		t.Fatalf("want stack[0]=0xbeef, got %#x", c.stack[0])
	}
}

func TestMailboxInterruptZeroShutsBootDown(t *testing.T) {
	c := newTestCPU(t, 8)
	c.settings = SettingsInterruptsEnabled

	c.mailbox.enqueue(0)

	if err := c.Boot(); err != nil {
		t.Fatal(err)
	}
}

func TestHaltStopsBootPromptly(t *testing.T) {
	c := newTestCPU(t, 8)

	if err := c.Halt(); err != nil {
		t.Fatal(err)
	}

	if err := c.Boot(); err != nil {
		t.Fatal(err)
	}
}
