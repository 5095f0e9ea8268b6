package chip8

import (
	"errors"
	"testing"
)

// newTestMachine builds a machine with default quirks and loads the fonts,
// mirroring the front end's setup.
func newTestMachine() *Machine {
	m := New(Config{Quirks: DefaultQuirks()})
	m.LoadFont()
	return m
}

// loadInstr writes a single opcode at the start address.
func loadInstr(m *Machine, op uint16) {
	m.RAM[m.PCStartAddr] = byte(op >> 8)
	m.RAM[m.PCStartAddr+1] = byte(op)
}

// loadProgram writes a sequence of opcodes starting at the start address.
func loadProgram(m *Machine, ops ...uint16) {
	addr := m.PCStartAddr
	for _, op := range ops {
		m.RAM[addr] = byte(op >> 8)
		m.RAM[addr+1] = byte(op)
		addr += 2
	}
}

func TestNew(t *testing.T) {
	m := newTestMachine()

	if m.PC != PCStartAddrDefault {
		t.Errorf("PC should be %#x, got %#x", PCStartAddrDefault, m.PC)
	}
	if m.SP != SPStartAddr {
		t.Errorf("SP should be %#x, got %#x", SPStartAddr, m.SP)
	}
	if m.I != 0 {
		t.Errorf("I should be 0, got %d", m.I)
	}
	if m.PlaneMask != 1 {
		t.Errorf("PlaneMask should be 1, got %d", m.PlaneMask)
	}
	if m.Pitch != PitchDefault {
		t.Errorf("Pitch should be %d, got %d", PitchDefault, m.Pitch)
	}
	if m.CPUFreq != CPUFreqDefault || m.TimerFreq != TimerFreqDefault || m.RefreshFreq != RefreshFreqDefault {
		t.Errorf("default rates not applied: %d/%d/%d", m.CPUFreq, m.TimerFreq, m.RefreshFreq)
	}

	// Both font tables in place.
	if m.RAM[FontStartAddr] != 0xF0 {
		t.Errorf("small font not loaded, first byte should be 0xF0, got %#x", m.RAM[FontStartAddr])
	}
	if m.RAM[BigFontStartAddr] != 0x3C {
		t.Errorf("big font not loaded, first byte should be 0x3C, got %#x", m.RAM[BigFontStartAddr])
	}
}

func TestLoadROM(t *testing.T) {
	m := newTestMachine()

	rom := []byte{0x00, 0xE0, 0x12, 0x00}
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}

	if m.RAM[PCStartAddrDefault] != 0x00 || m.RAM[PCStartAddrDefault+1] != 0xE0 {
		t.Error("ROM not loaded at the start address")
	}
}

func TestLoadROMEmpty(t *testing.T) {
	m := newTestMachine()

	err := m.LoadROM(nil)
	if err == nil {
		t.Fatal("LoadROM should fail for an empty image")
	}
	if !isRomLoadErr(err) {
		t.Errorf("expected ErrRomLoad, got %v", err)
	}
}

func TestLoadROMTooLarge(t *testing.T) {
	m := newTestMachine()

	rom := make([]byte, MaxRAM)
	err := m.LoadROM(rom)
	if err == nil {
		t.Fatal("LoadROM should fail for an oversized image")
	}
	if !isRomLoadErr(err) {
		t.Errorf("expected ErrRomLoad, got %v", err)
	}
}

func TestSoftResetPreservesROM(t *testing.T) {
	m := newTestMachine()
	if err := m.LoadROM([]byte{0x60, 0x42}); err != nil {
		t.Fatal(err)
	}

	m.Execute()
	m.I = 0x300
	m.DT = 9
	m.Display[5][5] = true
	m.Hires = true

	m.SoftReset()

	if m.PC != PCStartAddrDefault || m.I != 0 || m.DT != 0 || m.V[0] != 0 {
		t.Error("soft reset did not restore machine state")
	}
	if m.Hires {
		t.Error("soft reset should return to lo-res")
	}
	if m.Display[5][5] {
		t.Error("soft reset should clear the display")
	}
	if m.RAM[PCStartAddrDefault] != 0x60 {
		t.Error("soft reset must preserve the loaded ROM")
	}
}

func TestHardResetReloadsROM(t *testing.T) {
	m := newTestMachine()
	if err := m.LoadROM([]byte{0x60, 0x42}); err != nil {
		t.Fatal(err)
	}

	// Scribble over the program image and the font area.
	m.RAM[PCStartAddrDefault] = 0xFF
	m.RAM[FontStartAddr] = 0x00

	m.HardReset()

	if m.RAM[PCStartAddrDefault] != 0x60 {
		t.Error("hard reset should reload the ROM image")
	}
	if m.RAM[FontStartAddr] != 0xF0 {
		t.Error("hard reset should reload the font")
	}
}

func TestExecuteAdvancesPC(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x6069)

	if !m.Execute() {
		t.Error("Execute should report a fired cycle")
	}
	if m.PC != PCStartAddrDefault+2 {
		t.Errorf("PC should be %#x, got %#x", PCStartAddrDefault+2, m.PC)
	}
}

func TestUnknownOpcodeIsNoop(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x0069)

	if !m.Execute() {
		t.Error("unknown opcodes still fire a cycle")
	}
	if m.PC != PCStartAddrDefault+2 {
		t.Errorf("PC should advance past an unknown opcode, got %#x", m.PC)
	}

	ev := m.DrainDebugEvents()
	if len(ev) != 1 || ev[0].Opcode != 0x0069 {
		t.Errorf("expected one debug event for the unknown opcode, got %v", ev)
	}
}

func TestExecuteAfterExit(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x00FD)

	m.Execute()
	if !m.Exit {
		t.Fatal("00FD should set the exit flag")
	}

	pc := m.PC
	if m.Execute() {
		t.Error("an exited machine should not fire cycles")
	}
	if m.PC != pc {
		t.Error("an exited machine should not move PC")
	}
}

func TestHandleTimers(t *testing.T) {
	m := newTestMachine()
	m.DT = 5
	m.ST = 3
	m.Beep = true

	m.HandleTimers()

	if m.DT != 4 {
		t.Errorf("DT should be 4, got %d", m.DT)
	}
	if m.ST != 2 {
		t.Errorf("ST should be 2, got %d", m.ST)
	}
	if !m.Beep {
		t.Error("beep should hold while ST > 0")
	}

	m.ST = 1
	m.HandleTimers()
	if m.Beep {
		t.Error("beep should clear when ST reaches 0")
	}
}

func TestCycleTicksTimers(t *testing.T) {
	m := newTestMachine()
	m.DT = 5

	// At 1000 Hz CPU and 60 Hz timers, a tick comes due every ~16.7
	// instructions.
	for i := 0; i < 17; i++ {
		m.Cycle()
	}

	if m.DT != 4 {
		t.Errorf("DT should be 4 after 17 cycles, got %d", m.DT)
	}
}

func TestRunFrameBudget(t *testing.T) {
	m := newTestMachine()
	m.DT = 10

	// 1000/60 = 16 instructions with 40 carried as debt.
	m.RunFrame()
	if m.PC != PCStartAddrDefault+2*16 {
		t.Errorf("first frame should execute 16 instructions, PC %#x", m.PC)
	}
	if m.DT != 9 {
		t.Errorf("one timer tick per frame, DT should be 9, got %d", m.DT)
	}

	// (1000+40)/60 = 17 the next frame.
	m.RunFrame()
	if m.PC != PCStartAddrDefault+2*(16+17) {
		t.Errorf("second frame should execute 17 instructions, PC %#x", m.PC)
	}
}

func TestRunFrameStopsOnExit(t *testing.T) {
	m := newTestMachine()
	loadProgram(m, 0x00FD, 0x6001)

	m.RunFrame()

	if !m.Exit {
		t.Fatal("frame should exit the machine")
	}
	if m.V[0] != 0 {
		t.Error("no instruction should run past 00FD")
	}
}

func TestDeterministicRandom(t *testing.T) {
	a := New(Config{Quirks: DefaultQuirks(), Seed: 69})
	b := New(Config{Quirks: DefaultQuirks(), Seed: 69})
	loadInstr(a, 0xC0FF)
	loadInstr(b, 0xC0FF)

	for i := 0; i < 32; i++ {
		a.PC = a.PCStartAddr
		b.PC = b.PCStartAddr
		a.Execute()
		b.Execute()
		if a.V[0] != b.V[0] {
			t.Fatalf("same seed should give the same stream, %#x != %#x", a.V[0], b.V[0])
		}
	}
}

// Scenario: 6069 7002 loads 0x69 and adds 2.
func TestScenarioLoadAdd(t *testing.T) {
	m := newTestMachine()
	loadProgram(m, 0x6069, 0x7002)

	m.Execute()
	m.Execute()

	if m.V[0] != 0x6B {
		t.Errorf("V0 should be 0x6B, got %#x", m.V[0])
	}
	if m.PC != 0x204 {
		t.Errorf("PC should be 0x204, got %#x", m.PC)
	}
}

// Scenario: A300 F033 stores the BCD of 169 at 0x300.
func TestScenarioBCD(t *testing.T) {
	m := newTestMachine()
	loadProgram(m, 0xA300, 0xF033)
	m.V[0] = 169

	m.Execute()
	m.Execute()

	if m.RAM[0x300] != 1 || m.RAM[0x301] != 6 || m.RAM[0x302] != 9 {
		t.Errorf("BCD of 169 should be {1,6,9}, got {%d,%d,%d}",
			m.RAM[0x300], m.RAM[0x301], m.RAM[0x302])
	}
	if m.PC != 0x204 {
		t.Errorf("PC should be 0x204, got %#x", m.PC)
	}
}

// Scenario: call then return lands past the call with an empty stack.
func TestScenarioCallReturn(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x2300)
	m.RAM[0x300] = 0x00
	m.RAM[0x301] = 0xEE

	m.Execute()
	m.Execute()

	if m.SP != SPStartAddr {
		t.Errorf("SP should be back at %#x, got %#x", SPStartAddr, m.SP)
	}
	if m.PC != 0x202 {
		t.Errorf("PC should be 0x202, got %#x", m.PC)
	}
}

// Scenario: F00A stalls until a key is released.
func TestScenarioWaitKey(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0xF00A)

	for i := 0; i < 3; i++ {
		if m.Execute() {
			t.Error("wait-for-key should not fire with all keys up")
		}
		if m.PC != 0x200 {
			t.Fatalf("PC should hold at 0x200, got %#x", m.PC)
		}
	}

	// A key going down is not enough; the release is the trigger.
	m.Keypad[5] = KeyDown
	if m.Execute() {
		t.Error("wait-for-key should not fire on key down")
	}
	if m.PC != 0x200 {
		t.Fatalf("PC should hold at 0x200, got %#x", m.PC)
	}

	m.Keypad[5] = KeyReleased
	if !m.Execute() {
		t.Error("wait-for-key should fire on the release edge")
	}
	if m.V[0] != 5 {
		t.Errorf("V0 should hold the key index 5, got %d", m.V[0])
	}
	if m.PC != 0x202 {
		t.Errorf("PC should be 0x202, got %#x", m.PC)
	}
	if m.Keypad[5] != KeyUp {
		t.Error("the consumed release should decay to up")
	}
}

func TestStackOverflowClamps(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x2200) // call self forever

	for i := 0; i < StackFrames+4; i++ {
		m.Execute()
		m.PC = m.PCStartAddr
	}

	if m.SP != SPStartAddr+2*StackFrames {
		t.Errorf("SP should clamp at %#x, got %#x", SPStartAddr+2*StackFrames, m.SP)
	}

	var overflows int
	for _, ev := range m.DrainDebugEvents() {
		if ev.Reason == "stack overflow" {
			overflows++
		}
	}
	if overflows != 4 {
		t.Errorf("expected 4 overflow events, got %d", overflows)
	}
}

func TestStackUnderflowClamps(t *testing.T) {
	m := newTestMachine()
	loadInstr(m, 0x00EE)

	m.Execute()

	if m.SP != SPStartAddr {
		t.Errorf("SP should stay at %#x, got %#x", SPStartAddr, m.SP)
	}
	if m.PC != PCStartAddrDefault+2 {
		t.Errorf("underflowing return should be a no-op, PC %#x", m.PC)
	}

	ev := m.DrainDebugEvents()
	if len(ev) != 1 || ev[0].Reason != "stack underflow" {
		t.Errorf("expected a stack underflow event, got %v", ev)
	}
}

func isRomLoadErr(err error) bool {
	return errors.Is(err, ErrRomLoad)
}
