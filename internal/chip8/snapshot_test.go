package chip8

import (
	"errors"
	"reflect"
	"testing"
)

// scramble puts recognizable values in every serialized field.
func scramble(m *Machine) {
	m.RAM[0x300] = 0x69
	m.RAM[MaxRAM-1] = 0x42
	m.V = [NumRegisters]byte{0: 0xB, 7: 0xA, 0xF: 0xD}
	m.I = 0xBEEF
	m.PC = 0x246
	m.SP = SPStartAddr + 6
	m.DT = 12
	m.ST = 34
	m.Display[0][0] = true
	m.Display[63][127] = true
	m.Display2[31][64] = true
	m.Keypad[5] = KeyDown
	m.Keypad[9] = KeyReleased
	m.UserFlags[3] = 0x77
	m.Beep = true
	m.Hires = true
	m.DisplayUpdated = true
	m.PlaneMask = 3
	m.Pitch = 112
	m.cpuDebt = 40
	m.timerAccum = 123456
	m.audioCounter = 777
	m.resampleCounter = 888
	m.audioFreq = 8000
	m.sndBufPntr = 93
	m.toneClock = 5150
}

// The sine phase for --simple-tone rides along in snapshots so a restore
// resumes the tone without a phase glitch.
func TestSnapshotCarriesTonePhase(t *testing.T) {
	m := New(Config{Quirks: DefaultQuirks(), SimpleTone: true})
	m.audioFreq = 4000
	for i := 0; i < 7; i++ {
		m.nextSample()
	}

	buf := make([]byte, SnapshotSize)
	if err := m.Serialize(buf); err != nil {
		t.Fatal(err)
	}

	restored := New(Config{Quirks: DefaultQuirks(), SimpleTone: true})
	if err := restored.Deserialize(buf); err != nil {
		t.Fatal(err)
	}

	if restored.toneClock != m.toneClock {
		t.Errorf("restored tone phase should be %d, got %d", m.toneClock, restored.toneClock)
	}
	if a, b := m.nextSample(), restored.nextSample(); a != b {
		t.Errorf("restored tone should continue in phase, %d != %d", a, b)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	m := newTestMachine()
	scramble(m)

	buf := make([]byte, SnapshotSize)
	if err := m.Serialize(buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	restored := newTestMachine()
	if err := restored.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if !reflect.DeepEqual(m.Snapshot(), restored.Snapshot()) {
		t.Error("snapshot round trip should reproduce the machine exactly")
	}
}

func TestSnapshotIdempotent(t *testing.T) {
	m := newTestMachine()
	scramble(m)

	a := make([]byte, SnapshotSize)
	if err := m.Serialize(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Deserialize(a); err != nil {
		t.Fatal(err)
	}

	b := make([]byte, SnapshotSize)
	if err := m.Serialize(b); err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("serialize after restore should be byte-identical, first diff at %d", i)
		}
	}
}

func TestSerializeShortBuffer(t *testing.T) {
	m := newTestMachine()

	err := m.Serialize(make([]byte, SnapshotSize-1))
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("expected ErrSnapshotInvalid, got %v", err)
	}
}

func TestDeserializeShortBuffer(t *testing.T) {
	m := newTestMachine()

	err := m.Deserialize(make([]byte, 16))
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("expected ErrSnapshotInvalid, got %v", err)
	}
}

func TestDeserializeBadVersion(t *testing.T) {
	m := newTestMachine()
	buf := make([]byte, SnapshotSize)
	if err := m.Serialize(buf); err != nil {
		t.Fatal(err)
	}

	buf[0] = 0xFF
	err := m.Deserialize(buf)
	if !errors.Is(err, ErrSnapshotInvalid) {
		t.Errorf("expected ErrSnapshotInvalid, got %v", err)
	}
}

// A bad restore must not tear half the state: validation happens before any
// field is written.
func TestDeserializeFailureLeavesStateAlone(t *testing.T) {
	m := newTestMachine()
	scramble(m)
	before := m.Snapshot()

	if err := m.Deserialize(make([]byte, 16)); err == nil {
		t.Fatal("short buffer should fail")
	}

	if !reflect.DeepEqual(before, m.Snapshot()) {
		t.Error("a failed restore should leave the machine untouched")
	}
}

func TestSnapshotRestoreIdentity(t *testing.T) {
	m := newTestMachine()
	if err := m.LoadROM([]byte{0x60, 0x42, 0x70, 0x01}); err != nil {
		t.Fatal(err)
	}

	m.Execute()
	s := m.Snapshot()

	m.Execute()
	if m.V[0] != 0x43 {
		t.Fatalf("setup: V0 should be 0x43, got %#x", m.V[0])
	}

	m.Restore(s)

	if m.V[0] != 0x42 {
		t.Errorf("restore should rewind V0 to 0x42, got %#x", m.V[0])
	}
	if m.PC != PCStartAddrDefault+2 {
		t.Errorf("restore should rewind PC, got %#x", m.PC)
	}

	// Replaying from the snapshot reaches the same state again.
	m.Execute()
	if m.V[0] != 0x43 {
		t.Errorf("replay should reproduce V0 = 0x43, got %#x", m.V[0])
	}
}

// The serialized record keeps the scheduler cadence: a restored machine runs
// the same instruction budget as the original would have.
func TestSnapshotCarriesSchedulerDebt(t *testing.T) {
	m := newTestMachine()
	m.RunFrame() // leaves debt of 40

	buf := make([]byte, SnapshotSize)
	if err := m.Serialize(buf); err != nil {
		t.Fatal(err)
	}

	restored := newTestMachine()
	if err := restored.Deserialize(buf); err != nil {
		t.Fatal(err)
	}

	restored.RunFrame()
	if restored.PC != m.PCStartAddr+2*(16+17) {
		t.Errorf("restored machine should run the 17-instruction frame, PC %#x", restored.PC)
	}
}
