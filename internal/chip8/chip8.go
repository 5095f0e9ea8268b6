// Package chip8 emulates the CHIP-8 virtual machine and its S-CHIP and
// XO-CHIP dialects. The original interpreter occupied the first 512 bytes of
// memory on 4k systems like the Telmac 1800 and Cosmac VIP, which is why
// programs conventionally start at 0x200; a native implementation like this
// one has no such restriction, so the font tables, the call stack, and the
// XO-CHIP audio pattern buffer all live below 0x200.
package chip8

import (
	"errors"
	"fmt"
	"math/rand"
)

//		System memory map
//		+---------------+= 0xFFFF (65535) End of XO-CHIP RAM
//		|               |
//		| Program / Data|
//		|     Space     |
//		|               |
//		+---------------+= pc_start_addr (default 0x200)
//		|     free      |
//		+---------------+= 0xA0 Big font: 10 glyphs x 10 bytes
//		+---------------+= 0x50 Small font: 16 glyphs x 5 bytes
//		+---------------+= 0x30 Audio pattern buffer: 16 bytes
//		+---------------+= 0x00 Call stack: 16 frames of 2 bytes
//

const (
	// MaxRAM is the full XO-CHIP address space. Classic programs only use
	// 12-bit addresses but long-I instructions can reach all 64K.
	MaxRAM = 65536

	// NumRegisters is the size of the V register file. V[0xF] is the flag
	// register, written implicitly by arithmetic and draw opcodes.
	NumRegisters = 16

	// NumKeys is the number of keys on the hex keypad.
	NumKeys = 16

	// NumUserFlags is the number of persistent user flag bytes reachable
	// through Fx75/Fx85.
	NumUserFlags = 16

	// DisplayWidth and DisplayHeight are the hi-res plane dimensions. In
	// lo-res mode each logical pixel covers a 2x2 block of the plane.
	DisplayWidth  = 128
	DisplayHeight = 64

	// SPStartAddr is the base of the in-RAM call stack. Frames are 2-byte
	// big-endian return addresses; SP points at the top frame.
	SPStartAddr = 0x00

	// StackFrames bounds call depth. Calls past it clamp to no-ops.
	StackFrames = 16

	// AudioBufAddr is where the 16-byte XO-CHIP pattern buffer lives.
	AudioBufAddr = 0x30

	// AudioBufSize is the pattern buffer length in bytes (128 one-bit
	// samples).
	AudioBufSize = 16

	// FontStartAddr and BigFontStartAddr locate the two font tables.
	FontStartAddr    = 0x50
	BigFontStartAddr = 0xA0

	// PCStartAddrDefault is where ROMs load and execution begins unless
	// overridden.
	PCStartAddrDefault = 0x200

	// Default scheduling rates in Hz.
	CPUFreqDefault     = 1000
	TimerFreqDefault   = 60
	RefreshFreqDefault = 60

	// PitchDefault yields the XO-CHIP base playback rate of 4000 Hz.
	PitchDefault = 64
)

const oneSec = 1_000_000_000 // ns

// KeyState is the tri-state condition of a keypad key. A key that was down
// and has just been let go reads as KeyReleased for exactly one host poll;
// Fx0A consumes that edge, otherwise the host poll decays it to KeyUp.
type KeyState byte

// Keypad states written by the host and read by Ex9E/ExA1/Fx0A.
const (
	KeyUp KeyState = iota
	KeyDown
	KeyReleased
)

// ErrRomLoad is returned when a ROM image cannot be placed in memory. No
// partial load occurs.
var ErrRomLoad = errors.New("rom load failed")

// ErrSnapshotInvalid is returned when a snapshot buffer is too small or
// carries an unknown version tag.
var ErrSnapshotInvalid = errors.New("invalid snapshot")

// DebugEvent records a soft fault the core absorbed rather than surfaced:
// stack clamps and unknown opcodes. The host may drain and log them.
type DebugEvent struct {
	PC     uint16
	Opcode uint16
	Reason string
}

const maxDebugEvents = 64

// Config carries the instance creation parameters. Zero rates fall back to
// the classic defaults.
type Config struct {
	CPUFreq     uint64
	TimerFreq   uint64
	RefreshFreq uint64
	PCStartAddr uint16
	Quirks      Quirks

	// Seed makes the Cxkk random stream reproducible.
	Seed int64

	// SampleRate is the host audio output rate in Hz.
	SampleRate int

	// SimpleTone replaces pattern playback with a fixed 441 Hz sine.
	SimpleTone bool

	// BigFontFallback redirects Fx30 to the small font for digits >= 10.
	BigFontFallback bool
}

// Machine is one emulator instance. All state is held by value so an
// instance can be copied for snapshots and rewind; the exported fields are
// the observable surface the front end reads and writes between frames.
type Machine struct {
	RAM [MaxRAM]byte

	V  [NumRegisters]byte
	I  uint16
	PC uint16
	SP uint16

	DT byte
	ST byte

	// The two display planes. Their overlay yields up to four colors.
	Display  [DisplayHeight][DisplayWidth]bool
	Display2 [DisplayHeight][DisplayWidth]bool

	Keypad    [NumKeys]KeyState
	UserFlags [NumUserFlags]byte

	Beep           bool
	Exit           bool
	Hires          bool
	DisplayUpdated bool

	// PlaneMask selects which planes sprite and scroll operations touch.
	// Clearing (00E0, resolution switch) always affects both planes. Bit 0
	// is Display, bit 1 is Display2.
	PlaneMask byte

	// Pitch is the XO-CHIP audio pitch register (Fx3A).
	Pitch byte

	CPUFreq     uint64
	TimerFreq   uint64
	RefreshFreq uint64
	PCStartAddr uint16
	Quirks      Quirks

	// Scheduler and sampler accumulators. They ride along in snapshots so
	// a restore resumes with identical cadence.
	cpuDebt         uint64
	timerAccum      uint64
	audioCounter    uint64
	resampleCounter uint64
	audioFreq       uint64
	sndBufPntr      int
	toneClock       int

	sampleRate      int
	simpleTone      bool
	bigFontFallback bool

	audioOut []int16
	rng      *rand.Rand
	rom      []byte
	events   []DebugEvent
}

// New builds a Machine from cfg, applying classic defaults for unset rates.
func New(cfg Config) *Machine {
	m := &Machine{}
	m.Init(cfg)
	return m
}

// Init applies cfg and restores every non-RAM field to its initial value.
// RAM is zeroed only when the RAM-init quirk is enabled; otherwise whatever
// the previous lifecycle left there stays.
func (m *Machine) Init(cfg Config) {
	if cfg.CPUFreq == 0 {
		cfg.CPUFreq = CPUFreqDefault
	}
	if cfg.TimerFreq == 0 {
		cfg.TimerFreq = TimerFreqDefault
	}
	if cfg.RefreshFreq == 0 {
		cfg.RefreshFreq = RefreshFreqDefault
	}
	if cfg.PCStartAddr == 0 {
		cfg.PCStartAddr = PCStartAddrDefault
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}

	if cfg.Quirks[QuirkRAMInit] {
		m.RAM = [MaxRAM]byte{}
	}

	m.CPUFreq = cfg.CPUFreq
	m.TimerFreq = cfg.TimerFreq
	m.RefreshFreq = cfg.RefreshFreq
	m.PCStartAddr = cfg.PCStartAddr
	m.Quirks = cfg.Quirks
	m.sampleRate = cfg.SampleRate
	m.simpleTone = cfg.SimpleTone
	m.bigFontFallback = cfg.BigFontFallback
	m.rng = rand.New(rand.NewSource(cfg.Seed))

	m.resetMachineState()
}

// resetMachineState restores the non-RAM machine fields to power-on values.
// The user flags are left untouched, as are the rates, start address and
// quirks set by Init.
func (m *Machine) resetMachineState() {
	m.V = [NumRegisters]byte{}
	m.I = 0
	m.PC = m.PCStartAddr
	m.SP = SPStartAddr
	m.DT = 0
	m.ST = 0
	m.Display = [DisplayHeight][DisplayWidth]bool{}
	m.Display2 = [DisplayHeight][DisplayWidth]bool{}
	m.Keypad = [NumKeys]KeyState{}
	m.Beep = false
	m.Exit = false
	m.Hires = false
	m.DisplayUpdated = true
	m.PlaneMask = 1
	m.Pitch = PitchDefault

	m.cpuDebt = 0
	m.timerAccum = 0
	m.audioCounter = 0
	m.resampleCounter = 0
	m.audioFreq = 0
	m.sndBufPntr = 0
	m.toneClock = 0
	m.audioOut = m.audioOut[:0]
	m.events = m.events[:0]
}

// SoftReset returns the machine to its initial state while leaving RAM, and
// therefore the loaded ROM, untouched.
func (m *Machine) SoftReset() {
	m.resetMachineState()
}

// HardReset re-runs initialization and reloads the font tables and the
// retained ROM image.
func (m *Machine) HardReset() {
	cfg := Config{
		CPUFreq:         m.CPUFreq,
		TimerFreq:       m.TimerFreq,
		RefreshFreq:     m.RefreshFreq,
		PCStartAddr:     m.PCStartAddr,
		Quirks:          m.Quirks,
		SampleRate:      m.sampleRate,
		SimpleTone:      m.simpleTone,
		BigFontFallback: m.bigFontFallback,
	}
	rom := m.rom
	m.Init(cfg)
	m.LoadFont()
	if len(rom) > 0 {
		// Reload cannot fail: the image fit the last time.
		_ = m.LoadROM(rom)
	}
}

// LoadFont writes the small and big font tables to their fixed addresses.
func (m *Machine) LoadFont() {
	copy(m.RAM[FontStartAddr:], fontSet[:])
	copy(m.RAM[BigFontStartAddr:], bigFontSet[:])
}

// LoadROM copies a ROM image into memory starting at the configured start
// address and retains a copy for hard resets. An empty or oversized image
// fails with ErrRomLoad and leaves memory untouched.
func (m *Machine) LoadROM(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty rom image: %w", ErrRomLoad)
	}
	if len(data) > MaxRAM-int(m.PCStartAddr) {
		return fmt.Errorf("rom is %d bytes, max %d: %w",
			len(data), MaxRAM-int(m.PCStartAddr), ErrRomLoad)
	}
	copy(m.RAM[m.PCStartAddr:], data)
	m.rom = append(m.rom[:0], data...)
	return nil
}

// SetCPUFreq changes the instruction rate at runtime. Zero is ignored.
func (m *Machine) SetCPUFreq(hz uint64) {
	if hz == 0 {
		return
	}
	m.CPUFreq = hz
}

// Execute runs a single fetch/decode/execute cycle. It reports whether a
// cycle actually fired: a wait-for-key stall leaves PC in place and returns
// false, as does a machine that has already exited.
func (m *Machine) Execute() bool {
	if m.Exit {
		return false
	}

	// One opcode is two bytes, big-endian. PC moves past the instruction
	// before execution so jumps store the destination itself.
	op := uint16(m.RAM[m.PC])<<8 | uint16(m.RAM[m.PC+1])
	m.PC += 2

	return m.dispatch(op)
}

// HandleTimers applies one timer tick: DT and ST each decrement toward zero
// and the beep line follows the sound timer.
func (m *Machine) HandleTimers() {
	if m.DT > 0 {
		m.DT--
	}
	if m.ST > 0 {
		m.ST--
	}
	m.Beep = m.ST > 0
}

// Cycle is the aggregate convenience call: one instruction plus any timer
// ticks that have come due at the configured rates.
func (m *Machine) Cycle() bool {
	fired := m.Execute()

	m.timerAccum += oneSec / m.CPUFreq
	timerStep := uint64(oneSec) / m.TimerFreq
	for m.timerAccum >= timerStep {
		m.HandleTimers()
		m.timerAccum -= timerStep
	}

	return fired
}

// RunFrame executes one refresh interval's worth of instructions. The
// instruction budget is (cpu_freq + debt) / refresh_freq with the remainder
// carried into the next frame, so the long-run rate is exact even when the
// two frequencies do not divide. Timer ticks interleave between
// instructions unless the timer rate matches the refresh rate, in which
// case one tick fires per frame. Audio samples are produced alongside.
func (m *Machine) RunFrame() {
	if m.Exit {
		return
	}

	m.DisplayUpdated = false

	cycleStep := uint64(oneSec) / m.CPUFreq
	n := (m.CPUFreq + m.cpuDebt) / m.RefreshFreq

	for i := uint64(0); i < n && !m.Exit; i++ {
		m.Execute()

		if m.TimerFreq != m.RefreshFreq {
			m.timerAccum += cycleStep
			timerStep := uint64(oneSec) / m.TimerFreq
			for m.timerAccum >= timerStep {
				m.HandleTimers()
				m.timerAccum -= timerStep
			}
		}

		m.sampleAudio(cycleStep)
	}

	if m.TimerFreq == m.RefreshFreq {
		m.HandleTimers()
	}

	m.cpuDebt = (m.CPUFreq + m.cpuDebt) % m.RefreshFreq
}

// debugEvent records a soft fault. The list is bounded; once full, further
// events are dropped rather than grow without limit under a misbehaving ROM.
func (m *Machine) debugEvent(op uint16, reason string) {
	if len(m.events) >= maxDebugEvents {
		return
	}
	m.events = append(m.events, DebugEvent{PC: m.PC - 2, Opcode: op, Reason: reason})
}

// DrainDebugEvents returns the soft faults recorded since the last drain.
func (m *Machine) DrainDebugEvents() []DebugEvent {
	ev := m.events
	m.events = nil
	return ev
}

// Snapshot returns a by-value copy of the machine suitable for a rewind
// ring. Host-side buffers are detached from the copy.
func (m *Machine) Snapshot() Machine {
	s := *m
	s.audioOut = nil
	s.events = nil
	s.rng = nil
	s.rom = nil
	return s
}

// Restore replaces the machine state with a snapshot while keeping the
// host-side handles (RNG, retained ROM, pending audio) of the live
// instance.
func (m *Machine) Restore(s Machine) {
	rng, rom, out, ev := m.rng, m.rom, m.audioOut, m.events
	*m = s
	m.rng = rng
	m.rom = rom
	m.audioOut = out
	m.events = ev
}
