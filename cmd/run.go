package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/pixel/pixelgl"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mholtzman/chirp8/internal/chip8"
	"github.com/mholtzman/chirp8/internal/pixel"
	"github.com/mholtzman/chirp8/internal/sound"
)

// rewindFrames bounds the rewind ring: four seconds of history at 60 Hz.
const rewindFrames = 240

var (
	cpuFreq         uint64
	timerFreq       uint64
	refreshFreq     uint64
	startAddr       uint16
	scale           float64
	themeName       string
	seed            int64
	disabledQuirks  []int
	compatMode      bool
	simpleTone      bool
	bigFontFallback bool
)

// runCmd runs a ROM in the emulator until the program exits or the window
// closes.
var runCmd = &cobra.Command{
	Use:   "run `path/to/rom`",
	Short: "run a CHIP-8, S-CHIP, or XO-CHIP ROM",
	Args:  cobra.ExactArgs(1),
	Run:   runChirp8,
}

func init() {
	runCmd.Flags().Uint64Var(&cpuFreq, "cpu-freq", chip8.CPUFreqDefault, "instructions executed per second")
	runCmd.Flags().Uint64Var(&timerFreq, "timer-freq", chip8.TimerFreqDefault, "delay/sound timer rate in Hz")
	runCmd.Flags().Uint64Var(&refreshFreq, "refresh-freq", chip8.RefreshFreqDefault, "screen refresh rate in Hz")
	runCmd.Flags().Uint16Var(&startAddr, "start-addr", chip8.PCStartAddrDefault, "address the ROM loads and executes at")
	runCmd.Flags().Float64Var(&scale, "scale", 8, "window pixels per hi-res display pixel")
	runCmd.Flags().StringVar(&themeName, "theme", "default", "color theme (cycle at runtime with backspace)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "seed for the Cxkk random stream")
	runCmd.Flags().IntSliceVar(&disabledQuirks, "no-quirk", nil, "quirk numbers (0-9) to disable")
	runCmd.Flags().BoolVar(&compatMode, "compat", false, "disable every quirk (original COSMAC behavior)")
	runCmd.Flags().BoolVar(&simpleTone, "simple-tone", false, "play a fixed 441 Hz tone instead of the XO-CHIP pattern")
	runCmd.Flags().BoolVar(&bigFontFallback, "big-font-fallback", false, "Fx30 falls back to the small font for digits A-F")
}

func runChirp8(cmd *cobra.Command, args []string) {
	romPath := args[0]

	// pixelgl needs the main thread, so the whole frontend runs inside it.
	pixelgl.Run(func() {
		runEmulator(romPath)
	})
}

func runEmulator(romPath string) {
	rom, err := os.ReadFile(romPath)
	if err != nil {
		fmt.Println(errors.Wrap(err, "reading ROM"))
		os.Exit(1)
	}

	quirks := chip8.DefaultQuirks()
	if compatMode {
		quirks = chip8.Quirks{}
	}
	for _, q := range disabledQuirks {
		if q >= 0 && q < chip8.NumQuirks {
			quirks[q] = false
		}
	}

	m := chip8.New(chip8.Config{
		CPUFreq:         cpuFreq,
		TimerFreq:       timerFreq,
		RefreshFreq:     refreshFreq,
		PCStartAddr:     startAddr,
		Quirks:          quirks,
		Seed:            seed,
		SimpleTone:      simpleTone,
		BigFontFallback: bigFontFallback,
	})
	m.LoadFont()
	if err := m.LoadROM(rom); err != nil {
		fmt.Println(errors.Wrap(err, "loading ROM"))
		os.Exit(1)
	}

	// User flags persist next to the ROM as a 16-byte blob.
	ufPath := romPath + ".uf"
	if blob, err := os.ReadFile(ufPath); err == nil {
		copy(m.UserFlags[:], blob)
	}

	win, err := pixel.NewWindow(scale, themeName)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	player, err := sound.NewPlayer(m.SampleRate())
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "audio disabled"))
		player = nil
	}

	rewind := newRewindRing(rewindFrames)

	ticker := time.NewTicker(time.Second / time.Duration(m.RefreshFreq))
	defer ticker.Stop()

	for range ticker.C {
		if win.Closed() || m.Exit {
			break
		}

		win.PollKeys(&m.Keypad)
		handleHostKeys(win, m, rewind)

		m.RunFrame()

		if m.DisplayUpdated {
			win.DrawPlanes(&m.Display, &m.Display2)
		} else {
			win.UpdateInput()
		}

		samples := m.DrainAudio()
		if player != nil {
			player.Push(samples)
		}

		rewind.push(m.Snapshot())

		for _, ev := range m.DrainDebugEvents() {
			fmt.Fprintf(os.Stderr, "chirp8: %s at %03X (opcode %04X)\n",
				ev.Reason, ev.PC, ev.Opcode)
		}
	}

	if err := os.WriteFile(ufPath, m.UserFlags[:], 0o644); err != nil {
		fmt.Fprintln(os.Stderr, errors.Wrap(err, "saving user flags"))
	}

	fmt.Println("exit signal detected, gracefully shutting down...")
}

// handleHostKeys reacts to the keys the emulator itself doesn't see:
// backspace cycles themes, escape soft-resets, left/right step the CPU
// frequency, down rewinds one frame.
func handleHostKeys(win *pixel.Window, m *chip8.Machine, rewind *rewindRing) {
	if win.JustPressed(pixelgl.KeyBackspace) {
		win.CycleTheme()
		win.DrawPlanes(&m.Display, &m.Display2)
	}
	if win.JustPressed(pixelgl.KeyEscape) {
		m.SoftReset()
	}
	if win.JustPressed(pixelgl.KeyRight) {
		m.SetCPUFreq(m.CPUFreq + 100)
	}
	if win.JustPressed(pixelgl.KeyLeft) && m.CPUFreq > 100 {
		m.SetCPUFreq(m.CPUFreq - 100)
	}
	if win.JustPressed(pixelgl.KeyDown) {
		if s, ok := rewind.pop(); ok {
			m.Restore(s)
			win.DrawPlanes(&m.Display, &m.Display2)
		}
	}
}

// rewindRing keeps the most recent frame snapshots so the player can step
// the emulator backwards.
type rewindRing struct {
	frames []chip8.Machine
	head   int
	size   int
}

func newRewindRing(capacity int) *rewindRing {
	return &rewindRing{frames: make([]chip8.Machine, capacity)}
}

func (r *rewindRing) push(s chip8.Machine) {
	r.frames[r.head] = s
	r.head = (r.head + 1) % len(r.frames)
	if r.size < len(r.frames) {
		r.size++
	}
}

func (r *rewindRing) pop() (chip8.Machine, bool) {
	if r.size == 0 {
		return chip8.Machine{}, false
	}
	r.head = (r.head - 1 + len(r.frames)) % len(r.frames)
	r.size--
	return r.frames[r.head], true
}
