// Package pixel owns the host window: scaling the two display planes onto
// the screen, mapping the four plane-overlay colors through the selected
// theme, and translating keyboard state into the emulator's tri-state
// keypad.
package pixel

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/faiface/pixel"
	"github.com/faiface/pixel/imdraw"
	"github.com/faiface/pixel/pixelgl"
	"golang.org/x/image/colornames"

	"github.com/mholtzman/chirp8/internal/chip8"
)

// Theme holds the four colors a frame is rendered with: background, each
// plane alone, and both planes overlapping.
type Theme struct {
	Name    string
	Bg      color.Color
	Plane1  color.Color
	Plane2  color.Color
	Overlap color.Color
}

// Themes available via the --theme flag and the backspace key.
var Themes = []Theme{
	{"default", colornames.Black, colornames.White, pixel.RGB(0.66, 0.66, 0.66), pixel.RGB(0.33, 0.33, 0.33)},
	{"inverted", colornames.White, colornames.Black, pixel.RGB(0.33, 0.33, 0.33), pixel.RGB(0.66, 0.66, 0.66)},
	{"blood", colornames.Black, colornames.Red, pixel.RGB(0.4, 0, 0), pixel.RGB(0.7, 0.2, 0.2)},
	{"hacker", colornames.Black, colornames.Green, pixel.RGB(0, 0.4, 0), pixel.RGB(0.2, 0.7, 0.2)},
	{"space", colornames.Black, colornames.Blue, pixel.RGB(0, 0, 0.4), pixel.RGB(0.2, 0.2, 0.7)},
	{"cyberpunk", pixel.RGB(0.06, 0, 0.1), pixel.RGB(1, 0.88, 1), pixel.RGB(0.91, 0, 0.92), pixel.RGB(0.95, 0.4, 0.95)},
}

// Window embeds a pixelgl window and holds the hex keypad mapping plus the
// active theme.
type Window struct {
	*pixelgl.Window
	KeyMap   map[byte]pixelgl.Button
	scale    float64
	themeIdx int
}

// NewWindow creates the pixelgl window sized for the hi-res display at the
// given scale and selects the starting theme by name.
func NewWindow(scale float64, theme string) (*Window, error) {
	cfg := pixelgl.WindowConfig{
		Title:  "chirp8",
		Bounds: pixel.R(0, 0, chip8.DisplayWidth*scale, chip8.DisplayHeight*scale),
		VSync:  true,
	}
	w, err := pixelgl.NewWindow(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating new window: %v", err)
	}

	// The canonical hex keypad layout mapped onto the left of a QWERTY
	// board:
	//  1 2 3 C        1 2 3 4
	//  4 5 6 D   ->   Q W E R
	//  7 8 9 E        A S D F
	//  A 0 B F        Z X C V
	km := map[byte]pixelgl.Button{
		0x1: pixelgl.Key1, 0x2: pixelgl.Key2,
		0x3: pixelgl.Key3, 0xC: pixelgl.Key4,
		0x4: pixelgl.KeyQ, 0x5: pixelgl.KeyW,
		0x6: pixelgl.KeyE, 0xD: pixelgl.KeyR,
		0x7: pixelgl.KeyA, 0x8: pixelgl.KeyS,
		0x9: pixelgl.KeyD, 0xE: pixelgl.KeyF,
		0xA: pixelgl.KeyZ, 0x0: pixelgl.KeyX,
		0xB: pixelgl.KeyC, 0xF: pixelgl.KeyV,
	}

	idx := 0
	for i, t := range Themes {
		if strings.EqualFold(t.Name, theme) {
			idx = i
		}
	}

	return &Window{
		Window:   w,
		KeyMap:   km,
		scale:    scale,
		themeIdx: idx,
	}, nil
}

// PollKeys refreshes the emulator keypad from the keyboard. A key that was
// down and no longer is reads as released for exactly one poll, then decays
// to up; Fx0A may consume the released edge in between.
func (w *Window) PollKeys(keypad *[chip8.NumKeys]chip8.KeyState) {
	for hex, button := range w.KeyMap {
		switch {
		case w.Pressed(button):
			keypad[hex] = chip8.KeyDown
		case keypad[hex] == chip8.KeyDown:
			keypad[hex] = chip8.KeyReleased
		default:
			keypad[hex] = chip8.KeyUp
		}
	}
}

// CycleTheme advances to the next color theme.
func (w *Window) CycleTheme() {
	w.themeIdx = (w.themeIdx + 1) % len(Themes)
}

// DrawPlanes renders both display planes through the active theme. The
// planes are always hi-res sized; lo-res pixels already occupy 2x2 blocks,
// so one code path covers both modes.
func (w *Window) DrawPlanes(p1, p2 *[chip8.DisplayHeight][chip8.DisplayWidth]bool) {
	t := Themes[w.themeIdx]
	w.Clear(t.Bg)
	imDraw := imdraw.New(nil)

	for y := 0; y < chip8.DisplayHeight; y++ {
		for x := 0; x < chip8.DisplayWidth; x++ {
			a, b := p1[y][x], p2[y][x]
			if !a && !b {
				continue
			}
			switch {
			case a && b:
				imDraw.Color = t.Overlap
			case a:
				imDraw.Color = t.Plane1
			default:
				imDraw.Color = t.Plane2
			}

			// pixelgl's origin is the bottom-left corner; plane row 0
			// is the top scanline.
			sx := float64(x) * w.scale
			sy := float64(chip8.DisplayHeight-1-y) * w.scale
			imDraw.Push(pixel.V(sx, sy))
			imDraw.Push(pixel.V(sx+w.scale, sy+w.scale))
			imDraw.Rectangle(0)
		}
	}

	imDraw.Draw(w)
	w.Update()
}
