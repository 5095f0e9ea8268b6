// Package sound bridges the emulator's audio sampler to the host speaker.
// The core produces PCM at the host rate; a beep streamer pulls those
// samples off a queue and pads with silence when the emulator falls behind.
package sound

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/pkg/errors"
)

// Player is a beep.Streamer fed by the emulator once per frame.
type Player struct {
	mu  sync.Mutex
	buf []int16
}

// NewPlayer initializes the speaker at the given sample rate and starts
// streaming.
func NewPlayer(sampleRate int) (*Player, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return nil, errors.Wrap(err, "initializing speaker")
	}

	p := &Player{}
	speaker.Play(p)
	return p, nil
}

// Push queues one frame's worth of samples for playback.
func (p *Player) Push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	p.buf = append(p.buf, samples...)
	p.mu.Unlock()
}

// Stream implements beep.Streamer. Queued samples play in order; when the
// queue runs dry the remainder of the request is silence.
func (p *Player) Stream(samples [][2]float64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(samples)
	if n > len(p.buf) {
		n = len(p.buf)
	}
	for i := 0; i < n; i++ {
		v := float64(p.buf[i]) / 32768
		samples[i][0] = v
		samples[i][1] = v
	}
	for i := n; i < len(samples); i++ {
		samples[i][0] = 0
		samples[i][1] = 0
	}
	p.buf = p.buf[n:]

	return len(samples), true
}

// Err implements beep.Streamer; the player never enters an error state.
func (p *Player) Err() error { return nil }
