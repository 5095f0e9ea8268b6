package chip8

import "math"

// The audio sampler turns the 128-bit pattern buffer into host-rate PCM.
// While the beep line is high, pattern bits are consumed at the
// pitch-derived playback rate and resampled to the host rate; while low,
// silence is emitted and the pattern pointer rests at zero.

const amplitude = 28000

// GetSoundFreq computes the current pattern playback rate in Hz from the
// pitch register: 4000 * 2^((pitch-64)/48).
func (m *Machine) GetSoundFreq() float64 {
	return 4000 * math.Pow(2, (float64(m.Pitch)-64)/48)
}

// DrainAudio hands the host every sample produced since the last drain.
func (m *Machine) DrainAudio() []int16 {
	out := m.audioOut
	m.audioOut = nil
	return out
}

// SampleRate reports the host output rate the sampler resamples to.
func (m *Machine) SampleRate() int {
	return m.sampleRate
}

// sampleAudio advances the sampler by one instruction's worth of time.
func (m *Machine) sampleAudio(cycleStep uint64) {
	resampleStep := uint64(oneSec) / uint64(m.sampleRate)

	if !m.Beep {
		m.audioFreq = 0
		m.audioCounter = 0
		m.sndBufPntr = 0
		m.resampleCounter += cycleStep
		for m.resampleCounter >= resampleStep {
			m.audioOut = append(m.audioOut, 0)
			m.resampleCounter -= resampleStep
		}
		return
	}

	if m.audioFreq == 0 {
		m.audioFreq = uint64(m.GetSoundFreq())
		m.sndBufPntr = 0
	}

	audioStep := uint64(oneSec) / m.audioFreq
	m.audioCounter += cycleStep
	for m.audioCounter >= audioStep {
		m.audioCounter -= audioStep
		s := m.nextSample()
		m.resampleCounter += audioStep
		for m.resampleCounter >= resampleStep {
			m.audioOut = append(m.audioOut, s)
			m.resampleCounter -= resampleStep
		}
	}
}

// nextSample pulls one sample from the pattern buffer, or from the fixed
// sine generator when the host asked for the simple tone.
func (m *Machine) nextSample() int16 {
	if m.simpleTone {
		t := float64(m.toneClock) / float64(m.audioFreq)
		m.toneClock++
		return int16(amplitude * math.Sin(2*math.Pi*441*t))
	}

	bit := m.RAM[AudioBufAddr+m.sndBufPntr/8] >> (7 - m.sndBufPntr%8) & 1

	m.sndBufPntr++
	if m.sndBufPntr >= AudioBufSize*8 {
		m.sndBufPntr = 0
	}

	if bit == 1 {
		return amplitude
	}
	return 0
}
