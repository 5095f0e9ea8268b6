package chip8

import (
	"encoding/binary"
	"fmt"
)

// Snapshots are a packed big-endian record of the whole machine: every
// observable field plus the scheduler and sampler accumulators, so a
// restored machine resumes with identical cadence. The leading version tag
// guards against layout drift between releases.

const snapshotVersion = 1

// SnapshotSize is the exact serialized size of a Machine in bytes.
const SnapshotSize = 1 + // version
	MaxRAM +
	NumRegisters +
	6 + // I, PC, SP
	2 + // DT, ST
	2*(DisplayHeight*DisplayWidth/8) + // both planes, bit-packed
	NumKeys +
	NumUserFlags +
	1 + // beep/exit/hires/displayUpdated flags
	1 + // plane mask
	1 + // pitch
	24 + // cpu/timer/refresh freq
	2 + // pc start addr
	NumQuirks +
	40 + // scheduler and sampler accumulators
	8 + // simple-tone phase
	4 // pattern pointer

// Serialize writes the machine into buf, which must hold at least
// SnapshotSize bytes.
func (m *Machine) Serialize(buf []byte) error {
	if len(buf) < SnapshotSize {
		return fmt.Errorf("snapshot buffer is %d bytes, need %d: %w",
			len(buf), SnapshotSize, ErrSnapshotInvalid)
	}

	off := 0
	buf[off] = snapshotVersion
	off++

	off += copy(buf[off:], m.RAM[:])
	off += copy(buf[off:], m.V[:])

	binary.BigEndian.PutUint16(buf[off:], m.I)
	binary.BigEndian.PutUint16(buf[off+2:], m.PC)
	binary.BigEndian.PutUint16(buf[off+4:], m.SP)
	off += 6

	buf[off] = m.DT
	buf[off+1] = m.ST
	off += 2

	off = packPlane(buf, off, &m.Display)
	off = packPlane(buf, off, &m.Display2)

	for i, k := range m.Keypad {
		buf[off+i] = byte(k)
	}
	off += NumKeys

	off += copy(buf[off:], m.UserFlags[:])

	var flags byte
	if m.Beep {
		flags |= 1
	}
	if m.Exit {
		flags |= 2
	}
	if m.Hires {
		flags |= 4
	}
	if m.DisplayUpdated {
		flags |= 8
	}
	buf[off] = flags
	buf[off+1] = m.PlaneMask
	buf[off+2] = m.Pitch
	off += 3

	binary.BigEndian.PutUint64(buf[off:], m.CPUFreq)
	binary.BigEndian.PutUint64(buf[off+8:], m.TimerFreq)
	binary.BigEndian.PutUint64(buf[off+16:], m.RefreshFreq)
	off += 24

	binary.BigEndian.PutUint16(buf[off:], m.PCStartAddr)
	off += 2

	for i, q := range m.Quirks {
		buf[off+i] = 0
		if q {
			buf[off+i] = 1
		}
	}
	off += NumQuirks

	binary.BigEndian.PutUint64(buf[off:], m.cpuDebt)
	binary.BigEndian.PutUint64(buf[off+8:], m.timerAccum)
	binary.BigEndian.PutUint64(buf[off+16:], m.audioCounter)
	binary.BigEndian.PutUint64(buf[off+24:], m.resampleCounter)
	binary.BigEndian.PutUint64(buf[off+32:], m.audioFreq)
	binary.BigEndian.PutUint64(buf[off+40:], uint64(m.toneClock))
	off += 48

	binary.BigEndian.PutUint32(buf[off:], uint32(m.sndBufPntr))

	return nil
}

// Deserialize replaces the machine state with the record in buf. Host-side
// handles (RNG, retained ROM, pending audio) survive the restore.
func (m *Machine) Deserialize(buf []byte) error {
	if len(buf) < SnapshotSize {
		return fmt.Errorf("snapshot buffer is %d bytes, need %d: %w",
			len(buf), SnapshotSize, ErrSnapshotInvalid)
	}
	if buf[0] != snapshotVersion {
		return fmt.Errorf("snapshot version %d, want %d: %w",
			buf[0], snapshotVersion, ErrSnapshotInvalid)
	}

	off := 1
	off += copy(m.RAM[:], buf[off:off+MaxRAM])
	off += copy(m.V[:], buf[off:off+NumRegisters])

	m.I = binary.BigEndian.Uint16(buf[off:])
	m.PC = binary.BigEndian.Uint16(buf[off+2:])
	m.SP = binary.BigEndian.Uint16(buf[off+4:])
	off += 6

	m.DT = buf[off]
	m.ST = buf[off+1]
	off += 2

	off = unpackPlane(buf, off, &m.Display)
	off = unpackPlane(buf, off, &m.Display2)

	for i := range m.Keypad {
		m.Keypad[i] = KeyState(buf[off+i])
	}
	off += NumKeys

	off += copy(m.UserFlags[:], buf[off:off+NumUserFlags])

	flags := buf[off]
	m.Beep = flags&1 != 0
	m.Exit = flags&2 != 0
	m.Hires = flags&4 != 0
	m.DisplayUpdated = flags&8 != 0
	m.PlaneMask = buf[off+1]
	m.Pitch = buf[off+2]
	off += 3

	m.CPUFreq = binary.BigEndian.Uint64(buf[off:])
	m.TimerFreq = binary.BigEndian.Uint64(buf[off+8:])
	m.RefreshFreq = binary.BigEndian.Uint64(buf[off+16:])
	off += 24

	m.PCStartAddr = binary.BigEndian.Uint16(buf[off:])
	off += 2

	for i := range m.Quirks {
		m.Quirks[i] = buf[off+i] != 0
	}
	off += NumQuirks

	m.cpuDebt = binary.BigEndian.Uint64(buf[off:])
	m.timerAccum = binary.BigEndian.Uint64(buf[off+8:])
	m.audioCounter = binary.BigEndian.Uint64(buf[off+16:])
	m.resampleCounter = binary.BigEndian.Uint64(buf[off+24:])
	m.audioFreq = binary.BigEndian.Uint64(buf[off+32:])
	m.toneClock = int(binary.BigEndian.Uint64(buf[off+40:]))
	off += 48

	m.sndBufPntr = int(binary.BigEndian.Uint32(buf[off:]))

	return nil
}

// packPlane bit-packs one display plane, MSB-first within each byte.
func packPlane(buf []byte, off int, p *[DisplayHeight][DisplayWidth]bool) int {
	for y := 0; y < DisplayHeight; y++ {
		for x := 0; x < DisplayWidth; x += 8 {
			var b byte
			for i := 0; i < 8; i++ {
				if p[y][x+i] {
					b |= 0x80 >> i
				}
			}
			buf[off] = b
			off++
		}
	}
	return off
}

// unpackPlane reverses packPlane.
func unpackPlane(buf []byte, off int, p *[DisplayHeight][DisplayWidth]bool) int {
	for y := 0; y < DisplayHeight; y++ {
		for x := 0; x < DisplayWidth; x += 8 {
			b := buf[off]
			off++
			for i := 0; i < 8; i++ {
				p[y][x+i] = b&(0x80>>i) != 0
			}
		}
	}
	return off
}
