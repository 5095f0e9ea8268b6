package chip8

// dispatch decodes and executes a single opcode. PC has already moved past
// the instruction. It reports whether a cycle fired; only a wait-for-key
// stall returns false. Undefined opcodes are no-ops.
func (m *Machine) dispatch(op uint16) bool {
	x := (op & 0x0F00) >> 8 // Decode Vx register identifier
	y := (op & 0x00F0) >> 4 // Decode Vy register identifier
	n := byte(op & 0x000F)  // load last 4 bits
	kk := byte(op & 0x00FF) // load last 8 bits
	nnn := op & 0x0FFF      // load last 12 bits

	switch op & 0xF000 {
	case 0x0000:
		switch {
		case op&0xFFF0 == 0x00C0: // 00CN -> Scroll display down N pixels
			m.scrollDown(n)
		case op&0xFFF0 == 0x00D0: // 00DN -> Scroll display up N pixels
			m.scrollUp(n)
		case op == 0x00E0: // 00E0 -> Clear the screen, both planes
			m.Display = [DisplayHeight][DisplayWidth]bool{}
			m.Display2 = [DisplayHeight][DisplayWidth]bool{}
			m.DisplayUpdated = true
		case op == 0x00EE: // 00EE -> Return from a subroutine
			m.ret(op)
		case op == 0x00FB: // 00FB -> Scroll display right 4 pixels
			m.scrollRight()
		case op == 0x00FC: // 00FC -> Scroll display left 4 pixels
			m.scrollLeft()
		case op == 0x00FD: // 00FD -> Exit the interpreter
			m.Exit = true
		case op == 0x00FE: // 00FE -> Switch to lo-res (64x32)
			m.setResolution(false)
		case op == 0x00FF: // 00FF -> Switch to hi-res (128x64)
			m.setResolution(true)
		default:
			// 0NNN machine-language subroutines are not emulated.
			m.debugEvent(op, "unknown opcode")
		}
	case 0x1000: // 1NNN -> Jump to address NNN
		m.PC = nnn
	case 0x2000: // 2NNN -> Call subroutine at NNN
		m.call(op, nnn)
	case 0x3000: // 3XKK -> Skip next instruction if VX == KK
		if m.V[x] == kk {
			m.skipNext()
		}
	case 0x4000: // 4XKK -> Skip next instruction if VX != KK
		if m.V[x] != kk {
			m.skipNext()
		}
	case 0x5000:
		switch n {
		case 0x0: // 5XY0 -> Skip next instruction if VX == VY
			if m.V[x] == m.V[y] {
				m.skipNext()
			}
		case 0x2: // 5XY2 -> Save VX..VY to memory at I
			m.saveRange(x, y)
		case 0x3: // 5XY3 -> Load VX..VY from memory at I
			m.loadRange(x, y)
		default:
			m.debugEvent(op, "unknown opcode")
		}
	case 0x6000: // 6XKK -> Store KK in VX
		m.V[x] = kk
	case 0x7000: // 7XKK -> Add KK to VX, no flag
		m.V[x] += kk
	case 0x8000:
		switch n {
		case 0x0: // 8XY0 -> Store VY in VX
			m.V[x] = m.V[y]
		case 0x1: // 8XY1 -> Set VX to VX OR VY
			m.V[x] |= m.V[y]
			m.logicFlag()
		case 0x2: // 8XY2 -> Set VX to VX AND VY
			m.V[x] &= m.V[y]
			m.logicFlag()
		case 0x3: // 8XY3 -> Set VX to VX XOR VY
			m.V[x] ^= m.V[y]
			m.logicFlag()
		case 0x4: // 8XY4 -> Add VY to VX, VF = carry
			sum := uint16(m.V[x]) + uint16(m.V[y])
			carry := byte(sum >> 8)
			m.V[x] = byte(sum)
			m.V[0xF] = carry
		case 0x5: // 8XY5 -> VX = VX - VY, VF = 1 if no borrow
			noBorrow := byte(0)
			if m.V[x] >= m.V[y] {
				noBorrow = 1
			}
			m.V[x] -= m.V[y]
			m.V[0xF] = noBorrow
		case 0x6: // 8XY6 -> Shift right one bit, VF = bit shifted out
			src := m.V[x]
			if m.Quirks[QuirkShift] {
				src = m.V[y]
			}
			m.V[x] = src >> 1
			m.V[0xF] = src & 0x01
		case 0x7: // 8XY7 -> VX = VY - VX, VF = 1 if no borrow
			noBorrow := byte(0)
			if m.V[y] >= m.V[x] {
				noBorrow = 1
			}
			m.V[x] = m.V[y] - m.V[x]
			m.V[0xF] = noBorrow
		case 0xE: // 8XYE -> Shift left one bit, VF = bit shifted out
			src := m.V[x]
			if m.Quirks[QuirkShift] {
				src = m.V[y]
			}
			m.V[x] = src << 1
			m.V[0xF] = src >> 7
		default:
			m.debugEvent(op, "unknown opcode")
		}
	case 0x9000: // 9XY0 -> Skip next instruction if VX != VY
		if n == 0 && m.V[x] != m.V[y] {
			m.skipNext()
		}
	case 0xA000: // ANNN -> Store address NNN in I
		m.I = nnn
	case 0xB000: // BNNN -> Jump to NNN plus an offset register
		if m.Quirks[QuirkJump] {
			m.PC = nnn + uint16(m.V[nnn>>8])
		} else {
			m.PC = nnn + uint16(m.V[0])
		}
	case 0xC000: // CXKK -> VX = random byte AND KK
		m.V[x] = byte(m.rng.Intn(256)) & kk
	case 0xD000: // DXYN -> Draw sprite at (VX, VY), N rows from I
		m.drawSprite(x, y, n)
	case 0xE000:
		switch kk {
		case 0x9E: // EX9E -> Skip next instruction if key VX is down
			if m.Keypad[m.V[x]&0xF] == KeyDown {
				m.skipNext()
			}
		case 0xA1: // EXA1 -> Skip next instruction if key VX is not down
			if m.Keypad[m.V[x]&0xF] != KeyDown {
				m.skipNext()
			}
		default:
			m.debugEvent(op, "unknown opcode")
		}
	case 0xF000:
		switch kk {
		case 0x00: // F000 NNNN -> Load the full 16-bit word into I
			if x == 0 {
				m.I = uint16(m.RAM[m.PC])<<8 | uint16(m.RAM[m.PC+1])
				m.PC += 2
			} else {
				m.debugEvent(op, "unknown opcode")
			}
		case 0x01: // FN01 -> Select drawing planes from N
			m.PlaneMask = byte(x) & 0x3
		case 0x02: // F002 -> Copy 16 bytes at I into the audio pattern buffer
			if x == 0 {
				for i := uint16(0); i < AudioBufSize; i++ {
					m.RAM[AudioBufAddr+i] = m.RAM[m.I+i]
				}
			} else {
				m.debugEvent(op, "unknown opcode")
			}
		case 0x07: // FX07 -> Store the delay timer in VX
			m.V[x] = m.DT
		case 0x0A: // FX0A -> Wait for a key release, store the key in VX
			return m.waitKey(x)
		case 0x15: // FX15 -> Set the delay timer to VX
			m.DT = m.V[x]
		case 0x18: // FX18 -> Set the sound timer to VX
			m.ST = m.V[x]
			m.Beep = m.ST > 0
		case 0x1E: // FX1E -> Add VX to I
			m.I += uint16(m.V[x])
		case 0x29: // FX29 -> Point I at the small font glyph for VX
			m.I = FontStartAddr + 5*uint16(m.V[x]&0xF)
		case 0x30: // FX30 -> Point I at the big font glyph for VX
			d := uint16(m.V[x] & 0xF)
			if m.bigFontFallback && d > 9 {
				m.I = FontStartAddr + 5*d
			} else {
				m.I = BigFontStartAddr + 10*d
			}
		case 0x33: // FX33 -> Store BCD of VX at I, I+1, I+2
			m.RAM[m.I] = m.V[x] / 100
			m.RAM[m.I+1] = (m.V[x] / 10) % 10
			m.RAM[m.I+2] = m.V[x] % 10
		case 0x3A: // FX3A -> Set the audio pitch register to VX
			m.Pitch = m.V[x]
			m.audioFreq = 0
		case 0x55: // FX55 -> Store V0..VX in memory starting at I
			for i := uint16(0); i <= x; i++ {
				m.RAM[m.I+i] = m.V[i]
			}
			if !m.Quirks[QuirkMemIncr] {
				m.I += x + 1
			}
		case 0x65: // FX65 -> Load V0..VX from memory starting at I
			for i := uint16(0); i <= x; i++ {
				m.V[i] = m.RAM[m.I+i]
			}
			if !m.Quirks[QuirkMemIncr] {
				m.I += x + 1
			}
		case 0x75: // FX75 -> Persist V0..VX into the user flags
			for i := uint16(0); i <= x && i < NumUserFlags; i++ {
				m.UserFlags[i] = m.V[i]
			}
		case 0x85: // FX85 -> Restore V0..VX from the user flags
			for i := uint16(0); i <= x && i < NumUserFlags; i++ {
				m.V[i] = m.UserFlags[i]
			}
		default:
			m.debugEvent(op, "unknown opcode")
		}
	}

	return true
}

// skipNext advances PC over the following instruction, stepping four bytes
// when that instruction is the double-width F000 NNNN.
func (m *Machine) skipNext() {
	if m.RAM[m.PC] == 0xF0 && m.RAM[m.PC+1] == 0x00 {
		m.PC += 4
	} else {
		m.PC += 2
	}
}

// logicFlag zeroes VF after OR/AND/XOR unless the quirk preserves it.
func (m *Machine) logicFlag() {
	if !m.Quirks[QuirkLogicVF] {
		m.V[0xF] = 0
	}
}

// call pushes the return address and jumps. A full stack clamps to a no-op
// so a runaway ROM cannot corrupt memory past the stack region.
func (m *Machine) call(op, nnn uint16) {
	if m.SP >= SPStartAddr+2*StackFrames {
		m.debugEvent(op, "stack overflow")
		return
	}
	m.SP += 2
	m.RAM[m.SP] = byte(m.PC >> 8)
	m.RAM[m.SP+1] = byte(m.PC)
	m.PC = nnn
}

// ret pops the return address. An empty stack clamps to a no-op.
func (m *Machine) ret(op uint16) {
	if m.SP <= SPStartAddr {
		m.debugEvent(op, "stack underflow")
		return
	}
	m.PC = uint16(m.RAM[m.SP])<<8 | uint16(m.RAM[m.SP+1])
	m.SP -= 2
}

// waitKey implements FX0A. The machine stalls (PC rewinds over the
// instruction) until some key presents a DOWN -> RELEASED edge; that edge is
// consumed, the key index lands in VX, and execution proceeds.
func (m *Machine) waitKey(x uint16) bool {
	for i, k := range m.Keypad {
		if k == KeyReleased {
			m.V[x] = byte(i)
			m.Keypad[i] = KeyUp
			return true
		}
	}
	m.PC -= 2
	return false
}

// saveRange implements 5XY2: VX..VY to memory at I, I unchanged. A
// descending register range writes in descending order.
func (m *Machine) saveRange(x, y uint16) {
	if x <= y {
		for i := x; i <= y; i++ {
			m.RAM[m.I+(i-x)] = m.V[i]
		}
		return
	}
	for i := x; ; i-- {
		m.RAM[m.I+(x-i)] = m.V[i]
		if i == y {
			break
		}
	}
}

// loadRange implements 5XY3: memory at I to VX..VY, I unchanged.
func (m *Machine) loadRange(x, y uint16) {
	if x <= y {
		for i := x; i <= y; i++ {
			m.V[i] = m.RAM[m.I+(i-x)]
		}
		return
	}
	for i := x; ; i-- {
		m.V[i] = m.RAM[m.I+(x-i)]
		if i == y {
			break
		}
	}
}

// setResolution flips between 64x32 and 128x64 mode. The resolution-change
// quirk also clears both planes, which most S-CHIP ROMs expect.
func (m *Machine) setResolution(hires bool) {
	m.Hires = hires
	if m.Quirks[QuirkResClear] {
		m.Display = [DisplayHeight][DisplayWidth]bool{}
		m.Display2 = [DisplayHeight][DisplayWidth]bool{}
	}
	m.DisplayUpdated = true
}
