package chip8

// The draw system: sprites are XORed into the selected planes and any pixel
// flipped from on to off counts as a collision, reported through VF. The
// planes are always stored at hi-res dimensions; a lo-res pixel occupies a
// 2x2 block so scrolls and rendering work in one coordinate space.

// activeDims returns the logical resolution sprites are drawn against.
func (m *Machine) activeDims() (w, h int) {
	if m.Hires {
		return DisplayWidth, DisplayHeight
	}
	return DisplayWidth / 2, DisplayHeight / 2
}

// targetPlanes resolves the plane mask to the planes it selects.
func (m *Machine) targetPlanes() []*[DisplayHeight][DisplayWidth]bool {
	var ps []*[DisplayHeight][DisplayWidth]bool
	if m.PlaneMask&1 != 0 {
		ps = append(ps, &m.Display)
	}
	if m.PlaneMask&2 != 0 {
		ps = append(ps, &m.Display2)
	}
	return ps
}

// drawSprite implements DXYN. N rows are read from I (two bytes per row for
// 16-wide sprites); N=0 selects the big 16x16 form in hi-res, or in lo-res
// when the big-sprite quirk allows it, and an 8x16 sprite otherwise. When
// more than one plane is selected the sprite data for the second plane
// follows the first. Start coordinates wrap before drawing; individual
// pixels wrap or clip per the wrapping quirk.
func (m *Machine) drawSprite(x, y uint16, n byte) {
	w, h := m.activeDims()
	x0 := int(m.V[x]) % w
	y0 := int(m.V[y]) % h

	big := n == 0 && (m.Hires || m.Quirks[QuirkBigSpriteLores])
	rows := int(n)
	if n == 0 {
		rows = 16
	}
	cols := 8
	if big {
		cols = 16
	}

	// Collisions are tracked per sprite row, unioned across planes.
	var rowHit [16]bool

	addr := m.I
	for _, p := range m.targetPlanes() {
		for row := 0; row < rows; row++ {
			var bits uint16
			if big {
				bits = uint16(m.RAM[addr])<<8 | uint16(m.RAM[addr+1])
				addr += 2
			} else {
				bits = uint16(m.RAM[addr]) << 8
				addr++
			}

			dy := y0 + row
			if dy >= h {
				if m.Quirks[QuirkWrap] {
					dy %= h
				} else {
					if m.Quirks[QuirkCollisionBottom] {
						rowHit[row] = true
					}
					continue
				}
			}

			for col := 0; col < cols; col++ {
				if bits&(0x8000>>col) == 0 {
					continue
				}
				dx := x0 + col
				if dx >= w {
					if m.Quirks[QuirkWrap] {
						dx %= w
					} else {
						continue
					}
				}
				if m.plot(p, dx, dy) {
					rowHit[row] = true
				}
			}
		}
	}

	if m.Quirks[QuirkCollisionCount] && m.Hires {
		count := byte(0)
		for _, hit := range rowHit[:rows] {
			if hit {
				count++
			}
		}
		m.V[0xF] = count
	} else {
		m.V[0xF] = 0
		for _, hit := range rowHit[:rows] {
			if hit {
				m.V[0xF] = 1
				break
			}
		}
	}

	m.DisplayUpdated = true
}

// plot XORs one logical pixel into a plane and reports whether it was set
// beforehand. In lo-res the pixel covers a 2x2 block of the plane.
func (m *Machine) plot(p *[DisplayHeight][DisplayWidth]bool, x, y int) bool {
	if m.Hires {
		hit := p[y][x]
		p[y][x] = !hit
		return hit
	}

	hit := false
	for dy := y * 2; dy < y*2+2; dy++ {
		for dx := x * 2; dx < x*2+2; dx++ {
			if p[dy][dx] {
				hit = true
			}
			p[dy][dx] = !p[dy][dx]
		}
	}
	return hit
}

// Scroll operations shift the selected planes; vacated rows and columns are
// cleared. Amounts are in plane (hi-res) pixels in both modes, matching the
// behavior the target ROM set was written against.

// scrollDown implements 00CN.
func (m *Machine) scrollDown(n byte) {
	shift := int(n)
	for _, p := range m.targetPlanes() {
		for y := DisplayHeight - 1; y >= 0; y-- {
			if y >= shift {
				p[y] = p[y-shift]
			} else {
				p[y] = [DisplayWidth]bool{}
			}
		}
	}
	m.DisplayUpdated = true
}

// scrollUp implements 00DN.
func (m *Machine) scrollUp(n byte) {
	shift := int(n)
	for _, p := range m.targetPlanes() {
		for y := 0; y < DisplayHeight; y++ {
			if y+shift < DisplayHeight {
				p[y] = p[y+shift]
			} else {
				p[y] = [DisplayWidth]bool{}
			}
		}
	}
	m.DisplayUpdated = true
}

// scrollRight implements 00FB: four pixels right.
func (m *Machine) scrollRight() {
	for _, p := range m.targetPlanes() {
		for y := 0; y < DisplayHeight; y++ {
			for x := DisplayWidth - 1; x >= 0; x-- {
				if x >= 4 {
					p[y][x] = p[y][x-4]
				} else {
					p[y][x] = false
				}
			}
		}
	}
	m.DisplayUpdated = true
}

// scrollLeft implements 00FC: four pixels left.
func (m *Machine) scrollLeft() {
	for _, p := range m.targetPlanes() {
		for y := 0; y < DisplayHeight; y++ {
			for x := 0; x < DisplayWidth; x++ {
				if x+4 < DisplayWidth {
					p[y][x] = p[y][x+4]
				} else {
					p[y][x] = false
				}
			}
		}
	}
	m.DisplayUpdated = true
}
