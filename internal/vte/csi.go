package vte

import (
	"scarabd/internal/cell"
	"scarabd/internal/term"
)

// param returns the i-th CSI parameter, or def if absent/zero (CSI
// parameters default to a command-specific value when omitted or 0).
func (p *Parser) param(i, def int) int {
	if i >= len(p.params) || p.params[i] == 0 {
		return def
	}
	return p.params[i]
}

func (p *Parser) paramRaw(i, def int) int {
	if i >= len(p.params) {
		return def
	}
	return p.params[i]
}

// dispatchCSI handles one complete CSI sequence: params ';'-separated,
// optional private marker ('?'/'>'/'='), optional intermediate bytes, and
// a final byte in 0x40..0x7E.
func (p *Parser) dispatchCSI(final byte) {
	if p.private == '?' {
		p.dispatchPrivateCSI(final)
		return
	}
	switch final {
	case 'A':
		p.ts.MoveCursorRelative(0, -p.param(0, 1))
	case 'B':
		p.ts.MoveCursorRelative(0, p.param(0, 1))
	case 'C':
		p.ts.MoveCursorRelative(p.param(0, 1), 0)
	case 'D':
		p.ts.MoveCursorRelative(-p.param(0, 1), 0)
	case 'G': // CHA: cursor horizontal absolute
		x, y := p.ts.Cursor()
		_ = x
		p.ts.MoveCursor(p.param(0, 1)-1, y)
	case 'd': // VPA: vertical position absolute
		x, _ := p.ts.Cursor()
		p.ts.MoveCursor(x, p.param(0, 1)-1)
	case 'H', 'f': // CUP / HVP
		row := p.param(0, 1)
		col := p.param(1, 1)
		p.ts.MoveCursor(col-1, row-1)
	case 's':
		p.ts.SaveCursor()
	case 'u':
		p.ts.RestoreCursor()
	case 'J': // ED
		p.ts.EraseInDisplay(eraseMode(p.param(0, 0)))
	case 'K': // EL
		p.ts.EraseInLine(eraseMode(p.param(0, 0)))
	case 'S': // SU
		p.ts.ScrollUp(p.param(0, 1))
	case 'T': // SD
		p.ts.ScrollDown(p.param(0, 1))
	case 'L': // IL
		p.ts.InsertLines(p.param(0, 1))
	case 'M': // DL
		p.ts.DeleteLines(p.param(0, 1))
	case '@': // ICH
		p.ts.InsertChars(p.param(0, 1))
	case 'P': // DCH
		p.ts.DeleteChars(p.param(0, 1))
	case 'r': // DECSTBM
		p.ts.SetScrollRegion(p.paramRaw(0, 0), p.paramRaw(1, 0))
	case 'm': // SGR
		p.dispatchSGR()
	default:
		// Unhandled final byte: ignore, per malformed-sequence tolerance.
	}
}

func eraseMode(mode int) term.EraseMode {
	switch mode {
	case 1:
		return term.EraseToStart
	case 2:
		return term.EraseAll
	default:
		return term.EraseToEnd
	}
}

// dispatchPrivateCSI handles DECSET/DECRST ('?'-prefixed CSI ... h/l).
func (p *Parser) dispatchPrivateCSI(final byte) {
	enable := final == 'h'
	if final != 'h' && final != 'l' {
		return
	}
	for _, mode := range p.params {
		switch mode {
		case 25:
			p.ts.SetCursorVisible(enable)
		case 1047, 1049:
			p.ts.SetAltScreen(enable, mode == 1049)
		case 2004:
			p.ts.SetBracketedPaste(enable)
		case 1000, 1002, 1003, 1006:
			if enable {
				p.ts.SetMouseMode(mode)
			} else {
				p.ts.SetMouseMode(0)
			}
		}
	}
}

// dispatchSGR applies one or more ';'-separated SGR parameters, including
// the 256-color and truecolor extended forms which themselves consume
// trailing parameters.
func (p *Parser) dispatchSGR() {
	sgr := p.ts.CurrentSGR()
	if len(p.params) == 0 {
		p.params = append(p.params, 0)
	}
	for i := 0; i < len(p.params); i++ {
		n := p.params[i]
		switch {
		case n == 0:
			sgr = term.Default()
		case n == 1:
			sgr.Attrs |= cell.AttrBold
		case n == 2:
			sgr.Attrs |= cell.AttrDim
		case n == 3:
			sgr.Attrs |= cell.AttrItalic
		case n == 4:
			sgr.Attrs |= cell.AttrUnderline
		case n == 5 || n == 6:
			sgr.Attrs |= cell.AttrBlink
		case n == 7:
			sgr.Attrs |= cell.AttrReverse
		case n == 8:
			sgr.Attrs |= cell.AttrInvisible
		case n == 9:
			sgr.Attrs |= cell.AttrStrikethrough
		case n == 22:
			sgr.Attrs &^= cell.AttrBold | cell.AttrDim
		case n == 23:
			sgr.Attrs &^= cell.AttrItalic
		case n == 24:
			sgr.Attrs &^= cell.AttrUnderline
		case n == 25:
			sgr.Attrs &^= cell.AttrBlink
		case n == 27:
			sgr.Attrs &^= cell.AttrReverse
		case n == 28:
			sgr.Attrs &^= cell.AttrInvisible
		case n == 29:
			sgr.Attrs &^= cell.AttrStrikethrough
		case n >= 30 && n <= 37:
			sgr.Fg = standardColor(n - 30)
		case n == 38:
			consumed, color := p.extendedColor(i + 1)
			sgr.Fg = color
			i += consumed
		case n == 39:
			sgr.Fg = cell.DefaultFg
		case n >= 40 && n <= 47:
			sgr.Bg = standardColor(n - 40)
		case n == 48:
			consumed, color := p.extendedColor(i + 1)
			sgr.Bg = color
			i += consumed
		case n == 49:
			sgr.Bg = cell.DefaultBg
		case n >= 90 && n <= 97:
			sgr.Fg = standardColor(n - 90 + 8)
		case n >= 100 && n <= 107:
			sgr.Bg = standardColor(n - 100 + 8)
		}
	}
	p.ts.SetSGR(sgr)
}

// extendedColor parses "5;n" (256-color) or "2;r;g;b" (truecolor)
// continuing from params[start]. Returns how many extra params it
// consumed and the resulting color.
func (p *Parser) extendedColor(start int) (consumed int, c cell.Color) {
	if start >= len(p.params) {
		return 0, 0
	}
	switch p.params[start] {
	case 2:
		if start+3 < len(p.params) {
			r, g, b := p.params[start+1], p.params[start+2], p.params[start+3]
			return 4, cell.RGB(uint8(r), uint8(g), uint8(b))
		}
		return len(p.params) - start, 0
	case 5:
		if start+1 < len(p.params) {
			return 2, palette256(p.params[start+1])
		}
		return len(p.params) - start, 0
	default:
		return 0, 0
	}
}

// standardColor maps the 16-entry ANSI palette index (0-15) to truecolor,
// using the conventional VGA-derived palette.
func standardColor(idx int) cell.Color {
	return ansi16[idx&0xF]
}

var ansi16 = [16]cell.Color{
	cell.RGB(0, 0, 0), cell.RGB(205, 0, 0), cell.RGB(0, 205, 0), cell.RGB(205, 205, 0),
	cell.RGB(0, 0, 238), cell.RGB(205, 0, 205), cell.RGB(0, 205, 205), cell.RGB(229, 229, 229),
	cell.RGB(127, 127, 127), cell.RGB(255, 0, 0), cell.RGB(0, 255, 0), cell.RGB(255, 255, 0),
	cell.RGB(92, 92, 255), cell.RGB(255, 0, 255), cell.RGB(0, 255, 255), cell.RGB(255, 255, 255),
}

// palette256 maps a 256-color index to truecolor: 0-15 standard, 16-231 a
// 6x6x6 cube, 232-255 a grayscale ramp.
func palette256(idx int) cell.Color {
	switch {
	case idx < 0:
		return 0
	case idx < 16:
		return standardColor(idx)
	case idx < 232:
		idx -= 16
		r := (idx / 36) % 6
		g := (idx / 6) % 6
		b := idx % 6
		scale := func(v int) uint8 {
			if v == 0 {
				return 0
			}
			return uint8(55 + v*40)
		}
		return cell.RGB(scale(r), scale(g), scale(b))
	default:
		level := idx - 232
		if level > 23 {
			level = 23
		}
		v := uint8(8 + level*10)
		return cell.RGB(v, v, v)
	}
}
