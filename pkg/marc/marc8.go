// CLAUDE:SUMMARY MARC-8 to UTF-8 decoding for Basic Latin plus ANSEL; other escape-designated sets become U+FFFD.
package marc

import (
	"strings"
)

// ansel maps the ANSEL G1 graphic characters.
var ansel = map[byte]rune{
	0xA1: '\u0141', 0xA2: '\u00D8', 0xA3: '\u0110', 0xA4: '\u00DE',
	0xA5: '\u00C6', 0xA6: '\u0152', 0xA7: '\u02B9', 0xA8: '\u00B7',
	0xA9: '\u266D', 0xAA: '\u00AE', 0xAB: '\u00B1', 0xAC: '\u01A0',
	0xAD: '\u01AF', 0xAE: '\u02BC', 0xB0: '\u02BB', 0xB1: '\u0142',
	0xB2: '\u00F8', 0xB3: '\u0111', 0xB4: '\u00FE', 0xB5: '\u00E6',
	0xB6: '\u0153', 0xB7: '\u02BA', 0xB8: '\u0131', 0xB9: '\u00A3',
	0xBA: '\u00F0', 0xBC: '\u01A1', 0xBD: '\u01B0', 0xC0: '\u00B0',
	0xC1: '\u2113', 0xC2: '\u2117', 0xC3: '\u00A9', 0xC4: '\u266F',
	0xC5: '\u00BF', 0xC6: '\u00A1', 0xC7: '\u00DF', 0xC8: '\u20AC',
}

// anselCombining maps the ANSEL combining marks. In MARC-8 they precede
// the base character; Unicode wants them after.
var anselCombining = map[byte]rune{
	0xE0: '\u0309', 0xE1: '\u0300', 0xE2: '\u0301', 0xE3: '\u0302',
	0xE4: '\u0303', 0xE5: '\u0304', 0xE6: '\u0306', 0xE7: '\u0307',
	0xE8: '\u0308', 0xE9: '\u030C', 0xEA: '\u030A', 0xEB: '\uFE20',
	0xEC: '\uFE21', 0xED: '\u0315', 0xEE: '\u030B', 0xEF: '\u0310',
	0xF0: '\u0327', 0xF1: '\u0328', 0xF2: '\u0323', 0xF3: '\u0324',
	0xF4: '\u0325', 0xF5: '\u0333', 0xF6: '\u0332', 0xF7: '\u0326',
	0xF8: '\u031C', 0xF9: '\u032E', 0xFA: '\uFE22', 0xFB: '\uFE23',
	0xFE: '\u0313',
}

const esc = 0x1B

// DecodeMARC8 converts MARC-8 bytes to UTF-8. Basic Latin and ANSEL are
// supported; text in any other designated character set is replaced by a
// single U+FFFD per run.
func DecodeMARC8(b []byte) string {
	var out strings.Builder
	out.Grow(len(b))
	var pending []rune
	supported := true

	emit := func(r rune) {
		out.WriteRune(r)
		for _, m := range pending {
			out.WriteRune(m)
		}
		pending = pending[:0]
	}

	for i := 0; i < len(b); i++ {
		c := b[i]
		if c == esc {
			next, ok := escapeSupported(b, i)
			if supported && !ok {
				emit('\uFFFD')
			}
			supported = ok
			i = next
			continue
		}
		if !supported {
			continue
		}
		switch {
		case c < 0x80:
			emit(rune(c))
		case c == 0x88 || c == 0x89:
			// non-sort markers
		case c == 0x8D:
			emit('\u200D')
		case c == 0x8E:
			emit('\u200C')
		default:
			if m, ok := anselCombining[c]; ok {
				pending = append(pending, m)
				continue
			}
			if r, ok := ansel[c]; ok {
				emit(r)
				continue
			}
			emit('\uFFFD')
		}
	}
	for _, m := range pending {
		out.WriteRune(m)
	}
	return out.String()
}

// escapeSupported parses the escape sequence starting at b[i], returning
// the index of its last byte and whether the designated set is Basic Latin
// or ANSEL.
func escapeSupported(b []byte, i int) (int, bool) {
	if i+1 >= len(b) {
		return i, true
	}
	switch b[i+1] {
	case 's':
		return i + 1, true
	case 'g', 'b', 'p':
		return i + 1, false
	case '(', ',', ')', '-':
		if i+2 >= len(b) {
			return i + 1, true
		}
		final := b[i+2]
		return i + 2, final == 'B' || final == 'E'
	case '$':
		j := i + 2
		if j < len(b) && (b[j] == ',' || b[j] == ')' || b[j] == '-') {
			j++
		}
		if j >= len(b) {
			return len(b) - 1, false
		}
		return j, false
	default:
		return i + 1, false
	}
}
