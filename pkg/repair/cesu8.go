// CLAUDE:SUMMARY CESU-8 <-> UTF-8 transcoding as x/text transformers, for Voyager exports storing SMP characters as surrogate pairs.
package repair

import (
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

// CESU-8 encodes a supplementary-plane rune as two 3-byte sequences, one per
// UTF-16 surrogate. BMP runes are encoded exactly as in UTF-8.

const (
	surrogateLead = 0xED
	// Second byte of a surrogate encoding: A0-AF high, B0-BF low.
	highSurrogateMin = 0xA0
	lowSurrogateMin  = 0xB0
)

// cesu8Decoder converts CESU-8 bytes to UTF-8.
type cesu8Decoder struct{ transform.NopResetter }

// cesu8Encoder converts UTF-8 bytes to CESU-8.
type cesu8Encoder struct{ transform.NopResetter }

// NewCESU8Decoder returns a transformer that reads CESU-8 and writes UTF-8.
// Well-formed 4-byte UTF-8 sequences in the input are passed through.
func NewCESU8Decoder() transform.Transformer { return cesu8Decoder{} }

// NewCESU8Encoder returns a transformer that reads UTF-8 and writes CESU-8.
func NewCESU8Encoder() transform.Transformer { return cesu8Encoder{} }

func (cesu8Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
			nSrc++
			continue
		}

		if b == surrogateLead {
			if len(src)-nSrc < 2 {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				return nDst, nSrc, errInvalidCESU8
			}
			if src[nSrc+1] >= highSurrogateMin {
				if len(src)-nSrc < 6 {
					if !atEOF {
						return nDst, nSrc, transform.ErrShortSrc
					}
					return nDst, nSrc, errInvalidCESU8
				}
				hi, ok1 := decodeSurrogate(src[nSrc:nSrc+3], highSurrogateMin)
				lo, ok2 := decodeSurrogate(src[nSrc+3:nSrc+6], lowSurrogateMin)
				if !ok1 || !ok2 {
					return nDst, nSrc, errInvalidCESU8
				}
				r := utf16.DecodeRune(hi, lo)
				if nDst+utf8.UTFMax > len(dst) {
					return nDst, nSrc, transform.ErrShortDst
				}
				nDst += utf8.EncodeRune(dst[nDst:], r)
				nSrc += 6
				continue
			}
		}

		if !utf8.FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, errInvalidCESU8
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 {
			return nDst, nSrc, errInvalidCESU8
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
		nSrc += size
	}
	return nDst, nSrc, nil
}

// decodeSurrogate reads one 3-byte surrogate encoding. first selects the
// high (A0) or low (B0) half; each half spans 16 values of the second byte.
func decodeSurrogate(p []byte, first byte) (rune, bool) {
	if p[0] != surrogateLead || p[1] < first || p[1] > first+0x0F || p[2]&0xC0 != 0x80 {
		return 0, false
	}
	return rune(p[0]&0x0F)<<12 | rune(p[1]&0x3F)<<6 | rune(p[2]&0x3F), true
}

func (cesu8Encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
			nSrc++
			continue
		}

		if !utf8.FullRune(src[nSrc:]) {
			if !atEOF {
				return nDst, nSrc, transform.ErrShortSrc
			}
			return nDst, nSrc, errInvalidUTF8
		}
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 {
			return nDst, nSrc, errInvalidUTF8
		}
		if r <= 0xFFFF {
			if nDst+size > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			nDst += copy(dst[nDst:], src[nSrc:nSrc+size])
			nSrc += size
			continue
		}

		if nDst+6 > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		hi, lo := utf16.EncodeRune(r)
		encodeSurrogate(dst[nDst:], hi)
		encodeSurrogate(dst[nDst+3:], lo)
		nDst += 6
		nSrc += size
	}
	return nDst, nSrc, nil
}

func encodeSurrogate(p []byte, s rune) {
	p[0] = 0xE0 | byte(s>>12)
	p[1] = 0x80 | byte(s>>6)&0x3F
	p[2] = 0x80 | byte(s)&0x3F
}

// ForwardCESU8 repairs a value exported as CESU-8 into canonical UTF-8.
// On failure the returned error is an *EncodingError holding s.
func ForwardCESU8(s string) (string, error) {
	out, _, err := transform.String(NewCESU8Decoder(), s)
	if err != nil {
		return s, &EncodingError{Value: s, Err: err}
	}
	return out, nil
}

// ReverseCESU8 re-encodes UTF-8 text as CESU-8 for re-import.
func ReverseCESU8(s string) (string, error) {
	out, _, err := transform.String(NewCESU8Encoder(), s)
	if err != nil {
		return s, &EncodingError{Value: s, Err: err}
	}
	return out, nil
}
