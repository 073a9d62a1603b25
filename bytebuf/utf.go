package bytebuf

import (
	"github.com/oxsomi/oxc3core/oxerr"
)

// Codepoint is the result of decoding one UTF-8 or UTF-16 unit: the decoded
// rune, how many source "chars" (UTF-16 code units) it consumed, and how many
// raw bytes it consumed.
type Codepoint struct {
	Rune  rune
	Chars int
	Bytes int
}

func isContinuation(b byte) bool { return b >= 0x80 && b <= 0xBF }

// ReadAsUTF8 decodes one UTF-8 sequence (1 to 4 bytes) starting at data[i].
func ReadAsUTF8(data []byte, i int) (Codepoint, error) {
	if i < 0 || i >= len(data) {
		return Codepoint{}, oxerr.New(oxerr.OutOfBounds, "ReadAsUTF8", "index out of bounds")
	}
	b0 := data[i]

	switch {
	case b0 < 0x20 && b0 != '\t' && b0 != '\n' && b0 != '\r':
		return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "control byte is not valid ascii text")

	case b0 < 0x80:
		return Codepoint{Rune: rune(b0), Chars: 1, Bytes: 1}, nil

	case b0&0xE0 == 0xC0:
		if i+1 >= len(data) || !isContinuation(data[i+1]) {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "truncated 2-byte sequence")
		}
		r := rune(b0&0x1F)<<6 | rune(data[i+1]&0x3F)
		if r < 0x80 {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "overlong 2-byte sequence")
		}
		return Codepoint{Rune: r, Chars: 1, Bytes: 2}, nil

	case b0&0xF0 == 0xE0:
		if i+2 >= len(data) || !isContinuation(data[i+1]) || !isContinuation(data[i+2]) {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "truncated 3-byte sequence")
		}
		r := rune(b0&0x0F)<<12 | rune(data[i+1]&0x3F)<<6 | rune(data[i+2]&0x3F)
		if r < 0x800 {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "overlong 3-byte sequence")
		}
		if r >= 0xD800 && r <= 0xDFFF {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "encoded surrogate half")
		}
		return Codepoint{Rune: r, Chars: 1, Bytes: 3}, nil

	case b0&0xF8 == 0xF0:
		if i+3 >= len(data) || !isContinuation(data[i+1]) || !isContinuation(data[i+2]) || !isContinuation(data[i+3]) {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "truncated 4-byte sequence")
		}
		r := rune(b0&0x07)<<18 | rune(data[i+1]&0x3F)<<12 | rune(data[i+2]&0x3F)<<6 | rune(data[i+3]&0x3F)
		if r < 0x10000 || r > 0x10FFFF {
			return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "overlong or out-of-range 4-byte sequence")
		}
		return Codepoint{Rune: r, Chars: 2, Bytes: 4}, nil

	default:
		return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF8", "invalid leading byte")
	}
}

// ReadAsUTF16 decodes one UTF-16 unit (BMP char or surrogate pair) starting
// at the 16-bit index i, reading little-endian code units from data.
func ReadAsUTF16(data []byte, i int) (Codepoint, error) {
	units := len(data) / 2
	if i < 0 || i >= units {
		return Codepoint{}, oxerr.New(oxerr.OutOfBounds, "ReadAsUTF16", "index out of bounds")
	}
	u0 := uint16(data[i*2]) | uint16(data[i*2+1])<<8

	if u0 < 0xD800 || u0 > 0xDFFF {
		return Codepoint{Rune: rune(u0), Chars: 1, Bytes: 2}, nil
	}
	if u0 > 0xDBFF {
		return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF16", "unpaired low surrogate")
	}
	if i+1 >= units {
		return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF16", "truncated surrogate pair")
	}
	u1 := uint16(data[(i+1)*2]) | uint16(data[(i+1)*2+1])<<8
	if u1 < 0xDC00 || u1 > 0xDFFF {
		return Codepoint{}, oxerr.New(oxerr.InvalidParameter, "ReadAsUTF16", "high surrogate not followed by low surrogate")
	}
	r := (rune(u0-0xD800) << 10) | rune(u1-0xDC00) + 0x10000
	return Codepoint{Rune: r, Chars: 2, Bytes: 4}, nil
}

// WriteAsUTF16 appends r to dst as one or two little-endian code units.
func WriteAsUTF16(dst []byte, r rune) []byte {
	if r < 0x10000 {
		return append(dst, byte(r), byte(r>>8))
	}
	r -= 0x10000
	hi := uint16(0xD800 + (r >> 10))
	lo := uint16(0xDC00 + (r & 0x3FF))
	dst = append(dst, byte(hi), byte(hi>>8))
	return append(dst, byte(lo), byte(lo>>8))
}

// IsAscii scans data and reports whether the fraction of non-ASCII bytes is
// at or below threshold t (t in [0, 1]).
func IsAscii(data []byte, t float64) bool {
	if len(data) == 0 {
		return true
	}
	bad := 0
	for _, b := range data {
		if b >= 0x80 {
			bad++
		}
	}
	return float64(bad)/float64(len(data)) <= t
}

// IsUTF8 scans data as a sequence of UTF-8 codepoints and reports whether the
// fraction of decode failures is at or below threshold t.
func IsUTF8(data []byte, t float64) bool {
	if len(data) == 0 {
		return true
	}
	bad, total := 0, 0
	for i := 0; i < len(data); {
		cp, err := ReadAsUTF8(data, i)
		total++
		if err != nil {
			bad++
			i++
			continue
		}
		i += cp.Bytes
	}
	return float64(bad)/float64(total) <= t
}

// IsUTF16 scans data (interpreted as little-endian UTF-16 units) and reports
// whether the fraction of decode failures is at or below threshold t.
func IsUTF16(data []byte, t float64) bool {
	units := len(data) / 2
	if units == 0 {
		return true
	}
	bad := 0
	for i := 0; i < units; {
		cp, err := ReadAsUTF16(data, i)
		if err != nil {
			bad++
			i++
			continue
		}
		i += cp.Chars
	}
	return float64(bad)/float64(units) <= t
}
