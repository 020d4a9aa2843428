package counters

import (
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Format selects the layout of the snapshot document.
type Format int

const (
	// FormatV1 keeps a comma after every entry, including the last one,
	// e.g. {"ops" : 1,}. Existing consumers read this layout.
	FormatV1 Format = 1
	// FormatV2 is strict JSON.
	FormatV2 Format = 2
)

func ParseFormat(v int) (Format, error) {
	switch Format(v) {
	case FormatV1, FormatV2:
		return Format(v), nil
	default:
		return 0, fmt.Errorf("unknown snapshot format version %d", v)
	}
}

func appendName(dst []byte, name string, format Format) []byte {
	if format == FormatV2 {
		return appendJSONString(dst, name)
	}
	return strconv.AppendQuote(dst, name)
}

const hexDigits = "0123456789abcdef"

// appendJSONString quotes s as a JSON string. Invalid UTF-8 becomes U+FFFD.
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				dst = append(dst, '\\', c)
			case c == '\n':
				dst = append(dst, '\\', 'n')
			case c == '\r':
				dst = append(dst, '\\', 'r')
			case c == '\t':
				dst = append(dst, '\\', 't')
			case c < 0x20 || c == 0x7f:
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, `\ufffd`...)
		} else {
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return append(dst, '"')
}

// appendDocument renders the full snapshot of sets in order.
func appendDocument(dst []byte, sets []*CounterSet, format Format) []byte {
	dst = append(dst, '{')
	first := true
	for _, s := range sets {
		dst, first = s.appendJSON(dst, format, first)
	}
	return append(dst, '}')
}

func writeDocument(w io.Writer, sets []*CounterSet, format Format) error {
	_, err := w.Write(appendDocument(nil, sets, format))
	return err
}
