package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// decodePDFString converts the raw bytes of a string operand to UTF-8.
// Strings with a FE FF marker, and hex strings whose high bytes are all zero,
// are read as UTF-16BE. Everything else is read as WinAnsi (Windows-1252).
// NULs are dropped.
func decodePDFString(raw string, fromHex bool) string {
	var (
		out string
		err error
	)
	switch {
	case strings.HasPrefix(raw, "\xfe\xff"):
		out, err = utf16BE.NewDecoder().String(raw[2:])
	case fromHex && looksUTF16BE(raw):
		out, err = utf16BE.NewDecoder().String(raw)
	default:
		out, err = charmap.Windows1252.NewDecoder().String(raw)
	}
	if err != nil {
		out = strings.ToValidUTF8(raw, "")
	}
	out = strings.ReplaceAll(out, "\x00", "")
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "")
	}
	return out
}

// looksUTF16BE reports whether raw is made of two-byte code units with a zero
// high byte, the usual shape of Identity-encoded text from CID fonts.
func looksUTF16BE(raw string) bool {
	if len(raw) < 2 || len(raw)%2 != 0 {
		return false
	}
	for i := 0; i < len(raw); i += 2 {
		if raw[i] != 0 {
			return false
		}
	}
	return true
}
