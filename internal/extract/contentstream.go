package extract

import (
	"bytes"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokArrayStart
	tokArrayEnd
	tokOther
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

// TJ kerning offsets below this (in thousandths of an em) are treated as a word gap.
const tjSpaceThreshold = -200

// ContentStreamText decodes the strings shown by Tj, TJ, ' and " in a PDF
// content stream to UTF-8. Line moves become newlines.
func ContentStreamText(stream []byte) string {
	lx := &lexer{src: stream}
	var (
		out      strings.Builder
		operands []token
	)

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}
	space := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			out.WriteByte(' ')
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeStrings(&out, operands)
		case "'", "\"":
			newline()
			writeStrings(&out, operands)
		case "TJ":
			for _, op := range operands {
				switch op.kind {
				case tokString:
					out.WriteString(op.text)
				case tokNumber:
					if op.num < tjSpaceThreshold {
						space()
					}
				}
			}
		case "T*":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].num != 0 {
				newline()
			} else {
				space()
			}
		case "ET":
			newline()
		case "ID":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}

	return out.String()
}

func writeStrings(out *strings.Builder, operands []token) {
	for _, op := range operands {
		if op.kind == tokString {
			out.WriteString(op.text)
		}
	}
}

type lexer struct {
	src []byte
	pos int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			l.pos++
			return token{kind: tokString, text: decodePDFString(l.literal(), false)}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther, text: "<<"}, true
			}
			l.pos++
			return token{kind: tokString, text: decodePDFString(l.hex(), true)}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.src) && l.src[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther, text: ">>"}, true
		case c == '[':
			l.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			l.pos++
			return token{kind: tokOther, text: "/" + l.word()}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			w := l.word()
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, text: w, num: n}, true
			}
			return token{kind: tokOperator, text: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isWhite(l.src[l.pos]) && !isDelim(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// literal reads a (...) string body; the opening paren is already consumed.
func (l *lexer) literal() string {
	var buf bytes.Buffer
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return buf.String()
			}
			buf.WriteByte(c)
		case '\\':
			if l.pos >= len(l.src) {
				return buf.String()
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				if l.pos < len(l.src) && l.src[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

// hex reads a <...> string body; the opening bracket is already consumed.
func (l *lexer) hex() string {
	var digits []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		if isWhite(c) {
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return string(out)
}

// skipInlineImage moves past binary inline image data up to the EI operator.
func (l *lexer) skipInlineImage() {
	for l.pos+2 < len(l.src) {
		if isWhite(l.src[l.pos]) && l.src[l.pos+1] == 'E' && l.src[l.pos+2] == 'I' &&
			(l.pos+3 == len(l.src) || isWhite(l.src[l.pos+3])) {
			l.pos += 3
			return
		}
		l.pos++
	}
	l.pos = len(l.src)
}
