// Package scanner tokenizes Seq source files for the parser to consume.
//
// Seq is a concatenative language: apart from a handful of self-delimiting
// structural characters, tokens are whitespace-delimited chunks, so words
// like `int->string`, `make-channel` or `<=` scan as single identifiers.
package scanner

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/seqlang/seq/lang/token"
)

// Error is a scan error at a source position.
type Error struct {
	Pos token.Position
	Msg string
}

func (e *Error) Error() string { return e.Pos.String() + ": " + e.Msg }

// Scanner tokenizes a single source buffer.
type Scanner struct {
	filename string
	src      []byte
	err      func(pos token.Position, msg string)

	cur       rune
	off       int // byte offset of cur
	roff      int // byte offset after cur
	line, col int // 1-based position of cur
}

// Init prepares the scanner to tokenize src. The errFn is called for each
// error encountered; it may be nil.
func (s *Scanner) Init(filename string, src []byte, errFn func(pos token.Position, msg string)) {
	s.filename = filename
	s.src = src
	s.err = errFn
	s.off, s.roff = 0, 0
	s.line, s.col = 1, 0
	s.advance()
}

const eof = -1

func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = eof
		s.col++
		return
	}
	if s.cur == '\n' {
		s.line++
		s.col = 0
	}
	s.off = s.roff
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
	}
	s.roff += w
	s.cur = r
	s.col++
}

func (s *Scanner) errorf(line, col int, format string, args ...interface{}) {
	if s.err != nil {
		s.err(token.Position{Filename: s.filename, Line: line, Col: col}, fmt.Sprintf(format, args...))
	}
}

// selfDelim reports whether r terminates a word chunk on its own.
func selfDelim(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', ';', '"':
		return true
	}
	return false
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

// Scan returns the next token, filling v with its value and position.
func (s *Scanner) Scan(v *token.Value) token.Token {
	for {
		// skip whitespace and comments ('#' to end of line)
		for isSpace(s.cur) {
			s.advance()
		}
		if s.cur == '#' {
			for s.cur != '\n' && s.cur != eof {
				s.advance()
			}
			continue
		}
		break
	}

	*v = token.Value{Pos: token.MakePos(s.line, s.col)}

	switch {
	case s.cur == eof:
		return token.EOF

	case s.cur == '"':
		return s.scanString(v)

	case selfDelim(s.cur):
		r := s.cur
		v.Raw = string(r)
		s.advance()
		switch r {
		case '(':
			return token.LPAREN
		case ')':
			return token.RPAREN
		case '[':
			return token.LBRACK
		case ']':
			return token.RBRACK
		case '{':
			return token.LBRACE
		case '}':
			return token.RBRACE
		case ';':
			return token.SEMI
		}
		return token.ILLEGAL
	}

	// a chunk: everything up to whitespace or a self-delimiting character
	start := s.off
	for s.cur != eof && !isSpace(s.cur) && !selfDelim(s.cur) && s.cur != '#' {
		s.advance()
	}
	chunk := string(s.src[start:s.off])
	v.Raw = chunk

	switch chunk {
	case ":":
		return token.COLON
	case "->":
		return token.ARROW
	case "--":
		return token.DASHDASH
	}

	if strings.HasPrefix(chunk, ":") && len(chunk) > 1 {
		v.String = chunk[1:]
		return token.SYMBOL
	}

	if n, err := strconv.ParseInt(chunk, 10, 64); err == nil {
		v.Int = n
		return token.INT
	}
	if f, err := strconv.ParseFloat(chunk, 64); err == nil && looksNumeric(chunk) {
		v.Float = f
		return token.FLOAT
	}

	if tok := token.LookupKw(chunk); tok != token.IDENT {
		return tok
	}

	v.String = chunk
	return token.IDENT
}

// looksNumeric guards against words like "nan" or "e1" being classified as
// floats: a numeric chunk must start with a digit, or a sign followed by a
// digit.
func looksNumeric(chunk string) bool {
	if chunk == "" {
		return false
	}
	c := chunk[0]
	if c == '+' || c == '-' {
		if len(chunk) == 1 {
			return false
		}
		c = chunk[1]
	}
	return c >= '0' && c <= '9'
}

func (s *Scanner) scanString(v *token.Value) token.Token {
	line, col := s.line, s.col
	s.advance() // consume opening quote

	var sb strings.Builder
	for {
		switch s.cur {
		case eof, '\n':
			s.errorf(line, col, "unterminated string literal")
			v.String = sb.String()
			return token.STRING
		case '"':
			s.advance()
			v.String = sb.String()
			return token.STRING
		case '\\':
			s.advance()
			switch s.cur {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case '0':
				sb.WriteByte(0)
			default:
				s.errorf(s.line, s.col, "invalid escape sequence \\%c", s.cur)
				sb.WriteRune(s.cur)
			}
			s.advance()
		default:
			sb.WriteRune(s.cur)
			s.advance()
		}
	}
}
