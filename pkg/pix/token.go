package pix

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Faultbox/scs-forge/pkg/encoding"
)

// TokenKind classifies a token.
type TokenKind uint8

const (
	TokEOF TokenKind = iota
	TokErr
	TokIdent
	TokColon
	TokComma
	TokLBrace
	TokRBrace
	TokLParen
	TokRParen
	TokString
	TokInt
	TokFloat
	TokHex
	TokComment
	TokBlank
)

var tokenNames = [...]string{
	TokEOF:     "EOF",
	TokErr:     "ERR",
	TokIdent:   "ident",
	TokColon:   "':'",
	TokComma:   "','",
	TokLBrace:  "'{'",
	TokRBrace:  "'}'",
	TokLParen:  "'('",
	TokRParen:  "')'",
	TokString:  "string",
	TokInt:     "int",
	TokFloat:   "float",
	TokHex:     "hex",
	TokComment: "comment",
	TokBlank:   "blank",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("token(%d)", k)
}

// Token is one lexical element with the line it started on.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// IsScalar reports whether the token is a single value.
func (t Token) IsScalar() bool {
	switch t.Kind {
	case TokIdent, TokString, TokInt, TokFloat, TokHex:
		return true
	}
	return false
}

// Tokenizer is a pull-based lexer over line-oriented PIX text.
type Tokenizer struct {
	sc      *bufio.Scanner
	line    int
	pending []Token
	err     error
	warn    func(line int, msg string)
}

// NewTokenizer reads r, decoding a BOM and validating UTF-8. warn may be
// nil; it receives recoverable lexical problems.
func NewTokenizer(r io.Reader, warn func(line int, msg string)) *Tokenizer {
	sc := bufio.NewScanner(encoding.NewReader(r))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if warn == nil {
		warn = func(int, string) {}
	}
	return &Tokenizer{sc: sc, warn: warn}
}

// Line returns the number of lines consumed so far.
func (t *Tokenizer) Line() int { return t.line }

// Err returns the I/O or encoding error behind a TokErr.
func (t *Tokenizer) Err() error { return t.err }

// Next returns the next token.
func (t *Tokenizer) Next() Token {
	for len(t.pending) == 0 {
		if t.err != nil {
			return Token{Kind: TokErr, Line: t.line}
		}
		if !t.sc.Scan() {
			if err := t.sc.Err(); err != nil {
				t.err = err
				return Token{Kind: TokErr, Line: t.line}
			}
			return Token{Kind: TokEOF, Line: t.line}
		}
		t.line++
		t.lexLine(t.sc.Text())
	}
	tok := t.pending[0]
	t.pending = t.pending[1:]
	return tok
}

// Peek returns the next token without consuming it.
func (t *Tokenizer) Peek() Token {
	tok := t.Next()
	if tok.Kind != TokEOF && tok.Kind != TokErr {
		t.pending = append([]Token{tok}, t.pending...)
	}
	return tok
}

func (t *Tokenizer) emit(kind TokenKind, text string) {
	t.pending = append(t.pending, Token{Kind: kind, Text: text, Line: t.line})
}

func (t *Tokenizer) lexLine(s string) {
	s = strings.TrimRight(s, "\r")
	if strings.TrimSpace(s) == "" {
		t.emit(TokBlank, "")
		return
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			t.emit(TokComment, strings.TrimSpace(s[i+1:]))
			return
		case c == '{':
			t.emit(TokLBrace, "{")
			i++
		case c == '}':
			t.emit(TokRBrace, "}")
			i++
		case c == '(':
			t.emit(TokLParen, "(")
			i++
		case c == ')':
			t.emit(TokRParen, ")")
			i++
		case c == ':':
			t.emit(TokColon, ":")
			i++
		case c == ',':
			t.emit(TokComma, ",")
			i++
		case c == '"':
			text, n, ok := lexString(s[i+1:])
			if !ok {
				t.warn(t.line, "unterminated string")
				return
			}
			t.emit(TokString, text)
			i += n + 1
		case c == '&':
			j := i + 1
			for j < len(s) && isHexDigit(s[j]) {
				j++
			}
			if j-i-1 != 8 {
				t.warn(t.line, fmt.Sprintf("malformed hex float %q", s[i:j]))
			} else {
				t.emit(TokHex, s[i:j])
			}
			i = j
		case isNumberStart(c):
			j := i + 1
			for j < len(s) && isNumberChar(s[j]) {
				j++
			}
			text := s[i:j]
			if strings.ContainsAny(text, ".eE") {
				t.emit(TokFloat, text)
			} else {
				t.emit(TokInt, text)
			}
			i = j
		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			t.emit(TokIdent, s[i:j])
			i = j
		default:
			t.warn(t.line, fmt.Sprintf("unexpected character %q", c))
			i++
		}
	}
}

// lexString reads a quoted string body up to the closing quote and
// returns its text and the number of bytes consumed, quote included.
// \", \\ and \n are unescaped; any other backslash is kept as is.
func lexString(s string) (string, int, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			return b.String(), i + 1, true
		case c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\'):
			b.WriteByte(s[i+1])
			i++
		case c == '\\' && i+1 < len(s) && s[i+1] == 'n':
			b.WriteByte('\n')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func isNumberChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '-' || c == '+'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '[' || c == ']'
}
