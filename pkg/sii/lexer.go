// Package sii reads and writes the SII unit format and its headerless
// SUI fragments.
package sii

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/scs-forge/pkg/encoding"
)

// SII errors.
var (
	ErrRead   = errors.New("sii read failed")
	ErrSyntax = errors.New("sii syntax error")
)

// MaxIncludeDepth bounds nested @include directives.
const MaxIncludeDepth = 32

// TokenKind classifies a lexer token.
type TokenKind uint8

const (
	TokEOF TokenKind = iota
	TokErr
	TokIdent
	TokString
	TokChar
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokErr:
		return "ERR"
	case TokIdent:
		return "ident"
	case TokString:
		return "string"
	case TokChar:
		return "char"
	}
	return fmt.Sprintf("token(%d)", k)
}

// Token is one lexical element. File and Line locate it after include
// expansion.
type Token struct {
	Kind TokenKind
	Text string
	File string
	Line int
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

func (t Token) pos() string {
	return fmt.Sprintf("%s:%d", t.File, t.Line)
}

// frame is one open input on the include stack.
type frame struct {
	path  string
	dir   string
	lines []string
	next  int
}

// Lexer is a pull-based tokenizer that expands @include lines in place.
type Lexer struct {
	stack   []*frame
	pending []Token
	lookup  func(ref string) (string, bool)
	report  Reporter
	inBlock bool
	err     error
	last    Token
}

func newLexer(text, path string, lookup func(string) (string, bool), report Reporter) *Lexer {
	l := &Lexer{lookup: lookup, report: report}
	l.push(text, path)
	return l
}

func (l *Lexer) push(text, path string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	l.stack = append(l.stack, &frame{
		path:  path,
		dir:   filepath.Dir(path),
		lines: strings.Split(text, "\n"),
	})
}

// Err returns the error behind a TokErr.
func (l *Lexer) Err() error { return l.err }

// Next returns the next token, reading through included files.
func (l *Lexer) Next() Token {
	for len(l.pending) == 0 {
		if l.err != nil {
			return Token{Kind: TokErr, File: l.last.File, Line: l.last.Line}
		}
		if len(l.stack) == 0 {
			return Token{Kind: TokEOF, File: l.last.File, Line: l.last.Line}
		}
		f := l.stack[len(l.stack)-1]
		if f.next >= len(f.lines) {
			l.stack = l.stack[:len(l.stack)-1]
			continue
		}
		line := f.lines[f.next]
		f.next++
		l.lexLine(f, line)
	}
	t := l.pending[0]
	l.pending = l.pending[1:]
	l.last = t
	return t
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() Token {
	t := l.Next()
	if t.Kind != TokEOF && t.Kind != TokErr {
		l.unread(t)
	}
	return t
}

func (l *Lexer) unread(t Token) {
	l.pending = append([]Token{t}, l.pending...)
}

func (l *Lexer) emit(f *frame, kind TokenKind, text string) {
	l.pending = append(l.pending, Token{Kind: kind, Text: text, File: f.path, Line: f.next})
}

func (l *Lexer) lexLine(f *frame, s string) {
	if l.inBlock {
		end := strings.Index(s, "*/")
		if end < 0 {
			return
		}
		l.inBlock = false
		s = s[end+2:]
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "@include") {
		l.include(f, strings.TrimSpace(strings.TrimPrefix(trimmed, "@include")))
		return
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			return
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			return
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				l.inBlock = true
				return
			}
			i += end + 4
		case c == '"':
			j := i + 1
			var b strings.Builder
			for j < len(s) && s[j] != '"' {
				if s[j] == '\\' && j+1 < len(s) {
					j++
				}
				b.WriteByte(s[j])
				j++
			}
			if j >= len(s) {
				l.report.Errorf("%s:%d: unterminated string", f.path, f.next)
				return
			}
			l.emit(f, TokString, b.String())
			i = j + 1
		case strings.IndexByte("{}:(),", c) >= 0:
			l.emit(f, TokChar, string(c))
			i++
		case isIdentChar(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			l.emit(f, TokIdent, s[i:j])
			i = j
		default:
			l.report.Warnf("%s:%d: unexpected character %q", f.path, f.next, c)
			i++
		}
	}
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_.-+&[]/|", c) >= 0
}

// include resolves and pushes an @include target. Missing files are a
// warning; cycles and excessive depth are errors. Both skip the include.
func (l *Lexer) include(f *frame, arg string) {
	if len(arg) < 3 || arg[0] != '"' || arg[len(arg)-1] != '"' {
		l.report.Errorf("%s:%d: malformed @include %s", f.path, f.next, arg)
		return
	}
	ref := arg[1 : len(arg)-1]
	path, ok := l.resolve(f.dir, ref)
	if !ok {
		l.report.Warnf("%s:%d: include %q not found", f.path, f.next, ref)
		return
	}
	if len(l.stack) >= MaxIncludeDepth {
		l.report.Errorf("%s:%d: include depth exceeds %d at %q", f.path, f.next, MaxIncludeDepth, ref)
		return
	}
	abs, _ := filepath.Abs(path)
	for _, open := range l.stack {
		if a, _ := filepath.Abs(open.path); a == abs {
			l.report.Errorf("%s:%d: include cycle through %q", f.path, f.next, ref)
			return
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		l.report.Warnf("%s:%d: include %q: %v", f.path, f.next, ref, err)
		return
	}
	text, err := encoding.Decode(data)
	if err != nil {
		l.err = fmt.Errorf("%w: %s: %v", ErrRead, path, err)
		return
	}
	l.push(text, path)
}

// resolve looks for ref next to the including file first, then in the
// include search list.
func (l *Lexer) resolve(dir, ref string) (string, bool) {
	rel := strings.TrimPrefix(ref, "/")
	if rel == ref {
		candidate := filepath.Join(dir, filepath.FromSlash(rel))
		if fileExists(candidate) {
			return candidate, true
		}
	}
	if l.lookup != nil {
		return l.lookup(rel)
	}
	return "", false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
