package sii

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/scs-forge/pkg/encoding"
)

// Reporter receives recoverable problems found while reading.
type Reporter interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(string, ...any)  {}
func (nopReporter) Errorf(string, ...any) {}

// Header is the optional wrapper around the units of an SII file.
const Header = "SiiNunit"

// SUI input yields one synthetic unit with this type and name.
const (
	SUIType = "sui"
	SUIName = ".sui"
)

// Options tune a parse.
type Options struct {
	// IncludeDirs are searched in order for @include targets not found
	// next to the including file.
	IncludeDirs []string
	// Lookup overrides the IncludeDirs search, e.g. with a cached
	// resolver. It receives the reference without a leading slash.
	Lookup func(ref string) (string, bool)
	// SUI parses headerless property content. Files ending in .sui
	// switch this on automatically.
	SUI    bool
	Report Reporter
}

func (o Options) lookup() func(string) (string, bool) {
	if o.Lookup != nil {
		return o.Lookup
	}
	dirs := o.IncludeDirs
	return func(ref string) (string, bool) {
		for _, d := range dirs {
			p := filepath.Join(d, filepath.FromSlash(ref))
			if fileExists(p) {
				return p, true
			}
		}
		return "", false
	}
}

// ParseFile reads an SII or SUI file with its includes.
func ParseFile(path string, opts Options) ([]*Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".sui") {
		opts.SUI = true
	}
	return Parse(f, path, opts)
}

// Parse reads units from r. name locates the input for relative
// includes and messages. Syntax problems are reported and the offending
// unit or property skipped; only read failures return an error.
func Parse(r io.Reader, name string, opts Options) ([]*Unit, error) {
	if opts.Report == nil {
		opts.Report = nopReporter{}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, name, err)
	}
	text, err := encoding.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, name, err)
	}

	p := &parser{lex: newLexer(text, name, opts.lookup(), opts.Report), report: opts.Report}
	var units []*Unit
	if opts.SUI {
		u := &Unit{Type: SUIType, Name: SUIName}
		p.props(u, false)
		units = []*Unit{u}
	} else {
		units = p.file()
	}
	if err := p.lex.Err(); err != nil {
		return units, err
	}
	return units, nil
}

type parser struct {
	lex    *Lexer
	report Reporter
}

func (p *parser) errorf(t Token, format string, args ...any) {
	p.report.Errorf("%s: %s", t.pos(), fmt.Sprintf(format, args...))
}

func (p *parser) file() []*Unit {
	var units []*Unit
	wrapped := false
	if t := p.lex.Peek(); t.is(TokIdent, Header) {
		p.lex.Next()
		if open := p.lex.Next(); !open.is(TokChar, "{") {
			p.errorf(open, "expected '{' after %s", Header)
		} else {
			wrapped = true
		}
	}

	for {
		t := p.lex.Peek()
		switch {
		case t.Kind == TokEOF || t.Kind == TokErr:
			if wrapped {
				p.errorf(t, "%s not closed", Header)
			}
			return units
		case wrapped && t.is(TokChar, "}"):
			p.lex.Next()
			if rest := p.lex.Peek(); rest.Kind == TokIdent || rest.Kind == TokChar {
				p.report.Warnf("%s: content after %s ignored", rest.pos(), Header)
			}
			return units
		case t.Kind == TokIdent:
			if u := p.unit(); u != nil {
				units = append(units, u)
			}
		default:
			p.lex.Next()
			p.errorf(t, "unexpected %s %q", t.Kind, t.Text)
		}
	}
}

// unit parses "type : name { props }".
func (p *parser) unit() *Unit {
	typ := p.lex.Next()
	colon := p.lex.Next()
	if !colon.is(TokChar, ":") {
		return p.recoverUnit(typ, colon)
	}
	name := p.lex.Next()
	if name.Kind != TokIdent {
		return p.recoverUnit(typ, name)
	}
	open := p.lex.Next()
	if !open.is(TokChar, "{") {
		return p.recoverUnit(typ, open)
	}
	u := &Unit{Type: typ.Text, Name: name.Text}
	p.props(u, true)
	return u
}

// recoverUnit reports a malformed header and skips the unit body, if
// one follows. A closing brace is left for the enclosing wrapper.
func (p *parser) recoverUnit(typ, last Token) *Unit {
	p.errorf(typ, "malformed unit header at %q", last.Text)
	switch {
	case last.is(TokChar, "{"):
		p.skipBlock()
		return nil
	case last.is(TokChar, "}"):
		p.lex.unread(last)
		return nil
	}
	for {
		t := p.lex.Peek()
		switch {
		case t.Kind == TokEOF || t.Kind == TokErr || t.is(TokChar, "}"):
			return nil
		case t.is(TokChar, "{"):
			p.lex.Next()
			p.skipBlock()
			return nil
		}
		p.lex.Next()
	}
}

// props reads properties until '}' (inUnit) or end of input.
func (p *parser) props(u *Unit, inUnit bool) {
	for {
		t := p.lex.Next()
		switch {
		case t.Kind == TokEOF || t.Kind == TokErr:
			if inUnit {
				p.errorf(t, "unit %s not closed", u.Name)
			}
			return
		case inUnit && t.is(TokChar, "}"):
			return
		case t.Kind == TokIdent:
			if colon := p.lex.Next(); !colon.is(TokChar, ":") {
				p.errorf(colon, "expected ':' after %q", t.Text)
				if inUnit && colon.is(TokChar, "}") {
					return
				}
				continue
			}
			v, ok := p.value()
			if !ok {
				continue
			}
			p.assign(u, t, v)
		default:
			p.errorf(t, "unexpected %s %q in unit %s", t.Kind, t.Text, u.Name)
		}
	}
}

func (p *parser) assign(u *Unit, key Token, v Value) {
	name, index, err := splitKey(key.Text)
	if err != nil {
		p.errorf(key, "%v", err)
		return
	}
	switch {
	case index == -2:
		u.Set(name, v)
	case index == -1:
		u.Append(name, v)
	default:
		u.SetIndex(name, index, v)
	}
}

func (p *parser) value() (Value, bool) {
	t := p.lex.Next()
	switch {
	case t.Kind == TokString:
		return String(t.Text), true
	case t.Kind == TokIdent:
		return Ident(t.Text), true
	case t.is(TokChar, "("):
		var items []Value
		for {
			n := p.lex.Peek()
			switch {
			case n.is(TokChar, ")"):
				p.lex.Next()
				return Tuple(items...), true
			case n.is(TokChar, ","):
				p.lex.Next()
			case n.Kind == TokIdent || n.Kind == TokString || n.is(TokChar, "("):
				v, ok := p.value()
				if !ok {
					return Value{}, false
				}
				items = append(items, v)
			default:
				p.errorf(n, "unterminated tuple")
				return Value{}, false
			}
		}
	}
	p.errorf(t, "expected value, got %s %q", t.Kind, t.Text)
	return Value{}, false
}

// skipBlock consumes tokens through the '}' closing the current block.
func (p *parser) skipBlock() {
	depth := 1
	for depth > 0 {
		t := p.lex.Next()
		switch {
		case t.Kind == TokEOF || t.Kind == TokErr:
			return
		case t.is(TokChar, "{"):
			depth++
		case t.is(TokChar, "}"):
			depth--
		}
	}
}
