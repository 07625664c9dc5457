package pix

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// PIX read errors.
var (
	ErrRead   = errors.New("pix read failed")
	ErrFormat = errors.New("malformed pix data")
)

// Reporter receives recoverable problems found while reading. The logger
// stack satisfies it.
type Reporter interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(string, ...any)  {}
func (nopReporter) Errorf(string, ...any) {}

// Options tune a read.
type Options struct {
	// Name is used in messages, usually the file path.
	Name string
	// Report receives warnings and format errors. May be nil.
	Report Reporter
	// Progress is called every few hundred lines with the current line.
	Progress func(line int)
}

const progressEvery = 512

type parser struct {
	tok      *Tokenizer
	opts     Options
	nextProg int
}

// Parse reads all top-level sections from r. Format problems are
// reported and skipped; only I/O and encoding failures return an error.
func Parse(r io.Reader, opts Options) ([]*Section, error) {
	if opts.Report == nil {
		opts.Report = nopReporter{}
	}
	p := &parser{opts: opts, nextProg: progressEvery}
	p.tok = NewTokenizer(r, func(line int, msg string) {
		opts.Report.Warnf("%s:%d: %s", opts.Name, line, msg)
	})

	var sections []*Section
	for {
		t := p.next()
		switch t.Kind {
		case TokEOF:
			return sections, nil
		case TokErr:
			return sections, fmt.Errorf("%w: %s line %d: %v", ErrRead, opts.Name, t.Line, p.tok.Err())
		case TokBlank, TokComment:
		case TokIdent:
			if p.tok.Peek().Kind != TokLBrace {
				p.warnf(t.Line, "expected '{' after %q", t.Text)
				continue
			}
			p.next()
			s, err := p.section(t.Text)
			if s != nil {
				sections = append(sections, s)
			}
			if err != nil {
				return sections, err
			}
		default:
			p.warnf(t.Line, "unexpected %s at top level", t.Kind)
		}
	}
}

// ReadFile parses a PIX file from disk.
func ReadFile(path string, opts Options) ([]*Section, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()
	if opts.Name == "" {
		opts.Name = path
	}
	return Parse(f, opts)
}

func (p *parser) next() Token {
	t := p.tok.Next()
	if p.opts.Progress != nil && t.Line >= p.nextProg {
		p.opts.Progress(t.Line)
		p.nextProg = t.Line + progressEvery
	}
	return t
}

func (p *parser) warnf(line int, format string, args ...any) {
	p.opts.Report.Warnf("%s:%d: %s", p.opts.Name, line, fmt.Sprintf(format, args...))
}

func (p *parser) errorf(line int, format string, args ...any) {
	p.opts.Report.Errorf("%s:%d: %s", p.opts.Name, line, fmt.Sprintf(format, args...))
}

// section parses the body after "Type {".
func (p *parser) section(typ string) (*Section, error) {
	s := NewSection(typ)
	for {
		t := p.next()
		switch t.Kind {
		case TokRBrace:
			return s, nil
		case TokEOF:
			p.errorf(t.Line, "section %q not terminated", typ)
			return s, nil
		case TokErr:
			return s, fmt.Errorf("%w: %s line %d: %v", ErrRead, p.opts.Name, t.Line, p.tok.Err())
		case TokBlank:
			s.AddBlank()
		case TokComment:
			s.AddComment(t.Text)
		case TokIdent:
			switch p.tok.Peek().Kind {
			case TokColon:
				p.next()
				v, err := p.propertyValue(t.Line)
				if err != nil {
					return s, err
				}
				s.Add(t.Text, v)
			case TokLBrace:
				p.next()
				child, err := p.section(t.Text)
				if child != nil {
					s.AddSection(child)
				}
				if err != nil {
					return s, err
				}
			default:
				p.warnf(t.Line, "skipping %q: expected ':' or '{'", t.Text)
			}
		case TokInt:
			if p.tok.Peek().Kind != TokLParen {
				p.warnf(t.Line, "skipping stray number %s", t.Text)
				continue
			}
			p.next()
			row, err := p.row(t)
			if err != nil {
				return s, err
			}
			if row.Index != len(s.Rows) {
				p.warnf(t.Line, "discarding row %d in %q: expected index %d", row.Index, typ, len(s.Rows))
				continue
			}
			s.Rows = append(s.Rows, row)
		default:
			p.warnf(t.Line, "unexpected %s in section %q", t.Kind, typ)
		}
	}
}

// propertyValue reads what follows "Key:" on the same line. Several
// scalars become a list; a parenthesis opens a tuple that may span lines.
func (p *parser) propertyValue(line int) (Value, error) {
	var items []Value
	for {
		t := p.tok.Peek()
		if t.Line != line || t.Kind == TokEOF || t.Kind == TokErr {
			break
		}
		if t.Kind == TokLParen {
			p.next()
			v, err := p.tuple()
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
			continue
		}
		if !t.IsScalar() {
			break
		}
		p.next()
		items = append(items, p.scalar(t))
	}
	switch len(items) {
	case 0:
		return Name(""), nil
	case 1:
		return items[0], nil
	}
	return List(items...), nil
}

// tuple reads the items after "(" up to the matching ")".
func (p *parser) tuple() (Value, error) {
	var items []Value
	for {
		t := p.next()
		switch {
		case t.Kind == TokRParen:
			return Tuple(items...), nil
		case t.Kind == TokLParen:
			v, err := p.tuple()
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		case t.IsScalar():
			items = append(items, p.scalar(t))
		case t.Kind == TokComma || t.Kind == TokBlank || t.Kind == TokComment:
		case t.Kind == TokEOF:
			p.errorf(t.Line, "tuple not terminated")
			return Tuple(items...), nil
		case t.Kind == TokErr:
			return Value{}, fmt.Errorf("%w: %s line %d: %v", ErrRead, p.opts.Name, t.Line, p.tok.Err())
		default:
			p.warnf(t.Line, "unexpected %s in tuple", t.Kind)
		}
	}
}

// row reads "INDEX( ... )" after the opening parenthesis.
func (p *parser) row(index Token) (Row, error) {
	n, err := strconv.Atoi(index.Text)
	if err != nil {
		p.warnf(index.Line, "bad row index %q", index.Text)
		n = -1
	}
	r := Row{Index: n}

	var field *Property
	var fieldItems []Value
	flush := func() {
		if field == nil {
			return
		}
		switch len(fieldItems) {
		case 0:
			field.Value = Name("")
		case 1:
			field.Value = fieldItems[0]
		default:
			field.Value = List(fieldItems...)
		}
		r.Fields = append(r.Fields, *field)
		field, fieldItems = nil, nil
	}
	add := func(v Value) {
		if field != nil {
			fieldItems = append(fieldItems, v)
		} else {
			r.Values = append(r.Values, v)
		}
	}

	for {
		t := p.next()
		switch {
		case t.Kind == TokRParen:
			flush()
			return r, nil
		case t.Kind == TokIdent && p.tok.Peek().Kind == TokColon:
			p.next()
			flush()
			field = &Property{Key: t.Text}
		case t.Kind == TokLParen:
			v, err := p.tuple()
			if err != nil {
				return r, err
			}
			add(v)
		case t.IsScalar():
			add(p.scalar(t))
		case t.Kind == TokComma || t.Kind == TokBlank || t.Kind == TokComment:
		case t.Kind == TokEOF:
			p.errorf(t.Line, "row %d not terminated", n)
			flush()
			return r, nil
		case t.Kind == TokErr:
			return r, fmt.Errorf("%w: %s line %d: %v", ErrRead, p.opts.Name, t.Line, p.tok.Err())
		default:
			p.warnf(t.Line, "unexpected %s in row %d", t.Kind, n)
		}
	}
}

func (p *parser) scalar(t Token) Value {
	switch t.Kind {
	case TokString:
		return String(t.Text)
	case TokInt:
		i, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			p.warnf(t.Line, "bad integer %q", t.Text)
			return Name(t.Text)
		}
		return Value{Kind: KindInt, Int: i}
	case TokFloat:
		f, err := strconv.ParseFloat(t.Text, 32)
		if err != nil {
			p.warnf(t.Line, "bad float %q", t.Text)
			return Name(t.Text)
		}
		return Float(float32(f))
	case TokHex:
		f, err := ParseHex(t.Text)
		if err != nil {
			p.warnf(t.Line, "%v", err)
			return Name(t.Text)
		}
		return Hex(f)
	}
	return Name(t.Text)
}
