package pix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

var (
	// ErrWrite wraps failures to create or write an output file.
	ErrWrite = errors.New("pix write failed")
	// ErrNonFinite is returned for NaN or infinite decimal floats, which
	// would read back as names. Hex floats keep their bits and are allowed.
	ErrNonFinite = errors.New("non-finite float")
)

// DefaultIndent is four spaces.
const DefaultIndent = "    "

// Write serialises sections to w. Each top-level section starts in
// column 0 and children are indented by indent per depth.
func Write(w io.Writer, sections []*Section, indent string) error {
	for _, s := range sections {
		if err := checkFinite(s); err != nil {
			return err
		}
	}
	bw := bufio.NewWriter(w)
	for _, s := range sections {
		writeSection(bw, s, 0, indent)
	}
	return bw.Flush()
}

// WriteFile writes sections to path. The file is closed before
// returning, on success and on failure.
func WriteFile(path string, sections []*Section, indent string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrWrite, cerr)
		}
	}()
	if err := Write(f, sections, indent); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

// Format returns the text of sections as Write would produce it.
func Format(sections []*Section, indent string) string {
	var b strings.Builder
	_ = Write(&b, sections, indent)
	return b.String()
}

func checkFinite(s *Section) error {
	for _, p := range s.Props {
		if !finite(p.Value) {
			return fmt.Errorf("%w: %s.%s", ErrNonFinite, s.Type, p.Key)
		}
	}
	for _, r := range s.Rows {
		for _, v := range r.Values {
			if !finite(v) {
				return fmt.Errorf("%w: %s row %d", ErrNonFinite, s.Type, r.Index)
			}
		}
		for _, f := range r.Fields {
			if !finite(f.Value) {
				return fmt.Errorf("%w: %s row %d %s", ErrNonFinite, s.Type, r.Index, f.Key)
			}
		}
	}
	for _, c := range s.Sections {
		if err := checkFinite(c); err != nil {
			return err
		}
	}
	return nil
}

func finite(v Value) bool {
	if v.Kind == KindFloat {
		f := float64(v.Float)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	for _, it := range v.Items {
		if !finite(it) {
			return false
		}
	}
	return true
}

func writeSection(w *bufio.Writer, s *Section, depth int, indent string) {
	pad := strings.Repeat(indent, depth)
	inner := pad + indent

	w.WriteString(pad)
	w.WriteString(s.Type)
	w.WriteString(" {\n")

	for _, p := range s.Props {
		switch {
		case p.IsBlank():
			w.WriteByte('\n')
		case p.IsComment():
			w.WriteString(inner)
			w.WriteString("# ")
			w.WriteString(p.Value.Str)
			w.WriteByte('\n')
		default:
			w.WriteString(inner)
			w.WriteString(p.Key)
			w.WriteString(": ")
			w.WriteString(p.Value.Format())
			w.WriteByte('\n')
		}
	}

	for _, r := range s.Rows {
		writeRow(w, r, inner)
	}

	for _, c := range s.Sections {
		writeSection(w, c, depth+1, indent)
	}

	w.WriteString(pad)
	w.WriteString("}\n")
}

// writeRow emits INDEX( values ) with optional wrapping and one line per
// named field.
func writeRow(w *bufio.Writer, r Row, pad string) {
	head := strconv.Itoa(r.Index) + "("
	cont := pad + strings.Repeat(" ", len(head))

	w.WriteString(pad)
	w.WriteString(head)

	col := 0
	for _, v := range r.Values {
		col = writeRowValue(w, v, r.Wrap, cont, col)
	}
	for i, f := range r.Fields {
		if i > 0 || len(r.Values) > 0 {
			w.WriteByte('\n')
			w.WriteString(cont)
		} else {
			w.WriteByte(' ')
		}
		w.WriteString(f.Key)
		w.WriteString(": ")
		writeWrapped(w, f.Value, r.Wrap, cont+strings.Repeat(" ", len(f.Key)+2))
	}
	w.WriteString(" )\n")
}

// writeRowValue writes a leading row value, breaking the line every wrap
// scalars. col counts scalars already written on the row.
func writeRowValue(w *bufio.Writer, v Value, wrap int, cont string, col int) int {
	if v.Kind == KindTuple && wrap > 0 && len(v.Items) > wrap {
		w.WriteByte(' ')
		writeWrapped(w, v, wrap, cont+"  ")
		return col + 1
	}
	if wrap > 0 && col > 0 && col%wrap == 0 {
		w.WriteByte('\n')
		w.WriteString(cont)
	} else {
		w.WriteByte(' ')
	}
	w.WriteString(v.Format())
	return col + 1
}

// writeWrapped writes a tuple with a line break every wrap items.
func writeWrapped(w *bufio.Writer, v Value, wrap int, cont string) {
	if v.Kind != KindTuple || wrap <= 0 || len(v.Items) <= wrap {
		w.WriteString(v.Format())
		return
	}
	w.WriteByte('(')
	for i, it := range v.Items {
		if i > 0 && i%wrap == 0 {
			w.WriteByte('\n')
			w.WriteString(cont)
		} else {
			w.WriteByte(' ')
		}
		w.WriteString(it.Format())
	}
	w.WriteString(" )")
}
