package sii

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// ErrWrite wraps output failures.
var ErrWrite = errors.New("sii write failed")

// Write emits units wrapped in SiiNunit.
func Write(w io.Writer, units []*Unit) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(Header + "\n{\n")
	for _, u := range units {
		fmt.Fprintf(bw, "%s : %s\n{\n", u.Type, u.Name)
		writeProps(bw, u.Props, "\t")
		bw.WriteString("}\n\n")
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

// WriteSUI emits the properties of u without any wrapper.
func WriteSUI(w io.Writer, u *Unit) error {
	bw := bufio.NewWriter(w)
	writeProps(bw, u.Props, "")
	return bw.Flush()
}

// WriteFile writes units to path.
func WriteFile(path string, units []*Unit) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrWrite, cerr)
		}
	}()
	if err := Write(f, units); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

func writeProps(w *bufio.Writer, props []Property, indent string) {
	for _, p := range props {
		if p.Value.Kind != KindArray {
			fmt.Fprintf(w, "%s%s: %s\n", indent, p.Key, p.Value.Format())
			continue
		}
		n := len(p.Value.Items)
		if p.Value.Count >= 0 {
			n = p.Value.Count
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, p.Key, strconv.Itoa(n))
		for i, it := range p.Value.Items {
			if it.Kind == KindToken && it.Text == "" {
				continue
			}
			fmt.Fprintf(w, "%s%s[%d]: %s\n", indent, p.Key, i, it.Format())
		}
	}
}
