package tobj

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Faultbox/scs-forge/pkg/encoding"
)

// Reporter receives skipped tokens and other recoverable problems.
type Reporter interface {
	Warnf(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(string, ...any) {}

// Parse reads a descriptor. Unknown tokens set the boolean flag of the
// same name when there is one and are otherwise reported and skipped.
// The result is not validated.
func Parse(r io.Reader, report Reporter) (*Descriptor, error) {
	if report == nil {
		report = nopReporter{}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	text, err := encoding.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	tokens := strings.Fields(text)
	d := &Descriptor{}
	i := 0
	next := func() (string, bool) {
		if i >= len(tokens) {
			return "", false
		}
		i++
		return tokens[i-1], true
	}
	// take consumes up to n tokens accepted by ok.
	take := func(n int, ok func(string) bool) []string {
		var out []string
		for len(out) < n && i < len(tokens) && ok(tokens[i]) {
			out = append(out, tokens[i])
			i++
		}
		return out
	}

	for i < len(tokens) {
		tok, _ := next()
		switch tok {
		case "map":
			t, ok := next()
			if !ok {
				report.Warnf("map without type")
				continue
			}
			d.MapType = MapType(t)
			d.Textures = take(d.MapType.TextureCount(), func(s string) bool { return !isKeyword(s) })
		case "addr":
			n := d.MapType.AddrCount()
			if n == 0 {
				n = 3
			}
			for _, a := range take(n, isAddrMode) {
				d.Addr = append(d.Addr, AddrMode(a))
			}
		case "bias":
			t, _ := next()
			b, err := strconv.Atoi(t)
			if err != nil {
				report.Warnf("bad bias %q", t)
				continue
			}
			d.HasBias, d.Bias = true, b
		case "filter":
			f := take(2, func(string) bool { return true })
			if len(f) != 2 {
				report.Warnf("filter needs two values")
				continue
			}
			d.MagFilter, d.MinFilter = Filter(f[0]), Filter(f[1])
		case "target":
			t, _ := next()
			d.Target = MapType(t)
		case "border_color":
			vals := take(4, isNumber)
			if len(vals) != 4 {
				report.Warnf("border_color needs four numbers")
				continue
			}
			var c [4]float32
			for k, v := range vals {
				f, _ := strconv.ParseFloat(v, 32)
				c[k] = float32(f)
			}
			d.BorderColor = &c
		case "color_space":
			t, _ := next()
			d.ColorSpace = ColorSpace(t)
		case "usage":
			t, _ := next()
			d.Usage = Usage(t)
		default:
			if p := d.flag(tok); p != nil {
				*p = true
				continue
			}
			report.Warnf("unknown token %q skipped", tok)
		}
	}
	return d, nil
}

// ReadFile parses a descriptor from disk.
func ReadFile(path string, report Reporter) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()
	return Parse(f, report)
}

var keywords = map[string]bool{
	"map": true, "addr": true, "bias": true, "filter": true, "target": true,
	"border_color": true, "color_space": true, "usage": true,
	"nomips": true, "trilinear": true, "noanisotropic": true, "nocompress": true,
	"transparent": true, "black_border": true,
}

func isKeyword(s string) bool { return keywords[s] }

func isAddrMode(s string) bool {
	for _, a := range addrModes {
		if string(a) == s {
			return true
		}
	}
	return false
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Write emits the descriptor in fixed attribute order. Cube maps put
// each texture on its own tab-indented line; 3d and cube address modes
// are newline separated.
func Write(w io.Writer, d *Descriptor) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("map\t" + string(d.MapType))
	if d.MapType == MapCube {
		for _, t := range d.Textures {
			bw.WriteString("\n\t" + t)
		}
	} else {
		for _, t := range d.Textures {
			bw.WriteString("\t" + t)
		}
	}
	bw.WriteByte('\n')

	if len(d.Addr) > 0 {
		bw.WriteString("addr")
		sep := "\t"
		if d.MapType == Map3D || d.MapType == MapCube {
			sep = "\n\t"
		}
		for _, a := range d.Addr {
			bw.WriteString(sep + string(a))
		}
		bw.WriteByte('\n')
	}
	if d.HasBias {
		fmt.Fprintf(bw, "bias\t%d\n", d.Bias)
	}
	if d.MagFilter != "" && d.MinFilter != "" {
		fmt.Fprintf(bw, "filter\t%s\t%s\n", d.MagFilter, d.MinFilter)
	}
	if d.Target != "" {
		fmt.Fprintf(bw, "target\t%s\n", d.Target)
	}
	if c := d.BorderColor; c != nil {
		fmt.Fprintf(bw, "border_color\t%s\t%s\t%s\t%s\n", fnum(c[0]), fnum(c[1]), fnum(c[2]), fnum(c[3]))
	}
	if d.ColorSpace != "" && d.ColorSpace != ColorSRGB {
		fmt.Fprintf(bw, "color_space\t%s\n", d.ColorSpace)
	}
	if d.Usage != "" && d.Usage != UsageDefault {
		fmt.Fprintf(bw, "usage\t%s\n", d.Usage)
	}
	for _, f := range d.flags() {
		if *f.ptr {
			bw.WriteString(f.name + "\n")
		}
	}
	return bw.Flush()
}

// WriteFile writes the descriptor to path.
func WriteFile(path string, d *Descriptor) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrWrite, cerr)
		}
	}()
	if err := Write(f, d); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}

func fnum(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
