// Package pix reads and writes the PIX text container shared by the
// model, collision, prefab, trait, skeleton and animation files.
package pix

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies how a Value is stored and written.
type Kind uint8

const (
	KindName   Kind = iota // bare identifier or dotted name: FLOAT3
	KindString             // quoted text: "glass"
	KindInt                // decimal integer: -1
	KindFloat              // decimal float: 0.5
	KindHex                // float32 bits: &3f800000
	KindTuple              // parenthesised: ( 1 2 3 )
	KindList               // space separated, no parentheses: 2 0 &3f000000
)

// Value is a property or row value. Tuples and lists keep per-element
// kinds, so ints and hex floats can be mixed.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float32
	Items []Value
}

// Name returns a bare identifier value.
func Name(s string) Value { return Value{Kind: KindName, Str: s} }

// String returns a quoted string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Int returns an integer value.
func Int(i int) Value { return Value{Kind: KindInt, Int: int64(i)} }

// Float returns a decimal float value.
func Float(f float32) Value { return Value{Kind: KindFloat, Float: f} }

// Hex returns a float value written bit-exact as &XXXXXXXX.
func Hex(f float32) Value { return Value{Kind: KindHex, Float: f} }

// Tuple returns a parenthesised tuple.
func Tuple(items ...Value) Value { return Value{Kind: KindTuple, Items: items} }

// List returns a space separated list without parentheses.
func List(items ...Value) Value { return Value{Kind: KindList, Items: items} }

// Ints returns a tuple of integers.
func Ints(v ...int) Value {
	items := make([]Value, len(v))
	for i, x := range v {
		items[i] = Int(x)
	}
	return Tuple(items...)
}

// Hexes returns a tuple of hex floats.
func Hexes(v ...float32) Value {
	items := make([]Value, len(v))
	for i, x := range v {
		items[i] = Hex(x)
	}
	return Tuple(items...)
}

// StrTuple returns a one-element tuple holding a string.
func StrTuple(s string) Value { return Tuple(String(s)) }

// IsSeq reports whether the value holds items.
func (v Value) IsSeq() bool { return v.Kind == KindTuple || v.Kind == KindList }

// AsInt returns the value as an int. Floats are not converted.
func (v Value) AsInt() (int, bool) {
	if v.Kind == KindInt {
		return int(v.Int), true
	}
	return 0, false
}

// AsFloat returns the value as a float32. Ints are converted.
func (v Value) AsFloat() (float32, bool) {
	switch v.Kind {
	case KindFloat, KindHex:
		return v.Float, true
	case KindInt:
		return float32(v.Int), true
	}
	return 0, false
}

// AsString returns the text of a string or name value.
func (v Value) AsString() (string, bool) {
	if v.Kind == KindString || v.Kind == KindName {
		return v.Str, true
	}
	return "", false
}

// Floats returns the numeric items of a tuple or list. A scalar yields a
// one-element slice.
func (v Value) Floats() []float32 {
	if !v.IsSeq() {
		if f, ok := v.AsFloat(); ok {
			return []float32{f}
		}
		return nil
	}
	out := make([]float32, 0, len(v.Items))
	for _, it := range v.Items {
		if f, ok := it.AsFloat(); ok {
			out = append(out, f)
		}
	}
	return out
}

// IntSlice returns the integer items of a tuple or list.
func (v Value) IntSlice() []int {
	if !v.IsSeq() {
		if i, ok := v.AsInt(); ok {
			return []int{i}
		}
		return nil
	}
	out := make([]int, 0, len(v.Items))
	for _, it := range v.Items {
		if i, ok := it.AsInt(); ok {
			out = append(out, i)
		}
	}
	return out
}

// Strings returns the string items of a tuple or list.
func (v Value) Strings() []string {
	if !v.IsSeq() {
		if s, ok := v.AsString(); ok {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		if s, ok := it.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// Equal compares kinds and contents. Floats compare by bits.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindName, KindString:
		return v.Str == o.Str
	case KindInt:
		return v.Int == o.Int
	case KindFloat, KindHex:
		return math.Float32bits(v.Float) == math.Float32bits(o.Float)
	}
	if len(v.Items) != len(o.Items) {
		return false
	}
	for i := range v.Items {
		if !v.Items[i].Equal(o.Items[i]) {
			return false
		}
	}
	return true
}

// Format renders the value the way the writer emits it.
func (v Value) Format() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.Format() }

func (v Value) format(b *strings.Builder) {
	switch v.Kind {
	case KindName:
		b.WriteString(v.Str)
	case KindString:
		b.WriteByte('"')
		b.WriteString(stringEscaper.Replace(v.Str))
		b.WriteByte('"')
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		b.WriteString(FormatFloat(v.Float))
	case KindHex:
		b.WriteString(FormatHex(v.Float))
	case KindTuple:
		b.WriteByte('(')
		for _, it := range v.Items {
			b.WriteByte(' ')
			it.format(b)
		}
		b.WriteString(" )")
	case KindList:
		for i, it := range v.Items {
			if i > 0 {
				b.WriteByte(' ')
			}
			it.format(b)
		}
	default:
		fmt.Fprintf(b, "<kind %d>", v.Kind)
	}
}

// stringEscaper escapes the characters that would end or split a quoted
// string. The tokenizer reverses it.
var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// FormatHex writes a float32 as & followed by its big-endian IEEE-754 bits.
func FormatHex(f float32) string {
	return fmt.Sprintf("&%08x", math.Float32bits(f))
}

// ParseHex decodes &XXXXXXXX. The leading & is optional.
func ParseHex(s string) (float32, error) {
	s = strings.TrimPrefix(s, "&")
	if len(s) != 8 {
		return 0, fmt.Errorf("hex float %q: want 8 digits", s)
	}
	bits, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("hex float %q: %w", s, err)
	}
	return math.Float32frombits(uint32(bits)), nil
}

// FormatFloat writes a decimal float that always carries a dot, so it
// reads back as a float and not an int.
func FormatFloat(f float32) string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsAny(s, ".") && !strings.ContainsAny(s, "NI") {
		s += ".0"
	}
	return s
}
