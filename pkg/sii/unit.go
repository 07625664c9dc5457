package sii

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies how a Value is written.
type Kind uint8

const (
	KindToken  Kind = iota // bare word: number, name, &hex, true
	KindString             // quoted text
	KindTuple              // ( a, b, c )
	KindArray              // name[] entries
)

// Value is a property value. Arrays keep the declared count when the
// source had a "name: N" line.
type Value struct {
	Kind  Kind
	Text  string
	Items []Value
	Count int
}

// Ident returns a bare value.
func Ident(s string) Value { return Value{Kind: KindToken, Text: s} }

// String returns a quoted value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Tuple returns a parenthesised value.
func Tuple(items ...Value) Value { return Value{Kind: KindTuple, Items: items} }

// Array returns an array value without a declared count.
func Array(items ...Value) Value { return Value{Kind: KindArray, Items: items, Count: -1} }

// Float decodes a token as a number. Hex floats (&XXXXXXXX) are
// decoded bit-exact.
func (v Value) Float() (float64, bool) {
	if v.Kind != KindToken {
		return 0, false
	}
	if strings.HasPrefix(v.Text, "&") {
		bits, err := strconv.ParseUint(v.Text[1:], 16, 32)
		if err != nil {
			return 0, false
		}
		return float64(math.Float32frombits(uint32(bits))), true
	}
	f, err := strconv.ParseFloat(v.Text, 64)
	return f, err == nil
}

// Int decodes an integer token.
func (v Value) Int() (int, bool) {
	if v.Kind != KindToken {
		return 0, false
	}
	i, err := strconv.Atoi(v.Text)
	return i, err == nil
}

// Format renders the value as the writer emits it. Arrays have no
// single-line form and render as their item list.
func (v Value) Format() string {
	switch v.Kind {
	case KindToken:
		return v.Text
	case KindString:
		return quote(v.Text)
	case KindTuple, KindArray:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.Format()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("<kind %d>", v.Kind)
}

func (v Value) String() string { return v.Format() }

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// Property is one named value of a unit.
type Property struct {
	Key   string
	Value Value
}

// Unit is a typed, named record: type : name { props }.
type Unit struct {
	Type  string
	Name  string
	Props []Property
}

// Get returns the property named key.
func (u *Unit) Get(key string) (Value, bool) {
	if i := u.index(key); i >= 0 {
		return u.Props[i].Value, true
	}
	return Value{}, false
}

// Set replaces or appends a property.
func (u *Unit) Set(key string, v Value) {
	if i := u.index(key); i >= 0 {
		u.Props[i].Value = v
		return
	}
	u.Props = append(u.Props, Property{Key: key, Value: v})
}

func (u *Unit) index(key string) int {
	for i := range u.Props {
		if u.Props[i].Key == key {
			return i
		}
	}
	return -1
}

// array returns the array property for key, converting a preceding
// "key: N" declaration into the declared count.
func (u *Unit) array(key string) *Value {
	i := u.index(key)
	if i < 0 {
		u.Props = append(u.Props, Property{Key: key, Value: Array()})
		return &u.Props[len(u.Props)-1].Value
	}
	v := &u.Props[i].Value
	if v.Kind != KindArray {
		n, ok := v.Int()
		if !ok {
			n = -1
		}
		*v = Value{Kind: KindArray, Count: n}
	}
	return v
}

// Append adds an item to the array key.
func (u *Unit) Append(key string, item Value) {
	a := u.array(key)
	a.Items = append(a.Items, item)
}

// SetIndex assigns item at index of the array key, growing it with
// empty tokens as needed.
func (u *Unit) SetIndex(key string, index int, item Value) {
	a := u.array(key)
	for len(a.Items) <= index {
		a.Items = append(a.Items, Ident(""))
	}
	a.Items[index] = item
}

// splitKey separates "name[]" and "name[3]" keys. index is -1 for an
// append, -2 for a plain key.
func splitKey(key string) (name string, index int, err error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, -2, nil
	}
	if !strings.HasSuffix(key, "]") {
		return "", 0, fmt.Errorf("bad array key %q", key)
	}
	name = key[:open]
	inner := key[open+1 : len(key)-1]
	if inner == "" {
		return name, -1, nil
	}
	index, err = strconv.Atoi(inner)
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("bad array index in %q", key)
	}
	return name, index, nil
}
