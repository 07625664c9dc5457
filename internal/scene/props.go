package scene

import (
	"fmt"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindFloat      ValueKind = iota // one to four floats, or a 4x4 matrix
	KindInt                         // one or two ints
	KindString                      // text
	KindCollection                  // ordered records
)

// Value is one entry of a property bag.
type Value struct {
	Kind    ValueKind
	Floats  []float32
	Ints    []int
	Str     string
	Records []Props
}

// Floats returns a float value.
func Floats(f ...float32) Value { return Value{Kind: KindFloat, Floats: f} }

// Ints returns an int value.
func Ints(i ...int) Value { return Value{Kind: KindInt, Ints: i} }

// Str returns a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// Collection returns a collection of records.
func Collection(records ...Props) Value { return Value{Kind: KindCollection, Records: records} }

// Bool returns an int value of 0 or 1.
func Bool(b bool) Value {
	if b {
		return Ints(1)
	}
	return Ints(0)
}

// Truthy reports whether an int or float value is non-zero.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return len(v.Ints) > 0 && v.Ints[0] != 0
	case KindFloat:
		return len(v.Floats) > 0 && v.Floats[0] != 0
	case KindString:
		return v.Str != ""
	}
	return len(v.Records) > 0
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	c := v
	c.Floats = append([]float32(nil), v.Floats...)
	c.Ints = append([]int(nil), v.Ints...)
	if v.Records != nil {
		c.Records = make([]Props, len(v.Records))
		for i, r := range v.Records {
			c.Records[i] = r.Clone()
		}
	}
	return c
}

// Equal compares two values deeply.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind || v.Str != o.Str || len(v.Floats) != len(o.Floats) ||
		len(v.Ints) != len(o.Ints) || len(v.Records) != len(o.Records) {
		return false
	}
	for i := range v.Floats {
		if v.Floats[i] != o.Floats[i] {
			return false
		}
	}
	for i := range v.Ints {
		if v.Ints[i] != o.Ints[i] {
			return false
		}
	}
	for i := range v.Records {
		if !v.Records[i].Equal(o.Records[i]) {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprint(v.Floats)
	case KindInt:
		return fmt.Sprint(v.Ints)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	}
	parts := make([]string, len(v.Records))
	for i, r := range v.Records {
		parts[i] = r.String()
	}
	return "{CollectionProperty: 1, entries: [" + strings.Join(parts, ", ") + "]}"
}

// Prop is a keyed value.
type Prop struct {
	Key   string
	Value Value
}

// Props is an insertion-ordered property bag.
type Props []Prop

// Get returns the value for key.
func (p Props) Get(key string) (Value, bool) {
	for _, e := range p {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (p Props) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Set replaces the value for key or appends it.
func (p *Props) Set(key string, v Value) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = v
			return
		}
	}
	*p = append(*p, Prop{Key: key, Value: v})
}

// Delete removes key.
func (p *Props) Delete(key string) {
	for i := range *p {
		if (*p)[i].Key == key {
			*p = append((*p)[:i], (*p)[i+1:]...)
			return
		}
	}
}

// Keys returns keys in order.
func (p Props) Keys() []string {
	keys := make([]string, len(p))
	for i, e := range p {
		keys[i] = e.Key
	}
	return keys
}

// Clone returns a deep copy.
func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	c := make(Props, len(p))
	for i, e := range p {
		c[i] = Prop{Key: e.Key, Value: e.Value.Clone()}
	}
	return c
}

// Equal compares two bags, order included.
func (p Props) Equal(o Props) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i].Key != o[i].Key || !p[i].Value.Equal(o[i].Value) {
			return false
		}
	}
	return true
}

func (p Props) String() string {
	parts := make([]string, len(p))
	for i, e := range p {
		parts[i] = e.Key + ": " + e.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
