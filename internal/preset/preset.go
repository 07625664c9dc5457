// Package preset is the shader preset library: which attributes and
// textures an effect carries and how an effect name splits into a base
// effect and flavors.
package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var builtin []byte

var (
	ErrUnknownEffect = errors.New("unknown shader effect")
	ErrUnknownFlavor = errors.New("flavor not allowed for effect")
)

// Attribute formats.
const (
	Float    = "FLOAT"
	Float2   = "FLOAT2"
	Float3   = "FLOAT3"
	Float4   = "FLOAT4"
	Float4x4 = "FLOAT4x4"
	Int      = "INT"
	Int2     = "INT2"
	String   = "STRING"
)

// Attribute is one shader attribute of an effect.
type Attribute struct {
	Tag    string `yaml:"tag"`
	Format string `yaml:"format"`
	// Default holds numeric defaults; StrDefault is used for STRING.
	Default     []float32 `yaml:"default"`
	StrDefault  string    `yaml:"str_default"`
	Hidden      bool      `yaml:"hidden"`
	PreviewOnly bool      `yaml:"preview_only"`
}

// Exported reports whether the attribute is written to material files.
func (a Attribute) Exported() bool { return !a.Hidden && !a.PreviewOnly }

// Size returns the number of components of a numeric format.
func (a Attribute) Size() int {
	switch a.Format {
	case Float, Int:
		return 1
	case Float2, Int2:
		return 2
	case Float3:
		return 3
	case Float4:
		return 4
	case Float4x4:
		return 16
	}
	return 0
}

// IsArray reports whether the tag is an array tag such as aux[5].
func (a Attribute) IsArray() bool {
	return strings.HasSuffix(a.Tag, "]") && strings.Contains(a.Tag, "[")
}

// Texture is one texture slot of an effect.
type Texture struct {
	Type string `yaml:"type"`
	// UV slots map to one or more mesh UV layers.
	UV bool `yaml:"uv"`
	// Tangent slots need per-vertex tangents on their UV layer.
	Tangent bool `yaml:"tangent"`
	Hidden  bool `yaml:"hidden"`
}

// Flavor is an optional effect suffix.
type Flavor struct {
	Name       string      `yaml:"name"`
	ID         int         `yaml:"id"`
	Attributes []Attribute `yaml:"attributes"`
	Textures   []Texture   `yaml:"textures"`
}

// Effect is a base effect with its allowed flavors.
type Effect struct {
	Name       string      `yaml:"name"`
	Flavors    []string    `yaml:"flavors"`
	Attributes []Attribute `yaml:"attributes"`
	Textures   []Texture   `yaml:"textures"`
}

// Library holds effects and flavors.
type Library struct {
	Effects []Effect `yaml:"effects"`
	Flavors []Flavor `yaml:"flavors"`
}

// Default returns the built-in library.
func Default() *Library {
	lib, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("built-in presets: %v", err))
	}
	return lib
}

// Load reads a library file. An empty path returns the built-in library.
func Load(path string) (*Library, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets %s: %w", path, err)
	}
	lib, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("presets %s: %w", path, err)
	}
	return lib, nil
}

// Parse decodes a YAML library and checks its references.
func Parse(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, err
	}
	ids := make(map[int]string)
	for _, f := range lib.Flavors {
		if other, ok := ids[f.ID]; ok {
			return nil, fmt.Errorf("flavors %s and %s share id %d", other, f.Name, f.ID)
		}
		ids[f.ID] = f.Name
	}
	for _, e := range lib.Effects {
		for _, f := range e.Flavors {
			if lib.Flavor(f) == nil {
				return nil, fmt.Errorf("effect %s: %w %q", e.Name, ErrUnknownFlavor, f)
			}
		}
	}
	return &lib, nil
}

// Effect returns the base effect named name.
func (l *Library) Effect(name string) *Effect {
	for i := range l.Effects {
		if l.Effects[i].Name == name {
			return &l.Effects[i]
		}
	}
	return nil
}

// Flavor returns the flavor named name.
func (l *Library) Flavor(name string) *Flavor {
	for i := range l.Flavors {
		if l.Flavors[i].Name == name {
			return &l.Flavors[i]
		}
	}
	return nil
}

// Resolved is an effect name split into its base and flavors.
type Resolved struct {
	Base    *Effect
	Flavors []*Flavor
}

// Name returns base plus dotted flavor suffixes.
func (r Resolved) Name() string {
	var b strings.Builder
	b.WriteString(r.Base.Name)
	for _, f := range r.Flavors {
		b.WriteByte('.')
		b.WriteString(f.Name)
	}
	return b.String()
}

// FlavorIDs returns the type ids of the flavors in order.
func (r Resolved) FlavorIDs() []int {
	ids := make([]int, len(r.Flavors))
	for i, f := range r.Flavors {
		ids[i] = f.ID
	}
	return ids
}

// Attributes returns the base attributes followed by flavor attributes.
// A flavor attribute with the tag of an earlier one replaces it.
func (r Resolved) Attributes() []Attribute {
	out := append([]Attribute(nil), r.Base.Attributes...)
	for _, f := range r.Flavors {
	next:
		for _, a := range f.Attributes {
			for i := range out {
				if out[i].Tag == a.Tag {
					out[i] = a
					continue next
				}
			}
			out = append(out, a)
		}
	}
	return out
}

// Textures returns the base texture slots followed by flavor slots,
// without duplicate types.
func (r Resolved) Textures() []Texture {
	out := append([]Texture(nil), r.Base.Textures...)
	for _, f := range r.Flavors {
	next:
		for _, t := range f.Textures {
			for _, o := range out {
				if o.Type == t.Type {
					continue next
				}
			}
			out = append(out, t)
		}
	}
	return out
}

// Texture returns the slot of the given type.
func (r Resolved) Texture(typ string) (Texture, bool) {
	for _, t := range r.Textures() {
		if t.Type == typ {
			return t, true
		}
	}
	return Texture{}, false
}

// Resolve splits an effect name into the longest known base effect and
// the flavors that follow it.
func (l *Library) Resolve(effect string) (Resolved, error) {
	parts := strings.Split(effect, ".")
	for n := len(parts); n > 0; n-- {
		base := l.Effect(strings.Join(parts[:n], "."))
		if base == nil {
			continue
		}
		r := Resolved{Base: base}
		for _, name := range parts[n:] {
			f := l.Flavor(name)
			if f == nil || !allowed(base, name) {
				return Resolved{}, fmt.Errorf("%w: %q in %s", ErrUnknownFlavor, name, effect)
			}
			r.Flavors = append(r.Flavors, f)
		}
		return r, nil
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrUnknownEffect, effect)
}

func allowed(e *Effect, flavor string) bool {
	for _, f := range e.Flavors {
		if f == flavor {
			return true
		}
	}
	return false
}

// Split returns base and flavor names. Effects the library cannot
// resolve, such as those of imported materials, lose trailing tokens
// that name a known flavor.
func (l *Library) Split(effect string) (base string, flavors []string) {
	if r, err := l.Resolve(effect); err == nil {
		for _, f := range r.Flavors {
			flavors = append(flavors, f.Name)
		}
		return r.Base.Name, flavors
	}
	parts := strings.Split(effect, ".")
	n := len(parts)
	for n > 1 && l.Flavor(parts[n-1]) != nil {
		n--
	}
	return strings.Join(parts[:n], "."), parts[n:]
}
