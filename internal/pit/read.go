package pit

import (
	"fmt"
	"strings"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/preset"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// Trait is a decoded material file.
type Trait struct {
	Name     string
	Looks    []Look
	Variants []Variant
}

// Look is a decoded look.
type Look struct {
	Name      string
	Materials []Material
}

// Material is a decoded material table.
type Material struct {
	Alias      string
	Effect     string
	BaseEffect string
	Flavors    []int
	Flags      int
	Attributes []Attribute
	Textures   []Texture
}

// Attribute is a decoded attribute. Value holds floats, ints or a
// string according to Format.
type Attribute struct {
	Format string
	Tag    string
	Value  scene.Value
}

// Texture is a decoded texture reference.
type Texture struct {
	Tag   string
	Value string
}

// Type returns the slot type of a texture[i]:texture_type tag.
func (t Texture) Type() string {
	_, typ, _ := strings.Cut(t.Tag, ":")
	return strings.TrimPrefix(typ, "texture_")
}

// Variant is a decoded variant.
type Variant struct {
	Name  string
	Parts []VariantPart
}

// VariantPart is the visibility of one part in a variant.
type VariantPart struct {
	Name    string
	Visible bool
}

// Props returns the material as an imported property bag. The tables are
// kept verbatim so a later export writes them back unchanged.
func (m Material) Props() scene.Props {
	var p scene.Props
	p.Set(scene.KeyEffect, scene.Str(m.Effect))
	p.Set(scene.KeyPreset, scene.Str(scene.ImportedPreset))
	p.Set(scene.KeyAliasing, scene.Bool(m.Flags == 0))
	var attrs, texs []scene.Props
	for _, a := range m.Attributes {
		var r scene.Props
		r.Set(RecFormat, scene.Str(a.Format))
		r.Set(RecTag, scene.Str(a.Tag))
		r.Set(RecValue, a.Value)
		attrs = append(attrs, r)
	}
	for _, t := range m.Textures {
		var r scene.Props
		r.Set(RecTag, scene.Str(t.Tag))
		r.Set(RecValue, scene.Str(t.Value))
		texs = append(texs, r)
		p.Set(scene.TextureKey(t.Type()), scene.Str(t.Value))
	}
	p.Set(scene.KeyImportedAttributes, scene.Collection(attrs...))
	p.Set(scene.KeyImportedTextures, scene.Collection(texs...))
	return p
}

// ReadFile parses and decodes a material file.
func ReadFile(path string, log *logger.Stack) (*Trait, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes material sections.
func Read(sections []*pix.Section, log *logger.Stack) (*Trait, error) {
	typ, version, ok := pix.HeaderOf(sections)
	if !ok || typ != "Trait" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	if version != Version {
		log.Warnf("material file version %d, expected %d", version, Version)
	}
	t := &Trait{}
	t.Name, _ = pix.Find(sections, "Header").Str("Name")

	for _, s := range pix.FindAll(sections, "Look") {
		look := Look{}
		look.Name, _ = s.Str("Name")
		for _, ms := range s.Children("Material") {
			look.Materials = append(look.Materials, readMaterial(ms, log))
		}
		t.Looks = append(t.Looks, look)
	}
	for _, s := range pix.FindAll(sections, "Variant") {
		v := Variant{}
		v.Name, _ = s.Str("Name")
		for _, ps := range s.Children("Part") {
			part := VariantPart{}
			part.Name, _ = ps.Str("Name")
			for _, a := range ps.Children("Attribute") {
				if tag, _ := a.Str("Tag"); tag == "visible" {
					val, _ := a.Prop("Value")
					ints := val.IntSlice()
					part.Visible = len(ints) > 0 && ints[0] != 0
				}
			}
			v.Parts = append(v.Parts, part)
		}
		t.Variants = append(t.Variants, v)
	}

	if g := pix.Find(sections, "Global"); g != nil {
		if n, ok := g.Int("LookCount"); ok && n != len(t.Looks) {
			log.Warnf("material file %q declares %d looks, has %d", t.Name, n, len(t.Looks))
		}
	}
	return t, nil
}

func readMaterial(s *pix.Section, log *logger.Stack) Material {
	m := Material{}
	m.Alias, _ = s.Str("Alias")
	m.Effect, _ = s.Str("Effect")
	m.BaseEffect, _ = s.Str("BaseEffect")
	if v, ok := s.Prop("Flavors"); ok {
		m.Flavors = v.IntSlice()
	}
	m.Flags, _ = s.Int("Flags")
	if m.Effect == "" && m.BaseEffect != "" {
		m.Effect = m.BaseEffect
	}
	for _, a := range s.Children("Attribute") {
		attr := Attribute{}
		attr.Format, _ = a.Str("Format")
		attr.Tag, _ = a.Str("Tag")
		v, _ := a.Prop("Value")
		switch attr.Format {
		case preset.String:
			strs := v.Strings()
			if len(strs) > 0 {
				attr.Value = scene.Str(strs[0])
			} else {
				attr.Value = scene.Str("")
			}
		case preset.Int, preset.Int2:
			attr.Value = scene.Ints(v.IntSlice()...)
		default:
			attr.Value = scene.Floats(v.Floats()...)
		}
		m.Attributes = append(m.Attributes, attr)
	}
	for _, ts := range s.Children("Texture") {
		tex := Texture{}
		tex.Tag, _ = ts.Str("Tag")
		tex.Value, _ = ts.Str("Value")
		m.Textures = append(m.Textures, tex)
	}
	if n, ok := s.Int("AttributeCount"); ok && n != len(m.Attributes) {
		log.Warnf("material %q declares %d attributes, has %d", m.Alias, n, len(m.Attributes))
	}
	if n, ok := s.Int("TextureCount"); ok && n != len(m.Textures) {
		log.Warnf("material %q declares %d textures, has %d", m.Alias, n, len(m.Textures))
	}
	return m
}
