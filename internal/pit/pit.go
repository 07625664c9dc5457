// Package pit builds and reads material files: looks holding per-material
// effect, attribute and texture tables, and variants toggling parts.
package pit

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/scs-forge/internal/assets"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/preset"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var ErrFormat = errors.New("invalid material file")

// Version is the FormatVersion of material files.
const Version = 1

// Source is written to the Source header field.
const Source = "scs-forge 1.0"

// Defaults for materials the model could not resolve and for roots
// without looks or variants.
const (
	DefaultMaterial = "_not_existing_material_"
	DefaultEffect   = "eut2.dif"
	DefaultLook     = "default"
	DefaultVariant  = "default"
)

// Record keys of imported attribute and texture tables.
const (
	RecFormat = "format"
	RecTag    = "tag"
	RecValue  = "value"
)

// Options configures a build.
type Options struct {
	Name string
	// Extended writes BaseEffect and Flavors next to Effect.
	Extended bool
	Presets  *preset.Library
	// Assets rewrites texture paths; nil keeps them verbatim.
	Assets *assets.Manager
}

type builder struct {
	opts Options
	log  *logger.Stack
	set  *trans.Set
	// warned collects texture paths already reported.
	warned map[string]bool
}

// Build assembles the material file of root from the materials and
// parts registered in set.
func Build(root *scene.Root, p scene.Provider, set *trans.Set, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	if opts.Presets == nil {
		opts.Presets = preset.Default()
	}
	b := &builder{opts: opts, log: log, set: set, warned: make(map[string]bool)}

	looks := p.Looks(root)
	if len(looks) == 0 {
		look := scene.Look{Name: DefaultLook}
		for _, name := range set.Materials.Names() {
			if mat, _ := set.Materials.Get(name); mat != nil {
				look.Entries = append(look.Entries, scene.LookEntry{MaterialID: mat.ID, Props: scene.Snapshot(mat)})
			}
		}
		looks = []scene.Look{look}
	}
	variants := p.Variants(root)

	var out []*pix.Section
	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(Version))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Trait"))
	h.Add("Name", pix.String(opts.Name))
	out = append(out, h)

	g := pix.NewSection("Global")
	g.Add("LookCount", pix.Int(len(looks)))
	g.Add("VariantCount", pix.Int(max(len(variants), 1)))
	g.Add("PartCount", pix.Int(set.Parts.Len()))
	g.Add("MaterialCount", pix.Int(set.Materials.Len()))
	out = append(out, g)

	for i := range looks {
		out = append(out, b.look(&looks[i]))
	}

	if len(variants) == 0 {
		variants = []scene.Variant{{Name: DefaultVariant}}
		for _, part := range set.Parts.Names() {
			variants[0].Parts = append(variants[0].Parts, scene.VariantPart{Name: part, Include: true})
		}
	}
	for _, v := range variants {
		out = append(out, b.variant(v))
	}
	return out, nil
}

func (b *builder) look(look *scene.Look) *pix.Section {
	s := pix.NewSection("Look")
	s.Add("Name", pix.String(look.Name))
	for _, name := range b.set.Materials.Names() {
		mat, _ := b.set.Materials.Get(name)
		if mat == nil {
			s.AddSection(b.material(name, DefaultEffect, nil, true))
			continue
		}
		props := mat.Props.Clone()
		if e := look.Entry(mat.ID); e != nil {
			for _, p := range e.Props {
				props.Set(p.Key, p.Value)
			}
		} else {
			b.log.Warnf("look %q has no entry for material %q, using its current values", look.Name, name)
		}
		eff := &scene.Material{Name: mat.Name, ID: mat.ID, Props: props}
		s.AddSection(b.material(name, eff.Effect(), eff, eff.Aliasing()))
	}
	return s
}

// material writes one material table. A nil mat writes the preset
// defaults of effect.
func (b *builder) material(alias, effect string, mat *scene.Material, aliasing bool) *pix.Section {
	s := pix.NewSection("Material")
	s.Add("Alias", pix.String(alias))
	s.Add("Effect", pix.String(effect))
	if b.opts.Extended {
		base, flavors := b.opts.Presets.Split(effect)
		var ids []int
		for _, f := range flavors {
			if fl := b.opts.Presets.Flavor(f); fl != nil {
				ids = append(ids, fl.ID)
			}
		}
		s.Add("BaseEffect", pix.String(base))
		s.Add("Flavors", pix.Ints(ids...))
	}
	flags := 1
	if aliasing {
		flags = 0
	}
	s.Add("Flags", pix.Int(flags))

	var attrs, texs []*pix.Section
	if mat != nil && mat.Imported() {
		attrs, texs = b.imported(mat)
	} else {
		attrs, texs = b.preset(alias, effect, mat)
	}
	s.Add("AttributeCount", pix.Int(len(attrs)))
	s.Add("TextureCount", pix.Int(len(texs)))
	for _, a := range attrs {
		s.AddSection(a)
	}
	for _, t := range texs {
		s.AddSection(t)
	}
	return s
}

func (b *builder) preset(alias, effect string, mat *scene.Material) (attrs, texs []*pix.Section) {
	r, err := b.opts.Presets.Resolve(effect)
	if err != nil {
		b.log.Errorf("material %q: %v, no attributes written", alias, err)
		return nil, nil
	}
	for _, a := range r.Attributes() {
		if !a.Exported() {
			continue
		}
		var v scene.Value
		ok := false
		if mat != nil {
			v, ok = mat.Attribute(a.Tag)
		}
		s, err := attribute(a, v, ok)
		if err != nil {
			b.log.Warnf("material %q: attribute %s: %v, using default", alias, a.Tag, err)
			s, _ = attribute(a, scene.Value{}, false)
		}
		attrs = append(attrs, s)
	}
	if mat == nil {
		return attrs, nil
	}
	for _, t := range r.Textures() {
		if t.Hidden {
			continue
		}
		path := mat.Texture(t.Type)
		if path == "" {
			b.log.Warnf("material %q: texture %q has no file", alias, t.Type)
		}
		s := pix.NewSection("Texture")
		s.Add("Tag", pix.String(fmt.Sprintf("texture[%d]:texture_%s", len(texs), t.Type)))
		s.Add("Value", pix.String(b.texturePath(path)))
		texs = append(texs, s)
	}
	return attrs, texs
}

// attribute formats v for a. Without a value the preset default is
// used. Array tags take the concatenated values of a collection.
func attribute(a preset.Attribute, v scene.Value, ok bool) (*pix.Section, error) {
	s := pix.NewSection("Attribute")
	s.Add("Format", pix.Name(a.Format))
	s.Add("Tag", pix.String(a.Tag))

	if a.Format == preset.String {
		str := a.StrDefault
		if ok {
			if v.Kind != scene.KindString {
				return nil, fmt.Errorf("want a string, have %s", v)
			}
			str = v.Str
		}
		s.Add("Value", pix.StrTuple(str))
		return s, nil
	}

	nums := a.Default
	if ok {
		var err error
		if nums, err = numbers(v); err != nil {
			return nil, err
		}
	}
	n := a.Size()
	if !a.IsArray() || len(nums) < n {
		nums = fit(nums, n)
	}
	if a.Format == preset.Int || a.Format == preset.Int2 {
		ints := make([]int, len(nums))
		for i, f := range nums {
			ints[i] = int(f)
		}
		s.Add("Value", pix.Ints(ints...))
		return s, nil
	}
	s.Add("Value", pix.Hexes(nums...))
	return s, nil
}

// numbers flattens a numeric value or a collection of value records.
func numbers(v scene.Value) ([]float32, error) {
	switch v.Kind {
	case scene.KindFloat:
		return v.Floats, nil
	case scene.KindInt:
		out := make([]float32, len(v.Ints))
		for i, x := range v.Ints {
			out[i] = float32(x)
		}
		return out, nil
	case scene.KindCollection:
		var out []float32
		for _, r := range v.Records {
			x, ok := r.Get(RecValue)
			if !ok {
				return nil, fmt.Errorf("collection record without %q", RecValue)
			}
			f, err := numbers(x)
			if err != nil {
				return nil, err
			}
			out = append(out, f...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("want numbers, have %s", v)
}

// fit pads with zeros or truncates to n components.
func fit(f []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, f)
	return out
}

// imported writes the tables of a material that came from a file.
func (b *builder) imported(mat *scene.Material) (attrs, texs []*pix.Section) {
	if v, ok := mat.Props.Get(scene.KeyImportedAttributes); ok {
		for _, r := range v.Records {
			format, _ := r.Get(RecFormat)
			tag, _ := r.Get(RecTag)
			val, _ := r.Get(RecValue)
			s := pix.NewSection("Attribute")
			s.Add("Format", pix.Name(format.Str))
			s.Add("Tag", pix.String(tag.Str))
			switch val.Kind {
			case scene.KindString:
				s.Add("Value", pix.StrTuple(val.Str))
			case scene.KindInt:
				s.Add("Value", pix.Ints(val.Ints...))
			default:
				s.Add("Value", pix.Hexes(val.Floats...))
			}
			attrs = append(attrs, s)
		}
	}
	if v, ok := mat.Props.Get(scene.KeyImportedTextures); ok {
		for _, r := range v.Records {
			tag, _ := r.Get(RecTag)
			val, _ := r.Get(RecValue)
			s := pix.NewSection("Texture")
			s.Add("Tag", pix.String(tag.Str))
			s.Add("Value", pix.String(b.texturePath(val.Str)))
			texs = append(texs, s)
		}
	}
	return attrs, texs
}

// texturePath turns a texture slot value into the engine path of its
// descriptor. Relative paths are taken against the project base;
// /-rooted paths outside it are already engine paths.
func (b *builder) texturePath(path string) string {
	if path == "" {
		return path
	}
	if ext := filepath.Ext(path); ext != ".tobj" {
		path = strings.TrimSuffix(path, ext) + ".tobj"
	}
	if b.opts.Assets == nil {
		return strings.ReplaceAll(path, "\\", "/")
	}
	p, err := b.opts.Assets.ToEnginePath(path)
	if err != nil && strings.HasPrefix(path, "/") {
		return strings.ReplaceAll(path, "\\", "/")
	}
	if err != nil && !b.warned[path] {
		b.warned[path] = true
		b.log.Warnf("texture %s: %v, written verbatim", path, err)
	}
	return p
}

func (b *builder) variant(v scene.Variant) *pix.Section {
	s := pix.NewSection("Variant")
	s.Add("Name", pix.String(v.Name))
	for _, part := range b.set.Parts.Names() {
		visible := 0
		if v.Includes(part) {
			visible = 1
		}
		p := pix.NewSection("Part")
		p.Add("Name", pix.String(part))
		p.Add("AttributeCount", pix.Int(1))
		a := pix.NewSection("Attribute")
		a.Add("Format", pix.Name(preset.Int))
		a.Add("Tag", pix.String("visible"))
		a.Add("Value", pix.Tuple(pix.Int(visible)))
		p.AddSection(a)
		s.AddSection(p)
	}
	return s
}
