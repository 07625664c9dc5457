package pit

import (
	"path/filepath"
	"testing"

	"github.com/Faultbox/scs-forge/internal/assets"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

func makeMaterial(name string, id int, effect string, props ...scene.Prop) *scene.Material {
	m := &scene.Material{Name: name, ID: id}
	m.Props.Set(scene.KeyEffect, scene.Str(effect))
	m.Props.Set(scene.KeyID, scene.Ints(id))
	for _, p := range props {
		m.Props.Set(p.Key, p.Value)
	}
	return m
}

func prop(key string, v scene.Value) scene.Prop { return scene.Prop{Key: key, Value: v} }

// setup registers mats in a fresh set the way the model builder would.
func setup(mats ...*scene.Material) (*scene.Scene, *scene.Root, *trans.Set) {
	root := &scene.Root{Name: "r", World: math.Identity()}
	set := trans.New()
	set.Parts.Add(scene.DefaultPart)
	for _, m := range mats {
		set.Materials.Add(m.Name, m)
	}
	return &scene.Scene{Roots: []*scene.Root{root}, Materials: mats}, root, set
}

func build(t *testing.T, s *scene.Scene, root *scene.Root, set *trans.Set, opts Options) ([]*pix.Section, *logger.Stack) {
	t.Helper()
	log := logger.NewStack()
	out, err := Build(root, s, set, opts, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out, log
}

func TestDefaultLookAndVariant(t *testing.T) {
	a := makeMaterial("A", 0, "eut2.dif",
		prop(scene.TextureKey("base"), scene.Str("/model/a.tobj")),
		prop(scene.AttrKey("diffuse"), scene.Floats(1, 0, 0)))
	b := makeMaterial("B", 1, "eut2.dif.spec",
		prop(scene.TextureKey("base"), scene.Str("/model/b.tobj")))
	s, root, set := setup(a, b)
	out, log := build(t, s, root, set, Options{Name: "r"})

	looks := pix.FindAll(out, "Look")
	if len(looks) != 1 {
		t.Fatalf("looks = %d", len(looks))
	}
	if name, _ := looks[0].Str("Name"); name != DefaultLook {
		t.Errorf("look name = %q", name)
	}
	mats := looks[0].Children("Material")
	if len(mats) != 2 {
		t.Fatalf("materials = %d", len(mats))
	}
	// Hidden specular, shininess and reflection are not written.
	if n, _ := mats[0].Int("AttributeCount"); n != 2 {
		t.Errorf("eut2.dif AttributeCount = %d, want 2", n)
	}
	if n, _ := mats[1].Int("AttributeCount"); n != 4 {
		t.Errorf("eut2.dif.spec AttributeCount = %d, want 4", n)
	}
	diffuse, _ := mats[0].Children("Attribute")[0].Prop("Value")
	if f := diffuse.Floats(); len(f) != 3 || f[0] != 1 || f[1] != 0 {
		t.Errorf("diffuse = %v", f)
	}
	tex := mats[0].Child("Texture")
	if tag, _ := tex.Str("Tag"); tag != "texture[0]:texture_base" {
		t.Errorf("texture tag = %q", tag)
	}
	if v, _ := tex.Str("Value"); v != "/model/a.tobj" {
		t.Errorf("texture value = %q", v)
	}

	variants := pix.FindAll(out, "Variant")
	if len(variants) != 1 {
		t.Fatalf("variants = %d", len(variants))
	}
	part := variants[0].Child("Part")
	v, _ := part.Child("Attribute").Prop("Value")
	if got := v.IntSlice(); len(got) != 1 || got[0] != 1 {
		t.Errorf("default variant visibility = %v", got)
	}
	if log.Warnings() != 0 {
		_, w := log.Messages()
		t.Errorf("warnings: %v", w)
	}
}

func TestDeclaredVariants(t *testing.T) {
	s, root, set := setup(makeMaterial("A", 0, "eut2.dif"))
	set.Parts.Add("door")
	root.Variants = []scene.Variant{
		{Name: "open", Parts: []scene.VariantPart{{Name: scene.DefaultPart, Include: true}}},
		{Name: "full", Parts: []scene.VariantPart{{Name: scene.DefaultPart, Include: true}, {Name: "door", Include: true}}},
	}
	out, _ := build(t, s, root, set, Options{})
	if n, _ := pix.Find(out, "Global").Int("VariantCount"); n != 2 {
		t.Errorf("VariantCount = %d", n)
	}
	want := [][]int{{1, 0}, {1, 1}}
	for i, v := range pix.FindAll(out, "Variant") {
		parts := v.Children("Part")
		if len(parts) != 2 {
			t.Fatalf("variant %d parts = %d", i, len(parts))
		}
		for j, p := range parts {
			val, _ := p.Child("Attribute").Prop("Value")
			if got := val.IntSlice()[0]; got != want[i][j] {
				t.Errorf("variant %d part %d visible = %d, want %d", i, j, got, want[i][j])
			}
		}
	}
}

func TestPreviewOnlyAndArrayAttributes(t *testing.T) {
	glass := makeMaterial("G", 0, "eut2.glass")
	lamp := makeMaterial("L", 1, "eut2.lamp", prop(scene.AttrKey("aux[5]"), scene.Collection(
		scene.Props{{Key: RecValue, Value: scene.Floats(1, 2, 3, 4)}},
		scene.Props{{Key: RecValue, Value: scene.Floats(5, 6, 7, 8)}},
	)))
	s, root, set := setup(glass, lamp)
	out, _ := build(t, s, root, set, Options{})
	mats := pix.Find(out, "Look").Children("Material")

	for _, a := range mats[0].Children("Attribute") {
		if tag, _ := a.Str("Tag"); tag == "preview_tint" {
			t.Error("preview only attribute written")
		}
	}
	found := false
	for _, a := range mats[1].Children("Attribute") {
		if tag, _ := a.Str("Tag"); tag != "aux[5]" {
			continue
		}
		found = true
		v, _ := a.Prop("Value")
		if f := v.Floats(); len(f) != 8 || f[4] != 5 {
			t.Errorf("aux[5] = %v", f)
		}
	}
	if !found {
		t.Error("aux[5] not written")
	}
}

func TestExtendedEffect(t *testing.T) {
	m := makeMaterial("A", 0, "eut2.dif.spec.a.tsnmap", prop(scene.KeyAliasing, scene.Bool(true)))
	s, root, set := setup(m)
	out, _ := build(t, s, root, set, Options{Extended: true})
	mat := pix.Find(out, "Look").Child("Material")
	if base, _ := mat.Str("BaseEffect"); base != "eut2.dif.spec" {
		t.Errorf("BaseEffect = %q", base)
	}
	fl, _ := mat.Prop("Flavors")
	if ids := fl.IntSlice(); len(ids) != 2 || ids[0] != 0 || ids[1] != 6 {
		t.Errorf("Flavors = %v", ids)
	}
	if f, _ := mat.Int("Flags"); f != 0 {
		t.Errorf("Flags = %d with aliasing on", f)
	}
	// tsnmap adds the normal map slot after base.
	if n, _ := mat.Int("TextureCount"); n != 2 {
		t.Errorf("TextureCount = %d", n)
	}
}

func TestDefaultMaterial(t *testing.T) {
	s, root, set := setup(makeMaterial("A", 0, "eut2.dif"))
	set.Materials.Add(DefaultMaterial, nil)
	out, _ := build(t, s, root, set, Options{})
	mats := pix.Find(out, "Look").Children("Material")
	if len(mats) != 2 {
		t.Fatalf("materials = %d", len(mats))
	}
	if e, _ := mats[1].Str("Effect"); e != DefaultEffect {
		t.Errorf("default effect = %q", e)
	}
	if n, _ := mats[1].Int("TextureCount"); n != 0 {
		t.Errorf("default material textures = %d", n)
	}
}

func TestTexturePaths(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name, in, want string
		warn           bool
	}{
		{"under base", filepath.Join(base, "model", "a.tga"), "/model/a.tobj", false},
		{"relative", "model/b.png", "/model/b.tobj", false},
		{"engine path", "/vehicle/c.tobj", "/vehicle/c.tobj", false},
		{"outside base", "../other/d.tga", "../other/d.tobj", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewStack()
			b := &builder{opts: Options{Assets: assets.NewManager(base)}, log: log, warned: make(map[string]bool)}
			if got := b.texturePath(tt.in); got != tt.want {
				t.Errorf("texturePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if (log.Warnings() > 0) != tt.warn {
				t.Errorf("warnings = %d", log.Warnings())
			}
		})
	}
}

func TestTexturePathsWithoutBase(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"windows absolute", `C:\work\model\body.tga`, "C:/work/model/body.tobj"},
		{"windows relative", `model\paint\a.png`, "model/paint/a.tobj"},
		{"slashed", "/vehicle/c.tobj", "/vehicle/c.tobj"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &builder{log: logger.NewStack(), warned: make(map[string]bool)}
			if got := b.texturePath(tt.in); got != tt.want {
				t.Errorf("texturePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestImportedRoundTrip(t *testing.T) {
	a := makeMaterial("A", 0, "eut2.dif.spec",
		prop(scene.TextureKey("base"), scene.Str("/model/a.tobj")),
		prop(scene.AttrKey("shininess"), scene.Floats(12)))
	s, root, set := setup(a)
	out, _ := build(t, s, root, set, Options{Name: "r"})

	path := filepath.Join(t.TempDir(), "r.pit")
	if err := pix.WriteFile(path, out, pix.DefaultIndent); err != nil {
		t.Fatal(err)
	}
	tr, err := ReadFile(path, nil)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tr.Name != "r" || len(tr.Looks) != 1 || len(tr.Variants) != 1 {
		t.Fatalf("trait = %+v", tr)
	}
	m := tr.Looks[0].Materials[0]
	if m.Textures[0].Type() != "base" {
		t.Errorf("texture type = %q", m.Textures[0].Type())
	}

	// Export the imported material again; tables come back unchanged.
	imp := &scene.Material{Name: m.Alias, Props: m.Props()}
	if !imp.Imported() || imp.Texture("base") != "/model/a.tobj" {
		t.Fatalf("imported props = %v", imp.Props)
	}
	s2, root2, set2 := setup(imp)
	again, _ := build(t, s2, root2, set2, Options{Name: "r"})
	want := pix.Format(pix.FindAll(out, "Look"), pix.DefaultIndent)
	if got := pix.Format(pix.FindAll(again, "Look"), pix.DefaultIndent); got != want {
		t.Errorf("re-export differs:\n%s\nwant:\n%s", got, want)
	}
}
