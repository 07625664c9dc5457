package preset

import (
	"errors"
	"testing"
)

func TestDefaultLibrary(t *testing.T) {
	lib := Default()
	if lib.Effect("eut2.dif") == nil || lib.Effect("dry.void") == nil {
		t.Fatal("built-in library misses core effects")
	}
	if f := lib.Flavor("paint"); f == nil || f.ID != 16 {
		t.Errorf("paint flavor = %+v", f)
	}
}

func TestResolve(t *testing.T) {
	lib := Default()
	tests := []struct {
		effect  string
		base    string
		ids     []int
		wantErr error
	}{
		{"eut2.dif", "eut2.dif", nil, nil},
		{"eut2.dif.spec", "eut2.dif.spec", nil, nil},
		{"eut2.dif.spec.add", "eut2.dif.spec", []int{3}, nil},
		{"eut2.dif.spec.add.env.a", "eut2.dif.spec.add.env", []int{0}, nil},
		{"eut2.dif.a.tsnmapuv16", "eut2.dif", []int{0, 9}, nil},
		{"eut2.glass.a", "", nil, ErrUnknownFlavor},
		{"eut2.bogus", "", nil, ErrUnknownEffect},
	}
	for _, tt := range tests {
		t.Run(tt.effect, func(t *testing.T) {
			r, err := lib.Resolve(tt.effect)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if r.Base.Name != tt.base {
				t.Errorf("base = %s, want %s", r.Base.Name, tt.base)
			}
			if r.Name() != tt.effect {
				t.Errorf("Name = %s, want %s", r.Name(), tt.effect)
			}
			ids := r.FlavorIDs()
			if len(ids) != len(tt.ids) {
				t.Fatalf("ids = %v, want %v", ids, tt.ids)
			}
			for i := range ids {
				if ids[i] != tt.ids[i] {
					t.Errorf("ids = %v, want %v", ids, tt.ids)
				}
			}
		})
	}
}

func TestSchema(t *testing.T) {
	lib := Default()
	r, err := lib.Resolve("eut2.dif.tg0.tsnmap")
	if err != nil {
		t.Fatal(err)
	}
	var tags []string
	for _, a := range r.Attributes() {
		if a.Exported() {
			tags = append(tags, a.Tag)
		}
	}
	want := []string{"diffuse", "add_ambient", "aux[0]"}
	if len(tags) != len(want) {
		t.Fatalf("exported attributes = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("attribute %d = %s, want %s", i, tags[i], want[i])
		}
	}
	nmap, ok := r.Texture("nmap")
	if !ok || !nmap.Tangent || !nmap.UV {
		t.Errorf("nmap slot = %+v, %v", nmap, ok)
	}
	if len(r.Textures()) != 2 {
		t.Errorf("textures = %+v", r.Textures())
	}

	glass, _ := lib.Resolve("eut2.glass")
	for _, a := range glass.Attributes() {
		if a.Tag == "preview_tint" && a.Exported() {
			t.Error("preview-only attribute is exported")
		}
	}
}

func TestAttributeShape(t *testing.T) {
	tests := []struct {
		attr  Attribute
		size  int
		array bool
	}{
		{Attribute{Tag: "diffuse", Format: Float3}, 3, false},
		{Attribute{Tag: "aux[5]", Format: Float4}, 4, true},
		{Attribute{Tag: "m", Format: Float4x4}, 16, false},
		{Attribute{Tag: "s", Format: String}, 0, false},
	}
	for _, tt := range tests {
		if tt.attr.Size() != tt.size || tt.attr.IsArray() != tt.array {
			t.Errorf("%s: size %d array %v", tt.attr.Tag, tt.attr.Size(), tt.attr.IsArray())
		}
	}
}

func TestSplit(t *testing.T) {
	lib := Default()
	tests := []struct {
		effect  string
		base    string
		flavors int
	}{
		{"eut2.dif.spec.add", "eut2.dif.spec", 1},
		{"custom.shader.a.paint", "custom.shader", 2},
		{"custom", "custom", 0},
	}
	for _, tt := range tests {
		base, fl := lib.Split(tt.effect)
		if base != tt.base || len(fl) != tt.flavors {
			t.Errorf("Split(%s) = %s %v", tt.effect, base, fl)
		}
	}
}

func TestParseRejectsBadLibrary(t *testing.T) {
	tests := []string{
		"flavors: [{name: a, id: 1}, {name: b, id: 1}]",
		"effects: [{name: x, flavors: [nope]}]",
		"effects: {",
	}
	for _, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("Parse(%q) succeeded", doc)
		}
	}
}
