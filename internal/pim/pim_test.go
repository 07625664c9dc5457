package pim

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var cubeVerts = []math.Vec3{
	{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
}

// cubeQuads lists outward facing quads; the first three use material 0.
var cubeQuads = [][4]int{
	{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4},
	{2, 3, 7, 6}, {0, 4, 7, 3}, {1, 2, 6, 5},
}

// makeCubeScene builds an 8 vertex, 12 triangle cube split between two
// materials, with one UV layer and the default colour layers.
func makeCubeScene(smooth bool) (*scene.Scene, *scene.Root) {
	a := &scene.Material{Name: "A", ID: 0, Props: scene.Props{
		{Key: scene.KeyEffect, Value: scene.Str("eut2.dif")},
		{Key: scene.TextureKey("base"), Value: scene.Str("/model/a.tobj")},
		{Key: scene.TextureKey("base") + scene.SuffixUV, Value: scene.Str("uv")},
	}}
	b := &scene.Material{Name: "B", ID: 1, Props: scene.Props{
		{Key: scene.KeyEffect, Value: scene.Str("eut2.dif.spec")},
	}}

	m := scene.NewMesh("cube", "")
	m.Materials = []string{"A", "B"}
	for _, v := range cubeVerts {
		m.AddVertex(v)
	}
	for qi, q := range cubeQuads {
		mat := 0
		if qi >= 3 {
			mat = 1
		}
		for _, tri := range [][3]int{{q[0], q[1], q[2]}, {q[0], q[2], q[3]}} {
			f := m.AddFace(mat, tri[:]...)
			uv := make([]math.Vec2, 3)
			for i, v := range tri {
				// One UV per vertex so smooth shading dedups to the
				// vertex count.
				uv[i] = math.Vec2{X: (cubeVerts[v].X + 1) / 2, Y: (cubeVerts[v].Y + 1) / 2}
			}
			m.SetFaceUV("uv", f, uv...)
			m.SetFaceColor(scene.VertexColorLayer, f, [4]float32{1, 1, 1, 1})
			m.SetFaceColor(scene.ColorAlphaLayer, f, [4]float32{1, 1, 1, 1})
		}
	}
	if smooth {
		m.SmoothNormals()
	}

	root := &scene.Root{Name: "cube", World: math.Identity(), Meshes: []*scene.Mesh{m}}
	return &scene.Scene{Roots: []*scene.Root{root}, Materials: []*scene.Material{a, b}}, root
}

func build(t *testing.T, s *scene.Scene, root *scene.Root, opts Options) ([]*pix.Section, *builderResult) {
	t.Helper()
	set := trans.New()
	log := logger.NewStack()
	if opts.Name == "" {
		opts.Name = root.Name
	}
	out, err := Build(root, s, set, opts, log)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return out, &builderResult{set: set, log: log}
}

type builderResult struct {
	set *trans.Set
	log *logger.Stack
}

func TestCubeTwoMaterials(t *testing.T) {
	tests := []struct {
		name   string
		smooth bool
		verts  int
	}{
		{"smooth", true, 8},
		{"flat", false, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root := makeCubeScene(tt.smooth)
			out, res := build(t, s, root, Options{})

			pieces := pix.FindAll(out, "Piece")
			if len(pieces) != 2 {
				t.Fatalf("pieces = %d, want 2", len(pieces))
			}
			for i, p := range pieces {
				if idx, _ := p.Int("Index"); idx != i {
					t.Errorf("piece %d has Index %d", i, idx)
				}
				if mat, _ := p.Int("Material"); mat != i {
					t.Errorf("piece %d has Material %d", i, mat)
				}
				if n, _ := p.Int("VertexCount"); n != tt.verts {
					t.Errorf("piece %d VertexCount = %d, want %d", i, n, tt.verts)
				}
				if n, _ := p.Int("TriangleCount"); n != 6 {
					t.Errorf("piece %d TriangleCount = %d, want 6", i, n)
				}
				checkPieceStreams(t, p)
			}
			if res.set.Materials.Len() != 2 || res.set.Parts.Names()[0] != scene.DefaultPart {
				t.Errorf("registers: materials %v parts %v", res.set.Materials.Names(), res.set.Parts.Names())
			}
			if g := pix.Find(out, "Global"); g != nil {
				if n, _ := g.Int("TriangleCount"); n != 12 {
					t.Errorf("Global TriangleCount = %d", n)
				}
				if _, ok := g.Prop("Skeleton"); ok {
					t.Error("unskinned model has a Skeleton")
				}
			}
			if res.log.Warnings() != 0 {
				_, w := res.log.Messages()
				t.Errorf("unexpected warnings: %v", w)
			}
		})
	}
}

// checkPieceStreams asserts equal stream lengths, triangle indices in
// range and one entry per quantised attribute tuple.
func checkPieceStreams(t *testing.T, p *pix.Section) {
	t.Helper()
	streams := p.Children("Stream")
	n := len(streams[0].Rows)
	for _, s := range streams {
		if len(s.Rows) != n {
			tag, _ := s.Str("Tag")
			t.Errorf("stream %s has %d rows, want %d", tag, len(s.Rows), n)
		}
	}
	for _, r := range p.Child("Triangles").Rows {
		for _, i := range r.Ints() {
			if i < 0 || i >= n {
				t.Errorf("triangle %d index %d out of range", r.Index, i)
			}
		}
	}
	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		key := ""
		for _, s := range streams {
			for _, f := range s.Rows[i].Floats() {
				key += pix.FormatHex(float32(quant(f)))
			}
		}
		if seen[key] {
			t.Errorf("duplicate vertex %d", i)
		}
		seen[key] = true
	}
}

func TestPieceDedup(t *testing.T) {
	p := newPiece(0, 0, "m", "p", []string{"uv"}, false)
	v := Vertex{Source: 1, Normal: math.Vec3{Z: 1}, UV: []math.Vec2{{X: 0.5}}}
	a, isNew := p.AddVertex(v)
	if !isNew {
		t.Fatal("first vertex not new")
	}
	// Within a quantisation step the key matches.
	v.Normal.Z = 1.001
	if b, isNew := p.AddVertex(v); isNew || b != a {
		t.Errorf("near duplicate got %d new=%v", b, isNew)
	}
	v.Source = 2
	if b, isNew := p.AddVertex(v); !isNew || b != 1 {
		t.Errorf("other source got %d new=%v", b, isNew)
	}
	if len(p.UV[0]) != 2 || len(p.Normals) != 2 {
		t.Errorf("streams = %d %d", len(p.UV[0]), len(p.Normals))
	}
}

func TestMissingMaterialAndLayers(t *testing.T) {
	m := scene.NewMesh("tri", "")
	m.Materials = []string{"nope"}
	m.AddVertex(math.Vec3{})
	m.AddVertex(math.Vec3{X: 1})
	m.AddVertex(math.Vec3{Y: 1})
	m.AddFace(0, 0, 1, 2)
	m.AddFace(3, 0, 2, 1)
	root := &scene.Root{Name: "r", World: math.Identity(), Meshes: []*scene.Mesh{m}}
	s := &scene.Scene{Roots: []*scene.Root{root}}

	out, res := build(t, s, root, Options{})
	mats := pix.FindAll(out, "Material")
	if len(mats) != 1 {
		t.Fatalf("materials = %d, want 1", len(mats))
	}
	if a, _ := mats[0].Str("Alias"); a != DefaultMaterial {
		t.Errorf("alias = %q", a)
	}
	if e, _ := mats[0].Str("Effect"); e != DefaultEffect {
		t.Errorf("effect = %q", e)
	}
	// Material, colour and UV fallbacks each warn once.
	if w := res.log.Warnings(); w != 3 {
		_, msgs := res.log.Messages()
		t.Errorf("warnings = %d: %v", w, msgs)
	}
	p := pix.Find(out, "Piece")
	col := p.Children("Stream")[2]
	if f := col.Rows[0].Floats(); f[0] != 0.5 || f[3] != 0.5 {
		t.Errorf("fallback colour = %v", f)
	}
}

func TestMirroredMeshFlipsWinding(t *testing.T) {
	tri := func(world math.Mat4) [3]int {
		m := scene.NewMesh("tri", "")
		m.World = world
		m.AddVertex(math.Vec3{})
		m.AddVertex(math.Vec3{X: 1})
		m.AddVertex(math.Vec3{Y: 1})
		m.AddFace(0, 0, 1, 2)
		root := &scene.Root{Name: "r", World: math.Identity(), Meshes: []*scene.Mesh{m}}
		out, _ := build(t, &scene.Scene{}, root, Options{})
		r := pix.Find(out, "Piece").Child("Triangles").Rows[0].Ints()
		return [3]int{r[0], r[1], r[2]}
	}
	if got := tri(math.Identity()); got != [3]int{2, 1, 0} {
		t.Errorf("identity winding = %v, want reversed", got)
	}
	if got := tri(math.Scale(-1, 1, 1)); got != [3]int{0, 1, 2} {
		t.Errorf("mirrored winding = %v, want source order", got)
	}
}

func makeSkinned(weighted bool) (*scene.Scene, *scene.Root) {
	arm := &scene.Armature{Name: "rig", World: math.Identity()}
	arm.AddBone("root", -1, math.Identity())
	arm.AddBone("tip", 0, math.Translate(0, 0, 1))

	m := scene.NewMesh("quad", "")
	for _, v := range []math.Vec3{{}, {X: 1}, {X: 1, Z: 1}, {Z: 1}} {
		m.AddVertex(v)
	}
	m.AddFace(0, 0, 1, 2)
	m.AddFace(0, 0, 2, 3)
	m.AddToGroup("root", 0, 1)
	m.AddToGroup("root", 1, 1)
	m.AddToGroup("tip", 2, 0.5)
	m.AddToGroup("root", 2, 0.5)
	m.AddToGroup("not_a_bone", 3, 1)
	if weighted {
		m.AddToGroup("tip", 3, 1)
	}
	root := &scene.Root{Name: "r", World: math.Identity(), Meshes: []*scene.Mesh{m}, Armature: arm}
	return &scene.Scene{Roots: []*scene.Root{root}}, root
}

func TestSkin(t *testing.T) {
	s, root := makeSkinned(true)
	out, _ := build(t, s, root, Options{Skeleton: "r.pis"})

	if g := pix.Find(out, "Global"); g != nil {
		if n, _ := g.Int("BoneCount"); n != 2 {
			t.Errorf("BoneCount = %d", n)
		}
		if sk, _ := g.Str("Skeleton"); sk != "r.pis" {
			t.Errorf("Skeleton = %q", sk)
		}
	}
	if bones := pix.Find(out, "Bones"); bones == nil || len(bones.Rows) != 2 {
		t.Fatalf("bones = %v", bones)
	}
	ss := pix.Find(out, "Skin").Child("SkinStream")
	items, _ := ss.Int("ItemCount")
	clones, _ := ss.Int("TotalCloneCount")
	weights, _ := ss.Int("TotalWeightCount")
	verts, _ := pix.Find(out, "Piece").Int("VertexCount")
	if items != 4 || clones != verts || weights != 5 {
		t.Errorf("items %d clones %d (verts %d) weights %d", items, clones, verts, weights)
	}

	m, err := Read(out, nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(m.Skin) != 4 || len(m.Skin[2].Weights) != 2 || m.Skin[2].Weights[1].Bone != 1 {
		t.Errorf("skin = %+v", m.Skin)
	}
}

func TestUnskinnedVertex(t *testing.T) {
	s, root := makeSkinned(false)
	log := logger.NewStack()
	_, err := Build(root, s, trans.New(), Options{Name: "r"}, log)
	if !errors.Is(err, ErrUnskinnedVertex) {
		t.Fatalf("err = %v, want ErrUnskinnedVertex", err)
	}
	if log.Errors() != 1 {
		t.Errorf("errors = %d, want 1", log.Errors())
	}
}

func TestTerrainPoints(t *testing.T) {
	mk := func(variants []scene.Variant) *trans.Set {
		m := scene.NewMesh("tp", "road")
		m.AddVertex(math.Vec3{})
		m.AddVertex(math.Vec3{X: 1})
		m.AddVertex(math.Vec3{X: 9})
		m.AddFace(0, 0, 1, 2)
		m.AddToGroup("scs_tp_1", 0, 1)
		m.AddToGroup("scs_tp_1", 1, 1)
		m.AddToGroup("scs_tp_9", 2, 1)
		root := &scene.Root{Name: "r", World: math.Identity(), Meshes: []*scene.Mesh{m}, Parts: []string{"road", "other"}, Variants: variants}
		set := trans.New()
		if _, err := Build(root, &scene.Scene{}, set, Options{Name: "r"}, nil); err != nil {
			t.Fatal(err)
		}
		return set
	}

	set := mk(nil)
	if pts := set.TerrainPoints.Get(trans.GlobalVariant, 1); len(pts) != 2 || pts[1].Position.X != 1 {
		t.Errorf("global points = %v", pts)
	}

	set = mk([]scene.Variant{
		{Name: "a", Parts: []scene.VariantPart{{Name: "road", Include: true}}},
		{Name: "b", Parts: []scene.VariantPart{{Name: "road", Include: false}, {Name: "other", Include: true}}},
	})
	if got := set.TerrainPoints.Variants(); len(got) != 1 || got[0] != 0 {
		t.Errorf("variants with points = %v, want [0]", got)
	}
}

func TestModelLocatorsAndParts(t *testing.T) {
	s, root := makeCubeScene(true)
	l := scene.NewLocator("hook", scene.LocatorModel, "")
	l.Part = "lights"
	l.Hookup = "flare.front"
	l.World = math.Translate(0, 2, 0)
	root.Locators = append(root.Locators, l, scene.NewLocator("col", scene.LocatorCollision, scene.ColliderBox))

	out, res := build(t, s, root, Options{Scale: 2})
	locs := pix.FindAll(out, "Locator")
	if len(locs) != 1 {
		t.Fatalf("locators = %d", len(locs))
	}
	pos, _ := locs[0].Prop("Position")
	// Host +Y maps to engine -Z and the export scale applies.
	if f := pos.Floats(); f[0] != 0 || f[1] != 0 || f[2] != -4 {
		t.Errorf("position = %v", f)
	}
	if h, _ := locs[0].Str("Hookup"); h != "flare.front" {
		t.Errorf("hookup = %q", h)
	}
	if names := res.set.Parts.Names(); len(names) != 2 || names[1] != "lights" {
		t.Errorf("parts = %v", names)
	}
	parts := pix.FindAll(out, "Part")
	if lc, _ := parts[1].Int("LocatorCount"); lc != 1 {
		t.Errorf("lights LocatorCount = %d", lc)
	}
	if pc, _ := parts[0].Prop("Pieces"); len(pc.IntSlice()) != 2 {
		t.Errorf("default part pieces = %v", pc)
	}
}

func TestNoGeometry(t *testing.T) {
	root := &scene.Root{Name: "empty", World: math.Identity()}
	_, err := Build(root, &scene.Scene{}, trans.New(), Options{}, nil)
	if !errors.Is(err, ErrNoGeometry) {
		t.Errorf("err = %v, want ErrNoGeometry", err)
	}
}

func TestExtendedFormat(t *testing.T) {
	m := scene.NewMesh("quad", "")
	for _, v := range []math.Vec3{{}, {X: 1}, {X: 1, Y: 1}, {Y: 1}} {
		m.AddVertex(v)
	}
	f := m.AddFace(0, 0, 1, 2, 3)
	m.SetFaceUV("uv", f, math.Vec2{}, math.Vec2{X: 1}, math.Vec2{X: 1, Y: 1}, math.Vec2{Y: 1})
	m.SetFaceColor(scene.VertexColorLayer, f, [4]float32{1, 0, 0, 1})
	m.SetFaceColor(scene.ColorAlphaLayer, f, [4]float32{0.25, 0, 0, 1})
	m.SetFaceColor(scene.Color2Layer, f, [4]float32{0, 1, 0, 1})
	m.MarkSharp(0, 1)
	root := &scene.Root{Name: "ef", World: math.Identity(), Meshes: []*scene.Mesh{m}}

	out, res := build(t, &scene.Scene{}, root, Options{Format: FormatEF})
	h := pix.Find(out, "Header")
	if v, _ := h.Int("FormatVersion"); v != 1 {
		t.Errorf("FormatVersion = %d", v)
	}
	p := pix.Find(out, "Piece")
	if n, _ := p.Int("VertexCount"); n != 4 {
		t.Errorf("VertexCount = %d", n)
	}
	face := p.Child("Faces").Rows[0]
	idx, _ := face.Field("Indices")
	if got := idx.IntSlice(); len(got) != 4 || got[0] != 0 || got[3] != 3 {
		t.Errorf("indices = %v", got)
	}
	// Loops are reversed, so the first position is source vertex 3.
	first := p.Child("Stream").Rows[0].Floats()
	if first[0] != 0 || first[1] != 0 || first[2] != -1 {
		t.Errorf("first position = %v, want (0 0 -1)", first)
	}
	if _, ok := face.Field("RGBA1"); ok {
		t.Error("RGBA1 written with only one secondary layer")
	}
	col, _ := face.Field("RGBA")
	if c := col.Items[0].Floats(); c[0] != 1 || c[3] != 0.25 {
		t.Errorf("first loop colour = %v", c)
	}
	if e := p.Child("Edges"); e == nil || len(e.Rows) != 1 {
		t.Errorf("edges = %v", e)
	}
	// Default material and the lone secondary colour layer.
	if res.log.Warnings() != 2 {
		_, w := res.log.Messages()
		t.Errorf("warnings = %v", w)
	}
}

func TestExtendedSkinNormalised(t *testing.T) {
	s, root := makeSkinned(true)
	root.Meshes[0].AddToGroup("tip", 0, 3)
	out, res := build(t, s, root, Options{Format: FormatEF})
	ss := pix.Find(out, "Piece").Child("Skin").Child("SkinStream")
	found := false
	for _, r := range ss.Rows {
		// Vertex 0 sits at the origin; root 1 and tip 3 become 0.25 and 0.75.
		if f := r.Floats(); f[0] != 0 || f[1] != 0 || f[2] != 0 {
			continue
		}
		found = true
		w, _ := r.Field("Weights")
		if n, _ := w.Items[0].AsInt(); n != 2 {
			t.Fatalf("weights = %v", w)
		}
		a, _ := w.Items[2].AsFloat()
		b, _ := w.Items[4].AsFloat()
		if a != 0.25 || b != 0.75 {
			t.Errorf("normalised weights = %v %v", a, b)
		}
	}
	if !found {
		t.Fatal("no skin entry for vertex 0")
	}
	if res.log.Warnings() == 0 {
		t.Error("renormalisation not reported")
	}
	if pix.Find(out, "Skin") != nil {
		t.Error("extended format has a global skin")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s, root := makeCubeScene(true)
	out, _ := build(t, s, root, Options{Format: FormatDef})
	path := filepath.Join(t.TempDir(), "cube.pim")
	if err := pix.WriteFile(path, out, pix.DefaultIndent); err != nil {
		t.Fatal(err)
	}
	m, err := ReadFile(path, nil)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if m.Format != FormatDef || m.Name != "cube" || len(m.Pieces) != 2 || len(m.Materials) != 2 {
		t.Fatalf("model = %+v", m)
	}
	p := m.Pieces[0]
	if len(p.Triangles) != 6 || p.Stream(TagUV+"0") == nil || p.Stream(TagNormal) == nil {
		t.Errorf("piece = %+v", p)
	}
	if len(m.Parts) != 1 || len(m.Parts[0].Pieces) != 2 {
		t.Errorf("parts = %+v", m.Parts)
	}
}
