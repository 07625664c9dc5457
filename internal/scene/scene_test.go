package scene

import (
	"errors"
	"testing"

	"github.com/Faultbox/scs-forge/pkg/math"
)

func TestFCurveEvaluate(t *testing.T) {
	linear := FCurve{Keys: []Keyframe{
		{Frame: 0, Value: 0, Interp: InterpLinear},
		{Frame: 10, Value: 5, Interp: InterpLinear},
		{Frame: 20, Value: 5, Interp: InterpLinear},
	}}
	step := FCurve{Keys: []Keyframe{
		{Frame: 0, Value: 1, Interp: InterpConstant},
		{Frame: 4, Value: 3, Interp: InterpConstant},
	}}

	tests := []struct {
		name  string
		curve FCurve
		frame float32
		want  float32
	}{
		{"before first", linear, -5, 0},
		{"on key", linear, 10, 5},
		{"between", linear, 5, 2.5},
		{"after last", linear, 30, 5},
		{"constant holds", step, 3.9, 1},
		{"constant next key", step, 4, 3},
		{"empty", FCurve{}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.curve.Evaluate(tt.frame); got != tt.want {
				t.Errorf("Evaluate(%v) = %v, want %v", tt.frame, got, tt.want)
			}
		})
	}
}

func TestSplitBonePath(t *testing.T) {
	tests := []struct {
		path    string
		bone    string
		channel string
		ok      bool
	}{
		{`pose.bones["Arm.L"].location`, "Arm.L", "location", true},
		{BonePath("root", "rotation_quaternion"), "root", "rotation_quaternion", true},
		{"location", "", "", false},
		{`pose.bones["broken`, "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			b, c, ok := SplitBonePath(tt.path)
			if b != tt.bone || c != tt.channel || ok != tt.ok {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)", b, c, ok, tt.bone, tt.channel, tt.ok)
			}
		})
	}
}

func TestActionBonesAndRange(t *testing.T) {
	a := &Action{Name: "walk"}
	a.AddKey(BonePath("b2", "location"), 0, 2, 0)
	a.AddKey(BonePath("b1", "location"), 1, 0, 0)
	a.AddKey(BonePath("b2", "location"), 0, 12, 1)
	a.AddKey("location", 0, 5, 1)

	bones := a.Bones()
	if len(bones) != 2 || bones[0] != "b2" || bones[1] != "b1" {
		t.Errorf("Bones = %v, want [b2 b1]", bones)
	}
	if s, e := a.Range(); s != 0 || e != 12 {
		t.Errorf("Range = %d..%d, want 0..12", s, e)
	}
	got := a.Sample(BonePath("b2", "location"), 7, 9, 9, 9)
	if got[0] != 0.5 || got[1] != 9 || got[2] != 9 {
		t.Errorf("Sample = %v, want [0.5 9 9]", got)
	}
}

func TestMeshAddFace(t *testing.T) {
	m := NewMesh("quad", "")
	for _, v := range []math.Vec3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 0}, {X: 0, Y: 1, Z: 0}} {
		m.AddVertex(v)
	}
	m.UVLayer("uv", true)
	f := m.AddFace(0, 0, 1, 2, 3)
	m.SetFaceUV("uv", f, math.Vec2{}, math.Vec2{X: 1}, math.Vec2{X: 1, Y: 1}, math.Vec2{Y: 1})

	if m.Part != DefaultPart {
		t.Errorf("Part = %q, want default", m.Part)
	}
	if len(m.Loops) != 4 || m.Polygons[0].Count != 4 {
		t.Fatalf("loops = %d, polygon = %+v", len(m.Loops), m.Polygons[0])
	}
	for i, l := range m.Loops {
		if l.Normal.Distance(math.Vec3{Z: 1}) > 1e-6 {
			t.Errorf("loop %d normal = %v, want +Z", i, l.Normal)
		}
	}
	if uv := m.UVLayer("uv", false).UV[2]; uv != (math.Vec2{X: 1, Y: 1}) {
		t.Errorf("uv[2] = %v", uv)
	}

	m.AddToGroup("bone", 2, 0.5)
	m.AddToGroup("bone", 3, 1)
	if g := m.GroupIndex("bone"); g != 0 || m.Weights[2][g] != 0.5 {
		t.Errorf("group weights = %v", m.Weights)
	}
	m.MarkSharp(1, 2)
	if !m.IsSharp(2, 1) || m.IsSharp(0, 1) {
		t.Error("sharp edge lookup failed")
	}
}

func TestGraphCurves(t *testing.T) {
	r := &Root{Name: "x"}
	for _, n := range []string{"a", "b", "c", "m"} {
		sub := NavigationPoint
		if n == "m" {
			sub = MapPoint
		}
		r.Locators = append(r.Locators, NewLocator(n, LocatorPrefab, sub))
	}
	r.Connect("a", "b")
	r.Connect("b", "c")
	r.Connect("a", "c")
	r.Connect("c", "m")
	r.Connect("a", "missing")

	g := NewGraph(r)
	navs := r.Locators[:3]
	curves := g.Curves(navs)
	if len(curves) != 3 {
		t.Fatalf("curves = %d, want 3", len(curves))
	}
	// a->b is followed by b->c; b->c is preceded by a->b.
	if len(curves[0].Next) != 1 || curves[0].Next[0] != 1 {
		t.Errorf("next of a->b = %v", curves[0].Next)
	}
	if len(curves[1].Prev) != 1 || curves[1].Prev[0] != 0 {
		t.Errorf("prev of b->c = %v", curves[1].Prev)
	}
	if len(curves[2].Next) != 0 || len(curves[2].Prev) != 0 {
		t.Errorf("a->c links = %v %v", curves[2].Next, curves[2].Prev)
	}

	nb := g.Neighbours(r.Locator("c"))
	if len(nb) != 3 {
		t.Errorf("neighbours of c = %d, want 3", len(nb))
	}
}

func TestSnapshot(t *testing.T) {
	m := &Material{Name: "m", Props: Props{
		{KeyEffect, Str("eut2.dif")},
		{KeyID, Ints(3)},
		{KeyAliasing, Bool(true)},
		{TextureKey("base"), Str("/a.tobj")},
		{TextureKey("base") + SuffixLocked, Bool(true)},
		{TextureKey("base") + SuffixUV, Str("uv")},
		{TextureKey("base") + SuffixSettings, Ints(0)},
	}}
	got := Snapshot(m).Keys()
	want := []string{KeyEffect, TextureKey("base"), TextureKey("base") + SuffixUV}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, got[i], want[i])
		}
	}
}

const testScene = `
materials:
  - name: red
    props:
      mat_effect: eut2.dif
      shader_attribute_diffuse: [1.0, 0.0, 0.0]
      shader_texture_base: /model/red.tobj
      shader_texture_base_uv:
        - value: uv
  - name: glass
    props:
      mat_effect: eut2.glass
      enable_aliasing: true
actions:
  - name: open
    fcurves:
      - path: 'pose.bones["door"].location'
        index: 0
        keys: [[0, 0], [10, 1]]
roots:
  - name: box
    parts: [body, door]
    variants:
      - name: closed
        parts: {body: true, door: false}
    looks:
      - name: day
      - name: night
        materials:
          red:
            shader_attribute_diffuse: [0.2, 0.0, 0.0]
    active_look: night
    meshes:
      - name: tri
        part: body
        materials: [red, glass]
        vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
        faces:
          - verts: [0, 1, 2]
            uv: [[0, 0], [1, 0], [0, 1]]
        groups:
          door: {0: 1.0, 2: 0.25}
    locators:
      - name: nav0
        kind: prefab
        type: navigation_point
        transform: {location: [1, 2, 3]}
        prefab: {boundary_node: 0, boundary_lane: 1, blinker: left}
      - name: col
        kind: collision
        type: box
        collider: {centered: false, size: [2, 4, 6]}
    armature:
      name: rig
      bones:
        - name: root
        - name: door
          parent: root
          rotation_mode: xyz
    animations:
      - name: open
`

func TestLoad(t *testing.T) {
	s, err := Load([]byte(testScene))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r, ok := s.Root("box")
	if !ok {
		t.Fatal("root box missing")
	}

	if len(r.Variants) != 1 || len(r.Variants[0].Parts) != 2 || !r.Variants[0].Includes("body") || r.Variants[0].Includes("door") {
		t.Errorf("variants = %+v", r.Variants)
	}

	red, _ := s.Material("red")
	glass, _ := s.Material("glass")
	if red.ID != 0 || glass.ID != 1 || !glass.Aliasing() {
		t.Errorf("materials = %+v %+v", red, glass)
	}
	if uv := red.TextureUV("base"); len(uv) != 1 || uv[0] != "uv" {
		t.Errorf("TextureUV = %v", uv)
	}

	if len(r.Looks) != 2 || r.ActiveLook != 1 {
		t.Fatalf("looks = %d active %d", len(r.Looks), r.ActiveLook)
	}
	day := r.Looks[0].Entry(red.ID)
	night := r.Looks[1].Entry(red.ID)
	dv, _ := day.Props.Get(AttrKey("diffuse"))
	nv, _ := night.Props.Get(AttrKey("diffuse"))
	if dv.Floats[0] != 1 || nv.Floats[0] != 0.2 {
		t.Errorf("diffuse day %v night %v", dv, nv)
	}
	// The active look drives the material bag.
	if v, _ := red.Attribute("diffuse"); v.Floats[0] != 0.2 {
		t.Errorf("material diffuse = %v, want night value", v)
	}
	if day.Props.Has(KeyID) {
		t.Error("look entry carries mat_id")
	}

	m := r.Meshes[0]
	if m.Part != "body" || len(m.Polygons) != 1 || m.UVLayer("uv", false) == nil {
		t.Errorf("mesh = %+v", m)
	}
	if g := m.GroupIndex("door"); g < 0 || m.Weights[2][g] != 0.25 {
		t.Errorf("weights = %v", m.Weights)
	}

	nav := r.Locator("nav0")
	if nav.Position() != (math.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("nav position = %v", nav.Position())
	}
	if nav.Prefab.BoundaryLane != 1 || nav.Prefab.Blinker != "left" || nav.Prefab.SemaphoreID != -1 {
		t.Errorf("prefab props = %+v", nav.Prefab)
	}
	col := r.Locator("col")
	if col.Collider.Centered || col.Collider.Size != (math.Vec3{X: 2, Y: 4, Z: 6}) || col.Collider.Weight != 1 {
		t.Errorf("collider = %+v", col.Collider)
	}

	if r.Armature == nil || r.Armature.Bones[1].Parent != 0 || r.Armature.Bones[1].RotationMode != math.RotationXYZ {
		t.Errorf("armature = %+v", r.Armature)
	}
	if len(r.Animations) != 1 || r.Animations[0].Start != 0 || r.Animations[0].End != 10 || r.Animations[0].Action != "open" {
		t.Errorf("animations = %+v", r.Animations)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "roots: [\n"},
		{"unknown kind", "roots:\n  - name: r\n    locators:\n      - {name: l, kind: light}\n"},
		{"short face", "roots:\n  - name: r\n    meshes:\n      - name: m\n        vertices: [[0,0,0],[1,0,0]]\n        faces: [{verts: [0, 1]}]\n"},
		{"parent order", "roots:\n  - name: r\n    armature:\n      bones: [{name: a, parent: b}, {name: b}]\n"},
		{"unknown action", "roots:\n  - name: r\n    animations: [{name: x}]\n"},
		{"undeclared part", "roots:\n  - name: r\n    parts: [a]\n    variants: [{name: v, parts: {b: true}}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.doc)); !errors.Is(err, ErrScene) {
				t.Errorf("err = %v, want ErrScene", err)
			}
		})
	}
}
