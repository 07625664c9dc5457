package scene

import (
	"errors"
	"fmt"
	"maps"
	gomath "math"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/scs-forge/pkg/math"
)

// ErrScene reports a malformed scene description.
var ErrScene = errors.New("invalid scene")

// LoadFile reads a YAML scene description.
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scene %s: %w", path, err)
	}
	s, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

// Load decodes a YAML scene description.
func Load(data []byte) (*Scene, error) {
	var doc sceneDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScene, err)
	}

	s := &Scene{}
	for i, md := range doc.Materials {
		m := &Material{Name: md.Name, ID: i}
		if md.ID != nil {
			m.ID = *md.ID
		}
		props, err := decodeProps(&md.Props)
		if err != nil {
			return nil, fmt.Errorf("%w: material %s: %v", ErrScene, md.Name, err)
		}
		m.Props = props
		m.Props.Set(KeyID, Ints(m.ID))
		s.Materials = append(s.Materials, m)
	}
	for _, ad := range doc.Actions {
		s.Actions = append(s.Actions, ad.action())
	}
	for _, rd := range doc.Roots {
		r, err := rd.root(s)
		if err != nil {
			return nil, fmt.Errorf("%w: root %s: %v", ErrScene, rd.Name, err)
		}
		s.Roots = append(s.Roots, r)
	}
	return s, nil
}

type sceneDoc struct {
	Materials []materialDoc `yaml:"materials"`
	Actions   []actionDoc   `yaml:"actions"`
	Roots     []rootDoc     `yaml:"roots"`
}

type materialDoc struct {
	Name  string    `yaml:"name"`
	ID    *int      `yaml:"id"`
	Props yaml.Node `yaml:"props"`
}

// transformDoc is either a row-major matrix or location, rotation and
// scale. Rotation is a (w, x, y, z) quaternion; Euler is degrees.
type transformDoc struct {
	Matrix   []float32 `yaml:"matrix"`
	Location []float32 `yaml:"location"`
	Rotation []float32 `yaml:"rotation"`
	Euler    []float32 `yaml:"euler"`
	Scale    []float32 `yaml:"scale"`
}

func (t *transformDoc) mat() (math.Mat4, error) {
	if t == nil {
		return math.Identity(), nil
	}
	if len(t.Matrix) > 0 {
		if len(t.Matrix) != 16 {
			return math.Mat4{}, fmt.Errorf("matrix needs 16 values, got %d", len(t.Matrix))
		}
		var rows [16]float32
		copy(rows[:], t.Matrix)
		return math.FromRowMajor(rows), nil
	}
	loc, err := vec3(t.Location, math.Vec3{})
	if err != nil {
		return math.Mat4{}, fmt.Errorf("location: %w", err)
	}
	sca, err := vec3(t.Scale, math.Vec3{X: 1, Y: 1, Z: 1})
	if err != nil {
		return math.Mat4{}, fmt.Errorf("scale: %w", err)
	}
	rot := math.QuatIdentity()
	switch {
	case len(t.Rotation) == 4:
		rot = math.Quat{W: t.Rotation[0], X: t.Rotation[1], Y: t.Rotation[2], Z: t.Rotation[3]}.Normalize()
	case len(t.Rotation) != 0:
		return math.Mat4{}, fmt.Errorf("rotation needs 4 values, got %d", len(t.Rotation))
	case len(t.Euler) == 3:
		rad := func(d float32) float32 { return d * gomath.Pi / 180 }
		e := math.EulerToMat4(math.Vec3{X: rad(t.Euler[0]), Y: rad(t.Euler[1]), Z: rad(t.Euler[2])}, math.RotationXYZ)
		rot = math.QuatFromMat4(e)
	}
	return math.Compose(loc, rot, sca), nil
}

func vec3(v []float32, def math.Vec3) (math.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	}
	return math.Vec3{}, fmt.Errorf("need 3 values, got %d", len(v))
}

type rootDoc struct {
	Name        string         `yaml:"name"`
	Transform   *transformDoc  `yaml:"transform"`
	Parts       []string       `yaml:"parts"`
	Variants    []variantDoc   `yaml:"variants"`
	Looks       []lookDoc      `yaml:"looks"`
	ActiveLook  string         `yaml:"active_look"`
	Meshes      []meshDoc      `yaml:"meshes"`
	Locators    []locatorDoc   `yaml:"locators"`
	Armature    *armatureDoc   `yaml:"armature"`
	Animations  []animationDoc `yaml:"animations"`
	Skeleton    string         `yaml:"skeleton"`
	AnimFolder  string         `yaml:"anim_folder"`
	Connections [][2]string    `yaml:"connections"`
}

type variantDoc struct {
	Name  string          `yaml:"name"`
	Parts map[string]bool `yaml:"parts"`
}

// lookDoc overrides material properties for one look. Materials not
// listed take their base properties.
type lookDoc struct {
	Name      string               `yaml:"name"`
	Materials map[string]yaml.Node `yaml:"materials"`
}

type animationDoc struct {
	Name   string  `yaml:"name"`
	Action string  `yaml:"action"`
	Start  *int    `yaml:"start"`
	End    *int    `yaml:"end"`
	Length float32 `yaml:"length"`
}

func (d *rootDoc) root(s *Scene) (*Root, error) {
	world, err := d.Transform.mat()
	if err != nil {
		return nil, err
	}
	r := &Root{
		Name:         d.Name,
		World:        world,
		Parts:        d.Parts,
		SkeletonPath: d.Skeleton,
		AnimFolder:   d.AnimFolder,
		Connections:  d.Connections,
	}

	for _, vd := range d.Variants {
		v := Variant{Name: vd.Name}
		// Keep declared part order; parts the variant does not mention
		// are excluded.
		for _, p := range d.Parts {
			if inc, ok := vd.Parts[p]; ok {
				v.Parts = append(v.Parts, VariantPart{Name: p, Include: inc})
			}
		}
		for p := range vd.Parts {
			if !slices.Contains(d.Parts, p) {
				return nil, fmt.Errorf("variant %s names undeclared part %q", vd.Name, p)
			}
		}
		r.Variants = append(r.Variants, v)
	}

	for i := range d.Meshes {
		m, err := d.Meshes[i].mesh()
		if err != nil {
			return nil, fmt.Errorf("mesh %s: %w", d.Meshes[i].Name, err)
		}
		r.Meshes = append(r.Meshes, m)
	}
	for i := range d.Locators {
		l, err := d.Locators[i].locator()
		if err != nil {
			return nil, fmt.Errorf("locator %s: %w", d.Locators[i].Name, err)
		}
		r.Locators = append(r.Locators, l)
	}
	if d.Armature != nil {
		a, err := d.Armature.armature()
		if err != nil {
			return nil, fmt.Errorf("armature: %w", err)
		}
		r.Armature = a
	}

	if err := d.looks(s, r); err != nil {
		return nil, err
	}

	for _, ad := range d.Animations {
		a := Animation{Name: ad.Name, Action: ad.Action, Length: ad.Length}
		if a.Action == "" {
			a.Action = a.Name
		}
		act, ok := s.Action(a.Action)
		if !ok {
			return nil, fmt.Errorf("animation %s: unknown action %q", a.Name, a.Action)
		}
		a.Start, a.End = act.Range()
		if ad.Start != nil {
			a.Start = *ad.Start
		}
		if ad.End != nil {
			a.End = *ad.End
		}
		r.Animations = append(r.Animations, a)
	}
	return r, nil
}

// looks snapshots the materials used by the root into every declared
// look, then applies per-look overrides. Without declared looks a single
// "default" look is created.
func (d *rootDoc) looks(s *Scene, r *Root) error {
	var used []*Material
	for _, m := range r.Meshes {
		for _, name := range m.Materials {
			mat, ok := s.Material(name)
			if ok && !slices.Contains(used, mat) {
				used = append(used, mat)
			}
		}
	}

	docs := d.Looks
	if len(docs) == 0 {
		docs = []lookDoc{{Name: "default"}}
	}
	for _, ld := range docs {
		look := Look{Name: ld.Name}
		for _, mat := range used {
			look.Entries = append(look.Entries, LookEntry{MaterialID: mat.ID, Props: Snapshot(mat)})
		}
		for name, node := range ld.Materials {
			mat, ok := s.Material(name)
			if !ok {
				return fmt.Errorf("look %s: unknown material %q", ld.Name, name)
			}
			e := look.Entry(mat.ID)
			if e == nil {
				continue
			}
			over, err := decodeProps(&node)
			if err != nil {
				return fmt.Errorf("look %s: material %s: %w", ld.Name, name, err)
			}
			for _, p := range over {
				e.Props.Set(p.Key, p.Value)
			}
		}
		r.Looks = append(r.Looks, look)
	}
	for i, l := range r.Looks {
		if l.Name == d.ActiveLook {
			r.ActiveLook = i
		}
	}

	// The material bags carry the active look's values.
	active := r.Looks[r.ActiveLook]
	for _, mat := range used {
		if e := active.Entry(mat.ID); e != nil {
			for _, p := range e.Props {
				mat.Props.Set(p.Key, p.Value.Clone())
			}
		}
	}
	return nil
}

type faceDoc struct {
	Verts    []int        `yaml:"verts"`
	Material int          `yaml:"material"`
	UV       [][2]float32 `yaml:"uv"`
	Color    []float32    `yaml:"color"`
}

type meshDoc struct {
	Name      string        `yaml:"name"`
	Part      string        `yaml:"part"`
	Transform *transformDoc `yaml:"transform"`
	Materials []string      `yaml:"materials"`
	Vertices  [][3]float32  `yaml:"vertices"`
	Faces     []faceDoc     `yaml:"faces"`
	// UVLayer names the layer face UVs go to; default "uv".
	UVLayer string `yaml:"uv_layer"`
	// ExtraUVLayers are added with zero coordinates.
	ExtraUVLayers []string `yaml:"extra_uv_layers"`
	// Colors maps a colour layer name to a face colour used for every
	// face without its own.
	Colors     map[string][]float32       `yaml:"colors"`
	Groups     map[string]map[int]float32 `yaml:"groups"`
	SharpEdges [][2]int                   `yaml:"sharp_edges"`
	Smooth     bool                       `yaml:"smooth"`
}

func (d *meshDoc) mesh() (*Mesh, error) {
	m := NewMesh(d.Name, d.Part)
	world, err := d.Transform.mat()
	if err != nil {
		return nil, err
	}
	m.World = world
	m.Materials = d.Materials
	for _, v := range d.Vertices {
		m.AddVertex(math.V3(v))
	}

	uvLayer := d.UVLayer
	if uvLayer == "" {
		uvLayer = "uv"
	}
	for fi, f := range d.Faces {
		if len(f.Verts) < 3 {
			return nil, fmt.Errorf("face %d has %d vertices", fi, len(f.Verts))
		}
		for _, v := range f.Verts {
			if v < 0 || v >= len(m.Vertices) {
				return nil, fmt.Errorf("face %d: vertex %d out of range", fi, v)
			}
		}
		face := m.AddFace(f.Material, f.Verts...)
		if len(f.UV) > 0 {
			if len(f.UV) != len(f.Verts) {
				return nil, fmt.Errorf("face %d: %d uvs for %d vertices", fi, len(f.UV), len(f.Verts))
			}
			uv := make([]math.Vec2, len(f.UV))
			for i, c := range f.UV {
				uv[i] = math.Vec2{X: c[0], Y: c[1]}
			}
			m.SetFaceUV(uvLayer, face, uv...)
		}
		if len(f.Color) > 0 {
			c, err := rgba(f.Color)
			if err != nil {
				return nil, fmt.Errorf("face %d: %w", fi, err)
			}
			m.SetFaceColor(VertexColorLayer, face, c)
		}
	}
	for _, name := range d.ExtraUVLayers {
		m.UVLayer(name, true)
	}
	for _, name := range slices.Sorted(maps.Keys(d.Colors)) {
		col := d.Colors[name]
		c, err := rgba(col)
		if err != nil {
			return nil, fmt.Errorf("colour layer %s: %w", name, err)
		}
		existing := m.ColorLayer(name, false)
		for fi := range m.Polygons {
			if existing != nil && existing.Color[m.Polygons[fi].Start] != ([4]float32{}) {
				continue
			}
			m.SetFaceColor(name, fi, c)
		}
	}
	for _, g := range slices.Sorted(maps.Keys(d.Groups)) {
		for v, w := range d.Groups[g] {
			if v < 0 || v >= len(m.Vertices) {
				return nil, fmt.Errorf("group %s: vertex %d out of range", g, v)
			}
			m.AddToGroup(g, v, w)
		}
	}
	m.SharpEdges = d.SharpEdges
	if d.Smooth {
		m.SmoothNormals()
	}
	return m, nil
}

func rgba(c []float32) ([4]float32, error) {
	switch len(c) {
	case 1:
		return [4]float32{c[0], c[0], c[0], 1}, nil
	case 3:
		return [4]float32{c[0], c[1], c[2], 1}, nil
	case 4:
		return [4]float32{c[0], c[1], c[2], c[3]}, nil
	}
	return [4]float32{}, fmt.Errorf("colour needs 1, 3 or 4 values, got %d", len(c))
}

type colliderDoc struct {
	Centered *bool        `yaml:"centered"`
	Weight   *float32     `yaml:"weight"`
	Size     []float32    `yaml:"size"`
	Radius   *float32     `yaml:"radius"`
	Length   *float32     `yaml:"length"`
	Vertices [][3]float32 `yaml:"vertices"`
	Faces    [][3]int     `yaml:"faces"`
}

type locatorDoc struct {
	Name      string        `yaml:"name"`
	Kind      LocatorKind   `yaml:"kind"`
	Type      SubKind       `yaml:"type"`
	Part      string        `yaml:"part"`
	Transform *transformDoc `yaml:"transform"`
	Hookup    string        `yaml:"hookup"`
	Collider  *colliderDoc  `yaml:"collider"`
	Prefab    yaml.Node     `yaml:"prefab"`
}

func (d *locatorDoc) locator() (*Locator, error) {
	switch d.Kind {
	case LocatorModel, LocatorPrefab, LocatorCollision:
	default:
		return nil, fmt.Errorf("unknown kind %q", d.Kind)
	}
	l := NewLocator(d.Name, d.Kind, d.Type)
	if d.Part != "" {
		l.Part = d.Part
	}
	world, err := d.Transform.mat()
	if err != nil {
		return nil, err
	}
	l.World = world
	l.Hookup = d.Hookup

	if c := d.Collider; c != nil {
		if c.Centered != nil {
			l.Collider.Centered = *c.Centered
		}
		if c.Weight != nil {
			l.Collider.Weight = *c.Weight
		}
		if c.Radius != nil {
			l.Collider.Radius = *c.Radius
		}
		if c.Length != nil {
			l.Collider.Length = *c.Length
		}
		if l.Collider.Size, err = vec3(c.Size, l.Collider.Size); err != nil {
			return nil, fmt.Errorf("size: %w", err)
		}
		for _, v := range c.Vertices {
			l.Collider.Hull.Vertices = append(l.Collider.Hull.Vertices, math.V3(v))
		}
		l.Collider.Hull.Faces = c.Faces
	}
	if !d.Prefab.IsZero() {
		if err := d.Prefab.Decode(&l.Prefab); err != nil {
			return nil, fmt.Errorf("prefab: %w", err)
		}
	}
	return l, nil
}

type boneDoc struct {
	Name         string        `yaml:"name"`
	Parent       string        `yaml:"parent"`
	Transform    *transformDoc `yaml:"transform"`
	RotationMode string        `yaml:"rotation_mode"`
}

type armatureDoc struct {
	Name      string        `yaml:"name"`
	Transform *transformDoc `yaml:"transform"`
	Bones     []boneDoc     `yaml:"bones"`
}

func (d *armatureDoc) armature() (*Armature, error) {
	world, err := d.Transform.mat()
	if err != nil {
		return nil, err
	}
	a := &Armature{Name: d.Name, World: world}
	for _, bd := range d.Bones {
		parent := -1
		if bd.Parent != "" {
			if parent = a.BoneIndex(bd.Parent); parent < 0 {
				return nil, fmt.Errorf("bone %s: parent %q must precede it", bd.Name, bd.Parent)
			}
		}
		rest, err := bd.Transform.mat()
		if err != nil {
			return nil, fmt.Errorf("bone %s: %w", bd.Name, err)
		}
		mode, err := math.ParseRotationMode(bd.RotationMode)
		if err != nil {
			return nil, fmt.Errorf("bone %s: %w", bd.Name, err)
		}
		i := a.AddBone(bd.Name, parent, rest)
		a.Bones[i].RotationMode = mode
	}
	return a, nil
}

type fcurveDoc struct {
	Path   string       `yaml:"path"`
	Index  int          `yaml:"index"`
	Interp string       `yaml:"interp"`
	Keys   [][2]float32 `yaml:"keys"`
}

type actionDoc struct {
	Name    string      `yaml:"name"`
	FCurves []fcurveDoc `yaml:"fcurves"`
}

func (d *actionDoc) action() *Action {
	a := &Action{Name: d.Name}
	for _, cd := range d.FCurves {
		interp := Interpolation(cd.Interp)
		if interp != InterpConstant {
			interp = InterpLinear
		}
		c := FCurve{DataPath: cd.Path, Index: cd.Index}
		for _, k := range cd.Keys {
			c.Keys = append(c.Keys, Keyframe{Frame: k[0], Value: k[1], Interp: interp})
		}
		a.FCurves = append(a.FCurves, c)
	}
	return a
}

// decodeProps converts a YAML mapping into an ordered property bag.
// Booleans become ints, numeric lists become floats unless every item is
// an integer, and lists of mappings become collections.
func decodeProps(n *yaml.Node) (Props, error) {
	if n.IsZero() {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: properties must be a mapping", n.Line)
	}
	var out Props
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		v, err := decodeValue(n.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out.Set(key, v)
	}
	return out, nil
}

func decodeValue(n *yaml.Node) (Value, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return Value{}, err
			}
			return Bool(b), nil
		case "!!int":
			var i int
			if err := n.Decode(&i); err != nil {
				return Value{}, err
			}
			return Ints(i), nil
		case "!!float":
			var f float32
			if err := n.Decode(&f); err != nil {
				return Value{}, err
			}
			return Floats(f), nil
		}
		return Str(n.Value), nil

	case yaml.SequenceNode:
		if len(n.Content) > 0 && n.Content[0].Kind == yaml.MappingNode {
			var recs []Props
			for _, c := range n.Content {
				r, err := decodeProps(c)
				if err != nil {
					return Value{}, err
				}
				recs = append(recs, r)
			}
			return Collection(recs...), nil
		}
		allInt := true
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode || (c.Tag != "!!int" && c.Tag != "!!float") {
				return Value{}, fmt.Errorf("line %d: lists hold numbers or mappings", c.Line)
			}
			if c.Tag != "!!int" {
				allInt = false
			}
		}
		if allInt {
			var ints []int
			if err := n.Decode(&ints); err != nil {
				return Value{}, err
			}
			return Ints(ints...), nil
		}
		var fs []float32
		if err := n.Decode(&fs); err != nil {
			return Value{}, err
		}
		return Floats(fs...), nil
	}
	return Value{}, fmt.Errorf("line %d: unsupported value", n.Line)
}
