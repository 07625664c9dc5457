// Package pic builds and reads collision files: typed collider locators
// and the convex hull pieces they reference.
package pic

import (
	"errors"
	"fmt"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var (
	ErrNoColliders = errors.New("no collision locators")
	ErrFormat      = errors.New("invalid collision file")
)

// Version is the FormatVersion of collision files.
const Version = 2

// Source is written to the Source header field.
const Source = "scs-forge 1.0"

// Shared material of convex pieces.
const (
	ConvexAlias  = "convex"
	ConvexEffect = "dry.void"
)

// Type names of collider locators.
var typeNames = map[scene.SubKind]string{
	scene.ColliderBox:      "Box",
	scene.ColliderSphere:   "Sphere",
	scene.ColliderCapsule:  "Capsule",
	scene.ColliderCylinder: "Cylinder",
	scene.ColliderConvex:   "Convex",
}

// Options configures a build.
type Options struct {
	Name  string
	Scale float32
}

// Build assembles the collision file of root. Locator parts are added to
// set.Parts after the ones the model registered.
func Build(root *scene.Root, p scene.Provider, set *trans.Set, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	var locs []*scene.Locator
	for _, l := range p.Locators(root) {
		if l.Kind != scene.LocatorCollision {
			continue
		}
		if _, ok := typeNames[l.SubKind]; !ok {
			log.Warnf("collision locator %q has unknown type %q, skipped", l.Name, l.SubKind)
			continue
		}
		locs = append(locs, l)
	}
	if len(locs) == 0 {
		return nil, ErrNoColliders
	}

	var pieces []*pix.Section
	convexPiece := make(map[*scene.Locator]int)
	verts, tris := 0, 0
	for _, l := range locs {
		set.Parts.Add(l.Part)
		if l.SubKind != scene.ColliderConvex {
			continue
		}
		hull := l.Collider.Hull
		if len(hull.Vertices) == 0 || len(hull.Faces) == 0 {
			log.Errorf("convex collider %q has no hull geometry, skipped", l.Name)
			continue
		}
		convexPiece[l] = len(pieces)
		pieces = append(pieces, convexSection(len(pieces), l, root.World, opts.Scale, log))
		verts += len(hull.Vertices)
		tris += len(hull.Faces)
	}

	var out []*pix.Section
	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(Version))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Collision"))
	h.Add("Name", pix.String(opts.Name))
	out = append(out, h)

	materials := 0
	if len(pieces) > 0 {
		materials = 1
	}
	g := pix.NewSection("Global")
	g.Add("VertexCount", pix.Int(verts))
	g.Add("TriangleCount", pix.Int(tris))
	g.Add("MaterialCount", pix.Int(materials))
	g.Add("PieceCount", pix.Int(len(pieces)))
	g.Add("PartCount", pix.Int(set.Parts.Len()))
	g.Add("LocatorCount", pix.Int(len(locs)))
	out = append(out, g)

	if materials > 0 {
		m := pix.NewSection("Material")
		m.Add("Alias", pix.String(ConvexAlias))
		m.Add("Effect", pix.String(ConvexEffect))
		out = append(out, m)
	}
	out = append(out, pieces...)

	for _, part := range set.Parts.Names() {
		var pcs, ls []int
		for i, l := range locs {
			if l.Part != part {
				continue
			}
			ls = append(ls, i)
			if pi, ok := convexPiece[l]; ok {
				pcs = append(pcs, pi)
			}
		}
		s := pix.NewSection("Part")
		s.Add("Name", pix.String(part))
		s.Add("PieceCount", pix.Int(len(pcs)))
		s.Add("LocatorCount", pix.Int(len(ls)))
		s.Add("Pieces", pix.Ints(pcs...))
		s.Add("Locators", pix.Ints(ls...))
		out = append(out, s)
	}

	for i, l := range locs {
		pi, hasPiece := convexPiece[l]
		if l.SubKind == scene.ColliderConvex && !hasPiece {
			pi = -1
		}
		out = append(out, locatorSection(i, l, root.World, opts.Scale, pi))
	}
	return out, nil
}

// centre returns the host offset from the locator origin to the collider
// centre. Non-centred colliders stand on their origin.
func centre(l *scene.Locator) math.Vec3 {
	c := l.Collider
	if c.Centered {
		return math.Vec3{}
	}
	switch l.SubKind {
	case scene.ColliderBox:
		return math.Vec3{Z: c.Size.Z / 2}
	case scene.ColliderSphere:
		return math.Vec3{Z: c.Radius}
	case scene.ColliderCapsule:
		return math.Vec3{Z: c.Length/2 + c.Radius}
	case scene.ColliderCylinder:
		return math.Vec3{Z: c.Length / 2}
	}
	return math.Vec3{}
}

// Parameters returns the four collider parameters in engine units.
func Parameters(l *scene.Locator, scale float32) [4]float32 {
	c := l.Collider
	switch l.SubKind {
	case scene.ColliderBox:
		return [4]float32{c.Size.X * scale, c.Size.Z * scale, c.Size.Y * scale, 0}
	case scene.ColliderSphere:
		return [4]float32{c.Radius * scale, 0, 0, 0}
	case scene.ColliderCapsule, scene.ColliderCylinder:
		return [4]float32{c.Radius * scale, c.Length * scale, 0, 0}
	}
	return [4]float32{}
}

func locatorSection(index int, l *scene.Locator, root math.Mat4, scale float32, piece int) *pix.Section {
	o := centre(l)
	world := l.World.Mul(math.Translate(o.X, o.Y, o.Z))
	pos, rot, _ := convert.Transform(root, world, scale)

	s := pix.NewSection("Locator")
	s.Add("Name", pix.String(l.Name))
	s.Add("Index", pix.Int(index))
	s.Add("Position", pix.Hexes(pos.X, pos.Y, pos.Z))
	q := rot.WXYZ()
	s.Add("Rotation", pix.Hexes(q[:]...))
	s.Add("Alias", pix.String(""))
	s.Add("Weight", pix.Hex(l.Collider.Weight))
	s.Add("Type", pix.String(typeNames[l.SubKind]))
	if l.SubKind == scene.ColliderConvex {
		s.Add("ConvexPiece", pix.Int(piece))
	} else {
		p := Parameters(l, scale)
		s.Add("Parameters", pix.Hexes(p[:]...))
	}
	return s
}

// convexSection writes a hull in locator space. The locator scale is
// baked into the positions since the locator carries none.
func convexSection(index int, l *scene.Locator, root math.Mat4, scale float32, log *logger.Stack) *pix.Section {
	_, _, sca := root.Inverse().Mul(l.World).Decompose()
	hull := l.Collider.Hull

	s := pix.NewSection("Piece")
	s.Add("Index", pix.Int(index))
	s.Add("Material", pix.Int(0))
	s.Add("VertexCount", pix.Int(len(hull.Vertices)))
	s.Add("TriangleCount", pix.Int(len(hull.Faces)))
	s.Add("StreamCount", pix.Int(1))

	pos := pix.NewSection("Stream")
	pos.Add("Format", pix.Name("FLOAT3"))
	pos.Add("Tag", pix.String("_POSITION"))
	for _, v := range hull.Vertices {
		p := convert.Position(math.Vec3{X: v.X * sca.X, Y: v.Y * sca.Y, Z: v.Z * sca.Z}, scale)
		pos.AddRow(pix.Hex(p.X), pix.Hex(p.Y), pix.Hex(p.Z))
	}
	s.AddSection(pos)

	tri := pix.NewSection("Triangles")
	for fi, f := range hull.Faces {
		for _, x := range f {
			if x < 0 || x >= len(hull.Vertices) {
				log.Errorf("convex collider %q: face %d index %d out of range", l.Name, fi, x)
			}
		}
		tri.AddRow(pix.Int(f[2]), pix.Int(f[1]), pix.Int(f[0]))
	}
	s.AddSection(tri)
	return s
}

// Collision is a decoded collision file.
type Collision struct {
	Name      string
	Materials []string
	Pieces    []Piece
	Parts     []Part
	Locators  []Locator
}

// Piece is a decoded convex hull.
type Piece struct {
	Index     int
	Positions [][3]float32
	Triangles [][3]int
}

// Part is a decoded part.
type Part struct {
	Name     string
	Pieces   []int
	Locators []int
}

// Locator is a decoded collider.
type Locator struct {
	Name        string
	Index       int
	Position    [3]float32
	Rotation    [4]float32
	Weight      float32
	Type        string
	Parameters  [4]float32
	ConvexPiece int
}

// ReadFile parses and decodes a collision file.
func ReadFile(path string, log *logger.Stack) (*Collision, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes collision sections.
func Read(sections []*pix.Section, log *logger.Stack) (*Collision, error) {
	typ, version, ok := pix.HeaderOf(sections)
	if !ok || typ != "Collision" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	if version != Version {
		log.Warnf("collision file version %d, expected %d", version, Version)
	}
	c := &Collision{}
	c.Name, _ = pix.Find(sections, "Header").Str("Name")

	for _, s := range sections {
		switch s.Type {
		case "Material":
			alias, _ := s.Str("Alias")
			c.Materials = append(c.Materials, alias)
		case "Piece":
			p := Piece{}
			p.Index, _ = s.Int("Index")
			if st := s.Child("Stream"); st != nil {
				for _, r := range st.Rows {
					var v [3]float32
					copy(v[:], r.Floats())
					p.Positions = append(p.Positions, v)
				}
			}
			if t := s.Child("Triangles"); t != nil {
				for _, r := range t.Rows {
					idx := r.Ints()
					if len(idx) != 3 {
						log.Warnf("collision piece %d: triangle %d has %d indices", p.Index, r.Index, len(idx))
						continue
					}
					p.Triangles = append(p.Triangles, [3]int{idx[0], idx[1], idx[2]})
				}
			}
			c.Pieces = append(c.Pieces, p)
		case "Part":
			name, _ := s.Str("Name")
			pcs, _ := s.Prop("Pieces")
			ls, _ := s.Prop("Locators")
			c.Parts = append(c.Parts, Part{Name: name, Pieces: pcs.IntSlice(), Locators: ls.IntSlice()})
		case "Locator":
			l := Locator{ConvexPiece: -1}
			l.Name, _ = s.Str("Name")
			l.Index, _ = s.Int("Index")
			l.Type, _ = s.Str("Type")
			l.Weight, _ = s.Float("Weight")
			if v, ok := s.Prop("Position"); ok {
				copy(l.Position[:], v.Floats())
			}
			if v, ok := s.Prop("Rotation"); ok {
				copy(l.Rotation[:], v.Floats())
			}
			if v, ok := s.Prop("Parameters"); ok {
				copy(l.Parameters[:], v.Floats())
			}
			if p, ok := s.Int("ConvexPiece"); ok {
				l.ConvexPiece = p
				if p < 0 || p >= len(c.Pieces) {
					log.Errorf("collider %q references convex piece %d of %d", l.Name, p, len(c.Pieces))
				}
			}
			c.Locators = append(c.Locators, l)
		}
	}
	return c, nil
}
