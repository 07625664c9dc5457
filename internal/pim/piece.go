package pim

import (
	"encoding/binary"
	gomath "math"

	"github.com/Faultbox/scs-forge/pkg/math"
)

// Vertex is one corner sample fed to a piece.
type Vertex struct {
	Source   int // original mesh vertex index
	Position math.Vec3
	Normal   math.Vec3
	UV       []math.Vec2
	RGBA     [4]float32
	Tangent  [4]float32
}

// Piece is the geometry of one object and one material.
type Piece struct {
	Index    int
	Material int
	Mesh     string
	Part     string

	// UVLayers names the source layers behind _UV0.._UVn.
	UVLayers     []string
	HasTangent   bool
	tangentLayer string

	Positions []math.Vec3
	Normals   []math.Vec3
	Tangents  [][4]float32
	UV        [][]math.Vec2 // per layer, per vertex
	RGBA      [][4]float32
	Triangles [][3]int
	// Sources holds the original mesh vertex of each piece vertex.
	Sources []int

	keys map[string]int
	buf  []byte

	// Extended format data.
	Faces     []Face
	HardEdges [][2]int
	RGBA1     bool
	vertIndex map[int]int
	Weights   []map[int]float32
}

// Face is a polygon of an extended format piece. Per-loop attributes
// follow the order of Indices.
type Face struct {
	Indices []int
	Normals []math.Vec3
	UV      [][]math.Vec2 // per layer, per loop
	RGBA    [][4]float32
	RGBA1   [][4]float32
}

func newPiece(index, material int, mesh, part string, uvLayers []string, tangent bool) *Piece {
	return &Piece{
		Index:      index,
		Material:   material,
		Mesh:       mesh,
		Part:       part,
		UVLayers:   uvLayers,
		HasTangent: tangent,
		UV:         make([][]math.Vec2, len(uvLayers)),
		keys:       make(map[string]int),
		vertIndex:  make(map[int]int),
	}
}

func quant(f float32) int64 {
	return int64(gomath.Round(float64(f) * fprec))
}

func (p *Piece) key(v *Vertex) string {
	b := p.buf[:0]
	b = binary.AppendVarint(b, int64(v.Source))
	for _, f := range [...]float32{v.Normal.X, v.Normal.Y, v.Normal.Z} {
		b = binary.AppendVarint(b, quant(f))
	}
	for _, uv := range v.UV {
		b = binary.AppendVarint(b, quant(uv.X))
		b = binary.AppendVarint(b, quant(uv.Y))
	}
	for _, f := range v.RGBA {
		b = binary.AppendVarint(b, quant(f))
	}
	if p.HasTangent {
		for _, f := range v.Tangent {
			b = binary.AppendVarint(b, quant(f))
		}
	}
	p.buf = b
	return string(b)
}

// AddVertex returns the stream index of v, appending it when no vertex
// with the same quantised attributes exists. The second result reports
// whether a new entry was made.
func (p *Piece) AddVertex(v Vertex) (int, bool) {
	k := p.key(&v)
	if i, ok := p.keys[k]; ok {
		return i, false
	}
	i := len(p.Positions)
	p.keys[k] = i
	p.Positions = append(p.Positions, v.Position)
	p.Normals = append(p.Normals, v.Normal)
	for l := range p.UV {
		var uv math.Vec2
		if l < len(v.UV) {
			uv = v.UV[l]
		}
		p.UV[l] = append(p.UV[l], uv)
	}
	p.RGBA = append(p.RGBA, v.RGBA)
	if p.HasTangent {
		p.Tangents = append(p.Tangents, v.Tangent)
	}
	p.Sources = append(p.Sources, v.Source)
	return i, true
}

// AddTriangle appends a triangle of stream indices.
func (p *Piece) AddTriangle(a, b, c int) {
	p.Triangles = append(p.Triangles, [3]int{a, b, c})
}

// position returns the extended format position index of a mesh vertex.
func (p *Piece) position(source int, pos math.Vec3) int {
	if i, ok := p.vertIndex[source]; ok {
		return i
	}
	i := len(p.Positions)
	p.vertIndex[source] = i
	p.Positions = append(p.Positions, pos)
	p.Sources = append(p.Sources, source)
	return i
}

// VertexCount returns the number of stream entries.
func (p *Piece) VertexCount() int { return len(p.Positions) }
