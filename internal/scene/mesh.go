package scene

import (
	"github.com/Faultbox/scs-forge/pkg/math"
)

// Default colour layer names.
const (
	VertexColorLayer  = "scs_vcol"
	ColorAlphaLayer   = "scs_vcol_a"
	Color2Layer       = "scs_vcol_2"
	Color2AlphaLayer  = "scs_vcol_2_a"
	TerrainGroupRegex = `^scs_tp_([0-9]+)$`
)

// Mesh is polygon geometry with per-loop attributes.
type Mesh struct {
	Name  string
	Part  string
	World math.Mat4

	// Materials are slot material names. An empty name is an empty slot.
	Materials []string
	Vertices  []math.Vec3
	// Groups are vertex group names; Weights[v] maps group index to the
	// weight of vertex v.
	Groups  []string
	Weights []map[int]float32

	Polygons    []Polygon
	Loops       []Loop
	UVLayers    []UVLayer
	ColorLayers []ColorLayer
	// SharpEdges are vertex index pairs flagged as hard.
	SharpEdges [][2]int
}

// Polygon is a face: a run of loops and a material slot.
type Polygon struct {
	Start    int
	Count    int
	Material int
}

// Loop is a face corner.
type Loop struct {
	Vertex int
	Normal math.Vec3
}

// UVLayer holds one coordinate per loop.
type UVLayer struct {
	Name string
	UV   []math.Vec2
}

// ColorLayer holds one RGBA colour per loop.
type ColorLayer struct {
	Name  string
	Color [][4]float32
}

// NewMesh returns an empty mesh with identity transform.
func NewMesh(name, part string) *Mesh {
	if part == "" {
		part = DefaultPart
	}
	return &Mesh{Name: name, Part: part, World: math.Identity()}
}

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(v math.Vec3) int {
	m.Vertices = append(m.Vertices, v)
	m.Weights = append(m.Weights, nil)
	return len(m.Vertices) - 1
}

// AddFace appends a polygon over verts with flat loop normals and
// returns its index. UV and colour layers are padded to the new loops.
func (m *Mesh) AddFace(material int, verts ...int) int {
	n := m.faceNormal(verts)
	start := len(m.Loops)
	for _, v := range verts {
		m.Loops = append(m.Loops, Loop{Vertex: v, Normal: n})
	}
	for i := range m.UVLayers {
		m.UVLayers[i].UV = append(m.UVLayers[i].UV, make([]math.Vec2, len(verts))...)
	}
	for i := range m.ColorLayers {
		m.ColorLayers[i].Color = append(m.ColorLayers[i].Color, make([][4]float32, len(verts))...)
	}
	m.Polygons = append(m.Polygons, Polygon{Start: start, Count: len(verts), Material: material})
	return len(m.Polygons) - 1
}

func (m *Mesh) faceNormal(verts []int) math.Vec3 {
	// Newell's method handles non-planar polygons.
	var n math.Vec3
	for i := range verts {
		a := m.Vertices[verts[i]]
		b := m.Vertices[verts[(i+1)%len(verts)]]
		n.X += (a.Y - b.Y) * (a.Z + b.Z)
		n.Y += (a.Z - b.Z) * (a.X + b.X)
		n.Z += (a.X - b.X) * (a.Y + b.Y)
	}
	return n.Normalize()
}

// SmoothNormals replaces loop normals with the average of the face
// normals around each vertex.
func (m *Mesh) SmoothNormals() {
	sum := make([]math.Vec3, len(m.Vertices))
	for _, l := range m.Loops {
		sum[l.Vertex] = sum[l.Vertex].Add(l.Normal)
	}
	for i := range m.Loops {
		m.Loops[i].Normal = sum[m.Loops[i].Vertex].Normalize()
	}
}

// UVLayer returns the layer named name, creating it when create is set.
func (m *Mesh) UVLayer(name string, create bool) *UVLayer {
	for i := range m.UVLayers {
		if m.UVLayers[i].Name == name {
			return &m.UVLayers[i]
		}
	}
	if !create {
		return nil
	}
	m.UVLayers = append(m.UVLayers, UVLayer{Name: name, UV: make([]math.Vec2, len(m.Loops))})
	return &m.UVLayers[len(m.UVLayers)-1]
}

// ColorLayer returns the layer named name, creating it when create is
// set.
func (m *Mesh) ColorLayer(name string, create bool) *ColorLayer {
	for i := range m.ColorLayers {
		if m.ColorLayers[i].Name == name {
			return &m.ColorLayers[i]
		}
	}
	if !create {
		return nil
	}
	m.ColorLayers = append(m.ColorLayers, ColorLayer{Name: name, Color: make([][4]float32, len(m.Loops))})
	return &m.ColorLayers[len(m.ColorLayers)-1]
}

// SetFaceUV sets the coordinates of a face's loops in layer.
func (m *Mesh) SetFaceUV(layer string, face int, uv ...math.Vec2) {
	l := m.UVLayer(layer, true)
	p := m.Polygons[face]
	copy(l.UV[p.Start:p.Start+p.Count], uv)
}

// SetFaceColor paints every loop of a face.
func (m *Mesh) SetFaceColor(layer string, face int, c [4]float32) {
	l := m.ColorLayer(layer, true)
	p := m.Polygons[face]
	for i := p.Start; i < p.Start+p.Count; i++ {
		l.Color[i] = c
	}
}

// GroupIndex returns the index of a vertex group, or -1.
func (m *Mesh) GroupIndex(name string) int {
	for i, g := range m.Groups {
		if g == name {
			return i
		}
	}
	return -1
}

// AddToGroup assigns weight of vertex v in group, creating the group.
func (m *Mesh) AddToGroup(group string, v int, weight float32) {
	g := m.GroupIndex(group)
	if g < 0 {
		m.Groups = append(m.Groups, group)
		g = len(m.Groups) - 1
	}
	if m.Weights[v] == nil {
		m.Weights[v] = make(map[int]float32)
	}
	m.Weights[v][g] = weight
}

// MarkSharp flags the edge between vertices a and b as hard.
func (m *Mesh) MarkSharp(a, b int) {
	m.SharpEdges = append(m.SharpEdges, [2]int{a, b})
}

// IsSharp reports whether the edge a-b is flagged hard.
func (m *Mesh) IsSharp(a, b int) bool {
	for _, e := range m.SharpEdges {
		if (e[0] == a && e[1] == b) || (e[0] == b && e[1] == a) {
			return true
		}
	}
	return false
}

// VertexNormal averages the loop normals of vertex v.
func (m *Mesh) VertexNormal(v int) math.Vec3 {
	var n math.Vec3
	for _, l := range m.Loops {
		if l.Vertex == v {
			n = n.Add(l.Normal)
		}
	}
	return n.Normalize()
}
