// Package trans holds the registers one export shares between its
// builders: used parts, materials, bones and terrain points. A Set lives
// for a single export call.
package trans

import (
	"sort"

	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
)

// Parts is an insertion-ordered set of part names.
type Parts struct {
	names []string
	index map[string]int
}

// NewParts returns an empty register.
func NewParts() *Parts {
	return &Parts{index: make(map[string]int)}
}

// Add registers name and returns its index.
func (p *Parts) Add(name string) int {
	if i, ok := p.index[name]; ok {
		return i
	}
	p.index[name] = len(p.names)
	p.names = append(p.names, name)
	return len(p.names) - 1
}

// Index returns the index of name, or -1.
func (p *Parts) Index(name string) int {
	if i, ok := p.index[name]; ok {
		return i
	}
	return -1
}

// Names returns part names in insertion order.
func (p *Parts) Names() []string {
	return append([]string(nil), p.names...)
}

// Len returns the number of parts.
func (p *Parts) Len() int { return len(p.names) }

// Materials maps material names to materials in first-use order. A nil
// material stands for a missing one.
type Materials struct {
	names []string
	mats  map[string]*scene.Material
}

// NewMaterials returns an empty register.
func NewMaterials() *Materials {
	return &Materials{mats: make(map[string]*scene.Material)}
}

// Add registers a material under name and returns its index.
func (m *Materials) Add(name string, mat *scene.Material) int {
	if i := m.Index(name); i >= 0 {
		return i
	}
	m.names = append(m.names, name)
	m.mats[name] = mat
	return len(m.names) - 1
}

// Index returns the index of name, or -1.
func (m *Materials) Index(name string) int {
	for i, n := range m.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Get returns the material registered under name.
func (m *Materials) Get(name string) (*scene.Material, bool) {
	mat, ok := m.mats[name]
	return mat, ok
}

// Names returns material names in first-use order.
func (m *Materials) Names() []string {
	return append([]string(nil), m.names...)
}

// Len returns the number of materials.
func (m *Materials) Len() int { return len(m.names) }

// Bones is an insertion-ordered set of bone names.
type Bones struct {
	Parts
}

// NewBones returns an empty register.
func NewBones() *Bones {
	return &Bones{Parts: *NewParts()}
}

// TerrainPoint is a position and normal in engine space.
type TerrainPoint struct {
	Position math.Vec3
	Normal   math.Vec3
}

// GlobalVariant keys terrain points that apply to every variant.
const GlobalVariant = -1

// TerrainPoints groups terrain points by variant and node index.
type TerrainPoints struct {
	points map[int]map[int][]TerrainPoint
}

// NewTerrainPoints returns an empty register.
func NewTerrainPoints() *TerrainPoints {
	return &TerrainPoints{points: make(map[int]map[int][]TerrainPoint)}
}

// Add appends a point to the list of variant and node.
func (t *TerrainPoints) Add(variant, node int, p TerrainPoint) {
	nodes := t.points[variant]
	if nodes == nil {
		nodes = make(map[int][]TerrainPoint)
		t.points[variant] = nodes
	}
	nodes[node] = append(nodes[node], p)
}

// Get returns the points of variant and node.
func (t *TerrainPoints) Get(variant, node int) []TerrainPoint {
	return t.points[variant][node]
}

// Variants returns the variant keys in ascending order, GlobalVariant
// first when present.
func (t *TerrainPoints) Variants() []int {
	keys := make([]int, 0, len(t.points))
	for k := range t.points {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Len returns the number of points over all variants and nodes.
func (t *TerrainPoints) Len() int {
	n := 0
	for _, nodes := range t.points {
		for _, pts := range nodes {
			n += len(pts)
		}
	}
	return n
}

// Set bundles the registers of one export.
type Set struct {
	Parts         *Parts
	Materials     *Materials
	Bones         *Bones
	TerrainPoints *TerrainPoints
}

// New returns an empty set.
func New() *Set {
	return &Set{
		Parts:         NewParts(),
		Materials:     NewMaterials(),
		Bones:         NewBones(),
		TerrainPoints: NewTerrainPoints(),
	}
}
