package pim

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var terrainGroup = regexp.MustCompile(TerrainGroup)

type weight struct {
	Bone   int
	Weight float32
}

// skinItem is one source vertex of the legacy skin stream with the piece
// vertices it was split into.
type skinItem struct {
	Position math.Vec3
	Weights  []weight
	Clones   [][2]int
}

type skinKey struct {
	mesh, vertex int
}

type builder struct {
	opts Options
	log  *logger.Stack
	set  *trans.Set
	p    scene.Provider
	root *scene.Root

	rootInv  math.Mat4
	variants []scene.Variant
	arm      *scene.Armature

	pieces    []*Piece
	locators  []*scene.Locator
	skin      []*skinItem
	skinIndex map[skinKey]int
	unskinned int
	progress  *logger.Progress
}

// Build assembles the model file of root. It registers parts, materials,
// bones and terrain points in set for the builders that follow.
func Build(root *scene.Root, p scene.Provider, set *trans.Set, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	b := &builder{
		opts:      opts.withDefaults(),
		log:       log,
		set:       set,
		p:         p,
		root:      root,
		rootInv:   root.World.Inverse(),
		variants:  p.Variants(root),
		arm:       p.Armature(root),
		skinIndex: make(map[skinKey]int),
		progress:  logger.NewProgress("pim " + root.Name),
	}

	meshes := p.Meshes(root)
	for _, l := range p.Locators(root) {
		if l.Kind == scene.LocatorModel {
			b.locators = append(b.locators, l)
		}
	}
	if len(meshes) == 0 && len(b.locators) == 0 {
		log.Errorf("model %q has no meshes and no model locators", root.Name)
		return nil, ErrNoGeometry
	}

	if b.arm != nil {
		for _, bone := range b.arm.Bones {
			set.Bones.Add(bone.Name)
		}
	}

	total := 0
	for _, m := range meshes {
		total += len(m.Polygons)
	}
	done := 0
	for mi, m := range meshes {
		set.Parts.Add(m.Part)
		if b.opts.Format == FormatEF {
			b.meshEF(mi, m)
		} else {
			b.mesh(mi, m)
		}
		b.terrainPoints(m)
		done += len(m.Polygons)
		if b.progress.Due() {
			b.progress.Report(fmt.Sprintf("%d/%d polygons", done, total), 100*float64(done)/float64(max(total, 1)))
		}
	}
	for _, l := range b.locators {
		set.Parts.Add(l.Part)
	}

	if b.unskinned > 0 {
		return nil, fmt.Errorf("%w: %d vertices", ErrUnskinnedVertex, b.unskinned)
	}
	if len(b.pieces) == 0 && len(b.locators) == 0 {
		log.Errorf("model %q produced no pieces", root.Name)
		return nil, ErrNoGeometry
	}
	return b.emit(), nil
}

// meshContext holds the per-mesh transforms and layer lookups.
type meshContext struct {
	index  int
	mesh   *scene.Mesh
	local  math.Mat4
	normal math.Mat4
	flip   bool
	pieces map[string]*Piece

	col, colA   *scene.ColorLayer
	col2, col2A *scene.ColorLayer
	missingUV   map[string]int
	badMaterial int
	badTangent  map[string]bool
}

func (b *builder) newMeshContext(mi int, m *scene.Mesh) *meshContext {
	local := b.rootInv.Mul(m.World)
	mc := &meshContext{
		index:      mi,
		mesh:       m,
		local:      local,
		normal:     local.Inverse().Transpose(),
		flip:       local.Det3() < 0,
		pieces:     make(map[string]*Piece),
		col:        m.ColorLayer(scene.VertexColorLayer, false),
		colA:       m.ColorLayer(scene.ColorAlphaLayer, false),
		col2:       m.ColorLayer(scene.Color2Layer, false),
		col2A:      m.ColorLayer(scene.Color2AlphaLayer, false),
		missingUV:  make(map[string]int),
		badTangent: make(map[string]bool),
	}
	if mc.col == nil || mc.colA == nil {
		b.log.Warnf("mesh %q misses vertex colour layer %q or %q, using 0.5 grey", m.Name, scene.VertexColorLayer, scene.ColorAlphaLayer)
	}
	return mc
}

// finish reports the aggregated per-mesh warnings.
func (b *builder) finish(mc *meshContext) {
	if mc.badMaterial > 0 {
		b.log.Warnf("mesh %q: %d polygons without a valid material use %q", mc.mesh.Name, mc.badMaterial, DefaultMaterial)
	}
	names := make([]string, 0, len(mc.missingUV))
	for n := range mc.missingUV {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		b.log.Warnf("mesh %q misses UV layer %q, %d loops written as (0, 0)", mc.mesh.Name, n, mc.missingUV[n])
	}
}

func (b *builder) position(mc *meshContext, v int) math.Vec3 {
	return convert.Position(mc.local.TransformVec3(mc.mesh.Vertices[v]), b.opts.Scale)
}

func (b *builder) normal(mc *meshContext, n math.Vec3) math.Vec3 {
	return convert.Vec(mc.normal.TransformDirection(n)).Normalize()
}

// material resolves a polygon's slot. A nil material is the default one.
func (b *builder) material(mc *meshContext, slot int) (string, *scene.Material) {
	m := mc.mesh
	if slot >= 0 && slot < len(m.Materials) && m.Materials[slot] != "" {
		if mat, ok := b.p.Material(m.Materials[slot]); ok {
			return mat.Name, mat
		}
	}
	mc.badMaterial++
	return DefaultMaterial, nil
}

// piece returns the piece of the mesh for a material, creating it.
func (b *builder) piece(mc *meshContext, name string, mat *scene.Material) *Piece {
	if pc, ok := mc.pieces[name]; ok {
		return pc
	}
	matIndex := b.set.Materials.Add(name, mat)
	uv, tangent := b.uvLayers(mc, mat)
	pc := newPiece(len(b.pieces), matIndex, mc.mesh.Name, mc.mesh.Part, uv, tangent != "" && b.opts.Format != FormatEF)
	if tangent != "" && mc.mesh.UVLayer(tangent, false) == nil && !mc.badTangent[tangent] {
		mc.badTangent[tangent] = true
		b.log.Warnf("mesh %q: normal map of material %q needs missing UV layer %q", mc.mesh.Name, name, tangent)
	}
	pc.tangentLayer = tangent
	mc.pieces[name] = pc
	b.pieces = append(b.pieces, pc)
	return pc
}

// uvLayers returns the UV layers a material maps and the layer its
// normal map is tangent-aligned to.
func (b *builder) uvLayers(mc *meshContext, mat *scene.Material) (names []string, tangent string) {
	if mat != nil {
		r, err := b.opts.Presets.Resolve(mat.Effect())
		if err != nil {
			b.log.Warnf("material %q: %v", mat.Name, err)
		}
		if err == nil {
			for _, t := range r.Textures() {
				if !t.UV {
					continue
				}
				uv := mat.TextureUV(t.Type)
				if t.Tangent && tangent == "" && len(uv) > 0 {
					tangent = uv[0]
				}
				for _, n := range uv {
					if !slices.Contains(names, n) {
						names = append(names, n)
					}
				}
			}
		}
	}
	if len(names) == 0 {
		for _, l := range mc.mesh.UVLayers {
			names = append(names, l.Name)
		}
	}
	if len(names) == 0 {
		b.log.Warnf("mesh %q has no UV layer, writing (0, 0)", mc.mesh.Name)
		names = []string{""}
	}
	return names, tangent
}

// loopUV reads the engine UVs of loop li for the piece layers.
func (b *builder) loopUV(mc *meshContext, pc *Piece, li int) []math.Vec2 {
	out := make([]math.Vec2, len(pc.UVLayers))
	for i, name := range pc.UVLayers {
		if name == "" {
			continue
		}
		l := mc.mesh.UVLayer(name, false)
		if l == nil {
			mc.missingUV[name]++
			continue
		}
		out[i] = convert.UV(l.UV[li])
	}
	return out
}

func rgba(col, alpha *scene.ColorLayer, li int) [4]float32 {
	if col == nil || alpha == nil {
		return [4]float32{0.5, 0.5, 0.5, 0.5}
	}
	c := col.Color[li]
	return [4]float32{c[0], c[1], c[2], alpha.Color[li][0]}
}

// tangent computes the polygon tangent and bitangent in engine space
// from its first triangle.
func (b *builder) tangent(mc *meshContext, pc *Piece, poly scene.Polygon) (t, bt math.Vec3) {
	layer := mc.mesh.UVLayer(pc.tangentLayer, false)
	if layer == nil || poly.Count < 3 {
		return math.Vec3{X: 1}, math.Vec3{Y: 1}
	}
	loops := mc.mesh.Loops
	var p [3]math.Vec3
	var uv [3]math.Vec2
	for i := 0; i < 3; i++ {
		li := poly.Start + i
		p[i] = b.position(mc, loops[li].Vertex)
		uv[i] = convert.UV(layer.UV[li])
	}
	e1, e2 := p[1].Sub(p[0]), p[2].Sub(p[0])
	d1, d2 := uv[1].Sub(uv[0]), uv[2].Sub(uv[0])
	det := d1.Cross(d2)
	if det > -1e-12 && det < 1e-12 {
		return math.Vec3{X: 1}, math.Vec3{Y: 1}
	}
	r := 1 / det
	t = e1.Scale(d2.Y).Sub(e2.Scale(d1.Y)).Scale(r)
	bt = e2.Scale(d1.X).Sub(e1.Scale(d2.X)).Scale(r)
	return t, bt
}

// orthogonalize makes t perpendicular to n and returns it with the
// handedness in w.
func orthogonalize(n, t, bt math.Vec3) [4]float32 {
	o := t.Sub(n.Scale(n.Dot(t))).Normalize()
	w := float32(1)
	if n.Cross(o).Dot(bt) < 0 {
		w = -1
	}
	return [4]float32{o.X, o.Y, o.Z, w}
}

func (b *builder) mesh(mi int, m *scene.Mesh) {
	mc := b.newMeshContext(mi, m)
	for _, poly := range m.Polygons {
		name, mat := b.material(mc, poly.Material)
		pc := b.piece(mc, name, mat)

		var t, bt math.Vec3
		if pc.HasTangent {
			t, bt = b.tangent(mc, pc, poly)
		}
		idx := make([]int, poly.Count)
		for i := 0; i < poly.Count; i++ {
			li := poly.Start + i
			loop := m.Loops[li]
			v := Vertex{
				Source:   loop.Vertex,
				Position: b.position(mc, loop.Vertex),
				Normal:   b.normal(mc, loop.Normal),
				UV:       b.loopUV(mc, pc, li),
				RGBA:     rgba(mc.col, mc.colA, li),
			}
			if pc.HasTangent {
				v.Tangent = orthogonalize(v.Normal, t, bt)
			}
			vi, isNew := pc.AddVertex(v)
			idx[i] = vi
			if isNew && b.arm != nil {
				b.addSkin(mc, loop.Vertex, v.Position, pc.Index, vi)
			}
		}
		for i := 1; i+1 < poly.Count; i++ {
			a, c, d := idx[0], idx[i], idx[i+1]
			if mc.flip {
				pc.AddTriangle(a, c, d)
			} else {
				pc.AddTriangle(d, c, a)
			}
		}
	}
	b.finish(mc)
}

// weights resolves the bone weights of a mesh vertex. Groups that do not
// name a bone are dropped.
func (b *builder) weights(m *scene.Mesh, v int) []weight {
	var out []weight
	for g, w := range m.Weights[v] {
		if g < 0 || g >= len(m.Groups) || w <= 0 {
			continue
		}
		bi := b.set.Bones.Index(m.Groups[g])
		if bi < 0 {
			continue
		}
		out = append(out, weight{Bone: bi, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bone < out[j].Bone })
	return out
}

func (b *builder) addSkin(mc *meshContext, v int, pos math.Vec3, piece, pieceVert int) {
	k := skinKey{mc.index, v}
	i, ok := b.skinIndex[k]
	if !ok {
		w := b.weights(mc.mesh, v)
		if len(w) == 0 {
			b.unskinned++
			b.log.Errorf("mesh %q: vertex %d has no weight on any bone", mc.mesh.Name, v)
		}
		i = len(b.skin)
		b.skinIndex[k] = i
		b.skin = append(b.skin, &skinItem{Position: pos, Weights: w})
	}
	b.skin[i].Clones = append(b.skin[i].Clones, [2]int{piece, pieceVert})
}

// terrainPoints registers the vertices of scs_tp_N groups for node N,
// once per variant including the mesh's part.
func (b *builder) terrainPoints(m *scene.Mesh) {
	local := b.rootInv.Mul(m.World)
	nmat := local.Inverse().Transpose()
	for g, name := range m.Groups {
		sub := terrainGroup.FindStringSubmatch(name)
		if sub == nil {
			continue
		}
		node, _ := strconv.Atoi(sub[1])
		if node >= MaxNodes {
			b.log.Warnf("mesh %q: terrain point group %q names node %d, nodes go up to %d", m.Name, name, node, MaxNodes-1)
			continue
		}
		for v := range m.Vertices {
			if _, in := m.Weights[v][g]; !in {
				continue
			}
			tp := trans.TerrainPoint{
				Position: convert.Position(local.TransformVec3(m.Vertices[v]), b.opts.Scale),
				Normal:   convert.Vec(nmat.TransformDirection(m.VertexNormal(v))).Normalize(),
			}
			if len(b.variants) == 0 {
				b.set.TerrainPoints.Add(trans.GlobalVariant, node, tp)
				continue
			}
			for vi, variant := range b.variants {
				if variant.Includes(m.Part) {
					b.set.TerrainPoints.Add(vi, node, tp)
				}
			}
		}
	}
}
