package pim

import (
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
)

// meshEF fills extended format pieces: one position per mesh vertex and
// polygon faces with per-loop attributes.
func (b *builder) meshEF(mi int, m *scene.Mesh) {
	mc := b.newMeshContext(mi, m)
	rgba1 := mc.col2 != nil && mc.col2A != nil
	if (mc.col2 == nil) != (mc.col2A == nil) {
		b.log.Warnf("mesh %q: secondary vertex colour needs both %q and %q, skipping it",
			m.Name, scene.Color2Layer, scene.Color2AlphaLayer)
	}

	for _, poly := range m.Polygons {
		name, mat := b.material(mc, poly.Material)
		pc := b.piece(mc, name, mat)
		pc.RGBA1 = rgba1

		f := Face{UV: make([][]math.Vec2, len(pc.UVLayers))}
		for k := 0; k < poly.Count; k++ {
			// Loops are written in reverse to match the engine winding.
			i := poly.Count - 1 - k
			if mc.flip {
				i = k
			}
			li := poly.Start + i
			loop := m.Loops[li]

			pi, ok := pc.vertIndex[loop.Vertex]
			if !ok {
				pi = pc.position(loop.Vertex, b.position(mc, loop.Vertex))
				if b.arm != nil {
					pc.Weights = append(pc.Weights, b.pieceWeights(mc, pc, loop.Vertex))
				}
			}
			f.Indices = append(f.Indices, pi)
			f.Normals = append(f.Normals, b.normal(mc, loop.Normal))
			uv := b.loopUV(mc, pc, li)
			for l := range f.UV {
				f.UV[l] = append(f.UV[l], uv[l])
			}
			f.RGBA = append(f.RGBA, rgba(mc.col, mc.colA, li))
			if rgba1 {
				f.RGBA1 = append(f.RGBA1, rgba(mc.col2, mc.col2A, li))
			}
		}
		pc.Faces = append(pc.Faces, f)
	}

	for _, pc := range mc.pieces {
		for _, e := range m.SharpEdges {
			a, okA := pc.vertIndex[e[0]]
			c, okC := pc.vertIndex[e[1]]
			if okA && okC {
				pc.HardEdges = append(pc.HardEdges, [2]int{a, c})
			}
		}
	}
	b.finish(mc)
}

// pieceWeights returns normalised weights of a mesh vertex keyed by bone
// index.
func (b *builder) pieceWeights(mc *meshContext, pc *Piece, v int) map[int]float32 {
	w := b.weights(mc.mesh, v)
	if len(w) == 0 {
		b.unskinned++
		b.log.Errorf("mesh %q: vertex %d has no weight on any bone", mc.mesh.Name, v)
		return nil
	}
	var sum float32
	for _, x := range w {
		sum += x.Weight
	}
	out := make(map[int]float32, len(w))
	for _, x := range w {
		out[x.Bone] = x.Weight / sum
	}
	if d := sum - 1; d > 1e-4 || d < -1e-4 {
		b.log.Warnf("mesh %q: weights of vertex %d sum to %.4f, normalised (piece %d)", mc.mesh.Name, v, sum, pc.Index)
	}
	return out
}
