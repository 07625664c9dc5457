package pim

import (
	"sort"
	"strconv"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

func vec3(v math.Vec3) []pix.Value {
	return []pix.Value{pix.Hex(v.X), pix.Hex(v.Y), pix.Hex(v.Z)}
}

func hexes(f []float32) []pix.Value {
	out := make([]pix.Value, len(f))
	for i, x := range f {
		out[i] = pix.Hex(x)
	}
	return out
}

func (b *builder) emit() []*pix.Section {
	var out []*pix.Section

	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(b.opts.Format.Version()))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Model"))
	if b.opts.Format != FormatLegacy {
		ft := ""
		if b.opts.Format == FormatDef {
			ft = string(FormatDef)
		}
		h.Add("FormatType", pix.String(ft))
	}
	h.Add("Name", pix.String(b.opts.Name))
	out = append(out, h)

	verts, tris := 0, 0
	for _, pc := range b.pieces {
		verts += pc.VertexCount()
		tris += len(pc.Triangles)
		for _, f := range pc.Faces {
			tris += len(f.Indices) - 2
		}
	}
	g := pix.NewSection("Global")
	g.Add("VertexCount", pix.Int(verts))
	g.Add("TriangleCount", pix.Int(tris))
	g.Add("MaterialCount", pix.Int(b.set.Materials.Len()))
	g.Add("PieceCount", pix.Int(len(b.pieces)))
	g.Add("PartCount", pix.Int(b.set.Parts.Len()))
	g.Add("BoneCount", pix.Int(b.boneCount()))
	g.Add("LocatorCount", pix.Int(len(b.locators)))
	if b.arm != nil {
		g.Add("Skeleton", pix.String(b.opts.Skeleton))
	}
	out = append(out, g)

	for _, name := range b.set.Materials.Names() {
		effect := DefaultEffect
		if mat, _ := b.set.Materials.Get(name); mat != nil {
			effect = mat.Effect()
		}
		m := pix.NewSection("Material")
		m.Add("Alias", pix.String(name))
		m.Add("Effect", pix.String(effect))
		out = append(out, m)
	}

	for _, pc := range b.pieces {
		if b.opts.Format == FormatEF {
			out = append(out, b.pieceEF(pc))
		} else {
			out = append(out, pieceSection(pc))
		}
	}

	for _, part := range b.set.Parts.Names() {
		var pieces, locs []int
		for _, pc := range b.pieces {
			if pc.Part == part {
				pieces = append(pieces, pc.Index)
			}
		}
		for i, l := range b.locators {
			if l.Part == part {
				locs = append(locs, i)
			}
		}
		s := pix.NewSection("Part")
		s.Add("Name", pix.String(part))
		s.Add("PieceCount", pix.Int(len(pieces)))
		s.Add("LocatorCount", pix.Int(len(locs)))
		s.Add("Pieces", pix.Ints(pieces...))
		s.Add("Locators", pix.Ints(locs...))
		out = append(out, s)
	}

	for i, l := range b.locators {
		pos, rot, sca := convert.Transform(b.root.World, l.World, b.opts.Scale)
		s := pix.NewSection("Locator")
		s.Add("Name", pix.String(l.Name))
		if l.Hookup != "" {
			s.Add("Hookup", pix.String(l.Hookup))
		}
		s.Add("Index", pix.Int(i))
		s.Add("Position", pix.Tuple(vec3(pos)...))
		q := rot.WXYZ()
		s.Add("Rotation", pix.Hexes(q[:]...))
		s.Add("Scale", pix.Tuple(vec3(sca)...))
		out = append(out, s)
	}

	if b.arm != nil {
		bones := pix.NewSection("Bones")
		for _, name := range b.set.Bones.Names() {
			bones.AddRow(pix.String(name))
		}
		out = append(out, bones)
		if b.opts.Format != FormatEF {
			out = append(out, b.skinSection())
		}
	}
	return out
}

func (b *builder) boneCount() int {
	if b.arm == nil {
		return 0
	}
	return b.set.Bones.Len()
}

func stream(format, tag string) *pix.Section {
	s := pix.NewSection("Stream")
	s.Add("Format", pix.Name(format))
	s.Add("Tag", pix.String(tag))
	return s
}

func pieceSection(pc *Piece) *pix.Section {
	s := pix.NewSection("Piece")
	s.Add("Index", pix.Int(pc.Index))
	s.Add("Material", pix.Int(pc.Material))
	s.Add("VertexCount", pix.Int(pc.VertexCount()))
	s.Add("TriangleCount", pix.Int(len(pc.Triangles)))

	var streams []*pix.Section
	pos := stream("FLOAT3", TagPosition)
	for _, v := range pc.Positions {
		pos.AddRow(vec3(v)...)
	}
	streams = append(streams, pos)

	nrm := stream("FLOAT3", TagNormal)
	for _, v := range pc.Normals {
		nrm.AddRow(vec3(v)...)
	}
	streams = append(streams, nrm)

	if pc.HasTangent {
		tan := stream("FLOAT4", TagTangent)
		for _, v := range pc.Tangents {
			tan.AddRow(hexes(v[:])...)
		}
		streams = append(streams, tan)
	}

	col := stream("FLOAT4", TagRGBA)
	for _, v := range pc.RGBA {
		col.AddRow(hexes(v[:])...)
	}
	streams = append(streams, col)

	for l, layer := range pc.UV {
		uv := stream("FLOAT2", TagUV+strconv.Itoa(l))
		for _, v := range layer {
			uv.AddRow(pix.Hex(v.X), pix.Hex(v.Y))
		}
		streams = append(streams, uv)
	}

	s.Add("StreamCount", pix.Int(len(streams)))
	for _, st := range streams {
		s.AddSection(st)
	}

	tri := pix.NewSection("Triangles")
	for _, t := range pc.Triangles {
		tri.AddRow(pix.Int(t[0]), pix.Int(t[1]), pix.Int(t[2]))
	}
	s.AddSection(tri)
	return s
}

func (b *builder) pieceEF(pc *Piece) *pix.Section {
	s := pix.NewSection("Piece")
	s.Add("Index", pix.Int(pc.Index))
	s.Add("Material", pix.Int(pc.Material))
	s.Add("VertexCount", pix.Int(pc.VertexCount()))
	s.Add("FaceCount", pix.Int(len(pc.Faces)))
	s.Add("EdgeCount", pix.Int(len(pc.HardEdges)))
	s.Add("UVCount", pix.Int(len(pc.UVLayers)))
	s.Add("StreamCount", pix.Int(1))

	pos := stream("FLOAT3", TagPosition)
	for _, v := range pc.Positions {
		pos.AddRow(vec3(v)...)
	}
	s.AddSection(pos)

	faces := pix.NewSection("Faces")
	for _, f := range pc.Faces {
		r := faces.AddRow()
		idx := make([]pix.Value, len(f.Indices))
		for i, x := range f.Indices {
			idx[i] = pix.Int(x)
		}
		r.Fields = append(r.Fields, pix.Property{Key: "Indices", Value: pix.List(idx...)})
		nrm := make([]pix.Value, len(f.Normals))
		for i, n := range f.Normals {
			nrm[i] = pix.Tuple(vec3(n)...)
		}
		r.Fields = append(r.Fields, pix.Property{Key: "Normals", Value: pix.List(nrm...)})
		for l, layer := range f.UV {
			uv := make([]pix.Value, len(layer))
			for i, v := range layer {
				uv[i] = pix.Hexes(v.X, v.Y)
			}
			r.Fields = append(r.Fields, pix.Property{Key: "UV" + strconv.Itoa(l), Value: pix.List(uv...)})
		}
		r.Fields = append(r.Fields, pix.Property{Key: "RGBA", Value: colorList(f.RGBA)})
		if pc.RGBA1 {
			r.Fields = append(r.Fields, pix.Property{Key: "RGBA1", Value: colorList(f.RGBA1)})
		}
	}
	s.AddSection(faces)

	if len(pc.HardEdges) > 0 {
		edges := pix.NewSection("Edges")
		for _, e := range pc.HardEdges {
			edges.AddRow(pix.Int(e[0]), pix.Int(e[1]))
		}
		s.AddSection(edges)
	}

	if b.arm != nil {
		skin := pix.NewSection("Skin")
		skin.Add("StreamCount", pix.Int(1))
		ss := pix.NewSection("SkinStream")
		ss.Add("Format", pix.Name("FLOAT3"))
		ss.Add("Tag", pix.String(TagPosition))
		ss.Add("ItemCount", pix.Int(len(pc.Positions)))
		total := 0
		for _, w := range pc.Weights {
			total += len(w)
		}
		ss.Add("TotalWeightCount", pix.Int(total))
		for i, w := range pc.Weights {
			r := ss.AddRow(pix.Tuple(vec3(pc.Positions[i])...))
			r.Fields = append(r.Fields, pix.Property{Key: "Weights", Value: weightList(mapWeights(w))})
		}
		skin.AddSection(ss)
		s.AddSection(skin)
	}
	return s
}

func colorList(c [][4]float32) pix.Value {
	items := make([]pix.Value, len(c))
	for i, v := range c {
		items[i] = pix.Hexes(v[:]...)
	}
	return pix.List(items...)
}

func mapWeights(m map[int]float32) []weight {
	out := make([]weight, 0, len(m))
	for b, w := range m {
		out = append(out, weight{Bone: b, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bone < out[j].Bone })
	return out
}

func weightList(w []weight) pix.Value {
	items := []pix.Value{pix.Int(len(w))}
	for _, x := range w {
		items = append(items, pix.Int(x.Bone), pix.Hex(x.Weight))
	}
	return pix.List(items...)
}

func (b *builder) skinSection() *pix.Section {
	skin := pix.NewSection("Skin")
	skin.Add("StreamCount", pix.Int(1))
	ss := pix.NewSection("SkinStream")
	ss.Add("Format", pix.Name("FLOAT3"))
	ss.Add("Tag", pix.String(TagPosition))
	ss.Add("ItemCount", pix.Int(len(b.skin)))

	weights, clones := 0, 0
	for _, it := range b.skin {
		weights += len(it.Weights)
		clones += len(it.Clones)
	}
	ss.Add("TotalWeightCount", pix.Int(weights))
	ss.Add("TotalCloneCount", pix.Int(clones))

	for _, it := range b.skin {
		r := ss.AddRow(pix.Tuple(vec3(it.Position)...))
		c := []pix.Value{pix.Int(len(it.Clones))}
		for _, cl := range it.Clones {
			c = append(c, pix.Int(cl[0]), pix.Int(cl[1]))
		}
		r.Fields = append(r.Fields,
			pix.Property{Key: "Weights", Value: weightList(it.Weights)},
			pix.Property{Key: "Clones", Value: pix.List(c...)},
		)
	}
	skin.AddSection(ss)
	return skin
}
