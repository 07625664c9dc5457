package pim

import (
	"fmt"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// Model is a decoded model file.
type Model struct {
	Format    Format
	Name      string
	Skeleton  string
	Materials []Material
	Pieces    []PieceData
	Parts     []Part
	Locators  []Locator
	Bones     []string
	Skin      []SkinItem
}

// Material is a material reference of a model.
type Material struct {
	Alias  string
	Effect string
}

// Stream is a decoded attribute stream.
type Stream struct {
	Format string
	Tag    string
	Data   [][]float32
}

// PieceData is a decoded piece. Extended format pieces carry Faces and
// Edges instead of Triangles.
type PieceData struct {
	Index     int
	Material  int
	Streams   []Stream
	Triangles [][3]int
	Faces     [][]int
	Edges     [][2]int
	Skin      []SkinItem
}

// Stream returns the stream with tag.
func (p *PieceData) Stream(tag string) *Stream {
	for i := range p.Streams {
		if p.Streams[i].Tag == tag {
			return &p.Streams[i]
		}
	}
	return nil
}

// Part is a decoded part.
type Part struct {
	Name     string
	Pieces   []int
	Locators []int
}

// Locator is a decoded model locator.
type Locator struct {
	Name     string
	Hookup   string
	Index    int
	Position [3]float32
	Rotation [4]float32
	Scale    [3]float32
}

// BoneWeight is one weight of a skin item.
type BoneWeight struct {
	Bone   int
	Weight float32
}

// SkinItem is a skinned source vertex with its piece clones.
type SkinItem struct {
	Position [3]float32
	Weights  []BoneWeight
	Clones   [][2]int
}

// ReadFile parses and decodes a model file.
func ReadFile(path string, log *logger.Stack) (*Model, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes model sections. Inconsistent pieces are reported and kept.
func Read(sections []*pix.Section, log *logger.Stack) (*Model, error) {
	typ, version, ok := pix.HeaderOf(sections)
	if !ok || typ != "Model" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	h := pix.Find(sections, "Header")
	m := &Model{}
	m.Name, _ = h.Str("Name")
	ft, hasType := h.Str("FormatType")
	switch {
	case version == 5:
		m.Format = FormatLegacy
	case version == 1 && ft == string(FormatDef):
		m.Format = FormatDef
	case version == 1 && hasType:
		m.Format = FormatEF
	default:
		return nil, fmt.Errorf("%w: unsupported version %d type %q", ErrFormat, version, ft)
	}
	if g := pix.Find(sections, "Global"); g != nil {
		m.Skeleton, _ = g.Str("Skeleton")
	}

	for _, s := range sections {
		switch s.Type {
		case "Material":
			alias, _ := s.Str("Alias")
			effect, _ := s.Str("Effect")
			m.Materials = append(m.Materials, Material{Alias: alias, Effect: effect})
		case "Piece":
			m.Pieces = append(m.Pieces, readPiece(s, log))
		case "Part":
			name, _ := s.Str("Name")
			pieces, _ := s.Prop("Pieces")
			locs, _ := s.Prop("Locators")
			m.Parts = append(m.Parts, Part{Name: name, Pieces: pieces.IntSlice(), Locators: locs.IntSlice()})
		case "Locator":
			m.Locators = append(m.Locators, readLocator(s))
		case "Bones":
			for _, r := range s.Rows {
				if len(r.Values) > 0 {
					name, _ := r.Values[0].AsString()
					m.Bones = append(m.Bones, name)
				}
			}
		case "Skin":
			m.Skin = readSkin(s)
		}
	}

	for _, p := range m.Pieces {
		if p.Material < 0 || p.Material >= len(m.Materials) {
			log.Errorf("model %q: piece %d references material %d of %d", m.Name, p.Index, p.Material, len(m.Materials))
		}
	}
	return m, nil
}

func readPiece(s *pix.Section, log *logger.Stack) PieceData {
	p := PieceData{}
	p.Index, _ = s.Int("Index")
	p.Material, _ = s.Int("Material")
	for _, st := range s.Children("Stream") {
		format, _ := st.Str("Format")
		tag, _ := st.Str("Tag")
		data := make([][]float32, len(st.Rows))
		for i, r := range st.Rows {
			data[i] = r.Floats()
		}
		p.Streams = append(p.Streams, Stream{Format: format, Tag: tag, Data: data})
	}
	if t := s.Child("Triangles"); t != nil {
		for _, r := range t.Rows {
			idx := r.Ints()
			if len(idx) != 3 {
				log.Warnf("piece %d: triangle %d has %d indices", p.Index, r.Index, len(idx))
				continue
			}
			p.Triangles = append(p.Triangles, [3]int{idx[0], idx[1], idx[2]})
		}
	}
	if f := s.Child("Faces"); f != nil {
		for _, r := range f.Rows {
			idx, _ := r.Field("Indices")
			p.Faces = append(p.Faces, idx.IntSlice())
		}
	}
	if e := s.Child("Edges"); e != nil {
		for _, r := range e.Rows {
			if idx := r.Ints(); len(idx) == 2 {
				p.Edges = append(p.Edges, [2]int{idx[0], idx[1]})
			}
		}
	}
	if sk := s.Child("Skin"); sk != nil {
		p.Skin = readSkin(sk)
	}

	if pos := p.Stream(TagPosition); pos != nil {
		n := len(pos.Data)
		for _, st := range p.Streams {
			if len(st.Data) != n {
				log.Errorf("piece %d: stream %s has %d entries, %s has %d", p.Index, st.Tag, len(st.Data), TagPosition, n)
			}
		}
		for i, t := range p.Triangles {
			for _, x := range t {
				if x < 0 || x >= n {
					log.Errorf("piece %d: triangle %d index %d out of range", p.Index, i, x)
				}
			}
		}
	}
	return p
}

func readLocator(s *pix.Section) Locator {
	l := Locator{}
	l.Name, _ = s.Str("Name")
	l.Hookup, _ = s.Str("Hookup")
	l.Index, _ = s.Int("Index")
	if v, ok := s.Prop("Position"); ok {
		copy(l.Position[:], v.Floats())
	}
	if v, ok := s.Prop("Rotation"); ok {
		copy(l.Rotation[:], v.Floats())
	}
	l.Scale = [3]float32{1, 1, 1}
	if v, ok := s.Prop("Scale"); ok {
		copy(l.Scale[:], v.Floats())
	}
	return l
}

func readSkin(s *pix.Section) []SkinItem {
	ss := s.Child("SkinStream")
	if ss == nil {
		return nil
	}
	out := make([]SkinItem, 0, len(ss.Rows))
	for _, r := range ss.Rows {
		it := SkinItem{}
		copy(it.Position[:], r.Floats())
		if w, ok := r.Field("Weights"); ok {
			items := w.Items
			for i := 1; i+1 < len(items); i += 2 {
				bone, _ := items[i].AsInt()
				wt, _ := items[i+1].AsFloat()
				it.Weights = append(it.Weights, BoneWeight{Bone: bone, Weight: wt})
			}
		}
		if c, ok := r.Field("Clones"); ok {
			ids := c.IntSlice()
			for i := 1; i+1 < len(ids); i += 2 {
				it.Clones = append(it.Clones, [2]int{ids[i], ids[i+1]})
			}
		}
		out = append(out, it)
	}
	return out
}
