// Package pis builds and reads skeleton files: the rest pose of an
// armature as parent-relative bone matrices in engine space.
package pis

import (
	"errors"
	"fmt"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var (
	ErrNoArmature = errors.New("root has no armature")
	ErrFormat     = errors.New("invalid skeleton file")
)

// Version is the FormatVersion of skeleton files.
const Version = 1

// Source is written to the Source header field.
const Source = "scs-forge 1.0"

// Options configures a build.
type Options struct {
	Name  string
	Scale float32
}

// RestMatrices returns the engine rest matrix of every bone relative to
// its parent. Root bones are relative to the exported root.
func RestMatrices(root *scene.Root, arm *scene.Armature, scale float32) []math.Mat4 {
	base := root.World.Inverse().Mul(arm.World)
	out := make([]math.Mat4, len(arm.Bones))
	for i, b := range arm.Bones {
		local := base.Mul(b.Rest)
		if b.Parent >= 0 {
			local = arm.Bones[b.Parent].Rest.Inverse().Mul(b.Rest)
		}
		out[i] = convert.Matrix(local, scale)
	}
	return out
}

// Build assembles the skeleton file of root.
func Build(root *scene.Root, p scene.Provider, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	arm := p.Armature(root)
	if arm == nil {
		log.Errorf("skeleton %q: %v", opts.Name, ErrNoArmature)
		return nil, ErrNoArmature
	}

	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(Version))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Skeleton"))
	h.Add("Name", pix.String(opts.Name))

	g := pix.NewSection("Global")
	g.Add("BoneCount", pix.Int(len(arm.Bones)))

	bones := pix.NewSection("Bones")
	for i, m := range RestMatrices(root, arm, opts.Scale) {
		b := arm.Bones[i]
		parent := ""
		if b.Parent >= 0 {
			parent = arm.Bones[b.Parent].Name
		}
		r := bones.AddRow()
		r.Wrap = 4
		rows := m.RowMajor()
		r.Fields = append(r.Fields,
			pix.Property{Key: "Name", Value: pix.String(b.Name)},
			pix.Property{Key: "Parent", Value: pix.String(parent)},
			pix.Property{Key: "Matrix", Value: pix.Hexes(rows[:]...)},
		)
	}
	return []*pix.Section{h, g, bones}, nil
}

// Skeleton is a decoded skeleton file.
type Skeleton struct {
	Name  string
	Bones []Bone
}

// Bone is a decoded bone. Parent is -1 for roots.
type Bone struct {
	Name   string
	Parent int
	Matrix math.Mat4
}

// Armature rebuilds a host armature: parent-relative engine matrices are
// chained back into armature space.
func (s *Skeleton) Armature(scale float32) *scene.Armature {
	if scale == 0 {
		scale = 1
	}
	arm := &scene.Armature{Name: s.Name, World: math.Identity()}
	for _, b := range s.Bones {
		rest := convert.MatrixToHost(b.Matrix, scale)
		if b.Parent >= 0 {
			rest = arm.Bones[b.Parent].Rest.Mul(rest)
		}
		arm.AddBone(b.Name, b.Parent, rest)
	}
	return arm
}

// ReadFile parses and decodes a skeleton file.
func ReadFile(path string, log *logger.Stack) (*Skeleton, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes skeleton sections. Bones must follow their parent.
func Read(sections []*pix.Section, log *logger.Stack) (*Skeleton, error) {
	typ, _, ok := pix.HeaderOf(sections)
	if !ok || typ != "Skeleton" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	s := &Skeleton{}
	s.Name, _ = pix.Find(sections, "Header").Str("Name")
	index := make(map[string]int)

	bones := pix.Find(sections, "Bones")
	if bones == nil {
		return s, nil
	}
	for _, r := range bones.Rows {
		nameV, _ := r.Field("Name")
		parentV, _ := r.Field("Parent")
		matV, _ := r.Field("Matrix")
		name, _ := nameV.AsString()
		parentName, _ := parentV.AsString()

		b := Bone{Name: name, Parent: -1, Matrix: math.Identity()}
		if parentName != "" {
			pi, ok := index[parentName]
			if !ok {
				log.Errorf("skeleton %q: bone %q names unknown or later parent %q, made a root", s.Name, name, parentName)
			} else {
				b.Parent = pi
			}
		}
		if f := matV.Floats(); len(f) == 16 {
			var rows [16]float32
			copy(rows[:], f)
			b.Matrix = math.FromRowMajor(rows)
		} else {
			log.Errorf("skeleton %q: bone %q matrix has %d values", s.Name, name, len(f))
		}
		index[name] = len(s.Bones)
		s.Bones = append(s.Bones, b)
	}
	if g := pix.Find(sections, "Global"); g != nil {
		if n, ok := g.Int("BoneCount"); ok && n != len(s.Bones) {
			log.Warnf("skeleton %q declares %d bones, has %d", s.Name, n, len(s.Bones))
		}
	}
	return s, nil
}
