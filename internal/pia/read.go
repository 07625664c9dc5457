package pia

import (
	"fmt"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// Animation is a decoded animation file.
type Animation struct {
	Name        string
	Skeleton    string
	TotalTime   float32
	TotalLength math.Vec3
	Bones       []BoneChannel
	Custom      []CustomChannel
}

// BoneChannel is the sampled matrix track of one bone.
type BoneChannel struct {
	Name     string
	Times    []float32
	Matrices []math.Mat4
}

// CustomChannel is a root motion track. Values hold three (movement) or
// four (rotation, wxyz) components per key.
type CustomChannel struct {
	Name   string
	Times  []float32
	Values [][]float32
}

// Bone returns the channel of the named bone.
func (a *Animation) Bone(name string) *BoneChannel {
	for i := range a.Bones {
		if a.Bones[i].Name == name {
			return &a.Bones[i]
		}
	}
	return nil
}

// ReadFile parses and decodes an animation file.
func ReadFile(path string, log *logger.Stack) (*Animation, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes animation sections.
func Read(sections []*pix.Section, log *logger.Stack) (*Animation, error) {
	typ, _, ok := pix.HeaderOf(sections)
	if !ok || typ != "Animation" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	a := &Animation{}
	a.Name, _ = pix.Find(sections, "Header").Str("Name")

	g := pix.Find(sections, "Global")
	if g != nil {
		a.Skeleton, _ = g.Str("Skeleton")
		a.TotalTime, _ = g.Float("TotalTime")
		if v, ok := g.Prop("TotalLength"); ok {
			if f := v.Floats(); len(f) == 3 {
				a.TotalLength = math.Vec3{X: f[0], Y: f[1], Z: f[2]}
			}
		}
	}

	for _, s := range pix.FindAll(sections, "BoneChannel") {
		name, _ := s.Str("Name")
		ch := BoneChannel{Name: name}
		for _, st := range s.Children("Stream") {
			tag, _ := st.Str("Tag")
			switch tag {
			case TagTime:
				ch.Times = scalars(st)
			case TagMatrix:
				for _, r := range st.Rows {
					f := r.Floats()
					if len(f) != 16 {
						log.Errorf("animation %q: bone %q key %d has %d matrix values", a.Name, name, r.Index, len(f))
						ch.Matrices = append(ch.Matrices, math.Identity())
						continue
					}
					var rows [16]float32
					copy(rows[:], f)
					ch.Matrices = append(ch.Matrices, math.FromRowMajor(rows))
				}
			}
		}
		checkKeys(s, a.Name, name, len(ch.Times), len(ch.Matrices), log)
		a.Bones = append(a.Bones, ch)
	}

	for _, s := range pix.FindAll(sections, "CustomChannel") {
		name, _ := s.Str("Name")
		ch := CustomChannel{Name: name}
		for _, st := range s.Children("Stream") {
			tag, _ := st.Str("Tag")
			if tag == TagTime {
				ch.Times = scalars(st)
				continue
			}
			for _, r := range st.Rows {
				ch.Values = append(ch.Values, r.Floats())
			}
		}
		checkKeys(s, a.Name, name, len(ch.Times), len(ch.Values), log)
		a.Custom = append(a.Custom, ch)
	}

	if g != nil {
		if n, ok := g.Int("BoneChannelCount"); ok && n != len(a.Bones) {
			log.Warnf("animation %q declares %d bone channels, has %d", a.Name, n, len(a.Bones))
		}
		if n, ok := g.Int("CustomChannelCount"); ok && n != len(a.Custom) {
			log.Warnf("animation %q declares %d custom channels, has %d", a.Name, n, len(a.Custom))
		}
	}
	return a, nil
}

func scalars(s *pix.Section) []float32 {
	out := make([]float32, 0, len(s.Rows))
	for _, r := range s.Rows {
		if f := r.Floats(); len(f) > 0 {
			out = append(out, f[0])
		}
	}
	return out
}

func checkKeys(s *pix.Section, anim, channel string, times, values int, log *logger.Stack) {
	n, ok := s.Int("KeyframeCount")
	if !ok {
		n = times
	}
	if times != n || values != n {
		log.Warnf("animation %q: channel %q declares %d keys, has %d times and %d values", anim, channel, n, times, values)
	}
}
