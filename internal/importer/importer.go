// Package importer reads back the file set of one exported game object:
// the model and whichever collision, prefab, trait, skeleton and
// animation files sit next to it.
package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/pia"
	"github.com/Faultbox/scs-forge/internal/pic"
	"github.com/Faultbox/scs-forge/internal/pim"
	"github.com/Faultbox/scs-forge/internal/pip"
	"github.com/Faultbox/scs-forge/internal/pis"
	"github.com/Faultbox/scs-forge/internal/pit"
	"github.com/Faultbox/scs-forge/internal/scene"
)

// ErrNoModel is returned when the model file cannot be read.
var ErrNoModel = errors.New("model file not readable")

// Set is a decoded file set. Optional members are nil when the file is
// absent or failed to parse.
type Set struct {
	Base       string
	Model      *pim.Model
	Collision  *pic.Collision
	Prefab     *pip.File
	Trait      *pit.Trait
	Skeleton   *pis.Skeleton
	Animations []*pia.Animation
}

// Load reads the model at path (with or without the .pim extension)
// plus its siblings, and the animation files anims. Only a missing or
// unreadable model is fatal; the other files are reported on log and
// skipped.
func Load(path string, anims []string, log *logger.Stack) (*Set, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	set := &Set{Base: base}

	model, err := pim.ReadFile(base+".pim", log)
	if err != nil {
		log.Errorf("model %s: %v", base+".pim", err)
		return nil, fmt.Errorf("%w: %w", ErrNoModel, err)
	}
	set.Model = model

	if exists(base + ".pic") {
		if set.Collision, err = pic.ReadFile(base+".pic", log); err != nil {
			log.Errorf("collision %s: %v", base+".pic", err)
		}
	}
	if exists(base + ".pip") {
		if set.Prefab, err = pip.ReadFile(base+".pip", log); err != nil {
			log.Errorf("prefab %s: %v", base+".pip", err)
		}
	}
	if exists(base + ".pit") {
		if set.Trait, err = pit.ReadFile(base+".pit", log); err != nil {
			log.Errorf("trait %s: %v", base+".pit", err)
		}
	}

	if skel := set.skeletonPath(); skel != "" {
		if set.Skeleton, err = pis.ReadFile(skel, log); err != nil {
			log.Errorf("skeleton %s: %v", skel, err)
		}
	}
	for _, a := range anims {
		anim, err := pia.ReadFile(a, log)
		if err != nil {
			log.Errorf("animation %s: %v", a, err)
			continue
		}
		set.checkAnimation(a, anim, log)
		set.Animations = append(set.Animations, anim)
	}

	set.checkParts(log)
	logger.Info("imported",
		zap.String("model", base+".pim"),
		zap.Bool("collision", set.Collision != nil),
		zap.Bool("prefab", set.Prefab != nil),
		zap.Bool("trait", set.Trait != nil),
		zap.Bool("skeleton", set.Skeleton != nil),
		zap.Int("animations", len(set.Animations)))
	return set, nil
}

// skeletonPath resolves the skeleton referenced by the model relative to
// the model's directory, falling back to the sibling file.
func (s *Set) skeletonPath() string {
	if ref := s.Model.Skeleton; ref != "" {
		p := filepath.Join(filepath.Dir(s.Base), filepath.FromSlash(ref))
		if exists(p) {
			return p
		}
	}
	if exists(s.Base + ".pis") {
		return s.Base + ".pis"
	}
	return ""
}

// checkAnimation warns about channels of bones the skeleton lacks.
func (s *Set) checkAnimation(path string, anim *pia.Animation, log *logger.Stack) {
	if s.Skeleton == nil {
		log.Warnf("animation %s: no skeleton loaded", path)
		return
	}
	known := make(map[string]bool, len(s.Skeleton.Bones))
	for _, b := range s.Skeleton.Bones {
		known[b.Name] = true
	}
	for _, ch := range anim.Bones {
		if !known[ch.Name] {
			log.Warnf("animation %s: bone %q not in skeleton", path, ch.Name)
		}
	}
}

// Parts returns the part names of the trait, or of the model when there
// is no trait.
func (s *Set) Parts() []string {
	if s.Trait != nil && len(s.Trait.Variants) > 0 {
		var out []string
		for _, p := range s.Trait.Variants[0].Parts {
			out = append(out, p.Name)
		}
		return out
	}
	var out []string
	for _, p := range s.Model.Parts {
		out = append(out, p.Name)
	}
	return out
}

func (s *Set) checkParts(log *logger.Stack) {
	if s.Trait == nil || len(s.Trait.Variants) == 0 {
		return
	}
	want := s.Parts()
	var got []string
	for _, p := range s.Model.Parts {
		got = append(got, p.Name)
	}
	if !slices.Equal(got, want) {
		log.Warnf("model parts %v differ from trait parts %v", got, want)
	}
	if s.Collision == nil {
		return
	}
	got = got[:0]
	for _, p := range s.Collision.Parts {
		got = append(got, p.Name)
	}
	if !slices.Equal(got, want) {
		log.Warnf("collision parts %v differ from trait parts %v", got, want)
	}
}

// Armature rebuilds the host armature of the skeleton, or nil.
func (s *Set) Armature(scale float32) *scene.Armature {
	if s.Skeleton == nil {
		return nil
	}
	return s.Skeleton.Armature(scale)
}

// FindAnimations lists the animation files under dir, sorted.
func FindAnimations(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".pia") {
			out = append(out, p)
		}
		return nil
	})
	slices.Sort(out)
	return out, err
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
