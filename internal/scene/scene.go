// Package scene holds the host-side data the exporters consume: meshes,
// locators, armatures, actions and materials of one or more game object
// roots. Everything is in the host frame (Z up).
package scene

import (
	"github.com/Faultbox/scs-forge/pkg/math"
)

// DefaultPart is used when an object names no part.
const DefaultPart = "defaultpart"

// Provider yields the objects of a root. Scene implements it; other
// hosts can plug in their own.
type Provider interface {
	Meshes(root *Root) []*Mesh
	Locators(root *Root) []*Locator
	Armature(root *Root) *Armature
	Action(name string) (*Action, bool)
	Variants(root *Root) []Variant
	Parts(root *Root) []string
	Looks(root *Root) []Look
	Material(name string) (*Material, bool)
}

// Root is a game object: the unit of one export.
type Root struct {
	Name  string
	World math.Mat4

	Meshes   []*Mesh
	Locators []*Locator
	Armature *Armature

	// Parts lists declared parts in trait order.
	Parts    []string
	Variants []Variant
	Looks    []Look
	// ActiveLook indexes Looks.
	ActiveLook int

	Animations []Animation
	// SkeletonPath is the skeleton file path without extension,
	// relative to the export directory. Empty means Name.
	SkeletonPath string
	// AnimFolder is the directory of animation files relative to the
	// export directory.
	AnimFolder string

	// Connections are directed links between locators by name:
	// navigation curves, map point and trigger point neighbours.
	Connections [][2]string
}

// Skinned reports whether the root carries an armature.
func (r *Root) Skinned() bool { return r.Armature != nil }

// Skeleton returns the skeleton path without extension.
func (r *Root) Skeleton() string {
	if r.SkeletonPath != "" {
		return r.SkeletonPath
	}
	return r.Name
}

// Locator returns the locator named name.
func (r *Root) Locator(name string) *Locator {
	for _, l := range r.Locators {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Variant toggles parts.
type Variant struct {
	Name  string
	Parts []VariantPart
}

// VariantPart is one part switch of a variant.
type VariantPart struct {
	Name    string
	Include bool
}

// Includes reports whether the variant includes part.
func (v Variant) Includes(part string) bool {
	for _, p := range v.Parts {
		if p.Name == part {
			return p.Include
		}
	}
	return false
}

// Look is a named snapshot of material property bags.
type Look struct {
	Name    string
	Entries []LookEntry
}

// LookEntry is the snapshot of one material inside a look.
type LookEntry struct {
	MaterialID int
	Props      Props
}

// Entry returns the entry of the material id.
func (l *Look) Entry(id int) *LookEntry {
	for i := range l.Entries {
		if l.Entries[i].MaterialID == id {
			return &l.Entries[i]
		}
	}
	return nil
}

// Animation is one exported clip of an action.
type Animation struct {
	Name   string
	Action string
	Start  int
	End    int
	// Length is the playback length in seconds. Zero means frames/30.
	Length float32
}

// Frames returns the number of frames covered at step.
func (a Animation) Frames(step int) int {
	if step < 1 {
		step = 1
	}
	if a.End < a.Start {
		return 0
	}
	return (a.End-a.Start)/step + 1
}

// Duration returns Length or the default 30 fps length.
func (a Animation) Duration(step int) float32 {
	if a.Length > 0 {
		return a.Length
	}
	return float32(a.Frames(step)) / 30
}

// Scene is an in-memory Provider.
type Scene struct {
	Roots     []*Root
	Materials []*Material
	Actions   []*Action
}

// Root returns the root named name.
func (s *Scene) Root(name string) (*Root, bool) {
	for _, r := range s.Roots {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

func (s *Scene) Meshes(root *Root) []*Mesh { return root.Meshes }
func (s *Scene) Locators(root *Root) []*Locator { return root.Locators }
func (s *Scene) Armature(root *Root) *Armature { return root.Armature }
func (s *Scene) Variants(root *Root) []Variant { return root.Variants }
func (s *Scene) Looks(root *Root) []Look { return root.Looks }

// Parts returns the declared parts, or DefaultPart when none are.
func (s *Scene) Parts(root *Root) []string {
	if len(root.Parts) == 0 {
		return []string{DefaultPart}
	}
	return root.Parts
}

// Action returns the action named name.
func (s *Scene) Action(name string) (*Action, bool) {
	for _, a := range s.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Material returns the material named name.
func (s *Scene) Material(name string) (*Material, bool) {
	for _, m := range s.Materials {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// MaterialByID returns the material with the given id.
func (s *Scene) MaterialByID(id int) (*Material, bool) {
	for _, m := range s.Materials {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}
