package pit

import (
	"slices"
	"strings"

	"github.com/Faultbox/scs-forge/internal/scene"
)

// Looks edits the looks of a root. Every look holds one entry per
// material used anywhere in the root.
type Looks struct {
	root *scene.Root
}

// NewLooks wraps the looks of root.
func NewLooks(root *scene.Root) *Looks {
	return &Looks{root: root}
}

// Snapshot returns the look-scoped properties of mat.
func (l *Looks) Snapshot(mat *scene.Material) scene.Props {
	return scene.Snapshot(mat)
}

// Names returns look names in order.
func (l *Looks) Names() []string {
	out := make([]string, len(l.root.Looks))
	for i, look := range l.root.Looks {
		out[i] = look.Name
	}
	return out
}

// Index returns the index of the named look, or -1.
func (l *Looks) Index(name string) int {
	for i, look := range l.root.Looks {
		if look.Name == name {
			return i
		}
	}
	return -1
}

// Add appends a look copying the entries of the active one and returns
// its index. An existing name returns the existing look.
func (l *Looks) Add(name string) int {
	if i := l.Index(name); i >= 0 {
		return i
	}
	look := scene.Look{Name: name}
	if n := len(l.root.Looks); n > 0 {
		src := l.root.Looks[min(max(l.root.ActiveLook, 0), n-1)]
		for _, e := range src.Entries {
			look.Entries = append(look.Entries, scene.LookEntry{MaterialID: e.MaterialID, Props: e.Props.Clone()})
		}
	}
	l.root.Looks = append(l.root.Looks, look)
	return len(l.root.Looks) - 1
}

// AddMaterial adds a snapshot of mat to every look lacking one and
// returns the number of looks that changed.
func (l *Looks) AddMaterial(mat *scene.Material) int {
	n := 0
	for i := range l.root.Looks {
		look := &l.root.Looks[i]
		if look.Entry(mat.ID) != nil {
			continue
		}
		look.Entries = append(look.Entries, scene.LookEntry{MaterialID: mat.ID, Props: scene.Snapshot(mat)})
		n++
	}
	return n
}

// Update stores mat into the active look. Other looks take the effect,
// locked textures and keys they do not have yet; with general set they
// also take the keys looks do not scope, the UV mappings. Keys mat no
// longer has are dropped everywhere.
func (l *Looks) Update(active int, mat *scene.Material, general bool) {
	snap := scene.Snapshot(mat)
	for i := range l.root.Looks {
		look := &l.root.Looks[i]
		e := look.Entry(mat.ID)
		if e == nil {
			look.Entries = append(look.Entries, scene.LookEntry{MaterialID: mat.ID, Props: snap.Clone()})
			continue
		}
		if i == active {
			e.Props = snap.Clone()
			continue
		}
		for _, p := range snap {
			if p.Key == scene.KeyEffect || locked(mat, p.Key) || (general && unscoped(p.Key)) || !e.Props.Has(p.Key) {
				e.Props.Set(p.Key, p.Value.Clone())
			}
		}
		for _, k := range e.Props.Keys() {
			if !snap.Has(k) {
				e.Props.Delete(k)
			}
		}
	}
}

// WriteThrough copies one property of mat into every look holding an
// entry for mat and returns the number of those looks, whether or not
// their value changed.
func (l *Looks) WriteThrough(mat *scene.Material, key string) int {
	v, ok := mat.Props.Get(key)
	if !ok || !scene.Snapshotted(key) {
		return 0
	}
	n := 0
	for i := range l.root.Looks {
		e := l.root.Looks[i].Entry(mat.ID)
		if e == nil {
			continue
		}
		n++
		if old, ok := e.Props.Get(key); ok && old.Equal(v) {
			continue
		}
		e.Props.Set(key, v.Clone())
	}
	return n
}

// CleanUnused removes entries of materials not in ids and returns how
// many were removed.
func (l *Looks) CleanUnused(ids []int) int {
	n := 0
	for i := range l.root.Looks {
		look := &l.root.Looks[i]
		kept := look.Entries[:0]
		for _, e := range look.Entries {
			if slices.Contains(ids, e.MaterialID) {
				kept = append(kept, e)
				continue
			}
			n++
		}
		look.Entries = kept
	}
	return n
}

// Switch makes look i active and writes its entries into the matching
// materials.
func (l *Looks) Switch(i int, mats []*scene.Material) {
	if i < 0 || i >= len(l.root.Looks) {
		return
	}
	l.root.ActiveLook = i
	look := &l.root.Looks[i]
	for _, mat := range mats {
		e := look.Entry(mat.ID)
		if e == nil {
			continue
		}
		for _, p := range e.Props {
			mat.Props.Set(p.Key, p.Value.Clone())
		}
	}
}

// locked reports whether key is the path of a locked texture slot.
func locked(mat *scene.Material, key string) bool {
	slot := scene.TextureSlotOf(key)
	return slot != "" && mat.TextureLocked(slot)
}

// unscoped reports whether key is shared by all looks.
func unscoped(key string) bool {
	return strings.HasSuffix(key, scene.SuffixUV)
}
