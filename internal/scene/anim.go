package scene

import (
	"strconv"
	"strings"

	"github.com/Faultbox/scs-forge/pkg/math"
)

// Armature is a bone hierarchy.
type Armature struct {
	Name  string
	World math.Mat4
	Bones []Bone
}

// Bone is one bone of an armature. Parent is -1 for roots and always
// indexes an earlier bone.
type Bone struct {
	Name   string
	Parent int
	// Rest is the rest pose in armature space.
	Rest         math.Mat4
	RotationMode math.RotationMode
}

// BoneIndex returns the index of the bone named name, or -1.
func (a *Armature) BoneIndex(name string) int {
	for i := range a.Bones {
		if a.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

// AddBone appends a bone and returns its index.
func (a *Armature) AddBone(name string, parent int, rest math.Mat4) int {
	a.Bones = append(a.Bones, Bone{Name: name, Parent: parent, Rest: rest, RotationMode: math.RotationQuaternion})
	return len(a.Bones) - 1
}

// Interpolation is the segment mode of a keyframe.
type Interpolation string

const (
	InterpConstant Interpolation = "CONSTANT"
	InterpLinear   Interpolation = "LINEAR"
)

// Keyframe is one key of an f-curve.
type Keyframe struct {
	Frame  float32
	Value  float32
	Interp Interpolation
}

// FCurve animates one array element of a data path.
type FCurve struct {
	DataPath string
	Index    int
	Keys     []Keyframe
}

// Action is a set of f-curves.
type Action struct {
	Name    string
	FCurves []FCurve
}

// Curve returns the f-curve for path and index.
func (a *Action) Curve(path string, index int) *FCurve {
	for i := range a.FCurves {
		if a.FCurves[i].DataPath == path && a.FCurves[i].Index == index {
			return &a.FCurves[i]
		}
	}
	return nil
}

// AddKey appends a key to the curve for path and index, creating it.
func (a *Action) AddKey(path string, index int, frame, value float32) {
	c := a.Curve(path, index)
	if c == nil {
		a.FCurves = append(a.FCurves, FCurve{DataPath: path, Index: index})
		c = &a.FCurves[len(a.FCurves)-1]
	}
	c.Keys = append(c.Keys, Keyframe{Frame: frame, Value: value, Interp: InterpLinear})
}

// Evaluate returns the curve value at frame. Keys are expected sorted
// by frame; outside the key range the nearest key holds.
func (c *FCurve) Evaluate(frame float32) float32 {
	keys := c.Keys
	if len(keys) == 0 {
		return 0
	}
	if len(keys) == 1 {
		return keys[0].Value
	}

	var prev, next int
	for i := range keys {
		if keys[i].Frame > frame {
			next = i
			break
		}
		prev = i
		next = i
	}

	if prev == next {
		return keys[prev].Value
	}

	k0 := keys[prev]
	k1 := keys[next]
	if k0.Interp == InterpConstant {
		return k0.Value
	}
	t := float32(0)
	if k1.Frame != k0.Frame {
		t = (frame - k0.Frame) / (k1.Frame - k0.Frame)
	}
	return k0.Value + t*(k1.Value-k0.Value)
}

// BonePath returns the data path prefix of a pose bone channel.
func BonePath(bone, channel string) string {
	return `pose.bones["` + bone + `"].` + channel
}

// SplitBonePath returns the bone name and channel of a pose bone data
// path.
func SplitBonePath(path string) (bone, channel string, ok bool) {
	const prefix = `pose.bones["`
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := path[len(prefix):]
	end := strings.Index(rest, `"]`)
	if end < 0 {
		return "", "", false
	}
	bone = rest[:end]
	channel = strings.TrimPrefix(rest[end+2:], ".")
	return bone, channel, true
}

// Bones returns the names of bones animated by the action in first-use
// order.
func (a *Action) Bones() []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range a.FCurves {
		b, _, ok := SplitBonePath(c.DataPath)
		if ok && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// Sample evaluates count elements of a data path at frame. Missing
// elements take def[i].
func (a *Action) Sample(path string, frame float32, def ...float32) []float32 {
	out := make([]float32, len(def))
	for i := range def {
		if c := a.Curve(path, i); c != nil {
			out[i] = c.Evaluate(frame)
		} else {
			out[i] = def[i]
		}
	}
	return out
}

// Has reports whether the action animates path.
func (a *Action) Has(path string) bool {
	for _, c := range a.FCurves {
		if c.DataPath == path {
			return true
		}
	}
	return false
}

// Range returns the lowest and highest key frame over all curves.
func (a *Action) Range() (start, end int) {
	first := true
	for _, c := range a.FCurves {
		for _, k := range c.Keys {
			f := int(k.Frame)
			if first || f < start {
				start = f
			}
			if first || f > end {
				end = f
			}
			first = false
		}
	}
	return start, end
}

func (k Keyframe) String() string {
	return strconv.FormatFloat(float64(k.Frame), 'g', -1, 32) + ":" +
		strconv.FormatFloat(float64(k.Value), 'g', -1, 32)
}
