// Package pia builds and reads animation files: one action sampled into
// per-bone matrix streams plus the optional root motion channels.
package pia

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

var (
	ErrNoArmature    = errors.New("root has no armature")
	ErrNoAction      = errors.New("animation action not found")
	ErrNegativeScale = errors.New("negative bone scale")
	ErrFormat        = errors.New("invalid animation file")
)

const (
	// Version is the FormatVersion of animation files.
	Version = 3
	// Source is written to the Source header field.
	Source = "scs-forge 1.0"

	MovementChannel = "Prism Movement"
	RotationChannel = "Prism Rotation"

	TagTime     = "_TIME"
	TagMatrix   = "_MATRIX"
	TagMovement = "_MOVEMENT"
	TagRotation = "_ROTATION"
)

// Options configures a build. Skeleton is the skeleton file path
// written to the Global section, relative to the animation file.
type Options struct {
	Name     string
	Skeleton string
	Scale    float32
	Step     int
}

type builder struct {
	root   *scene.Root
	arm    *scene.Armature
	act    *scene.Action
	anim   scene.Animation
	opts   Options
	log    *logger.Stack
	frames []float32
}

// Build samples anim over its frame range and assembles the animation
// file. A negative scale on any sampled bone aborts the build.
func Build(root *scene.Root, p scene.Provider, anim scene.Animation, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	if opts.Step < 1 {
		opts.Step = 1
	}
	if opts.Name == "" {
		opts.Name = anim.Name
	}
	arm := p.Armature(root)
	if arm == nil {
		log.Errorf("animation %q: %v", opts.Name, ErrNoArmature)
		return nil, ErrNoArmature
	}
	act, ok := p.Action(anim.Action)
	if !ok {
		log.Errorf("animation %q: %v: %q", opts.Name, ErrNoAction, anim.Action)
		return nil, fmt.Errorf("%w: %q", ErrNoAction, anim.Action)
	}

	b := &builder{root: root, arm: arm, act: act, anim: anim, opts: opts, log: log}
	n := anim.Frames(opts.Step)
	for i := 0; i < n; i++ {
		b.frames = append(b.frames, float32(anim.Start+i*opts.Step))
	}
	if n == 0 {
		log.Warnf("animation %q has an empty frame range %d..%d", opts.Name, anim.Start, anim.End)
	}

	bones, err := b.boneChannels()
	if err != nil {
		return nil, err
	}
	custom, total := b.customChannels()

	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(Version))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Animation"))
	h.Add("Name", pix.String(opts.Name))

	g := pix.NewSection("Global")
	g.Add("Skeleton", pix.String(opts.Skeleton))
	g.Add("TotalTime", pix.Hex(anim.Duration(opts.Step)))
	g.Add("BoneChannelCount", pix.Int(len(bones)))
	g.Add("CustomChannelCount", pix.Int(len(custom)))
	g.Add("TotalLength", pix.Hexes(total.X, total.Y, total.Z))

	out := []*pix.Section{h, g}
	out = append(out, custom...)
	out = append(out, bones...)
	return out, nil
}

// frameTime is the constant duration of one sample.
func (b *builder) frameTime() float32 {
	if len(b.frames) == 0 {
		return 0
	}
	return b.anim.Duration(b.opts.Step) / float32(len(b.frames))
}

func (b *builder) timeStream() *pix.Section {
	s := stream("FLOAT", TagTime)
	dt := b.frameTime()
	for range b.frames {
		s.AddRow(pix.Hex(dt))
	}
	return s
}

func stream(format, tag string) *pix.Section {
	s := pix.NewSection("Stream")
	s.Add("Format", pix.Name(format))
	s.Add("Tag", pix.String(tag))
	return s
}

func channel(typ, name string, keys int, streams ...*pix.Section) *pix.Section {
	c := pix.NewSection(typ)
	c.Add("Name", pix.String(name))
	c.Add("StreamCount", pix.Int(len(streams)))
	c.Add("KeyframeCount", pix.Int(keys))
	for _, s := range streams {
		c.AddSection(s)
	}
	return c
}

// Basis samples the pose basis of bone at frame: location, rotation in
// the bone's rotation mode, then scale.
func Basis(act *scene.Action, bone scene.Bone, frame float32) (math.Mat4, math.Vec3) {
	loc := act.Sample(scene.BonePath(bone.Name, "location"), frame, 0, 0, 0)
	sca := act.Sample(scene.BonePath(bone.Name, "scale"), frame, 1, 1, 1)

	var rot math.Mat4
	switch mode := bone.RotationMode; {
	case mode.IsEuler():
		e := act.Sample(scene.BonePath(bone.Name, "rotation_euler"), frame, 0, 0, 0)
		rot = math.EulerToMat4(math.Vec3{X: e[0], Y: e[1], Z: e[2]}, mode)
	case mode == math.RotationAxisAngle:
		aa := act.Sample(scene.BonePath(bone.Name, "rotation_axis_angle"), frame, 0, 0, 1, 0)
		rot = math.AxisAngleToMat4([4]float32{aa[0], aa[1], aa[2], aa[3]})
	default:
		q := act.Sample(scene.BonePath(bone.Name, "rotation_quaternion"), frame, 1, 0, 0, 0)
		rot = math.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Normalize().ToMat4()
	}
	s := math.Vec3{X: sca[0], Y: sca[1], Z: sca[2]}
	m := math.Translate(loc[0], loc[1], loc[2]).Mul(rot).Mul(math.Scale(s.X, s.Y, s.Z))
	return m, s
}

// boneChannels emits a channel for every armature bone the action
// animates, in armature order.
func (b *builder) boneChannels() ([]*pix.Section, error) {
	animated := make(map[string]bool)
	for _, name := range b.act.Bones() {
		if b.arm.BoneIndex(name) < 0 {
			b.log.Warnf("animation %q: action %q animates unknown bone %q", b.opts.Name, b.act.Name, name)
			continue
		}
		animated[name] = true
	}

	base := b.root.World.Inverse().Mul(b.arm.World)
	var out []*pix.Section
	for _, bone := range b.arm.Bones {
		if !animated[bone.Name] {
			continue
		}
		rest := base.Mul(bone.Rest)
		if bone.Parent >= 0 {
			rest = b.arm.Bones[bone.Parent].Rest.Inverse().Mul(bone.Rest)
		}

		mats := stream("FLOAT4x4", TagMatrix)
		for _, f := range b.frames {
			basis, s := Basis(b.act, bone, f)
			if s.X < 0 || s.Y < 0 || s.Z < 0 {
				b.log.Errorf("animation %q: bone %q has scale %v at frame %g, bone channels not written", b.opts.Name, bone.Name, s, f)
				return nil, fmt.Errorf("%w: bone %q frame %g", ErrNegativeScale, bone.Name, f)
			}
			m := convert.Matrix(rest.Mul(basis), b.opts.Scale).RowMajor()
			r := mats.AddRow(pix.Hexes(m[:]...))
			r.Wrap = 4
		}
		out = append(out, channel("BoneChannel", bone.Name, len(b.frames), b.timeStream(), mats))
	}
	return out, nil
}

// customChannels emits the root motion channels when the action moves or
// turns the root object. Each key holds the change since the previous
// sample; the first key is zero.
func (b *builder) customChannels() ([]*pix.Section, math.Vec3) {
	var total math.Vec3
	if !b.act.Has("location") && !b.act.Has("rotation_quaternion") {
		return nil, total
	}

	move := stream("FLOAT3", TagMovement)
	turn := stream("FLOAT4", TagRotation)
	var prevPos math.Vec3
	var prevRot math.Quat
	for i, f := range b.frames {
		l := b.act.Sample("location", f, 0, 0, 0)
		q := b.act.Sample("rotation_quaternion", f, 1, 0, 0, 0)
		pos := convert.Position(math.Vec3{X: l[0], Y: l[1], Z: l[2]}, b.opts.Scale)
		rot := convert.Quat(math.Quat{W: q[0], X: q[1], Y: q[2], Z: q[3]}.Normalize())

		delta, diff := math.Vec3{}, math.QuatIdentity()
		if i > 0 {
			delta = pos.Sub(prevPos)
			diff = prevRot.Rotation(rot)
		}
		total = total.Add(delta)
		move.AddRow(pix.Hexes(delta.X, delta.Y, delta.Z))
		wxyz := diff.WXYZ()
		turn.AddRow(pix.Hexes(wxyz[:]...))
		prevPos, prevRot = pos, rot
	}
	n := len(b.frames)
	return []*pix.Section{
		channel("CustomChannel", MovementChannel, n, b.timeStream(), move),
		channel("CustomChannel", RotationChannel, n, b.timeStream(), turn),
	}, total
}

// SkeletonPath returns the skeleton reference written into an animation
// stored in animFolder, both relative to the export directory.
func SkeletonPath(skeleton, animFolder string) string {
	target := filepath.FromSlash(skeleton + ".pis")
	rel, err := filepath.Rel(filepath.FromSlash(animFolder), target)
	if err != nil {
		return filepath.ToSlash(target)
	}
	return filepath.ToSlash(rel)
}
