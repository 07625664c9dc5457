package pip

import (
	stdmath "math"

	"github.com/Faultbox/scs-forge/pkg/math"
)

// Intersection is where a curve crosses another one. Position is the
// curve parameter of the crossing.
type Intersection struct {
	Curve    int
	Position float32
	Radius   float32
	Flags    uint32
}

// SetRadius keeps the larger of the current and the given radius.
func (i *Intersection) SetRadius(r float32) {
	if r > i.Radius {
		i.Radius = r
	}
}

// hit finds the first crossing of a and b in the horizontal plane by
// sampling both into CurveSteps segments. Crossings more than
// SafeDistance apart in height are overpasses and ignored.
func hit(a, b *Curve) (ta, tb float32, ok bool) {
	pa := samples(a)
	pb := samples(b)
	for i := 0; i < CurveSteps; i++ {
		for j := 0; j < CurveSteps; j++ {
			u, v, cross := segments(pa[i].XZ(), pa[i+1].XZ(), pb[j].XZ(), pb[j+1].XZ())
			if !cross {
				continue
			}
			ta = (float32(i) + u) / CurveSteps
			tb = (float32(j) + v) / CurveSteps
			if abs(a.Point(ta).Y-b.Point(tb).Y) > SafeDistance {
				continue
			}
			return ta, tb, true
		}
	}
	return 0, 0, false
}

func samples(c *Curve) []math.Vec3 {
	out := make([]math.Vec3, CurveSteps+1)
	for i := range out {
		out[i] = c.Point(float32(i) / CurveSteps)
	}
	return out
}

// segments intersects p0p1 with q0q1 and returns the parameters on each.
// Parallel segments never cross.
func segments(p0, p1, q0, q1 math.Vec2) (u, v float32, ok bool) {
	r := p1.Sub(p0)
	s := q1.Sub(q0)
	den := r.Cross(s)
	if abs(den) < 1e-9 {
		return 0, 0, false
	}
	d := q0.Sub(p0)
	u = d.Cross(s) / den
	v = d.Cross(r) / den
	const eps = 1e-6
	if u < -eps || u > 1+eps || v < -eps || v > 1+eps {
		return 0, 0, false
	}
	return clamp01(u), clamp01(v), true
}

// radius walks away from the crossing on both curves in RadiusStep
// increments, backwards first, and returns the longest walk after which
// the curves are more than SafeDistance apart.
//
// When a walk runs off a curve end before the curves separate, the
// crossing is absorbed (radius 0) if a and b share an adjacent curve.
// The adjacency test looks at the direction of the last walk only, so
// only shared next curves absorb.
func radius(a, b *Curve, ta, tb float32) float32 {
	var r float32
	ranOff := false
	var dir float32
	for _, dir = range [2]float32{-1, 1} {
		for d := float32(RadiusStep); ; d += RadiusStep {
			sa := ta*a.Length + dir*d
			sb := tb*b.Length + dir*d
			if sa < 0 || sa > a.Length || sb < 0 || sb > b.Length {
				ranOff = true
				break
			}
			pa := a.Point(param(a, sa))
			pb := b.Point(param(b, sb))
			if pa.Distance(pb) > SafeDistance {
				if d > r {
					r = d
				}
				break
			}
		}
	}
	if ranOff {
		adjA, adjB := a.Prev, b.Prev
		if dir > 0 {
			adjA, adjB = a.Next, b.Next
		}
		if linked(adjA, adjB) {
			return 0
		}
	}
	return r
}

func param(c *Curve, s float32) float32 {
	if c.Length <= 0 {
		return 0
	}
	return clamp01(s / c.Length)
}

// intersections tests every pair of curves without a common fork or
// joint and returns one sibling entry per curve for each crossing.
func intersections(curves []*Curve) []*Intersection {
	var out []*Intersection
	add := func(curve int, pos, r float32, flags uint32) {
		for _, in := range out {
			if in.Curve == curve && abs(in.Position-pos) < 1e-4 {
				in.SetRadius(r)
				in.Flags |= flags
				return
			}
		}
		out = append(out, &Intersection{Curve: curve, Position: pos, Radius: r, Flags: flags})
	}

	for i, a := range curves {
		for _, b := range curves[i+1:] {
			if commonFork(curves, a, b) || commonJoint(curves, a, b) {
				continue
			}
			ta, tb, ok := hit(a, b)
			if !ok {
				continue
			}
			var flags uint32
			switch {
			case a.start == b.start:
				flags = IntersectStart
			case a.end == b.end:
				flags = IntersectEnd
			default:
				flags = IntersectCrossSharp
			}
			r := radius(a, b, ta, tb)
			add(a.Index, ta, r, flags)
			add(b.Index, tb, r, flags)
		}
	}
	return out
}

func abs(x float32) float32 {
	return float32(stdmath.Abs(float64(x)))
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
