package pip

import (
	"sort"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
)

// Forward is the engine direction a prefab locator faces at rest.
var Forward = math.Vec3{Z: -1}

// Curve is a navigation curve between two navigation points. Boundary
// node and lane fields are -1 when the end is inside the prefab.
type Curve struct {
	Index    int
	Name     string
	StartPos math.Vec3
	StartRot math.Quat
	EndPos   math.Vec3
	EndRot   math.Quat
	Length   float32

	StartNode, StartLane int
	EndNode, EndLane     int

	Flags        uint32
	Next, Prev   []int
	TrafficRule  string
	SemaphoreID  int
	LeadsToNodes uint32

	start, end *scene.Locator
}

// StartDir returns the unit tangent at the start.
func (c *Curve) StartDir() math.Vec3 { return c.StartRot.Rotate(Forward) }

// EndDir returns the unit tangent at the end.
func (c *Curve) EndDir() math.Vec3 { return c.EndRot.Rotate(Forward) }

// Point evaluates the curve at t in [0, 1]. The curve is a cubic Bezier
// whose inner control points lie a third of the length along the end
// tangents.
func (c *Curve) Point(t float32) math.Vec3 {
	return bezier(c.StartPos, c.StartDir(), c.EndPos, c.EndDir(), c.Length*TangentCoef, t)
}

func bezier(p0, d0, p3, d3 math.Vec3, tan, t float32) math.Vec3 {
	p1 := p0.Add(d0.Scale(tan))
	p2 := p3.Sub(d3.Scale(tan))
	u := 1 - t
	return p0.Scale(u * u * u).
		Add(p1.Scale(3 * u * u * t)).
		Add(p2.Scale(3 * u * t * t)).
		Add(p3.Scale(t * t * t))
}

// arcLength measures the curve with the given tangent length as a
// polyline of steps segments.
func arcLength(p0, d0, p3, d3 math.Vec3, tan float32, steps int) float32 {
	var l float32
	prev := p0
	for i := 1; i <= steps; i++ {
		p := bezier(p0, d0, p3, d3, tan, float32(i)/float32(steps))
		l += p.Distance(prev)
		prev = p
	}
	return l
}

// measure sets Length. The tangent length depends on the length, so the
// measurement is refined four times from the chord.
func (c *Curve) measure() {
	d0, d3 := c.StartDir(), c.EndDir()
	l := c.StartPos.Distance(c.EndPos)
	for i := 0; i < 4; i++ {
		l = arcLength(c.StartPos, d0, c.EndPos, d3, l*TangentCoef, CurveMeasureStep)
	}
	c.Length = l
}

// startFlags returns the flags a navigation point contributes when
// curves start at it; endFlags when they end at it.
func startFlags(p scene.PrefabProps) uint32 {
	f := (uint32(p.Priority) << FlagPriorityShift) & FlagPriorityMask
	if p.AdditivePriority {
		f |= FlagAdditivePriority
	}
	if p.LimitDisplacement {
		f |= FlagLimitDisplacement
	}
	switch p.AllowedVehicles {
	case "small":
		f |= FlagSmallVehicles
	case "large":
		f |= FlagLargeVehicles
	}
	return f
}

func endFlags(p scene.PrefabProps) uint32 {
	var f uint32
	switch p.Blinker {
	case "no":
		f |= FlagForceNoBlinker
	case "left":
		f |= FlagLeftBlinker
	case "right":
		f |= FlagRightBlinker
	}
	if p.LowProbability {
		f |= FlagLowProbability
	}
	return f
}

// boundary returns the node and lane of a navigation point, or -1s when
// it is not on a prefab boundary.
func boundary(p scene.PrefabProps) (node, lane int) {
	if p.BoundaryNode < 0 || p.BoundaryLane < 0 {
		return -1, -1
	}
	return p.BoundaryNode, p.BoundaryLane
}

// buildCurves turns connection specs into measured curves. xf maps a
// locator to its engine position and rotation.
func buildCurves(specs []scene.CurveSpec, xf func(*scene.Locator) (math.Vec3, math.Quat), log *logger.Stack) []*Curve {
	curves := make([]*Curve, len(specs))
	for i, s := range specs {
		c := &Curve{
			Index:       i,
			Name:        s.Start.Name + "-" + s.End.Name,
			start:       s.Start,
			end:         s.End,
			SemaphoreID: s.Start.Prefab.SemaphoreID,
			TrafficRule: s.Start.Prefab.TrafficRule,
		}
		c.StartPos, c.StartRot = xf(s.Start)
		c.EndPos, c.EndRot = xf(s.End)
		c.StartNode, c.StartLane = boundary(s.Start.Prefab)
		c.EndNode, c.EndLane = boundary(s.End.Prefab)
		c.Flags = startFlags(s.Start.Prefab)&(FlagStartMask|FlagCommonMask) | endFlags(s.End.Prefab)&FlagEndMask

		c.Next = capLinks(c.Name, "next", s.Next, log)
		c.Prev = capLinks(c.Name, "previous", s.Prev, log)
		c.measure()
		curves[i] = c
	}
	return curves
}

func capLinks(name, what string, links []int, log *logger.Stack) []int {
	out := append([]int(nil), links...)
	if len(out) > MaxNextPrev {
		log.Warnf("curve %q has %d %s curves, only %d are kept", name, len(out), what, MaxNextPrev)
		out = out[:MaxNextPrev]
	}
	return out
}

// selfLeads returns the lane and node bits of the curve's own boundaries.
func (c *Curve) selfLeads() uint32 {
	var v uint32
	if c.StartNode >= 0 {
		v |= 1<<(LeadsStartLaneShift+c.StartLane) | 1<<(LeadsStartNodeShift+c.StartNode)
	}
	if c.EndNode >= 0 {
		v |= 1<<(LeadsEndLaneShift+c.EndLane) | 1<<(LeadsEndNodeShift+c.EndNode)
	}
	return v
}

// leadsToNodes fills LeadsToNodes of every curve. Each inbound curve
// pushes its start bits forward through the next curves; every curve
// pulls the end bits of what it reaches. It returns the names of loose
// curves, those no inbound curve reaches.
func leadsToNodes(curves []*Curve) []string {
	for _, c := range curves {
		c.LeadsToNodes = 0
	}
	for _, in := range curves {
		if in.StartNode < 0 {
			continue
		}
		start := in.selfLeads() & LeadsStartMask
		visited := make(map[int]bool)
		var walk func(c *Curve) uint32
		walk = func(c *Curve) uint32 {
			c.LeadsToNodes |= start | c.selfLeads()
			if visited[c.Index] {
				return c.LeadsToNodes & LeadsEndMask
			}
			visited[c.Index] = true
			for _, n := range c.Next {
				c.LeadsToNodes |= walk(curves[n])
			}
			return c.LeadsToNodes & LeadsEndMask
		}
		walk(in)
	}

	var loose []string
	for _, c := range curves {
		if c.LeadsToNodes == 0 {
			loose = append(loose, c.Name)
		}
	}
	sort.Strings(loose)
	return loose
}

// reach returns c and the curves reachable from it within depth steps
// through links.
func reach(curves []*Curve, c *Curve, depth int, links func(*Curve) []int) map[int]bool {
	out := map[int]bool{c.Index: true}
	frontier := []int{c.Index}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []int
		for _, i := range frontier {
			for _, j := range links(curves[i]) {
				if !out[j] {
					out[j] = true
					next = append(next, j)
				}
			}
		}
		frontier = next
	}
	return out
}

func prevOf(c *Curve) []int { return c.Prev }
func nextOf(c *Curve) []int { return c.Next }

func shares(a, b map[int]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// commonFork reports whether a and b descend from a shared curve within
// SearchDepth, one of them being the other's ancestor included;
// commonJoint whether they flow into one.
func commonFork(curves []*Curve, a, b *Curve) bool {
	return shares(reach(curves, a, SearchDepth, prevOf), reach(curves, b, SearchDepth, prevOf))
}

func commonJoint(curves []*Curve, a, b *Curve) bool {
	return shares(reach(curves, a, SearchDepth, nextOf), reach(curves, b, SearchDepth, nextOf))
}

func linked(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
