package pip

import (
	"fmt"
	stdmath "math"
	"strconv"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/pkg/math"
)

// MapPoint is a vertex of the map graph. Position lies on the ground
// plane.
type MapPoint struct {
	Index      int
	Position   math.Vec3
	Neighbours []int
	Visual     uint32
	Nav        uint32
	// Auto marks points generated for the base navigation.
	Auto bool

	loc *scene.Locator
}

// Polygon reports whether the point is a polygon vertex.
func (m *MapPoint) Polygon() bool { return m.Visual&RoadSizeMask == RoadSizeManual }

func visualFlags(name string, p scene.PrefabProps, log *logger.Stack) uint32 {
	var f uint32
	switch p.RoadSize {
	case "", scene.RoadSizeAuto:
		f = RoadSizeAuto
	case scene.RoadSizePolygon:
		f = RoadSizeManual
	default:
		n, err := strconv.Atoi(p.RoadSize)
		if err != nil || n < 1 || n > 12 {
			log.Warnf("map point %q has road size %q, using auto", name, p.RoadSize)
			f = RoadSizeAuto
			break
		}
		f = uint32(n) << RoadSizeShift
	}
	f |= (uint32(p.RoadOffset) << RoadOffsetShift) & RoadOffsetMask
	if p.RoadOver {
		f |= RoadOver
	}
	if p.NoOutline {
		f |= NoOutline
	}
	if p.NoArrow {
		f |= NoArrow
	}
	switch p.Color {
	case 0:
	case 1:
		f |= CustomColor1
	case 2:
		f |= CustomColor2
	case 3:
		f |= CustomColor3
	default:
		log.Warnf("map point %q has colour %d, expected 0 to 3", name, p.Color)
	}
	return f
}

func navFlags(name string, p scene.PrefabProps, log *logger.Stack) uint32 {
	var f uint32
	if p.PrefabExit {
		f |= PrefabExit
	}
	switch n := p.AssignedNode; {
	case n == scene.AssignedBase:
		f |= NavBase
	case n >= 1 && n <= MaxNodes:
		f |= NavNodeStart | NavNode0<<(n-1)
	case n != 0:
		log.Warnf("map point %q is assigned to node %d, nodes go from 1 to %d", name, n, MaxNodes)
	default:
		for _, d := range p.DestNodes {
			if d < 0 || d >= MaxNodes {
				log.Warnf("map point %q names destination node %d", name, d)
				continue
			}
			f |= NavNode0 << d
		}
	}
	return f
}

// userMapPoints converts map point locators. Neighbours come from the
// connections between map points.
func userMapPoints(locs []*scene.Locator, conns scene.Connections, xf transformer, log *logger.Stack) []*MapPoint {
	index := make(map[*scene.Locator]int, len(locs))
	points := make([]*MapPoint, len(locs))
	for i, l := range locs {
		index[l] = i
		pos, _ := xf(l)
		pos.Y = 0
		points[i] = &MapPoint{
			Index:    i,
			Position: pos,
			Visual:   visualFlags(l.Name, l.Prefab, log),
			Nav:      navFlags(l.Name, l.Prefab, log),
			loc:      l,
		}
	}
	for _, p := range points {
		for _, n := range conns.Neighbours(p.loc) {
			if j, ok := index[n]; ok {
				p.Neighbours = append(p.Neighbours, j)
			}
		}
		if len(p.Neighbours) > MaxNeighbours {
			log.Warnf("map point %q has %d neighbours, only %d are kept", p.loc.Name, len(p.Neighbours), MaxNeighbours)
			p.Neighbours = p.Neighbours[:MaxNeighbours]
		}
	}
	return points
}

// autoMapPoints generates the base navigation of a prefab without one:
// two linked points for two nodes, otherwise one point per node plus a
// centre point. Each node point links to the centre and to every other
// node point, so all of them have as many neighbours as there are nodes.
func autoMapPoints(nodes []*Node, user []*MapPoint) []*MapPoint {
	if len(nodes) < 2 {
		return nil
	}
	for _, p := range user {
		if p.Nav&NavBase != 0 {
			return nil
		}
	}

	next := len(user)
	var out []*MapPoint
	for _, n := range nodes {
		bits := NavNodeStart | NavNode0<<n.Index
		visual := RoadSizeAuto
		for _, p := range user {
			if p.Nav&(NavNodeStart|NavNodeMask) == bits {
				visual = p.Visual & (RoadSizeMask | RoadOffsetMask)
				break
			}
		}
		pos := n.Position
		pos.Y = 0
		out = append(out, &MapPoint{Index: next, Position: pos, Visual: visual, Nav: NavBase | bits, Auto: true})
		next++
	}

	if len(nodes) == 2 {
		out[0].Neighbours = []int{out[1].Index}
		out[1].Neighbours = []int{out[0].Index}
		return out
	}

	centre := &MapPoint{Index: next, Position: centrePoint(nodes), Visual: RoadSizeAuto, Auto: true}
	centre.Nav = NavBase
	for _, p := range out {
		p.Neighbours = []int{centre.Index}
		for _, q := range out {
			if q != p {
				p.Neighbours = append(p.Neighbours, q.Index)
			}
		}
		centre.Neighbours = append(centre.Neighbours, p.Index)
	}
	for _, n := range nodes {
		centre.Nav |= NavNode0 << n.Index
	}
	return append(out, centre)
}

// centrePoint averages the node positions. With three nodes of which two
// share an X or Z coordinate, the centre snaps onto the line through
// those two, across from the third.
func centrePoint(nodes []*Node) math.Vec3 {
	var c math.Vec3
	for _, n := range nodes {
		c = c.Add(n.Position)
	}
	c = c.Scale(1 / float32(len(nodes)))
	c.Y = 0
	if len(nodes) != 3 {
		return c
	}
	for i := 0; i < 3; i++ {
		a, b, other := nodes[i].Position, nodes[(i+1)%3].Position, nodes[(i+2)%3].Position
		if abs(a.X-b.X) < AlignTolerance {
			return math.Vec3{X: (a.X + b.X) / 2, Z: other.Z}
		}
		if abs(a.Z-b.Z) < AlignTolerance {
			return math.Vec3{X: other.X, Z: (a.Z + b.Z) / 2}
		}
	}
	return c
}

// extensions stores in every non-start point with two or more neighbours
// the smallest non-zero quantised tangent of half a bend angle between
// two of its neighbours.
func extensions(points []*MapPoint) {
	for _, p := range points {
		if p.Nav&NavNodeStart != 0 || len(p.Neighbours) < 2 {
			continue
		}
		var best uint32
		for i, a := range p.Neighbours {
			for _, b := range p.Neighbours[i+1:] {
				q := bendValue(p.Position, points[a].Position, points[b].Position)
				if q > 0 && (best == 0 || q < best) {
					best = q
				}
			}
		}
		p.Visual = p.Visual&^RoadExtValueMask | best
	}
}

// bendValue quantises tan(bend / 2) of the path a, p, b, clamped to
// [0, 1], into RoadExtValueMask. A straight path bends by zero.
func bendValue(p, a, b math.Vec3) uint32 {
	u := a.Sub(p).XZ()
	v := b.Sub(p).XZ()
	lu, lv := u.Length(), v.Length()
	if lu == 0 || lv == 0 {
		return 0
	}
	cos := float64(u.Dot(v) / (lu * lv))
	cos = stdmath.Max(-1, stdmath.Min(1, cos))
	bend := stdmath.Pi - stdmath.Acos(cos)
	t := stdmath.Min(1, stdmath.Max(0, stdmath.Tan(bend/2)))
	return uint32(stdmath.Round(t*float64(RoadExtValueMask))) & RoadExtValueMask
}

// validatePolygons checks that polygon points carry no navigation flags
// and form closed triangles or quads with polygon neighbours of the same
// colour.
func validatePolygons(points []*MapPoint) []error {
	var errs []error
	for _, p := range points {
		if !p.Polygon() {
			continue
		}
		if p.Nav != 0 {
			errs = append(errs, fmt.Errorf("%w: point %d carries navigation flags %#x", ErrPolygon, p.Index, p.Nav))
		}
		if len(p.Neighbours) != 2 {
			errs = append(errs, fmt.Errorf("%w: point %d has %d neighbours, want 2", ErrPolygon, p.Index, len(p.Neighbours)))
			continue
		}
		for _, n := range p.Neighbours {
			q := points[n]
			if !q.Polygon() {
				errs = append(errs, fmt.Errorf("%w: point %d links point %d, which is not a polygon point", ErrPolygon, p.Index, n))
			} else if q.Visual&CustomColorMask != p.Visual&CustomColorMask {
				errs = append(errs, fmt.Errorf("%w: point %d and neighbour %d differ in colour", ErrPolygon, p.Index, n))
			}
		}

		prev, cur, steps := p.Index, p.Neighbours[0], 1
		for cur != p.Index && steps <= 4 {
			c := points[cur]
			if len(c.Neighbours) != 2 {
				break
			}
			next := c.Neighbours[0]
			if next == prev {
				next = c.Neighbours[1]
			}
			prev, cur = cur, next
			steps++
		}
		if cur != p.Index || (steps != 3 && steps != 4) {
			errs = append(errs, fmt.Errorf("%w: point %d does not close a triangle or quad", ErrPolygon, p.Index))
		}
	}
	return errs
}
