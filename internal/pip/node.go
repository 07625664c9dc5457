package pip

import (
	"fmt"
	"sort"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
)

// transformer maps a locator to its engine position and rotation
// relative to the exported root.
type transformer func(*scene.Locator) (math.Vec3, math.Quat)

// Node is a control node. Lanes hold curve indices or -1. Variants holds
// one terrain point list per trait variant, or a single global list.
type Node struct {
	Index       int
	Position    math.Vec3
	Direction   math.Vec3
	InputLanes  [MaxLanes]int
	OutputLanes [MaxLanes]int
	Variants    [][]trans.TerrainPoint
}

// buildNodes converts control node locators, ordered by node index.
func buildNodes(locs []*scene.Locator, xf transformer) ([]*Node, error) {
	seen := make(map[int]string)
	var nodes []*Node
	for _, l := range locs {
		i := l.Prefab.NodeIndex
		if i < 0 || i >= MaxNodes {
			return nil, fmt.Errorf("%w: node %q has index %d, nodes go from 0 to %d", ErrNodeIndex, l.Name, i, MaxNodes-1)
		}
		if other, dup := seen[i]; dup {
			return nil, fmt.Errorf("%w: nodes %q and %q share index %d", ErrNodeIndex, other, l.Name, i)
		}
		seen[i] = l.Name
		pos, rot := xf(l)
		n := &Node{Index: i, Position: pos, Direction: rot.Rotate(Forward).Normalize()}
		for k := range n.InputLanes {
			n.InputLanes[k] = -1
			n.OutputLanes[k] = -1
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(a, b int) bool { return nodes[a].Index < nodes[b].Index })
	return nodes, nil
}

func nodeByIndex(nodes []*Node, i int) *Node {
	for _, n := range nodes {
		if n.Index == i {
			return n
		}
	}
	return nil
}

// assignLanes hooks boundary curves into node lanes: curves starting at
// a node fill its input lanes, curves ending at one its output lanes.
// Invalid boundaries are reported and cleared.
func assignLanes(nodes []*Node, curves []*Curve, log *logger.Stack) {
	slot := func(c *Curve, node, lane *int, lanes func(*Node) *[MaxLanes]int, what string) {
		if *node < 0 {
			return
		}
		n := nodeByIndex(nodes, *node)
		switch {
		case n == nil:
			log.Warnf("curve %q %s at missing node %d", c.Name, what, *node)
		case *lane >= MaxLanes:
			log.Warnf("curve %q %s at lane %d of node %d, lanes go up to %d", c.Name, what, *lane, *node, MaxLanes-1)
		case lanes(n)[*lane] >= 0:
			log.Warnf("curve %q %s at lane %d of node %d, taken by curve %d", c.Name, what, *lane, *node, lanes(n)[*lane])
			return
		default:
			lanes(n)[*lane] = c.Index
			return
		}
		*node, *lane = -1, -1
	}
	for _, c := range curves {
		slot(c, &c.StartNode, &c.StartLane, func(n *Node) *[MaxLanes]int { return &n.InputLanes }, "starts")
		slot(c, &c.EndNode, &c.EndLane, func(n *Node) *[MaxLanes]int { return &n.OutputLanes }, "ends")
	}
}

// terrainPoints fills the per variant terrain point lists of every node.
// A list whose head lies further along the node direction than its tail
// is reversed.
func terrainPoints(nodes []*Node, tp *trans.TerrainPoints, variants int) {
	keys := []int{trans.GlobalVariant}
	if variants > 0 {
		keys = keys[:0]
		for v := 0; v < variants; v++ {
			keys = append(keys, v)
		}
	}
	for _, n := range nodes {
		n.Variants = n.Variants[:0]
		for _, v := range keys {
			pts := append([]trans.TerrainPoint(nil), tp.Get(v, n.Index)...)
			if len(pts) > 1 && n.along(pts[0].Position) > n.along(pts[len(pts)-1].Position) {
				for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
					pts[i], pts[j] = pts[j], pts[i]
				}
			}
			n.Variants = append(n.Variants, pts)
		}
	}
}

// along returns the signed distance of p from the node along its
// direction.
func (n *Node) along(p math.Vec3) float32 {
	return p.Sub(n.Position).Dot(n.Direction)
}
