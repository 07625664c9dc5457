package scene

// Connections answers neighbour and curve queries over prefab locators.
type Connections interface {
	Neighbours(loc *Locator) []*Locator
	Curves(navs []*Locator) []CurveSpec
}

// CurveSpec is one navigation curve between two navigation points.
// Next and Prev index other curves of the same Curves result.
type CurveSpec struct {
	Index int
	Start *Locator
	End   *Locator
	Next  []int
	Prev  []int
}

// Graph resolves connections of a root by locator name.
type Graph struct {
	root  *Root
	edges [][2]*Locator
}

// NewGraph indexes the connections of root. Links naming unknown
// locators are ignored.
func NewGraph(root *Root) *Graph {
	g := &Graph{root: root}
	for _, c := range root.Connections {
		a, b := root.Locator(c[0]), root.Locator(c[1])
		if a == nil || b == nil || a == b {
			continue
		}
		g.edges = append(g.edges, [2]*Locator{a, b})
	}
	return g
}

// Neighbours returns the locators linked to loc in either direction,
// without duplicates and in link order.
func (g *Graph) Neighbours(loc *Locator) []*Locator {
	var out []*Locator
	add := func(l *Locator) {
		for _, o := range out {
			if o == l {
				return
			}
		}
		out = append(out, l)
	}
	for _, e := range g.edges {
		switch loc {
		case e[0]:
			add(e[1])
		case e[1]:
			add(e[0])
		}
	}
	return out
}

// Curves returns one curve per directed link between two of navs. A
// curve's next curves start where it ends; its previous curves end
// where it starts.
func (g *Graph) Curves(navs []*Locator) []CurveSpec {
	in := make(map[*Locator]bool, len(navs))
	for _, n := range navs {
		in[n] = true
	}

	var curves []CurveSpec
	for _, e := range g.edges {
		if !in[e[0]] || !in[e[1]] {
			continue
		}
		curves = append(curves, CurveSpec{Index: len(curves), Start: e[0], End: e[1]})
	}
	for i := range curves {
		for j := range curves {
			if i == j {
				continue
			}
			if curves[j].Start == curves[i].End {
				curves[i].Next = append(curves[i].Next, j)
			}
			if curves[j].End == curves[i].Start {
				curves[i].Prev = append(curves[i].Prev, j)
			}
		}
	}
	return curves
}

// Connect links locator a to b by name.
func (r *Root) Connect(a, b string) {
	r.Connections = append(r.Connections, [2]string{a, b})
}
