package pip

import (
	"errors"
	"fmt"
	stdmath "math"
	"path/filepath"
	"testing"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// loc returns a prefab locator at a host position.
func loc(name string, sub scene.SubKind, x, y, z float32) *scene.Locator {
	l := scene.NewLocator(name, scene.LocatorPrefab, sub)
	l.World = math.Translate(x, y, z)
	return l
}

func node(name string, index int, x, y, z float32) *scene.Locator {
	l := loc(name, scene.ControlNode, x, y, z)
	l.Prefab.NodeIndex = index
	return l
}

func nav(name string, x, y, z float32, boundaryNode, boundaryLane int) *scene.Locator {
	l := loc(name, scene.NavigationPoint, x, y, z)
	l.Prefab.BoundaryNode = boundaryNode
	l.Prefab.BoundaryLane = boundaryLane
	return l
}

// makeStraight is a prefab of two control nodes ten units apart joined
// by one curve from node 0 to node 1.
func makeStraight() (*scene.Scene, *scene.Root) {
	root := &scene.Root{Name: "p", World: math.Identity()}
	root.Locators = []*scene.Locator{
		node("n0", 0, 0, 0, 0),
		node("n1", 1, 0, 10, 0),
		nav("a", 0, 0, 0, 0, 0),
		nav("b", 0, 10, 0, 1, 0),
	}
	root.Connect("a", "b")
	return &scene.Scene{Roots: []*scene.Root{root}}, root
}

func assemble(t *testing.T, s *scene.Scene, root *scene.Root) (*Prefab, *logger.Stack) {
	t.Helper()
	log := logger.NewStack()
	pf, err := Assemble(root, s, nil, trans.New(), Options{Name: root.Name}, log)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return pf, log
}

func TestStraightPrefab(t *testing.T) {
	s, root := makeStraight()
	pf, log := assemble(t, s, root)

	if len(pf.Curves) != 1 {
		t.Fatalf("curves = %d", len(pf.Curves))
	}
	c := pf.Curves[0]
	if d := c.Length - 10; d > 1e-3 || d < -1e-3 {
		t.Errorf("Length = %v, want 10", c.Length)
	}
	if c.EndPos.Distance(math.Vec3{Z: -10}) > 1e-5 {
		t.Errorf("EndPos = %v", c.EndPos)
	}
	if c.LeadsToNodes&(1<<LeadsStartNodeShift) == 0 || c.LeadsToNodes&(1<<(LeadsEndNodeShift+1)) == 0 {
		t.Errorf("LeadsToNodes = %#x, want start node 0 and end node 1", c.LeadsToNodes)
	}
	if pf.Nodes[0].InputLanes[0] != 0 || pf.Nodes[1].OutputLanes[0] != 0 {
		t.Errorf("lanes = %v / %v", pf.Nodes[0].InputLanes, pf.Nodes[1].OutputLanes)
	}
	if len(pf.Intersections) != 0 {
		t.Errorf("intersections = %d", len(pf.Intersections))
	}

	if len(pf.MapPoints) != 2 {
		t.Fatalf("map points = %d", len(pf.MapPoints))
	}
	for i, m := range pf.MapPoints {
		if !m.Auto || len(m.Neighbours) != 1 || m.Neighbours[0] != 1-i {
			t.Errorf("map point %d = %+v", i, m)
		}
		if want := NavBase | NavNodeStart | NavNode0<<i; m.Nav != want {
			t.Errorf("map point %d nav = %#x, want %#x", i, m.Nav, want)
		}
		if m.Visual&RoadSizeMask != RoadSizeAuto {
			t.Errorf("map point %d visual = %#x", i, m.Visual)
		}
	}
	if log.Warnings() != 0 || log.Errors() != 0 {
		errs, warns := log.Messages()
		t.Errorf("errors %v warnings %v", errs, warns)
	}
}

func TestCurveLengthConverges(t *testing.T) {
	a := nav("a", 0, 0, 0, -1, -1)
	b := nav("b", 2, 10, 0, -1, -1)
	xf := func(l *scene.Locator) (math.Vec3, math.Quat) {
		pos, rot, _ := convert.Transform(math.Identity(), l.World, 1)
		return pos, rot
	}
	c := buildCurves([]scene.CurveSpec{{Start: a, End: b}}, xf, nil)[0]

	chord := c.StartPos.Distance(c.EndPos)
	if c.Length < chord {
		t.Errorf("Length %v shorter than chord %v", c.Length, chord)
	}
	d0, d3 := c.StartDir(), c.EndDir()
	l3 := chord
	var l4 float32
	for i := 0; i < 4; i++ {
		l4 = arcLength(c.StartPos, d0, c.EndPos, d3, l3*TangentCoef, CurveMeasureStep)
		if i < 3 {
			l3 = l4
		}
	}
	if d := l4 - l3; d > 1e-3 || d < -1e-3 {
		t.Errorf("iterations 3 and 4 differ by %v", d)
	}
	if c.Length != l4 {
		t.Errorf("Length = %v, fourth iteration = %v", c.Length, l4)
	}
}

func TestLeadsToNodesAndLooseCurves(t *testing.T) {
	root := &scene.Root{Name: "p", World: math.Identity()}
	root.Locators = []*scene.Locator{
		node("n0", 0, 0, 0, 0),
		node("n1", 1, 0, 20, 0),
		nav("a", 0, 0, 0, 0, 0),
		nav("m", 0, 10, 0, -1, -1),
		nav("b", 0, 20, 0, 1, 0),
		nav("x", 5, 5, 0, -1, -1),
		nav("y", 5, 6, 0, -1, -1),
	}
	root.Connect("a", "m")
	root.Connect("m", "b")
	root.Connect("x", "y")
	s := &scene.Scene{Roots: []*scene.Root{root}}
	pf, log := assemble(t, s, root)

	byName := make(map[string]*Curve)
	for _, c := range pf.Curves {
		byName[c.Name] = c
	}
	want := uint32(1<<LeadsStartLaneShift | 1<<LeadsStartNodeShift | 1<<LeadsEndLaneShift | 1<<(LeadsEndNodeShift+1))
	// m-b inherits the start of a-m; a-m pulls the end of m-b.
	for _, name := range []string{"a-m", "m-b"} {
		if got := byName[name].LeadsToNodes; got != want {
			t.Errorf("%s leads = %#x, want %#x", name, got, want)
		}
	}
	if byName["x-y"].LeadsToNodes != 0 {
		t.Errorf("x-y leads = %#x", byName["x-y"].LeadsToNodes)
	}
	if log.Warnings() != 1 {
		_, w := log.Messages()
		t.Errorf("warnings = %v", w)
	}
}

func TestLeadsToNodesCycle(t *testing.T) {
	curves := []*Curve{
		{Index: 0, StartNode: 0, StartLane: 1, EndNode: -1, EndLane: -1, Next: []int{1}},
		{Index: 1, StartNode: -1, StartLane: -1, EndNode: -1, EndLane: -1, Next: []int{2}},
		{Index: 2, StartNode: -1, StartLane: -1, EndNode: 2, EndLane: 0, Next: []int{1}},
	}
	loose := leadsToNodes(curves)
	if len(loose) != 0 {
		t.Fatalf("loose = %v", loose)
	}
	want := uint32(1<<(LeadsStartLaneShift+1) | 1<<LeadsStartNodeShift | 1<<LeadsEndLaneShift | 1<<(LeadsEndNodeShift+2))
	if curves[0].LeadsToNodes != want {
		t.Errorf("curve 0 leads = %#x, want %#x", curves[0].LeadsToNodes, want)
	}
}

// makeCross returns two straight curves crossing at the host origin.
func makeCross() (*scene.Scene, *scene.Root) {
	root := &scene.Root{Name: "x", World: math.Identity()}
	a0 := nav("a0", -5, 0, 0, -1, -1)
	a1 := nav("a1", 5, 0, 0, -1, -1)
	for _, l := range []*scene.Locator{a0, a1} {
		l.World = l.World.Mul(math.RotateZ(-stdmath.Pi / 2))
	}
	root.Locators = []*scene.Locator{
		node("n0", 0, 0, -5, 0),
		a0, a1,
		nav("b0", 0, -5, 0, -1, -1),
		nav("b1", 0, 5, 0, -1, -1),
	}
	root.Connect("a0", "a1")
	root.Connect("b0", "b1")
	return &scene.Scene{Roots: []*scene.Root{root}}, root
}

func TestCrossingCurves(t *testing.T) {
	s, root := makeCross()
	pf, _ := assemble(t, s, root)
	if len(pf.Intersections) != 2 {
		t.Fatalf("intersections = %d", len(pf.Intersections))
	}
	for i, in := range pf.Intersections {
		if in.Curve != i {
			t.Errorf("intersection %d on curve %d", i, in.Curve)
		}
		if d := in.Position - 0.5; d > 1e-3 || d < -1e-3 {
			t.Errorf("position = %v, want 0.5", in.Position)
		}
		if in.Flags != IntersectCrossSharp {
			t.Errorf("flags = %#x", in.Flags)
		}
		// Perpendicular curves are SafeDistance apart after walking
		// SafeDistance / sqrt(2) along each.
		if in.Radius < 1.4 || in.Radius > 1.6 {
			t.Errorf("radius = %v", in.Radius)
		}
	}
}

func TestNoIntersectionForChainedCurves(t *testing.T) {
	s, root := makeStraight()
	root.Locators = append(root.Locators, nav("c", 3, 15, 0, -1, -1))
	root.Connect("b", "c")
	pf, _ := assemble(t, s, root)
	if len(pf.Intersections) != 0 {
		t.Errorf("intersections = %+v", pf.Intersections)
	}
}

// makeConverging returns two straight curves that meet at their ends
// but diverge backwards.
func makeConverging() (a, b *Curve) {
	a = &Curve{Index: 0, StartPos: math.Vec3{}, StartRot: math.QuatIdentity(), EndPos: math.Vec3{Z: -10}, EndRot: math.QuatIdentity()}
	rot := math.QuatFromAxisAngle(math.Vec3{Y: 1}, stdmath.Pi/4)
	b = &Curve{Index: 1, StartPos: math.Vec3{X: 6.5, Z: -4}, StartRot: rot, EndPos: math.Vec3{X: 0.5, Z: -10}, EndRot: rot}
	a.measure()
	b.measure()
	return a, b
}

func TestRadiusAbsorbedBySharedNextCurve(t *testing.T) {
	a, b := makeConverging()
	if r := radius(a, b, 0.95, 0.95); r <= 0 {
		t.Fatalf("radius without shared curves = %v, want > 0", r)
	}
	a.Next, b.Next = []int{7}, []int{7}
	if r := radius(a, b, 0.95, 0.95); r != 0 {
		t.Errorf("radius with shared next curve = %v, want 0", r)
	}
}

// The absorb test only follows the direction of the last walk, which is
// forwards, so a shared previous curve never absorbs the crossing.
func TestRadiusSharedPrevCurveNotAbsorbed(t *testing.T) {
	a, b := makeConverging()
	a.Prev, b.Prev = []int{7}, []int{7}
	if r := radius(a, b, 0.95, 0.95); r <= 0 {
		t.Errorf("radius with shared previous curve = %v, want > 0", r)
	}
}

func TestThreeNodeMapPoints(t *testing.T) {
	root := &scene.Root{Name: "t", World: math.Identity()}
	root.Locators = []*scene.Locator{
		node("n0", 0, -10, 0, 0),
		node("n1", 1, 10, 0, 0),
		node("n2", 2, 0, -10, 0),
	}
	s := &scene.Scene{Roots: []*scene.Root{root}}
	pf, _ := assemble(t, s, root)

	if len(pf.MapPoints) != 4 {
		t.Fatalf("map points = %d", len(pf.MapPoints))
	}
	centre := pf.MapPoints[3]
	if len(centre.Neighbours) != 3 {
		t.Errorf("centre neighbours = %v", centre.Neighbours)
	}
	for _, m := range pf.MapPoints[:3] {
		if len(m.Neighbours) != 3 || m.Neighbours[0] != centre.Index {
			t.Errorf("point %d neighbours = %v", m.Index, m.Neighbours)
		}
	}
	// n0 and n1 share engine Z, so the centre sits on their line rather
	// than at the average.
	if centre.Position.Distance(math.Vec3{}) > 1e-5 {
		t.Errorf("centre = %v, want origin", centre.Position)
	}
	if ext := centre.Visual & RoadExtValueMask; ext != 255 {
		t.Errorf("centre extension = %d, want 255", ext)
	}
}

func TestAutoMapPointNeighbourCount(t *testing.T) {
	for n := 2; n <= MaxNodes; n++ {
		t.Run(fmt.Sprintf("%d nodes", n), func(t *testing.T) {
			root := &scene.Root{Name: "t", World: math.Identity()}
			for i := 0; i < n; i++ {
				a := 2 * stdmath.Pi * float64(i) / float64(n)
				x, y := float32(20*stdmath.Cos(a)), float32(20*stdmath.Sin(a))
				root.Locators = append(root.Locators, node(fmt.Sprintf("n%d", i), i, x, y, 0))
			}
			s := &scene.Scene{Roots: []*scene.Root{root}}
			pf, _ := assemble(t, s, root)

			want := n
			if n == 2 {
				want = 1
			}
			points := 0
			for _, m := range pf.MapPoints {
				if !m.Auto || m.Nav&NavBase == 0 {
					continue
				}
				points++
				if len(m.Neighbours) != want {
					t.Errorf("point %d neighbours = %v, want %d", m.Index, m.Neighbours, want)
				}
				seen := map[int]bool{}
				for _, j := range m.Neighbours {
					if j == m.Index || seen[j] {
						t.Errorf("point %d neighbours = %v", m.Index, m.Neighbours)
					}
					seen[j] = true
				}
			}
			wantPoints := n + 1
			if n == 2 {
				wantPoints = 2
			}
			if points != wantPoints {
				t.Errorf("auto base points = %d, want %d", points, wantPoints)
			}
		})
	}
}

func TestAutoMapPointInheritsRoadSize(t *testing.T) {
	s, root := makeStraight()
	mp := loc("m", scene.MapPoint, 0, 1, 0)
	mp.Prefab.AssignedNode = 1
	mp.Prefab.RoadSize = "2"
	mp.Prefab.RoadOffset = 3
	root.Locators = append(root.Locators, mp)
	pf, _ := assemble(t, s, root)

	if len(pf.MapPoints) != 3 {
		t.Fatalf("map points = %d", len(pf.MapPoints))
	}
	if got, want := pf.MapPoints[1].Visual, uint32(0x200|0x3000); got != want {
		t.Errorf("node 0 point visual = %#x, want %#x", got, want)
	}
	if got := pf.MapPoints[2].Visual & RoadSizeMask; got != RoadSizeAuto {
		t.Errorf("node 1 point road size = %#x", got)
	}
}

func TestUserBaseSuppressesAutoPoints(t *testing.T) {
	s, root := makeStraight()
	mp := loc("m", scene.MapPoint, 0, 1, 0)
	mp.Prefab.AssignedNode = scene.AssignedBase
	root.Locators = append(root.Locators, mp)
	pf, _ := assemble(t, s, root)
	if len(pf.MapPoints) != 1 {
		t.Errorf("map points = %d", len(pf.MapPoints))
	}
}

func TestValidatePolygons(t *testing.T) {
	ring := func(n int, color uint32) []*MapPoint {
		pts := make([]*MapPoint, n)
		for i := range pts {
			pts[i] = &MapPoint{Index: i, Visual: RoadSizeManual | color, Neighbours: []int{(i + n - 1) % n, (i + 1) % n}}
		}
		return pts
	}
	tests := []struct {
		name   string
		points func() []*MapPoint
		errs   int
	}{
		{"quad", func() []*MapPoint { return ring(4, CustomColor1) }, 0},
		{"triangle", func() []*MapPoint { return ring(3, 0) }, 0},
		{"pentagon", func() []*MapPoint { return ring(5, 0) }, 5},
		{"colour mismatch", func() []*MapPoint {
			p := ring(3, CustomColor2)
			p[0].Visual = RoadSizeManual | CustomColor3
			return p
		}, 4},
		{"navigation flags", func() []*MapPoint {
			p := ring(4, 0)
			p[2].Nav = NavBase
			return p
		}, 1},
		{"open chain", func() []*MapPoint {
			p := ring(4, 0)
			p[0].Neighbours = []int{1}
			p[3].Neighbours = []int{2}
			return p
		}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validatePolygons(tt.points())
			if len(errs) != tt.errs {
				t.Fatalf("errors = %v, want %d", errs, tt.errs)
			}
			for _, err := range errs {
				if !errors.Is(err, ErrPolygon) {
					t.Errorf("%v is not ErrPolygon", err)
				}
			}
		})
	}
}

func TestTerrainPointOrderAndVariants(t *testing.T) {
	s, root := makeStraight()
	root.Variants = []scene.Variant{{Name: "a"}, {Name: "b"}}
	set := trans.New()
	// Node 0 faces engine -Z; the first point lies behind the second.
	set.TerrainPoints.Add(0, 0, trans.TerrainPoint{Position: math.Vec3{Z: -1}})
	set.TerrainPoints.Add(0, 0, trans.TerrainPoint{Position: math.Vec3{Z: 1}})
	set.TerrainPoints.Add(1, 0, trans.TerrainPoint{Position: math.Vec3{Z: 2}})

	log := logger.NewStack()
	out, err := Build(root, s, nil, set, Options{Name: "p"}, log)
	if err != nil {
		t.Fatal(err)
	}
	g := pix.Find(out, "Global")
	if n, _ := g.Int("TerrainPointCount"); n != 3 {
		t.Errorf("TerrainPointCount = %d", n)
	}
	if n, _ := g.Int("TerrainPointVariantCount"); n != 4 {
		t.Errorf("TerrainPointVariantCount = %d", n)
	}
	pts := pix.FindAll(out, "TerrainPoint")
	first, _ := pts[0].Prop("Position")
	if f := first.Floats(); f[2] != 1 {
		t.Errorf("first terrain point = %v, want z 1", f)
	}
	blocks := pix.FindAll(out, "TerrainPointVariant")
	wants := [][2]int{{0, 2}, {2, 3}, {0, 0}, {0, 0}}
	for i, b := range blocks {
		a0, _ := b.Int("Attach0")
		a1, _ := b.Int("Attach1")
		if [2]int{a0, a1} != wants[i] {
			t.Errorf("block %d = %d..%d, want %v", i, a0, a1, wants[i])
		}
	}
	n1 := pix.FindAll(out, "Node")[1]
	if idx, _ := n1.Int("TerrainPointIdx"); idx != 3 {
		t.Errorf("node 1 TerrainPointIdx = %d", idx)
	}
	if idx, _ := n1.Int("TerrainPointVariantIdx"); idx != 2 {
		t.Errorf("node 1 TerrainPointVariantIdx = %d", idx)
	}
}

func TestOtherLocators(t *testing.T) {
	s, root := makeStraight()
	sign := loc("sign", scene.Sign, 1, 1, 0)
	sign.Prefab.SignModel = "/model/sign/stop.pmd"
	sem := loc("sem", scene.TrafficSemaphore, 1, 2, 0)
	sem.Prefab.SemaphoreType = "traffic_light"
	sem.Prefab.SemaphoreID = 3
	spawn := loc("spawn", scene.SpawnPoint, 1, 3, 0)
	spawn.Prefab.SpawnType = "bogus"
	t0 := loc("t0", scene.TriggerPoint, 2, 0, 0)
	t0.Prefab.TriggerSphere = true
	t1 := loc("t1", scene.TriggerPoint, 2, 1, 0)
	root.Locators = append(root.Locators, sign, sem, spawn, t0, t1)
	root.Connect("t0", "t1")

	log := logger.NewStack()
	out, err := Build(root, s, nil, trans.New(), Options{Name: "p"}, log)
	if err != nil {
		t.Fatal(err)
	}
	g := pix.Find(out, "Global")
	for key, want := range map[string]int{"SignCount": 1, "SemaphoreCount": 1, "SpawnPointCount": 1, "TriggerPointCount": 2} {
		if n, _ := g.Int(key); n != want {
			t.Errorf("%s = %d, want %d", key, n, want)
		}
	}
	if typ, _ := pix.Find(out, "Semaphore").Int("Type"); typ != 1 {
		t.Errorf("semaphore type = %d", typ)
	}
	if log.Warnings() != 1 {
		_, w := log.Messages()
		t.Errorf("warnings = %v", w)
	}
	tp := pix.FindAll(out, "TriggerPoint")
	nb, _ := tp[0].Prop("Neighbours")
	if got := nb.IntSlice(); len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("trigger neighbours = %v", got)
	}
	if f, _ := tp[0].Int("Flags"); uint32(f) != TriggerSphere {
		t.Errorf("trigger flags = %d", f)
	}
}

func TestErrors(t *testing.T) {
	root := &scene.Root{Name: "e", World: math.Identity()}
	s := &scene.Scene{Roots: []*scene.Root{root}}
	if _, err := Build(root, s, nil, trans.New(), Options{}, nil); !errors.Is(err, ErrNoPrefab) {
		t.Errorf("empty: %v", err)
	}
	root.Locators = []*scene.Locator{loc("sign", scene.Sign, 0, 0, 0)}
	if _, err := Build(root, s, nil, trans.New(), Options{}, nil); !errors.Is(err, ErrNoNodes) {
		t.Errorf("no nodes: %v", err)
	}
	root.Locators = []*scene.Locator{node("a", 0, 0, 0, 0), node("b", 0, 1, 0, 0)}
	if _, err := Build(root, s, nil, trans.New(), Options{}, nil); !errors.Is(err, ErrNodeIndex) {
		t.Errorf("duplicate index: %v", err)
	}
}

func TestReadRoundTrip(t *testing.T) {
	s, root := makeStraight()
	out, err := Build(root, s, nil, trans.New(), Options{Name: "p"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "p.pip")
	if err := pix.WriteFile(path, out, pix.DefaultIndent); err != nil {
		t.Fatal(err)
	}
	log := logger.NewStack()
	f, err := ReadFile(path, log)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Nodes) != 2 || len(f.Curves) != 1 || len(f.MapPoints) != 2 {
		t.Fatalf("file = %d nodes, %d curves, %d map points", len(f.Nodes), len(f.Curves), len(f.MapPoints))
	}
	c := f.Curves[0]
	if c.Name != "a-b" || len(c.Next) != 0 || c.StartRot.W != 1 {
		t.Errorf("curve = %+v", c)
	}
	if f.Nodes[0].InputLanes[0] != 0 || f.Nodes[0].InputLanes[1] != -1 {
		t.Errorf("input lanes = %v", f.Nodes[0].InputLanes)
	}
	if f.MapPoints[1].Neighbours[0] != 0 {
		t.Errorf("map point neighbours = %v", f.MapPoints[1].Neighbours)
	}
	if log.Warnings() != 0 || log.Errors() != 0 {
		errs, warns := log.Messages()
		t.Errorf("errors %v warnings %v", errs, warns)
	}
}
