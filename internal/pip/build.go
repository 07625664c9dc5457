package pip

import (
	"strconv"
	"strings"

	"github.com/Faultbox/scs-forge/internal/convert"
	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/internal/scene"
	"github.com/Faultbox/scs-forge/internal/trans"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// Options configures a build.
type Options struct {
	Name  string
	Scale float32
}

// Prefab is the assembled prefab before emission.
type Prefab struct {
	Nodes         []*Node
	Curves        []*Curve
	Intersections []*Intersection
	MapPoints     []*MapPoint
	Signs         []*scene.Locator
	Semaphores    []*scene.Locator
	SpawnPoints   []*scene.Locator
	Triggers      []*Trigger
}

// Trigger is a trigger point with its resolved neighbours.
type Trigger struct {
	Index      int
	Neighbours [MaxTriggerLinks]int

	loc *scene.Locator
}

// Assemble collects the prefab locators of root and computes curves,
// intersections and map points. conns may be nil, in which case the
// root's own connections are used.
func Assemble(root *scene.Root, p scene.Provider, conns scene.Connections, set *trans.Set, opts Options, log *logger.Stack) (*Prefab, error) {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	if conns == nil {
		conns = scene.NewGraph(root)
	}
	xf := func(l *scene.Locator) (math.Vec3, math.Quat) {
		pos, rot, _ := convert.Transform(root.World, l.World, opts.Scale)
		return pos, rot
	}

	byKind := make(map[scene.SubKind][]*scene.Locator)
	found := false
	for _, l := range p.Locators(root) {
		if l.Kind != scene.LocatorPrefab {
			continue
		}
		found = true
		set.Parts.Add(l.Part)
		byKind[l.SubKind] = append(byKind[l.SubKind], l)
	}
	if !found {
		return nil, ErrNoPrefab
	}
	if len(byKind[scene.ControlNode]) == 0 {
		log.Errorf("prefab %q: %v", opts.Name, ErrNoNodes)
		return nil, ErrNoNodes
	}

	pf := &Prefab{
		Signs:       byKind[scene.Sign],
		Semaphores:  byKind[scene.TrafficSemaphore],
		SpawnPoints: byKind[scene.SpawnPoint],
	}
	var err error
	if pf.Nodes, err = buildNodes(byKind[scene.ControlNode], xf); err != nil {
		log.Errorf("prefab %q: %v", opts.Name, err)
		return nil, err
	}
	terrainPoints(pf.Nodes, set.TerrainPoints, len(p.Variants(root)))

	pf.Curves = buildCurves(conns.Curves(byKind[scene.NavigationPoint]), xf, log)
	assignLanes(pf.Nodes, pf.Curves, log)
	if loose := leadsToNodes(pf.Curves); len(loose) > 0 {
		log.Warnf("prefab %q: curves lead to no node: %s", opts.Name, strings.Join(loose, ", "))
	}
	pf.Intersections = intersections(pf.Curves)

	pf.MapPoints = userMapPoints(byKind[scene.MapPoint], conns, xf, log)
	pf.MapPoints = append(pf.MapPoints, autoMapPoints(pf.Nodes, pf.MapPoints)...)
	extensions(pf.MapPoints)
	for _, err := range validatePolygons(pf.MapPoints) {
		log.Errorf("prefab %q: %v", opts.Name, err)
	}

	pf.Triggers = triggers(byKind[scene.TriggerPoint], conns, log)
	return pf, nil
}

func triggers(locs []*scene.Locator, conns scene.Connections, log *logger.Stack) []*Trigger {
	index := make(map[*scene.Locator]int, len(locs))
	for i, l := range locs {
		index[l] = i
	}
	out := make([]*Trigger, len(locs))
	for i, l := range locs {
		t := &Trigger{Index: i, Neighbours: [MaxTriggerLinks]int{-1, -1}, loc: l}
		k := 0
		for _, n := range conns.Neighbours(l) {
			j, ok := index[n]
			if !ok {
				continue
			}
			if k == MaxTriggerLinks {
				log.Warnf("trigger point %q has more than %d neighbours", l.Name, MaxTriggerLinks)
				break
			}
			t.Neighbours[k] = j
			k++
		}
		out[i] = t
	}
	return out
}

// Build assembles and emits the prefab file of root.
func Build(root *scene.Root, p scene.Provider, conns scene.Connections, set *trans.Set, opts Options, log *logger.Stack) ([]*pix.Section, error) {
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	pf, err := Assemble(root, p, conns, set, opts, log)
	if err != nil {
		return nil, err
	}
	return pf.Sections(root, opts, log), nil
}

// Sections emits the prefab.
func (pf *Prefab) Sections(root *scene.Root, opts Options, log *logger.Stack) []*pix.Section {
	xf := func(l *scene.Locator) (math.Vec3, math.Quat) {
		pos, rot, _ := convert.Transform(root.World, l.World, opts.Scale)
		return pos, rot
	}

	h := pix.NewSection("Header")
	h.Add("FormatVersion", pix.Int(Version))
	h.Add("Source", pix.String(Source))
	h.Add("Type", pix.String("Prefab"))
	h.Add("Name", pix.String(opts.Name))

	var out []*pix.Section
	var points, blocks []*pix.Section
	tpCount := 0
	for _, n := range pf.Nodes {
		s := pix.NewSection("Node")
		s.Add("Index", pix.Int(n.Index))
		s.Add("Position", vec3(n.Position))
		s.Add("Direction", vec3(n.Direction))
		s.Add("InputLanes", pix.Ints(n.InputLanes[:]...))
		s.Add("OutputLanes", pix.Ints(n.OutputLanes[:]...))
		first := tpCount
		s.Add("TerrainPointIdx", pix.Int(first))
		for _, pts := range n.Variants {
			b := pix.NewSection("TerrainPointVariant")
			b.Add("Attach0", pix.Int(tpCount-first))
			for _, tp := range pts {
				t := pix.NewSection("TerrainPoint")
				t.Add("Position", vec3(tp.Position))
				t.Add("Normal", vec3(tp.Normal))
				points = append(points, t)
			}
			tpCount += len(pts)
			b.Add("Attach1", pix.Int(tpCount-first))
			blocks = append(blocks, b)
		}
		s.Add("TerrainPointCount", pix.Int(tpCount-first))
		s.Add("TerrainPointVariantIdx", pix.Int(len(blocks)-len(n.Variants)))
		s.Add("TerrainPointVariantCount", pix.Int(len(n.Variants)))
		out = append(out, s)
	}
	out = append(out, points...)
	out = append(out, blocks...)

	for _, c := range pf.Curves {
		out = append(out, curveSection(c))
	}
	for _, l := range pf.Signs {
		pos, rot := xf(l)
		s := pix.NewSection("Sign")
		s.Add("Name", pix.String(l.Name))
		s.Add("Position", vec3(pos))
		s.Add("Rotation", quat(rot))
		s.Add("Model", pix.String(l.Prefab.SignModel))
		s.Add("Part", pix.String(l.Prefab.SignPart))
		out = append(out, s)
	}
	for _, l := range pf.Semaphores {
		pos, rot := xf(l)
		typ, ok := lookup(semaphoreTypes, l.Prefab.SemaphoreType)
		if !ok {
			log.Warnf("semaphore %q has unknown type %q, using model_only", l.Name, l.Prefab.SemaphoreType)
		}
		iv := l.Prefab.Intervals
		s := pix.NewSection("Semaphore")
		s.Add("Position", vec3(pos))
		s.Add("Rotation", quat(rot))
		s.Add("Type", pix.Int(typ))
		s.Add("SemaphoreID", pix.Int(l.Prefab.SemaphoreID))
		s.Add("Intervals", pix.Hexes(iv[:]...))
		s.Add("Cycle", pix.Hex(l.Prefab.CycleDelay))
		s.Add("Profile", pix.String(l.Prefab.Profile))
		out = append(out, s)
	}
	for _, l := range pf.SpawnPoints {
		pos, rot := xf(l)
		typ, ok := lookup(spawnTypes, l.Prefab.SpawnType)
		if !ok {
			log.Warnf("spawn point %q has unknown type %q, using none", l.Name, l.Prefab.SpawnType)
		}
		s := pix.NewSection("SpawnPoint")
		s.Add("Name", pix.String(l.Name))
		s.Add("Position", vec3(pos))
		s.Add("Rotation", quat(rot))
		s.Add("Type", pix.Int(typ))
		out = append(out, s)
	}
	for _, m := range pf.MapPoints {
		nb := make([]int, MaxNeighbours)
		for i := range nb {
			nb[i] = -1
		}
		copy(nb, m.Neighbours)
		s := pix.NewSection("MapPoint")
		s.Add("Index", pix.Int(m.Index))
		s.Add("VisualFlags", pix.Int(int(m.Visual)))
		s.Add("NavFlags", pix.Int(int(m.Nav)))
		s.Add("Position", vec3(m.Position))
		s.Add("Neighbours", pix.Ints(nb...))
		s.Add("NeighbourCount", pix.Int(len(m.Neighbours)))
		out = append(out, s)
	}
	for _, t := range pf.Triggers {
		pos, _ := xf(t.loc)
		pp := t.loc.Prefab
		s := pix.NewSection("TriggerPoint")
		s.Add("Index", pix.Int(t.Index))
		s.Add("TriggerID", pix.Int(pp.TriggerID))
		s.Add("TriggerAction", pix.String(pp.TriggerAction))
		s.Add("TriggerRange", pix.Hex(pp.TriggerRange))
		s.Add("TriggerResetDelay", pix.Hex(pp.TriggerReset))
		s.Add("Flags", pix.Int(int(triggerFlags(pp))))
		s.Add("Position", vec3(pos))
		s.Add("Neighbours", pix.Ints(t.Neighbours[:]...))
		out = append(out, s)
	}
	for _, in := range pf.Intersections {
		s := pix.NewSection("Intersection")
		s.Add("InterCurveID", pix.Int(in.Curve))
		s.Add("InterPosition", pix.Hex(in.Position))
		s.Add("InterRadius", pix.Hex(in.Radius))
		s.Add("InterFlags", pix.Int(int(in.Flags)))
		out = append(out, s)
	}

	g := pix.NewSection("Global")
	g.Add("NodeCount", pix.Int(len(pf.Nodes)))
	g.Add("TerrainPointCount", pix.Int(tpCount))
	g.Add("TerrainPointVariantCount", pix.Int(len(blocks)))
	g.Add("NavCurveCount", pix.Int(len(pf.Curves)))
	g.Add("SignCount", pix.Int(len(pf.Signs)))
	g.Add("SemaphoreCount", pix.Int(len(pf.Semaphores)))
	g.Add("SpawnPointCount", pix.Int(len(pf.SpawnPoints)))
	g.Add("MapPointCount", pix.Int(len(pf.MapPoints)))
	g.Add("TriggerPointCount", pix.Int(len(pf.Triggers)))
	g.Add("IntersectionCount", pix.Int(len(pf.Intersections)))

	return append([]*pix.Section{h, g}, out...)
}

func curveSection(c *Curve) *pix.Section {
	links := func(l []int) pix.Value {
		v := []int{-1, -1, -1, -1}
		copy(v, l)
		return pix.Ints(v...)
	}
	s := pix.NewSection("Curve")
	s.Add("Index", pix.Int(c.Index))
	s.Add("Name", pix.String(c.Name))
	s.Add("Flags", pix.Int(int(c.Flags)))
	s.Add("LeadsToNodes", pix.Int(int(c.LeadsToNodes)))
	s.Add("StartPosition", vec3(c.StartPos))
	s.Add("StartRotation", quat(c.StartRot))
	s.Add("EndPosition", vec3(c.EndPos))
	s.Add("EndRotation", quat(c.EndRot))
	s.Add("Length", pix.Hex(c.Length))
	s.Add("NextCurves", links(c.Next))
	s.Add("PrevCurves", links(c.Prev))
	s.Add("NextCurveCount", pix.Int(len(c.Next)))
	s.Add("PrevCurveCount", pix.Int(len(c.Prev)))
	s.Add("SemaphoreID", pix.Int(c.SemaphoreID))
	s.Add("TrafficRule", pix.String(c.TrafficRule))
	return s
}

func triggerFlags(p scene.PrefabProps) uint32 {
	var f uint32
	if p.TriggerManual {
		f |= TriggerManual
	}
	if p.TriggerSphere {
		f |= TriggerSphere
	}
	if p.TriggerPartial {
		f |= TriggerPartial
	}
	if p.TriggerOneTime {
		f |= TriggerOneTime
	}
	return f
}

// lookup resolves a type name or a plain number. Empty names resolve to
// zero.
func lookup(names map[string]int, name string) (int, bool) {
	if name == "" {
		return 0, true
	}
	if v, ok := names[strings.ToLower(name)]; ok {
		return v, true
	}
	if v, err := strconv.Atoi(name); err == nil && v >= 0 {
		return v, true
	}
	return 0, false
}

func vec3(v math.Vec3) pix.Value { return pix.Hexes(v.X, v.Y, v.Z) }

func quat(q math.Quat) pix.Value {
	w := q.WXYZ()
	return pix.Hexes(w[:]...)
}
