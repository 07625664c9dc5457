package pip

import (
	"fmt"

	"github.com/Faultbox/scs-forge/internal/logger"
	"github.com/Faultbox/scs-forge/pkg/math"
	"github.com/Faultbox/scs-forge/pkg/pix"
)

// File is a decoded prefab file.
type File struct {
	Name          string
	Nodes         []NodeData
	Curves        []CurveData
	MapPoints     []MapPointData
	Intersections []Intersection
	Counts        map[string]int
}

// NodeData is a decoded control node.
type NodeData struct {
	Index       int
	Position    math.Vec3
	Direction   math.Vec3
	InputLanes  []int
	OutputLanes []int
}

// CurveData is a decoded navigation curve. Next and Prev hold only
// valid indices.
type CurveData struct {
	Index        int
	Name         string
	Flags        uint32
	LeadsToNodes uint32
	StartPos     math.Vec3
	StartRot     math.Quat
	EndPos       math.Vec3
	EndRot       math.Quat
	Length       float32
	Next, Prev   []int
	SemaphoreID  int
	TrafficRule  string
}

// MapPointData is a decoded map point.
type MapPointData struct {
	Index      int
	Visual     uint32
	Nav        uint32
	Position   math.Vec3
	Neighbours []int
}

// ReadFile parses and decodes a prefab file.
func ReadFile(path string, log *logger.Stack) (*File, error) {
	sections, err := pix.ReadFile(path, pix.Options{Report: log})
	if err != nil {
		return nil, err
	}
	return Read(sections, log)
}

// Read decodes prefab sections.
func Read(sections []*pix.Section, log *logger.Stack) (*File, error) {
	typ, _, ok := pix.HeaderOf(sections)
	if !ok || typ != "Prefab" {
		return nil, fmt.Errorf("%w: header type %q", ErrFormat, typ)
	}
	f := &File{Counts: make(map[string]int)}
	f.Name, _ = pix.Find(sections, "Header").Str("Name")

	for _, s := range pix.FindAll(sections, "Node") {
		n := NodeData{
			Position:    readVec3(s, "Position"),
			Direction:   readVec3(s, "Direction"),
			InputLanes:  readInts(s, "InputLanes"),
			OutputLanes: readInts(s, "OutputLanes"),
		}
		n.Index, _ = s.Int("Index")
		f.Nodes = append(f.Nodes, n)
	}
	for _, s := range pix.FindAll(sections, "Curve") {
		c := CurveData{
			StartPos: readVec3(s, "StartPosition"),
			StartRot: readQuat(s, "StartRotation"),
			EndPos:   readVec3(s, "EndPosition"),
			EndRot:   readQuat(s, "EndRotation"),
			Next:     valid(readInts(s, "NextCurves")),
			Prev:     valid(readInts(s, "PrevCurves")),
		}
		c.Index, _ = s.Int("Index")
		c.Name, _ = s.Str("Name")
		c.Length, _ = s.Float("Length")
		c.SemaphoreID, _ = s.Int("SemaphoreID")
		c.TrafficRule, _ = s.Str("TrafficRule")
		flags, _ := s.Int("Flags")
		leads, _ := s.Int("LeadsToNodes")
		c.Flags, c.LeadsToNodes = uint32(flags), uint32(leads)
		f.Curves = append(f.Curves, c)
	}
	for _, s := range pix.FindAll(sections, "MapPoint") {
		m := MapPointData{Position: readVec3(s, "Position"), Neighbours: valid(readInts(s, "Neighbours"))}
		m.Index, _ = s.Int("Index")
		visual, _ := s.Int("VisualFlags")
		nav, _ := s.Int("NavFlags")
		m.Visual, m.Nav = uint32(visual), uint32(nav)
		f.MapPoints = append(f.MapPoints, m)
	}
	for _, s := range pix.FindAll(sections, "Intersection") {
		in := Intersection{}
		in.Curve, _ = s.Int("InterCurveID")
		in.Position, _ = s.Float("InterPosition")
		in.Radius, _ = s.Float("InterRadius")
		flags, _ := s.Int("InterFlags")
		in.Flags = uint32(flags)
		if in.Curve < 0 || in.Curve >= len(f.Curves) {
			log.Errorf("prefab %q: intersection references curve %d of %d", f.Name, in.Curve, len(f.Curves))
		}
		f.Intersections = append(f.Intersections, in)
	}

	actual := map[string]int{
		"NodeCount":         len(f.Nodes),
		"NavCurveCount":     len(f.Curves),
		"MapPointCount":     len(f.MapPoints),
		"IntersectionCount": len(f.Intersections),
		"TerrainPointCount": len(pix.FindAll(sections, "TerrainPoint")),
		"SignCount":         len(pix.FindAll(sections, "Sign")),
		"SemaphoreCount":    len(pix.FindAll(sections, "Semaphore")),
		"SpawnPointCount":   len(pix.FindAll(sections, "SpawnPoint")),
		"TriggerPointCount": len(pix.FindAll(sections, "TriggerPoint")),
	}
	g := pix.Find(sections, "Global")
	for key, n := range actual {
		f.Counts[key] = n
		if g == nil {
			continue
		}
		if want, ok := g.Int(key); ok && want != n {
			log.Warnf("prefab %q declares %s %d, has %d", f.Name, key, want, n)
		}
	}
	return f, nil
}

func readVec3(s *pix.Section, key string) math.Vec3 {
	v, _ := s.Prop(key)
	f := v.Floats()
	if len(f) != 3 {
		return math.Vec3{}
	}
	return math.Vec3{X: f[0], Y: f[1], Z: f[2]}
}

func readQuat(s *pix.Section, key string) math.Quat {
	v, _ := s.Prop(key)
	f := v.Floats()
	if len(f) != 4 {
		return math.QuatIdentity()
	}
	return math.Quat{W: f[0], X: f[1], Y: f[2], Z: f[3]}
}

func readInts(s *pix.Section, key string) []int {
	v, _ := s.Prop(key)
	return v.IntSlice()
}

func valid(idx []int) []int {
	var out []int
	for _, i := range idx {
		if i >= 0 {
			out = append(out, i)
		}
	}
	return out
}
