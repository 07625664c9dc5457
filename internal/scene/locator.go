package scene

import (
	"github.com/Faultbox/scs-forge/pkg/math"
)

// LocatorKind is the top-level locator type.
type LocatorKind string

const (
	LocatorModel     LocatorKind = "model"
	LocatorPrefab    LocatorKind = "prefab"
	LocatorCollision LocatorKind = "collision"
)

// SubKind refines prefab and collision locators.
type SubKind string

// Prefab locator sub kinds.
const (
	ControlNode      SubKind = "control_node"
	Sign             SubKind = "sign"
	SpawnPoint       SubKind = "spawn_point"
	TrafficSemaphore SubKind = "traffic_semaphore"
	NavigationPoint  SubKind = "navigation_point"
	MapPoint         SubKind = "map_point"
	TriggerPoint     SubKind = "trigger_point"
)

// Collision locator sub kinds.
const (
	ColliderBox      SubKind = "box"
	ColliderSphere   SubKind = "sphere"
	ColliderCapsule  SubKind = "capsule"
	ColliderCylinder SubKind = "cylinder"
	ColliderConvex   SubKind = "convex"
)

// Locator is an empty with typed properties.
type Locator struct {
	Name    string
	Kind    LocatorKind
	SubKind SubKind
	Part    string
	World   math.Mat4
	// Hookup is the model locator hookup string.
	Hookup string

	Collider ColliderProps
	Prefab   PrefabProps
}

// NewLocator returns a locator with identity transform in the default
// part.
func NewLocator(name string, kind LocatorKind, sub SubKind) *Locator {
	return &Locator{
		Name:    name,
		Kind:    kind,
		SubKind: sub,
		Part:    DefaultPart,
		World:   math.Identity(),
		Prefab:  DefaultPrefabProps(),
		Collider: ColliderProps{
			Centered: true,
			Weight:   1,
			Size:     math.Vec3{X: 1, Y: 1, Z: 1},
			Radius:   0.5,
			Length:   1,
		},
	}
}

// Position returns the world translation.
func (l *Locator) Position() math.Vec3 { return l.World.Translation() }

// Is reports whether the locator has the given kind and sub kind.
func (l *Locator) Is(kind LocatorKind, sub SubKind) bool {
	return l.Kind == kind && l.SubKind == sub
}

// ColliderProps configures a collision locator.
type ColliderProps struct {
	Centered bool
	Weight   float32
	// Size is the box size along host X, Y and Z.
	Size   math.Vec3
	Radius float32
	Length float32
	// Hull is the convex hull of a convex collider in locator space.
	Hull Hull
}

// Hull is a convex mesh.
type Hull struct {
	Vertices []math.Vec3
	Faces    [][3]int
}

// Road size choices of a map point.
const (
	RoadSizeAuto    = "auto"
	RoadSizePolygon = "polygon"
)

// PrefabProps configures a prefab locator. Fields apply by sub kind.
type PrefabProps struct {
	// Control node.
	NodeIndex int `yaml:"node_index"`

	// Navigation point. Boundary and semaphore fields use -1 for none.
	BoundaryNode      int    `yaml:"boundary_node"`
	BoundaryLane      int    `yaml:"boundary_lane"`
	Priority          int    `yaml:"priority"`
	AdditivePriority  bool   `yaml:"additive_priority"`
	LimitDisplacement bool   `yaml:"limit_displacement"`
	Blinker           string `yaml:"blinker"` // "", "no", "left" or "right"
	LowProbability    bool   `yaml:"low_probability"`
	AllowedVehicles   string `yaml:"allowed_vehicles"` // "all", "small" or "large"
	TrafficRule       string `yaml:"traffic_rule"`
	SemaphoreID       int    `yaml:"semaphore_id"`

	// Map point. RoadSize is RoadSizeAuto, RoadSizePolygon or a lane
	// count "1".."12". Color is 0 or one of the custom colours 1..3.
	// AssignedNode is 1..7, AssignedBase, or 0 when DestNodes apply.
	RoadSize     string `yaml:"road_size"`
	RoadOffset   int    `yaml:"road_offset"`
	RoadOver     bool   `yaml:"road_over"`
	NoOutline    bool   `yaml:"no_outline"`
	NoArrow      bool   `yaml:"no_arrow"`
	PrefabExit   bool   `yaml:"prefab_exit"`
	Color        int    `yaml:"color"`
	AssignedNode int    `yaml:"assigned_node"`
	DestNodes    []int  `yaml:"dest_nodes"`

	// Sign.
	SignModel string `yaml:"sign_model"`
	SignPart  string `yaml:"sign_part"`

	// Semaphore.
	SemaphoreType string     `yaml:"semaphore_type"`
	Intervals     [4]float32 `yaml:"intervals"`
	CycleDelay    float32    `yaml:"cycle_delay"`
	Profile       string     `yaml:"profile"`

	// Spawn point.
	SpawnType string `yaml:"spawn_type"`

	// Trigger point.
	TriggerID      int     `yaml:"trigger_id"`
	TriggerAction  string  `yaml:"trigger_action"`
	TriggerRange   float32 `yaml:"trigger_range"`
	TriggerReset   float32 `yaml:"trigger_reset"`
	TriggerSphere  bool    `yaml:"trigger_sphere"`
	TriggerPartial bool    `yaml:"trigger_partial"`
	TriggerOneTime bool    `yaml:"trigger_one_time"`
	TriggerManual  bool    `yaml:"trigger_manual"`
}

// AssignedBase marks a map point as part of the base navigation.
const AssignedBase = -1

// DefaultPrefabProps returns the property defaults of a new prefab
// locator.
func DefaultPrefabProps() PrefabProps {
	return PrefabProps{
		BoundaryNode:    -1,
		BoundaryLane:    -1,
		SemaphoreID:     -1,
		TriggerID:       -1,
		AllowedVehicles: "all",
		RoadSize:        RoadSizeAuto,
	}
}
