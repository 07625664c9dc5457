// Package pip builds and reads prefab files: control nodes with their
// terrain points, navigation curves and their intersections, the map
// point graph and the sign, semaphore, spawn and trigger locators.
package pip

import (
	"errors"
)

var (
	ErrNoPrefab  = errors.New("no prefab locators")
	ErrNoNodes   = errors.New("prefab has no control nodes")
	ErrNodeIndex = errors.New("invalid control node index")
	ErrPolygon   = errors.New("invalid map point polygon")
	ErrFormat    = errors.New("invalid prefab file")
)

const (
	// Version is the FormatVersion of prefab files.
	Version = 24
	// Source is written to the Source header field.
	Source = "scs-forge 1.0"
)

const (
	MaxNodes         = 7
	MaxLanes         = 8
	MaxNextPrev      = 4
	MaxNeighbours    = MaxNodes
	MaxTriggerLinks  = 2
	CurveMeasureStep = 100
	CurveSteps       = 32
	TangentCoef      = 1.0 / 3
	SafeDistance     = 2.0
	RadiusStep       = 0.1
	SearchDepth      = 5
	// AlignTolerance is how close two node coordinates must be for the
	// centre map point of a three node prefab to snap to their axis.
	AlignTolerance = 0.2
)

// Curve flags.
const (
	FlagForceNoBlinker    uint32 = 0x00000001
	FlagRightBlinker      uint32 = 0x00000002
	FlagLeftBlinker       uint32 = 0x00000004
	FlagSmallVehicles     uint32 = 0x00000008
	FlagLargeVehicles     uint32 = 0x00000010
	FlagLowProbability    uint32 = 0x00002000
	FlagLimitDisplacement uint32 = 0x00004000
	FlagAdditivePriority  uint32 = 0x00008000
	FlagPriorityMask      uint32 = 0x000F0000
	FlagPriorityShift            = 16

	FlagAllowedVehicles = FlagSmallVehicles | FlagLargeVehicles
	FlagStartMask       = FlagPriorityMask | FlagAdditivePriority | FlagLimitDisplacement
	FlagEndMask         = FlagForceNoBlinker | FlagRightBlinker | FlagLeftBlinker | FlagLowProbability
	FlagCommonMask      = FlagAllowedVehicles
)

// Leads to nodes bit layout.
const (
	LeadsEndLaneShift   = 0
	LeadsEndNodeShift   = 8
	LeadsStartLaneShift = 16
	LeadsStartNodeShift = 24
	LeadsStartMask      = 0xFFFF0000
	LeadsEndMask        = 0x0000FFFF
)

// Map point visual flags.
const (
	RoadExtValueMask uint32 = 0x000000FF
	RoadSizeMask     uint32 = 0x00000F00
	RoadSizeShift           = 8
	RoadSizeManual   uint32 = 0x00000D00
	RoadSizeAuto     uint32 = 0x00000E00
	RoadOffsetMask   uint32 = 0x0000F000
	RoadOffsetShift         = 12
	RoadOver         uint32 = 0x00010000
	CustomColor1     uint32 = 0x00020000
	CustomColor2     uint32 = 0x00040000
	CustomColor3     uint32 = 0x00080000
	NoOutline        uint32 = 0x00100000
	NoArrow          uint32 = 0x00200000

	CustomColorMask = CustomColor1 | CustomColor2 | CustomColor3
)

// Map point navigation flags. NavNode0 shifted by n marks node n.
const (
	NavNode0     uint32 = 0x00000001
	NavNodeMask  uint32 = 0x000000FF
	NavNodeStart uint32 = 0x00000100
	NavBase      uint32 = 0x00000200
	PrefabExit   uint32 = 0x00000400
)

// Intersection flags.
const (
	IntersectStart      uint32 = 0x1
	IntersectEnd        uint32 = 0x2
	IntersectCrossSharp uint32 = 0x4
)

// Trigger point flags.
const (
	TriggerManual  uint32 = 0x1
	TriggerSphere  uint32 = 0x2
	TriggerPartial uint32 = 0x4
	TriggerOneTime uint32 = 0x8
)

// Semaphore types by name.
var semaphoreTypes = map[string]int{
	"model_only":              0,
	"traffic_light":           1,
	"traffic_light_minor":     2,
	"traffic_light_major":     3,
	"barrier_manual_timed":    4,
	"barrier_distance":        5,
	"traffic_light_blockable": 6,
	"barrier_gas":             7,
	"traffic_light_virtual":   8,
	"barrier_automatic":       9,
}

// Spawn point types by name.
var spawnTypes = map[string]int{
	"none":           0,
	"trailer":        1,
	"unload_easy":    2,
	"gas":            3,
	"service":        4,
	"truck_stop":     5,
	"weight_station": 6,
	"truck_dealer":   7,
	"hotel":          8,
	"custom":         9,
	"parking":        10,
	"task":           11,
	"meet":           12,
	"company":        13,
	"garage":         14,
	"buy":            15,
	"recruitment":    16,
	"camera_point":   17,
	"bus_station":    18,
	"unload_medium":  19,
	"unload_hard":    20,
	"unload_rigid":   21,
	"weight_cat":     22,
	"company_unload": 23,
	"trailer_spawn":  24,
	"long_trailer":   25,
}
