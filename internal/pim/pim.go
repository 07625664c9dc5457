// Package pim builds and reads model files: geometry pieces per object
// and material, parts, model locators and the optional skin.
package pim

import (
	"errors"

	"github.com/Faultbox/scs-forge/internal/preset"
)

var (
	ErrNoGeometry      = errors.New("no geometry to export")
	ErrUnskinnedVertex = errors.New("vertex without bone weights")
	ErrFormat          = errors.New("invalid model file")
)

// Format selects the model file flavour.
type Format string

const (
	FormatLegacy Format = "5"
	FormatDef    Format = "def"
	FormatEF     Format = "ef"
)

// Version returns the FormatVersion header value.
func (f Format) Version() int {
	if f == FormatLegacy {
		return 5
	}
	return 1
}

// DefaultMaterial replaces missing or out of range material slots.
const (
	DefaultMaterial = "_not_existing_material_"
	DefaultEffect   = "eut2.dif"
)

// Stream tags.
const (
	TagPosition = "_POSITION"
	TagNormal   = "_NORMAL"
	TagTangent  = "_TANGENT"
	TagRGBA     = "_RGBA"
	TagRGBA1    = "_RGBA1"
	TagUV       = "_UV"
)

// Source is written to the Source header field.
const Source = "scs-forge 1.0"

// TerrainGroup matches vertex groups holding terrain points; the capture
// is the control node index.
const TerrainGroup = `^scs_tp_([0-9]+)$`

// MaxNodes bounds the control node index of terrain points.
const MaxNodes = 7

// fprec is the number of quantisation steps per unit of the vertex
// dedup key.
const fprec = 40

// Options configures a build.
type Options struct {
	Name   string
	Format Format
	Scale  float32
	// Skeleton is the skeleton file referenced by skinned models.
	Skeleton string
	Presets  *preset.Library
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatLegacy
	}
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Presets == nil {
		o.Presets = preset.Default()
	}
	return o
}
