// Package tobj reads, writes and validates texture object descriptors.
package tobj

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// TOBJ errors.
var (
	ErrRead         = errors.New("tobj read failed")
	ErrWrite        = errors.New("tobj write failed")
	ErrInvalid      = errors.New("invalid tobj")
	ErrTextureCount = errors.New("texture count does not match map type")
	ErrAddrCount    = errors.New("address mode count does not match map type")
)

// MapType is the texture dimensionality.
type MapType string

const (
	Map1D   MapType = "1d"
	Map2D   MapType = "2d"
	Map3D   MapType = "3d"
	MapCube MapType = "cube"
)

// AddrMode is a per-axis texture address mode.
type AddrMode string

const (
	AddrRepeat            AddrMode = "repeat"
	AddrClamp             AddrMode = "clamp"
	AddrClampToEdge       AddrMode = "clamp_to_edge"
	AddrClampToBorder     AddrMode = "clamp_to_border"
	AddrMirror            AddrMode = "mirror"
	AddrMirrorClamp       AddrMode = "mirror_clamp"
	AddrMirrorClampToEdge AddrMode = "mirror_clamp_to_edge"
)

// Filter is a magnification or minification filter.
type Filter string

const (
	FilterDefault Filter = "default"
	FilterNearest Filter = "nearest"
	FilterLinear  Filter = "linear"
)

// Usage hints how the engine samples the texture.
type Usage string

const (
	UsageDefault  Usage = "default"
	UsageTSNormal Usage = "tsnormal"
	UsageUI       Usage = "ui"
)

// ColorSpace of the referenced images.
type ColorSpace string

const (
	ColorSRGB   ColorSpace = "srgb"
	ColorLinear ColorSpace = "linear"
)

var (
	mapTypes    = []MapType{Map1D, Map2D, Map3D, MapCube}
	addrModes   = []AddrMode{AddrRepeat, AddrClamp, AddrClampToEdge, AddrClampToBorder, AddrMirror, AddrMirrorClamp, AddrMirrorClampToEdge}
	filters     = []Filter{FilterDefault, FilterNearest, FilterLinear}
	usages      = []Usage{UsageDefault, UsageTSNormal, UsageUI}
	colorSpaces = []ColorSpace{ColorSRGB, ColorLinear}
)

// TextureCount returns how many image references the map type takes.
func (m MapType) TextureCount() int {
	if m == MapCube {
		return 6
	}
	return 1
}

// AddrCount returns how many address modes the map type takes.
func (m MapType) AddrCount() int {
	if m == MapCube {
		return 3
	}
	n, err := strconv.Atoi(strings.TrimSuffix(string(m), "d"))
	if err != nil {
		return 0
	}
	return n
}

// Valid reports whether m is a known map type.
func (m MapType) Valid() bool { return slices.Contains(mapTypes, m) }

// Descriptor is the content of one .tobj file. Zero values of optional
// fields mean "not written".
type Descriptor struct {
	MapType  MapType
	Textures []string
	Addr     []AddrMode

	HasBias     bool
	Bias        int
	MagFilter   Filter
	MinFilter   Filter
	Target      MapType
	BorderColor *[4]float32
	ColorSpace  ColorSpace
	Usage       Usage

	NoMips        bool
	Trilinear     bool
	NoAnisotropic bool
	NoCompress    bool
	Transparent   bool
	BlackBorder   bool
}

// New returns a 2d descriptor for one texture.
func New(texture string) *Descriptor {
	return &Descriptor{MapType: Map2D, Textures: []string{texture}}
}

// Validate checks arity and enumerations. All problems are joined.
func (d *Descriptor) Validate() error {
	var errs []error
	if !d.MapType.Valid() {
		errs = append(errs, fmt.Errorf("%w: map type %q", ErrInvalid, d.MapType))
	} else {
		if want := d.MapType.TextureCount(); len(d.Textures) != want {
			errs = append(errs, fmt.Errorf("%w: %s wants %d, got %d", ErrTextureCount, d.MapType, want, len(d.Textures)))
		}
		if want := d.MapType.AddrCount(); len(d.Addr) > 0 && len(d.Addr) != want {
			errs = append(errs, fmt.Errorf("%w: %s wants %d, got %d", ErrAddrCount, d.MapType, want, len(d.Addr)))
		}
	}
	for _, a := range d.Addr {
		if !slices.Contains(addrModes, a) {
			errs = append(errs, fmt.Errorf("%w: address mode %q", ErrInvalid, a))
		}
	}
	for _, f := range []Filter{d.MagFilter, d.MinFilter} {
		if f != "" && !slices.Contains(filters, f) {
			errs = append(errs, fmt.Errorf("%w: filter %q", ErrInvalid, f))
		}
	}
	if (d.MagFilter == "") != (d.MinFilter == "") {
		errs = append(errs, fmt.Errorf("%w: filter needs both mag and min", ErrInvalid))
	}
	if d.Target != "" && !d.Target.Valid() {
		errs = append(errs, fmt.Errorf("%w: target %q", ErrInvalid, d.Target))
	}
	if d.Usage != "" && !slices.Contains(usages, d.Usage) {
		errs = append(errs, fmt.Errorf("%w: usage %q", ErrInvalid, d.Usage))
	}
	if d.ColorSpace != "" && !slices.Contains(colorSpaces, d.ColorSpace) {
		errs = append(errs, fmt.Errorf("%w: color space %q", ErrInvalid, d.ColorSpace))
	}
	return errors.Join(errs...)
}

// flags lists the boolean attributes in write order.
func (d *Descriptor) flags() []struct {
	name string
	ptr  *bool
} {
	return []struct {
		name string
		ptr  *bool
	}{
		{"nomips", &d.NoMips},
		{"trilinear", &d.Trilinear},
		{"noanisotropic", &d.NoAnisotropic},
		{"nocompress", &d.NoCompress},
		{"transparent", &d.Transparent},
		{"black_border", &d.BlackBorder},
	}
}

func (d *Descriptor) flag(name string) *bool {
	for _, f := range d.flags() {
		if f.name == name {
			return f.ptr
		}
	}
	return nil
}
