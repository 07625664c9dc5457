package tobj

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/bmp"
)

type recorder struct{ warns []string }

func (r *recorder) Warnf(format string, args ...any) { r.warns = append(r.warns, fmt.Sprintf(format, args...)) }

func makeCube() *Descriptor {
	return &Descriptor{
		MapType:  MapCube,
		Textures: []string{"px.tga", "nx.tga", "py.tga", "ny.tga", "pz.tga", "nz.tga"},
		Addr:     []AddrMode{AddrClampToEdge, AddrClampToEdge, AddrClampToEdge},
	}
}

func TestWriteLayout(t *testing.T) {
	tests := []struct {
		name string
		d    *Descriptor
		want string
	}{
		{
			name: "2d",
			d: &Descriptor{
				MapType: Map2D, Textures: []string{"/vehicle/body.tga"},
				Addr:    []AddrMode{AddrRepeat, AddrClamp},
				HasBias: true, Bias: 2, NoMips: true,
				MagFilter: FilterLinear, MinFilter: FilterNearest,
				Usage: UsageTSNormal,
			},
			want: "map\t2d\t/vehicle/body.tga\naddr\trepeat\tclamp\nbias\t2\nfilter\tlinear\tnearest\nusage\ttsnormal\nnomips\n",
		},
		{
			name: "cube",
			d:    makeCube(),
			want: "map\tcube\n\tpx.tga\n\tnx.tga\n\tpy.tga\n\tny.tga\n\tpz.tga\n\tnz.tga\naddr\n\tclamp_to_edge\n\tclamp_to_edge\n\tclamp_to_edge\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bytes.Buffer
			if err := Write(&b, tt.d); err != nil {
				t.Fatal(err)
			}
			if b.String() != tt.want {
				t.Errorf("got\n%q\nwant\n%q", b.String(), tt.want)
			}

			back, err := Parse(&b, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := back.Validate(); err != nil {
				t.Errorf("Validate after round trip: %v", err)
			}
			if strings.Join(back.Textures, ",") != strings.Join(tt.d.Textures, ",") || len(back.Addr) != len(tt.d.Addr) {
				t.Errorf("round trip = %+v", back)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(d *Descriptor)
		want error
	}{
		{"ok", func(d *Descriptor) {}, nil},
		{"missing face", func(d *Descriptor) { d.Textures = d.Textures[:5] }, ErrTextureCount},
		{"two addr on cube", func(d *Descriptor) { d.Addr = d.Addr[:2] }, ErrAddrCount},
		{"bad addr", func(d *Descriptor) { d.Addr[0] = "wrap" }, ErrInvalid},
		{"bad map", func(d *Descriptor) { d.MapType = "4d" }, ErrInvalid},
		{"half filter", func(d *Descriptor) { d.MagFilter = FilterLinear }, ErrInvalid},
		{"bad usage", func(d *Descriptor) { d.Usage = "normal" }, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := makeCube()
			tt.edit(d)
			err := d.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAddrCount(t *testing.T) {
	for m, want := range map[MapType]int{Map1D: 1, Map2D: 2, Map3D: 3, MapCube: 3} {
		if got := m.AddrCount(); got != want {
			t.Errorf("%s: got %d, want %d", m, got, want)
		}
	}
}

func TestParsePermissive(t *testing.T) {
	rec := &recorder{}
	d, err := Parse(strings.NewReader("map 2d a.tga\nshiny nocompress\ntransparent\nborder_color 1 0 0 1\n"), rec)
	if err != nil {
		t.Fatal(err)
	}
	if !d.NoCompress || !d.Transparent {
		t.Errorf("flags not set: %+v", d)
	}
	if d.BorderColor == nil || d.BorderColor[0] != 1 {
		t.Errorf("border color = %v", d.BorderColor)
	}
	if len(rec.warns) != 1 || !strings.Contains(rec.warns[0], "shiny") {
		t.Errorf("warnings = %v", rec.warns)
	}
}

func TestResolveTexture(t *testing.T) {
	base := filepath.FromSlash("/proj")
	tobjPath := filepath.FromSlash("/proj/vehicle/truck/body.tobj")
	tests := []struct {
		ref  string
		want string
	}{
		{"/vehicle/shared/a.tga", filepath.FromSlash("/proj/vehicle/shared/a.tga")},
		{"body.tga", filepath.FromSlash("/proj/vehicle/truck/body.tga")},
		{"../x.tga", filepath.FromSlash("/proj/vehicle/x.tga")},
	}
	for _, tt := range tests {
		if got := ResolveTexture(base, tobjPath, tt.ref); got != tt.want {
			t.Errorf("ResolveTexture(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

// writeTGA writes an uncompressed 24-bit true-colour TGA.
func writeTGA(t *testing.T, path string, w, h int) {
	t.Helper()
	var b bytes.Buffer
	header := make([]byte, 18)
	header[2] = 2
	binary.LittleEndian.PutUint16(header[12:], uint16(w))
	binary.LittleEndian.PutUint16(header[14:], uint16(h))
	header[16] = 24
	b.Write(header)
	b.Write(make([]byte, w*h*3))
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "a.png")
	f, err := os.Create(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 32))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	bmpPath := filepath.Join(dir, "b.bmp")
	var bb bytes.Buffer
	if err := bmp.Encode(&bb, image.NewRGBA(image.Rect(0, 0, 30, 16))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bmpPath, bb.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	tgaPath := filepath.Join(dir, "c.tga")
	writeTGA(t, tgaPath, 8, 8)

	tests := []struct {
		path   string
		format string
		w, h   int
		pow2   bool
	}{
		{pngPath, "png", 64, 32, true},
		{bmpPath, "bmp", 30, 16, false},
		{tgaPath, "tga", 8, 8, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			info, err := Inspect(tt.path)
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if info.Format != tt.format || info.Width != tt.w || info.Height != tt.h {
				t.Errorf("info = %+v", info)
			}
			if info.PowerOfTwo() != tt.pow2 {
				t.Errorf("PowerOfTwo = %v", info.PowerOfTwo())
			}
		})
	}

	d := &Descriptor{MapType: Map2D, Textures: []string{"b.bmp"}}
	rec := &recorder{}
	infos := InspectAll(dir, filepath.Join(dir, "x.tobj"), d, rec)
	if len(infos) != 1 || len(rec.warns) != 1 {
		t.Errorf("InspectAll = %v, warnings %v", infos, rec.warns)
	}

	if _, err := Inspect(filepath.Join(dir, "missing.dds")); !errors.Is(err, ErrRead) {
		t.Errorf("unsupported type err = %v", err)
	}
}
