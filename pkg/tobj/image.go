package tobj

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ResolveTexture returns the file path of a texture reference inside a
// descriptor. References starting with / are rooted at the project base,
// others are relative to the descriptor's directory.
func ResolveTexture(base, tobjPath, ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	if strings.HasPrefix(ref, "/") {
		return filepath.Join(base, filepath.FromSlash(ref[1:]))
	}
	return filepath.Join(filepath.Dir(tobjPath), filepath.FromSlash(ref))
}

// ImageInfo describes a referenced image without decoding its pixels.
type ImageInfo struct {
	Path   string
	Format string
	Width  int
	Height int
}

// PowerOfTwo reports whether both dimensions are powers of two.
func (i ImageInfo) PowerOfTwo() bool {
	return isPow2(i.Width) && isPow2(i.Height)
}

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

type configDecoder func(io.Reader) (image.Config, error)

// TGA carries no magic number, so the decoder is picked by extension.
var decoders = map[string]struct {
	format string
	decode configDecoder
}{
	".tga":  {"tga", tga.DecodeConfig},
	".png":  {"png", png.DecodeConfig},
	".jpg":  {"jpeg", jpeg.DecodeConfig},
	".jpeg": {"jpeg", jpeg.DecodeConfig},
	".bmp":  {"bmp", bmp.DecodeConfig},
	".tif":  {"tiff", tiff.DecodeConfig},
	".tiff": {"tiff", tiff.DecodeConfig},
}

// Inspect reads the header of an image file. TGA, PNG, JPEG, BMP and
// TIFF are recognised.
func Inspect(path string) (ImageInfo, error) {
	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return ImageInfo{}, fmt.Errorf("%w: %s: unsupported image type", ErrRead, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()

	cfg, err := dec.decode(f)
	format := dec.format
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}
	return ImageInfo{Path: path, Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// InspectAll resolves and inspects every texture of d. Images that fail
// to open or are not power-of-two sized are reported through warn.
func InspectAll(base, tobjPath string, d *Descriptor, report Reporter) []ImageInfo {
	if report == nil {
		report = nopReporter{}
	}
	var out []ImageInfo
	for _, ref := range d.Textures {
		info, err := Inspect(ResolveTexture(base, tobjPath, ref))
		if err != nil {
			report.Warnf("texture %q: %v", ref, err)
			continue
		}
		if !info.PowerOfTwo() {
			report.Warnf("texture %q is %dx%d, not a power of two", ref, info.Width, info.Height)
		}
		out = append(out, info)
	}
	return out
}
