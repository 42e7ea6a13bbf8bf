package tools

import (
	"context"
	"fmt"
	"image"
	"strconv"
)

// ImageMagick drives the magick binary, or the legacy convert binary of
// ImageMagick 6
type ImageMagick struct {
	runner Runner
	path   string
}

// NewImageMagick resolves magick first, then convert
func NewImageMagick(r Runner) (*ImageMagick, error) {
	for _, name := range []string{"magick", "convert"} {
		if p, err := r.LookPath(name); err == nil {
			return &ImageMagick{runner: r, path: p}, nil
		}
	}
	return nil, &MissingToolError{Tool: "ImageMagick", Remediation: ImageMagickInstall}
}

// Path is the resolved binary
func (m *ImageMagick) Path() string { return m.path }

func (m *ImageMagick) Name() string { return "magick" }

// Crop writes the rect of src to dst. The output format follows the dst
// extension.
func (m *ImageMagick) Crop(ctx context.Context, src, dst string, rect image.Rectangle) error {
	geometry := fmt.Sprintf("%dx%d+%d+%d", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y)
	return run(ctx, m.runner, m.path, src, "-crop", geometry, "+repage", dst)
}

// Rasterize renders one 1-based PDF page to a PNG at the given density
func (m *ImageMagick) Rasterize(ctx context.Context, pdfPath string, page, dpi int, dst string) error {
	src := pdfPath + "[" + strconv.Itoa(page-1) + "]"
	return run(ctx, m.runner, m.path,
		"-density", strconv.Itoa(dpi),
		src,
		"-background", "white",
		"-alpha", "remove",
		"png:"+dst)
}
