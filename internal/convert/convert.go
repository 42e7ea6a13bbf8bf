// Package convert renders every page of a PDF into the page-{n}.jpg images
// the viewer serves.
package convert

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/tools"
)

const (
	DefaultScale   = 2.0
	DefaultQuality = 85
	// PointsPerInch is the PDF user space unit; scale 1 renders at 72 DPI
	PointsPerInch = 72
)

// Options tunes a conversion
type Options struct {
	Scale       float64
	Quality     int
	Concurrency int
	// Progress receives the progress bar; nil disables it
	Progress io.Writer
}

// Converter turns a PDF into JPEG page images
type Converter struct {
	rasterizer tools.Rasterizer
	opts       Options
}

func New(r tools.Rasterizer, opts Options) *Converter {
	if opts.Scale <= 0 {
		opts.Scale = DefaultScale
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}
	return &Converter{rasterizer: r, opts: opts}
}

// DPI is the render density for the configured scale
func (c *Converter) DPI() int {
	return int(math.Round(PointsPerInch * c.opts.Scale))
}

// PageCount reads the number of pages from the PDF
func PageCount(pdfPath string) (int, error) {
	n, err := api.PageCountFile(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read page count of %s: %w", pdfPath, err)
	}
	return n, nil
}

// Convert writes page-1.jpg .. page-N.jpg into outputDir and returns N
func (c *Converter) Convert(ctx context.Context, pdfPath, outputDir string) (int, error) {
	pages, err := PageCount(pdfPath)
	if err != nil {
		return 0, err
	}
	if pages == 0 {
		return 0, fmt.Errorf("%s has no pages", pdfPath)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	renderDir, err := os.MkdirTemp(outputDir, ".render-")
	if err != nil {
		return 0, fmt.Errorf("failed to create render directory: %w", err)
	}
	defer os.RemoveAll(renderDir)

	slog.Info("Converting PDF",
		"input", pdfPath,
		"pages", pages,
		"rasterizer", c.rasterizer.Name(),
		"dpi", c.DPI(),
		"quality", c.opts.Quality)

	w := c.opts.Progress
	if w == nil {
		w = io.Discard
	}
	bar := progressbar.NewOptions(pages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Converting pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	var done int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i := 1; i <= pages; i++ {
		page := i
		g.Go(func() error {
			if err := c.renderPage(gctx, pdfPath, page, renderDir, outputDir); err != nil {
				return err
			}
			n := atomic.AddInt32(&done, 1)
			slog.Info("Converted page", "page", page, "done", n, "total", pages)
			return bar.Add(1)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := bar.Finish(); err != nil {
		return 0, err
	}

	slog.Info("Conversion complete", "pages", pages, "output", outputDir)
	return pages, nil
}

func (c *Converter) renderPage(ctx context.Context, pdfPath string, page int, renderDir, outputDir string) error {
	png := filepath.Join(renderDir, fmt.Sprintf("render-%d.png", page))
	if err := c.rasterizer.Rasterize(ctx, pdfPath, page, c.DPI(), png); err != nil {
		return fmt.Errorf("failed to rasterize page %d: %w", page, err)
	}
	defer os.Remove(png)

	dst := filepath.Join(outputDir, assets.PageFilename(page, "jpg"))
	if err := encodeJPEG(png, dst, c.opts.Quality); err != nil {
		return fmt.Errorf("failed to encode page %d: %w", page, err)
	}
	return nil
}

func encodeJPEG(src, dst string, quality int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	img, _, err := image.Decode(in)
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
