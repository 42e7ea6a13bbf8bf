// Package toolstest emulates the external image tools in process so the
// converters can be tested without ImageMagick or poppler installed.
package toolstest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Runner understands the crop and rasterize invocations issued by the
// tools package
type Runner struct {
	// Available lists the binaries LookPath resolves
	Available map[string]bool
	// PageSize is the size of rasterized pages; zero means 100x130
	PageSize image.Point
	// Fail makes every Run return this error
	Fail error

	mu    sync.Mutex
	calls [][]string
}

// NewRunner makes the named binaries resolvable
func NewRunner(available ...string) *Runner {
	r := &Runner{Available: make(map[string]bool)}
	for _, name := range available {
		r.Available[name] = true
	}
	return r
}

func (r *Runner) LookPath(name string) (string, error) {
	if r.Available[name] {
		return "/usr/bin/" + name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// Calls returns every executed command line
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Fail != nil {
		return []byte("simulated failure"), r.Fail
	}

	switch filepath.Base(name) {
	case "magick", "convert":
		if len(args) == 5 && args[1] == "-crop" {
			return nil, crop(args[0], args[2], args[4])
		}
		if len(args) > 0 && args[0] == "-density" {
			return nil, r.blankPage(strings.TrimPrefix(args[len(args)-1], "png:"))
		}
	case "pdftoppm":
		return nil, r.blankPage(args[len(args)-1] + ".png")
	}
	return nil, fmt.Errorf("unsupported invocation: %s %v", name, args)
}

func (r *Runner) blankPage(dst string) error {
	size := r.PageSize
	if size == (image.Point{}) {
		size = image.Pt(100, 130)
	}
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return writeImage(dst, img)
}

func crop(src, geometry, dst string) error {
	var w, h, x, y int
	if _, err := fmt.Sscanf(geometry, "%dx%d+%d+%d", &w, &h, &x, &y); err != nil {
		return fmt.Errorf("bad geometry %q: %w", geometry, err)
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), img, image.Pt(x, y), draw.Src)
	return writeImage(dst, out)
}

func writeImage(dst string, img image.Image) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(dst)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	case ".png":
		return png.Encode(f, img)
	}
	return fmt.Errorf("cannot encode %s", dst)
}

// WriteJPEG writes a white JPEG of the given size, for fixtures
func WriteJPEG(path string, width, height int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return writeImage(path, img)
}
