package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Rasterizer renders single PDF pages to PNG files
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, pdfPath string, page, dpi int, dst string) error
}

// Pdftoppm drives poppler's pdftoppm
type Pdftoppm struct {
	runner Runner
	path   string
}

func NewPdftoppm(r Runner) (*Pdftoppm, error) {
	p, err := r.LookPath("pdftoppm")
	if err != nil {
		return nil, &MissingToolError{
			Tool: "pdftoppm",
			Remediation: `pdftoppm not found. Please install poppler:
   brew install poppler           # Mac
   sudo apt install poppler-utils # Linux`,
		}
	}
	return &Pdftoppm{runner: r, path: p}, nil
}

func (p *Pdftoppm) Name() string { return "pdftoppm" }

// Rasterize renders one 1-based page. pdftoppm appends the extension to
// the output root itself.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page, dpi int, dst string) error {
	n := strconv.Itoa(page)
	return run(ctx, p.runner, p.path,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", n,
		"-l", n,
		"-singlefile",
		pdfPath,
		strings.TrimSuffix(dst, ".png"))
}

// Engine selects a rasterizer
type Engine string

const (
	EngineAuto     Engine = "auto"
	EnginePdftoppm Engine = "pdftoppm"
	EngineMagick   Engine = "magick"
)

// ParseEngine accepts auto, pdftoppm and magick
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "", EngineAuto:
		return EngineAuto, nil
	case EnginePdftoppm, EngineMagick:
		return Engine(s), nil
	}
	return "", fmt.Errorf("unknown engine %q (want auto, pdftoppm or magick)", s)
}

// NewRasterizer resolves the requested engine. Auto prefers pdftoppm and
// falls back to ImageMagick.
func NewRasterizer(r Runner, engine Engine) (Rasterizer, error) {
	switch engine {
	case EnginePdftoppm:
		return NewPdftoppm(r)
	case EngineMagick:
		return NewImageMagick(r)
	}

	if p, err := NewPdftoppm(r); err == nil {
		return p, nil
	}
	if m, err := NewImageMagick(r); err == nil {
		return m, nil
	}
	return nil, &MissingToolError{
		Tool: "PDF rasterizer (pdftoppm or ImageMagick)",
		Remediation: `No PDF rasterizer found. Install one of:
   brew install poppler imagemagick                # Mac
   sudo apt install poppler-utils imagemagick      # Linux`,
	}
}
