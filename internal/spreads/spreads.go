// Package spreads splits scanned two-page spreads into single page images.
package spreads

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"

	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
)

// DefaultThreshold is the width/height ratio above which an image is
// treated as a spread. Single portrait pages sit near 0.75 and single
// landscape pages between 1.2 and 1.35.
const DefaultThreshold = 1.35

const tempDirName = "temp"

var ErrMalformedImage = errors.New("spreads: malformed image")

var (
	pagePattern     = regexp.MustCompile(`^page-(\d+)\.(jpg|webp)$`)
	tempPagePattern = regexp.MustCompile(`^page-temp-(\d+)\.(jpg|webp)$`)
)

// Cropper writes a rectangle of src to dst
type Cropper interface {
	Crop(ctx context.Context, src, dst string, rect image.Rectangle) error
}

// Splitter renumbers and splits page images in place
type Splitter struct {
	cropper   Cropper
	threshold float64
}

func New(c Cropper, threshold float64) *Splitter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Splitter{cropper: c, threshold: threshold}
}

type pageFile struct {
	name   string
	number int
	ext    string
}

func scan(dir string, pattern *regexp.Regexp) ([]pageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []pageFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files = append(files, pageFile{name: e.Name(), number: n, ext: m[2]})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].number < files[j].number
	})
	return files, nil
}

// Dimensions reads the width and height from the image header
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: %v", ErrMalformedImage, filepath.Base(path), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %s: empty image", ErrMalformedImage, filepath.Base(path))
	}
	return cfg.Width, cfg.Height, nil
}

// halves returns the left and right crops. The right half takes the
// remaining column of an odd width.
func halves(width, height int) (image.Rectangle, image.Rectangle) {
	half := width / 2
	return image.Rect(0, 0, half, height), image.Rect(half, 0, width, height)
}

func (s *Splitter) split(ctx context.Context, src, left, right string, width, height int) error {
	l, r := halves(width, height)
	if err := s.cropper.Crop(ctx, src, left, l); err != nil {
		return fmt.Errorf("failed to crop left half: %w", err)
	}
	if err := s.cropper.Crop(ctx, src, right, r); err != nil {
		return fmt.Errorf("failed to crop right half: %w", err)
	}
	return nil
}

// SplitSpreads renumbers every page-{n} image in dir from 1, splitting
// images wider than the threshold into two pages. It returns the new page
// count.
func (s *Splitter) SplitSpreads(ctx context.Context, dir string) (int, error) {
	files, err := scan(dir, pagePattern)
	if err != nil {
		return 0, err
	}
	slog.Info("Found images to process", "count", len(files), "dir", dir)
	if len(files) == 0 {
		return 0, nil
	}
	ext := files[0].ext

	tempDir := filepath.Join(dir, tempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create temp directory: %w", err)
	}
	for _, f := range files {
		if err := os.Rename(filepath.Join(dir, f.name), filepath.Join(tempDir, f.name)); err != nil {
			return 0, fmt.Errorf("failed to move %s: %w", f.name, err)
		}
	}

	next := 1
	var skipped []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		src := filepath.Join(tempDir, f.name)
		width, height, err := Dimensions(src)
		if err != nil {
			slog.Warn("Could not read dimensions, skipping", "file", f.name, "err", err)
			skipped = append(skipped, f.name)
			continue
		}

		ratio := float64(width) / float64(height)
		if ratio > s.threshold {
			left := assets.PageFilename(next, ext)
			right := assets.PageFilename(next+1, ext)
			if err := s.split(ctx, src, filepath.Join(dir, left), filepath.Join(dir, right), width, height); err != nil {
				return 0, fmt.Errorf("failed to split %s: %w", f.name, err)
			}
			slog.Info("Split spread",
				"file", f.name,
				"width", width,
				"height", height,
				"ratio", fmt.Sprintf("%.2f", ratio),
				"left", left,
				"right", right)
			next += 2
			continue
		}

		dst := assets.PageFilename(next, ext)
		if err := copyFile(src, filepath.Join(dir, dst)); err != nil {
			return 0, fmt.Errorf("failed to copy %s: %w", f.name, err)
		}
		slog.Info("Single page", "file", f.name, "page", dst)
		next++
	}

	if len(skipped) > 0 {
		// unreadable sources stay in temp/ for inspection
		for _, f := range files {
			if !slices.Contains(skipped, f.name) {
				os.Remove(filepath.Join(tempDir, f.name))
			}
		}
		slog.Warn("Unreadable images left in temp directory", "dir", tempDir, "files", skipped)
	} else if err := os.RemoveAll(tempDir); err != nil {
		return 0, fmt.Errorf("failed to remove temp directory: %w", err)
	}

	total := next - 1
	slog.Info("Split complete", "pages", total)
	return total, nil
}

// SplitTempPages splits every page-temp-{n} image in dir into two pages
// numbered after the highest existing page-{n}. Each temp image is removed
// once split. It returns the highest page number now present.
func (s *Splitter) SplitTempPages(ctx context.Context, dir string) (int, error) {
	temps, err := scan(dir, tempPagePattern)
	if err != nil {
		return 0, err
	}
	existing, err := scan(dir, pagePattern)
	if err != nil {
		return 0, err
	}

	highest := 0
	if len(existing) > 0 {
		highest = existing[len(existing)-1].number
	}
	slog.Info("Found images to split", "count", len(temps), "highest_existing", highest)
	if len(temps) == 0 {
		return highest, nil
	}
	ext := temps[0].ext

	next := highest + 1
	for _, f := range temps {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		src := filepath.Join(dir, f.name)
		width, height, err := Dimensions(src)
		if err != nil {
			slog.Warn("Could not read dimensions, skipping", "file", f.name, "err", err)
			continue
		}

		left := assets.PageFilename(next, ext)
		right := assets.PageFilename(next+1, ext)
		if err := s.split(ctx, src, filepath.Join(dir, left), filepath.Join(dir, right), width, height); err != nil {
			return 0, fmt.Errorf("failed to split %s: %w", f.name, err)
		}
		if err := os.Remove(src); err != nil {
			return 0, fmt.Errorf("failed to remove %s: %w", f.name, err)
		}
		slog.Info("Split page", "file", f.name, "width", width, "height", height, "left", left, "right", right)
		next += 2
	}

	total := next - 1
	slog.Info("Split complete", "pages", total)
	return total, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
