package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lehigh-university-libraries/flipbook/internal/models"
	"gopkg.in/yaml.v3"
)

// Load reads a catalog file (YAML or JSON, detected by extension)
func Load(path string) (*Catalog, error) {
	books, err := readBooks(path)
	if err != nil {
		return nil, err
	}

	c, err := New(books)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}

	slog.Debug("Catalog loaded", "path", path, "books", c.Len())
	return c, nil
}

func readBooks(path string) ([]models.BookDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var books []models.BookDescriptor
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &books); err != nil {
			return nil, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &books); err != nil {
			return nil, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s (supported: .yaml, .yml, .json)", ext)
	}

	return books, nil
}

// SetPageCount rewrites the page count of one book in a catalog file,
// keeping the file's format
func SetPageCount(path, slug string, pageCount int) error {
	books, err := readBooks(path)
	if err != nil {
		return err
	}

	found := false
	for i := range books {
		if books[i].Slug == slug {
			books[i].PageCount = pageCount
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	// Validate before touching the file on disk
	if _, err := New(books); err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(books, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(books)
	}
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	slog.Info("Catalog updated", "path", path, "slug", slug, "page_count", pageCount)
	return nil
}
