package assets

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

const (
	// DefaultImageExt matches the output of the convert command
	DefaultImageExt = "jpg"
	// DefaultPDFName is the PDF filename inside a book directory
	DefaultPDFName = "book.pdf"
	// PriorityPages is the number of leading pages loaded eagerly
	PriorityPages = 2

	defaultCacheSize = 128
)

var pageFilePattern = regexp.MustCompile(`^page-(\d+)\.([A-Za-z0-9]+)$`)

// Options configures a Resolver
type Options struct {
	// ImageExt is the page image extension without the dot (jpg, webp)
	ImageExt string
	// BaseURL prefixes every asset URL, e.g. a CDN origin. Empty means
	// site-relative URLs.
	BaseURL string
	// CacheSize bounds the number of resolved page lists kept in memory
	CacheSize int
}

// Resolver maps books to page image and PDF URLs by naming convention
type Resolver struct {
	ext     string
	baseURL string
	cache   *lru.ARCCache
}

// NewResolver creates a resolver, applying defaults for empty options
func NewResolver(opts Options) (*Resolver, error) {
	ext := strings.TrimPrefix(strings.ToLower(opts.ImageExt), ".")
	if ext == "" {
		ext = DefaultImageExt
	}
	switch ext {
	case "jpg", "jpeg", "webp", "png":
	default:
		return nil, fmt.Errorf("unsupported image extension: %s", ext)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	return &Resolver{
		ext:     ext,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		cache:   cache,
	}, nil
}

// ImageExt returns the configured page image extension
func (r *Resolver) ImageExt() string {
	return r.ext
}

// ResolvePages expands a book into its ordered page references
func (r *Resolver) ResolvePages(book models.BookDescriptor) []models.PageRef {
	key := book.Slug + ":" + strconv.Itoa(book.PageCount)
	if cached, ok := r.cache.Get(key); ok {
		return clonePages(cached.([]models.PageRef))
	}

	count := book.PageCount
	if count < 0 {
		count = 0
	}
	pages := make([]models.PageRef, count)
	for i := range pages {
		pages[i] = models.PageRef{
			Index:          i,
			ImageURL:       r.PageURL(book.Slug, i),
			IsPriorityLoad: i < PriorityPages,
		}
	}

	r.cache.Add(key, pages)
	return clonePages(pages)
}

// PageURL returns the image URL of the 0-based page index
func (r *Resolver) PageURL(slug string, index int) string {
	return r.baseURL + BookPath(slug) + "/" + PageFilename(index+1, r.ext)
}

// ResolvePDFURL returns the URL of a book's PDF using the default filename
func (r *Resolver) ResolvePDFURL(slug string) string {
	return r.baseURL + BookPath(slug) + "/" + DefaultPDFName
}

// BookPDFURL returns the PDF URL honoring a descriptor-specific filename
func (r *Resolver) BookPDFURL(book models.BookDescriptor) string {
	return r.baseURL + BookPath(book.Slug) + "/" + url.PathEscape(PDFFilename(book))
}

// BookPath is the site path of a book's asset directory
func BookPath(slug string) string {
	return "/books/" + url.PathEscape(slug)
}

// PageFilename is the on-disk name of a 1-based page number
func PageFilename(number int, ext string) string {
	return fmt.Sprintf("page-%d.%s", number, strings.TrimPrefix(ext, "."))
}

// ParsePageFilename extracts the page number and extension from a
// page-{n}.{ext} filename
func ParsePageFilename(name string) (int, string, bool) {
	m := pageFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, strings.ToLower(m[2]), true
}

// PDFFilename is the on-disk name of a book's PDF
func PDFFilename(book models.BookDescriptor) string {
	if book.PDF != "" {
		return book.PDF
	}
	return DefaultPDFName
}

// DownloadFilename is the filename offered to the browser when saving the PDF
func DownloadFilename(slug string) string {
	return slug + ".pdf"
}

func clonePages(pages []models.PageRef) []models.PageRef {
	out := make([]models.PageRef, len(pages))
	copy(out, pages)
	return out
}
