package catalog

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

// ErrNotFound is returned when no book matches the requested slug
var ErrNotFound = errors.New("catalog: book not found")

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Catalog is the read-only, ordered collection of books served by the viewer
type Catalog struct {
	books  []models.BookDescriptor
	bySlug map[string]int
}

// New validates the descriptors and builds a catalog preserving their order
func New(books []models.BookDescriptor) (*Catalog, error) {
	c := &Catalog{
		books:  make([]models.BookDescriptor, 0, len(books)),
		bySlug: make(map[string]int, len(books)),
	}

	for i, book := range books {
		if err := validate(book); err != nil {
			return nil, fmt.Errorf("invalid book at position %d: %w", i, err)
		}
		if _, exists := c.bySlug[book.Slug]; exists {
			return nil, fmt.Errorf("duplicate slug %q at position %d", book.Slug, i)
		}
		c.bySlug[book.Slug] = len(c.books)
		c.books = append(c.books, book)
	}

	return c, nil
}

func validate(book models.BookDescriptor) error {
	if !slugPattern.MatchString(book.Slug) {
		return fmt.Errorf("slug %q is not URL-safe", book.Slug)
	}
	if book.PageCount < 1 {
		return fmt.Errorf("book %q: pageCount must be positive, got %d", book.Slug, book.PageCount)
	}
	return nil
}

// FindBook looks up a book by slug. Unknown slugs return ErrNotFound and a
// zero descriptor.
func (c *Catalog) FindBook(slug string) (models.BookDescriptor, error) {
	idx, ok := c.bySlug[slug]
	if !ok {
		return models.BookDescriptor{}, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return c.books[idx], nil
}

// Books returns a copy of all books in catalog order
func (c *Catalog) Books() []models.BookDescriptor {
	out := make([]models.BookDescriptor, len(c.books))
	copy(out, c.books)
	return out
}

// First returns the first book of the catalog, used as the home page book
func (c *Catalog) First() (models.BookDescriptor, bool) {
	if len(c.books) == 0 {
		return models.BookDescriptor{}, false
	}
	return c.books[0], true
}

// Len returns the number of books
func (c *Catalog) Len() int {
	return len(c.books)
}
