package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

// BookReport is the result of checking one book directory against its
// catalog entry. Missing and Malformed hold 1-based page numbers.
type BookReport struct {
	Slug      string `json:"slug"`
	PageCount int    `json:"page_count"`
	Missing   []int  `json:"missing,omitempty"`
	Malformed []int  `json:"malformed,omitempty"`
	PDF       string `json:"pdf"`
	PDFPages  int    `json:"pdf_pages,omitempty"`
	PDFError  string `json:"pdf_error,omitempty"`
}

// OK reports whether every page image exists and decodes. A missing or
// unreadable PDF only disables the download and is not a failure.
func (r BookReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Malformed) == 0
}

// CheckBook verifies that page-1 .. page-N exist under booksDir/slug with
// the given extension and that their headers decode. The PDF page count is
// read when the PDF is present.
func CheckBook(booksDir, ext string, book models.BookDescriptor) BookReport {
	if ext == "" {
		ext = DefaultImageExt
	}
	dir := filepath.Join(booksDir, book.Slug)
	report := BookReport{
		Slug:      book.Slug,
		PageCount: book.PageCount,
		PDF:       filepath.Join(dir, PDFFilename(book)),
	}

	for n := 1; n <= book.PageCount; n++ {
		err := decodeHeader(filepath.Join(dir, PageFilename(n, ext)))
		switch {
		case os.IsNotExist(err):
			report.Missing = append(report.Missing, n)
		case err != nil:
			report.Malformed = append(report.Malformed, n)
		}
	}

	pages, err := api.PageCountFile(report.PDF)
	if err != nil {
		report.PDFError = err.Error()
	} else {
		report.PDFPages = pages
	}
	return report
}

func decodeHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
