package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

type bookSummary struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	PageCount int    `json:"pageCount"`
	URL       string `json:"url"`
}

type bookDetail struct {
	models.BookDescriptor
	Pages            []models.PageRef     `json:"pages"`
	PDFURL           string               `json:"pdf_url"`
	DownloadFilename string               `json:"download_filename"`
	DownloadMode     viewer.DownloadMode  `json:"download_mode"`
	Engine           viewer.EngineOptions `json:"engine"`
}

func (h *Handler) describe(book models.BookDescriptor) bookDetail {
	return bookDetail{
		BookDescriptor:   book,
		Pages:            h.resolver.ResolvePages(book),
		PDFURL:           h.resolver.BookPDFURL(book),
		DownloadFilename: assets.DownloadFilename(book.Slug),
		DownloadMode:     h.downloadMode,
		Engine:           viewer.DefaultEngineOptions(),
	}
}

// HandleHome shows the first book of the catalog
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	book, ok := h.catalog.First()
	if !ok {
		h.renderNotFound(w)
		return
	}
	h.renderViewer(w, book)
}

func (h *Handler) HandleBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.catalog.FindBook(chi.URLParam(r, "slug"))
	if err != nil {
		h.renderNotFound(w)
		return
	}
	h.renderViewer(w, book)
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	books := h.catalog.Books()
	list := make([]bookSummary, 0, len(books))
	for _, b := range books {
		list = append(list, bookSummary{
			Slug:      b.Slug,
			Title:     b.Title,
			PageCount: b.PageCount,
			URL:       "/book/" + b.Slug,
		})
	}
	h.writeJSON(w, list)
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.catalog.FindBook(chi.URLParam(r, "slug"))
	if errors.Is(err, catalog.ErrNotFound) {
		h.writeError(w, "Book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to look up book: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, h.describe(book))
}

type viewerPage struct {
	Title  string
	Detail bookDetail
}

func (h *Handler) renderViewer(w http.ResponseWriter, book models.BookDescriptor) {
	page := viewerPage{
		Title:  book.Title,
		Detail: h.describe(book),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "viewer.html", page); err != nil {
		slog.Error("Unable to render viewer", "book", book.Slug, "err", err)
	}
}

func (h *Handler) renderNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := h.templates.ExecuteTemplate(w, "not_found.html", nil); err != nil {
		slog.Error("Unable to render not found page", "err", err)
	}
}
