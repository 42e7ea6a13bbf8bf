package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandleAsset serves page images and PDFs from the books directory
func (h *Handler) HandleAsset(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	rest := chi.URLParam(r, "*")

	// Prevent directory traversal attacks: the file must stay inside the
	// book's own directory
	bookDir := filepath.Join(h.booksDir, slug)
	fullPath := filepath.Join(bookDir, filepath.FromSlash(rest))
	if slug == "" || rest == "" || !within(h.booksDir, bookDir) || !within(bookDir, fullPath) {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	if strings.HasSuffix(fullPath, ".pdf") {
		w.Header().Set("Content-Type", "application/pdf")
	}
	http.ServeFile(w, r, fullPath)
}

// within reports whether target lies strictly below root
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
