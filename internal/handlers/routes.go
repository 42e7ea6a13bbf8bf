package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// Routes builds the router for the viewer pages, book assets and the
// session API
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.HandleHome)
	r.Get("/book/{slug}", h.HandleBook)
	r.Get("/books/{slug}/*", h.HandleAsset)
	r.Head("/books/{slug}/*", h.HandleAsset)
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/books", h.HandleListBooks)
		r.Get("/books/{slug}", h.HandleGetBook)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.HandleListSessions)
			create := r
			if h.sessionsPerM > 0 {
				create = r.With(httprate.LimitByIP(h.sessionsPerM, time.Minute))
			}
			create.Post("/", h.HandleCreateSession)
			r.Get("/{id}", h.HandleGetSession)
			r.Delete("/{id}", h.HandleDeleteSession)
			r.Post("/{id}/events", h.HandleSessionEvent)
		})
	})

	r.Get("/ws/sessions/{id}", h.HandleSessionSocket)
	r.NotFound(h.HandleNotFound)

	return r
}

// HandleNotFound answers JSON for API paths and the not-found page
// otherwise
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}
	h.renderNotFound(w)
}
