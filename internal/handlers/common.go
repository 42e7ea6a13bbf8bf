package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/download"
	"github.com/lehigh-university-libraries/flipbook/internal/session"
	"github.com/lehigh-university-libraries/flipbook/internal/storage"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

// Config wires the handler to its catalog, assets and session policy
type Config struct {
	Catalog  *catalog.Catalog
	Resolver *assets.Resolver
	Sessions *storage.SessionStore
	// BooksDir holds one directory per slug with page images and the PDF
	BooksDir     string
	Prober       download.Prober
	DownloadMode viewer.DownloadMode
	// Scheduler drives the idle timers of server-side viewers; nil uses
	// real timers
	Scheduler viewer.Scheduler
	// EventsPerMinute limits discrete event posts (buttons, keys, page
	// changes) per session. Pointer movement and resizes are not counted.
	// Zero disables it.
	EventsPerMinute int
	// SessionsPerMinute limits session creation per client IP; zero
	// disables it
	SessionsPerMinute int
}

type Handler struct {
	catalog      *catalog.Catalog
	resolver     *assets.Resolver
	sessionStore *storage.SessionStore
	booksDir     string
	prober       download.Prober
	downloadMode viewer.DownloadMode
	scheduler    viewer.Scheduler
	eventLimiter *httprate.RateLimiter
	sessionsPerM int
	templates    *template.Template
	upgrader     websocket.Upgrader
}

func New(cfg Config) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	sessions := cfg.Sessions
	if sessions == nil {
		sessions = storage.New(storage.DefaultTTL, storage.DefaultCleanupInterval)
	}
	prober := cfg.Prober
	if prober == nil {
		prober = &download.FileProber{Root: cfg.BooksDir}
	}
	mode := cfg.DownloadMode
	if mode == "" {
		mode = viewer.DownloadConfirm
	}

	var eventLimiter *httprate.RateLimiter
	if cfg.EventsPerMinute > 0 {
		eventLimiter = httprate.NewRateLimiter(cfg.EventsPerMinute, time.Minute)
	}

	return &Handler{
		catalog:      cfg.Catalog,
		resolver:     cfg.Resolver,
		sessionStore: sessions,
		booksDir:     cfg.BooksDir,
		prober:       prober,
		downloadMode: mode,
		scheduler:    cfg.Scheduler,
		eventLimiter: eventLimiter,
		sessionsPerM: cfg.SessionsPerMinute,
		templates:    tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

// Sessions exposes the store so the server can flush it on shutdown
func (h *Handler) Sessions() *storage.SessionStore {
	return h.sessionStore
}

type errorResponse struct {
	Error string `json:"error"`
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "status", code)
	}
	h.writeJSONStatus(w, code, errorResponse{Error: message})
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
