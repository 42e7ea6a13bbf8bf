package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lehigh-university-libraries/flipbook/internal/assets"
	"github.com/lehigh-university-libraries/flipbook/internal/catalog"
	"github.com/lehigh-university-libraries/flipbook/internal/session"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

type sessionResponse struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Snapshot  viewer.Snapshot  `json:"snapshot"`
	Effects   []session.Effect `json:"effects,omitempty"`
}

type sessionSummary struct {
	ID        string    `json:"id"`
	Book      string    `json:"book"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	list := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, sessionSummary{
			ID:        s.ID,
			Book:      s.Viewer().Book().Slug,
			CreatedAt: s.CreatedAt,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	h.writeJSON(w, list)
}

// HandleCreateSession mounts a viewer for the requesting browser
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var client session.ClientInfo
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	book, err := h.catalog.FindBook(client.Slug)
	if errors.Is(err, catalog.ErrNotFound) {
		h.writeError(w, "Book not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeError(w, "Failed to look up book: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sess, res, err := session.New(book, h.resolver.ResolvePages(book), client, session.Options{
		DownloadMode:     h.downloadMode,
		PDFURL:           h.resolver.BookPDFURL(book),
		DownloadFilename: assets.DownloadFilename(book.Slug),
		Prober:           h.prober,
		Scheduler:        h.scheduler,
	})
	if err != nil {
		h.writeError(w, "Failed to create session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.sessionStore.Set(sess.ID, sess)

	h.writeJSONStatus(w, http.StatusCreated, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Snapshot:  res.Snapshot,
		Effects:   res.Effects,
	})
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.writeJSON(w, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Snapshot:  sess.Snapshot(),
	})
}

// HandleDeleteSession unmounts the viewer and returns the effects that
// restore the page
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionStore.Take(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	effects := sess.Close()
	h.writeJSON(w, sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Snapshot:  sess.Snapshot(),
		Effects:   effects,
	})
}

func (h *Handler) HandleSessionEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var ev session.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	// budget is per session so readers behind one address do not share it
	if !ev.Continuous() && h.eventLimiter != nil && h.eventLimiter.OnLimit(w, r, sess.ID) {
		h.writeError(w, "Too many events", http.StatusTooManyRequests)
		return
	}

	res, err := sess.Dispatch(r.Context(), ev)
	switch {
	case errors.Is(err, session.ErrUnknownEvent):
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, session.ErrClosed):
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("Failed to dispatch event", "session", sess.ID, "type", ev.Type, "err", err)
		h.writeError(w, "Failed to dispatch event", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, res)
}
