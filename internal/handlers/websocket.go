package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lehigh-university-libraries/flipbook/internal/session"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

const (
	socketWriteWait    = 10 * time.Second
	socketPingInterval = 30 * time.Second
)

type socketMessage struct {
	Type     string           `json:"type"`
	Snapshot *viewer.Snapshot `json:"snapshot,omitempty"`
	Result   *session.Result  `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// HandleSessionSocket streams snapshots of a session as they change. The
// socket also accepts events, answered with a result message.
func (h *Handler) HandleSessionSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "session", sess.ID, "err", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	var writeMu sync.Mutex
	write := func(msg socketMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(socketWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(msg)
	}

	snap := sess.Snapshot()
	if err := write(socketMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		slog.Debug("Unable to write initial snapshot", "session", sess.ID, "err", err)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev session.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("WebSocket error", "session", sess.ID, "err", err)
				}
				return
			}

			res, err := sess.Dispatch(r.Context(), ev)
			if errors.Is(err, session.ErrClosed) {
				return
			}
			msg := socketMessage{Type: "result", Result: &res}
			if err != nil {
				msg = socketMessage{Type: "error", Error: err.Error()}
			}
			if err := write(msg); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case snap, ok := <-updates:
			if !ok {
				writeMu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(socketWriteWait))
				writeMu.Unlock()
				return
			}
			if err := write(socketMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		case <-ticker.C:
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
