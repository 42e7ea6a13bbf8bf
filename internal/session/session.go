// Package session runs viewers on the server for browser clients. The
// browser reports input as events and applies the returned effects.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/flipbook/internal/download"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
	"github.com/lehigh-university-libraries/flipbook/internal/viewer"
)

var (
	// ErrUnknownEvent is returned for an event type the viewer does not handle
	ErrUnknownEvent = errors.New("session: unknown event type")
	// ErrClosed is returned for events sent to a closed session
	ErrClosed = errors.New("session: closed")
)

// ClientInfo describes the browser opening a session
type ClientInfo struct {
	Slug                string `json:"slug"`
	Width               int    `json:"width"`
	Height              int    `json:"height"`
	UserAgent           string `json:"user_agent"`
	FullscreenSupported bool   `json:"fullscreen_supported"`
	HapticsSupported    bool   `json:"haptics_supported"`
}

// Options are the server-side settings applied to every session
type Options struct {
	DownloadMode     viewer.DownloadMode
	PDFURL           string
	DownloadFilename string
	Prober           download.Prober
	Scheduler        viewer.Scheduler
	IdleDelay        time.Duration
}

// Session is one browser viewing one book
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	viewer   *viewer.Viewer
	engine   *remoteEngine
	platform *remotePlatform
	out      *outbox

	mu      sync.Mutex
	subs    map[int]chan viewer.Snapshot
	nextSub int
	closed  bool
}

// Result is the reply to an event: the state after the event and the
// effects it produced
type Result struct {
	Snapshot viewer.Snapshot   `json:"snapshot"`
	Effects  []Effect          `json:"effects"`
	Key      *viewer.KeyResult `json:"key,omitempty"`
}

// New mounts a viewer for the book with remote collaborators
func New(book models.BookDescriptor, pages []models.PageRef, client ClientInfo, opts Options) (*Session, Result, error) {
	out := &outbox{}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		engine:    &remoteEngine{out: out},
		platform:  &remotePlatform{out: out, supported: client.FullscreenSupported},
		out:       out,
		subs:      make(map[int]chan viewer.Snapshot),
	}

	deps := viewer.Deps{
		Engine:       s.engine,
		Platform:     s.platform,
		Presentation: remotePresentation{out: out},
		Anchor:       remoteAnchor{out: out},
		Prober:       opts.Prober,
		Scheduler:    opts.Scheduler,
		OnChange:     s.publish,
	}
	if client.HapticsSupported {
		deps.Haptics = remoteHaptics{out: out}
	}

	v, err := viewer.Mount(book, pages, viewer.Config{
		Viewport:         models.ViewportSize{Width: client.Width, Height: client.Height},
		UserAgent:        client.UserAgent,
		DownloadMode:     opts.DownloadMode,
		PDFURL:           opts.PDFURL,
		DownloadFilename: opts.DownloadFilename,
		IdleDelay:        opts.IdleDelay,
	}, deps)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to mount viewer: %w", err)
	}
	s.viewer = v

	slog.Info("Session created", "session", s.ID, "book", book.Slug)
	return s, Result{Snapshot: v.Snapshot(), Effects: out.drain()}, nil
}

// Viewer returns the mounted viewer
func (s *Session) Viewer() *viewer.Viewer { return s.viewer }

// Snapshot returns the current render state
func (s *Session) Snapshot() viewer.Snapshot { return s.viewer.Snapshot() }

// Event is an input reported by the browser
type Event struct {
	Type   string `json:"type"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Key    string `json:"key,omitempty"`
	Ctrl   bool   `json:"ctrl,omitempty"`
	Meta   bool   `json:"meta,omitempty"`
	Index  int    `json:"index,omitempty"`
	Active bool   `json:"active,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Continuous reports whether the event belongs to a high-frequency stream
// the browser sends while the pointer moves or the window is dragged
func (e Event) Continuous() bool {
	return e.Type == "pointerMove" || e.Type == "resize"
}

// Dispatch applies one event to the viewer
func (s *Session) Dispatch(ctx context.Context, ev Event) (Result, error) {
	if s.isClosed() {
		return Result{}, ErrClosed
	}

	var res Result
	switch ev.Type {
	case "resize":
		s.viewer.Resize(ev.Width, ev.Height)
	case "pointerMove":
		s.viewer.PointerMoved()
	case "key":
		kr := s.viewer.Key(viewer.KeyEvent{Key: ev.Key, Ctrl: ev.Ctrl, Meta: ev.Meta})
		res.Key = &kr
	case "pageChanged":
		s.engine.emit(ev.Index)
	case "fullscreenChange":
		s.platform.report(ev.Active)
		s.viewer.FullscreenChanged()
	case "fullscreenError":
		s.platform.report(false)
		s.viewer.FullscreenFailed(errors.New(ev.Error))
	case "previous":
		s.viewer.PressPrevious()
	case "next":
		s.viewer.PressNext()
	case "fullscreen":
		s.viewer.PressFullscreen()
	case "download":
		s.viewer.PressDownload(ctx)
	case "confirmDownload":
		s.viewer.ConfirmDownload()
	case "cancelDownload":
		s.viewer.CancelDownload()
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	res.Snapshot = s.viewer.Snapshot()
	res.Effects = s.out.drain()
	return res, nil
}

// Subscribe streams snapshots after every state change, including the
// ones caused by timers. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan viewer.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan viewer.Snapshot, 16)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) publish(snap viewer.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			slog.Debug("Dropping snapshot for slow subscriber", "session", s.ID, "subscriber", id)
		}
	}
}

// Close unmounts the viewer and ends every subscription. It returns the
// effects that restore the page.
func (s *Session) Close() []Effect {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return []Effect{}
	}
	s.closed = true
	s.mu.Unlock()

	s.viewer.Close()

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	slog.Info("Session closed", "session", s.ID, "book", s.viewer.Book().Slug)
	return s.out.drain()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
