// Package viewer holds the state model of a mounted flipbook: page
// position, idle-driven controls visibility, fullscreen handling, keyboard
// bindings and the download flow. Rendering and the browser are reached
// through the collaborator interfaces injected at mount.
package viewer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/flipbook/internal/download"
	"github.com/lehigh-university-libraries/flipbook/internal/models"
)

const (
	// IdleDelay is how long the pointer must rest before controls hide
	IdleDelay = 2000 * time.Millisecond
	// HapticPulse is the vibration length on button activation
	HapticPulse = 10 * time.Millisecond
)

// Haptics vibrates the device. A nil Haptics means unsupported.
type Haptics interface {
	Vibrate(d time.Duration) error
}

// Config is the per-mount environment of a viewer
type Config struct {
	Viewport         models.ViewportSize
	UserAgent        string
	DownloadMode     DownloadMode
	PDFURL           string
	DownloadFilename string
	// IdleDelay overrides the controls hide delay; zero uses IdleDelay
	IdleDelay time.Duration
}

// Deps are the collaborators a viewer drives. Engine is required.
type Deps struct {
	Engine       FlipEngine
	Platform     FullscreenPlatform
	Presentation Presentation
	Haptics      Haptics
	Anchor       Anchor
	Prober       download.Prober
	Scheduler    Scheduler
	// OnChange is called outside the viewer lock after every committed
	// state change
	OnChange func(Snapshot)
}

// Snapshot is a consistent copy of everything the controls render from
type Snapshot struct {
	Book           models.BookDescriptor      `json:"book"`
	State          models.ViewerState         `json:"state"`
	Dialog         models.DownloadDialogState `json:"dialog"`
	PrevEnabled    bool                       `json:"prev_enabled"`
	NextEnabled    bool                       `json:"next_enabled"`
	PageLabel      string                     `json:"page_label"`
	FullscreenMode FullscreenMode             `json:"fullscreen_mode"`
	Closed         bool                       `json:"closed,omitempty"`
}

// Viewer is one mounted book. Every event method takes the viewer lock and
// runs to completion before the next event is processed.
type Viewer struct {
	book  models.BookDescriptor
	pages []models.PageRef
	cfg   Config
	deps  Deps

	mu          sync.Mutex
	state       models.ViewerState
	dialog      models.DownloadDialogState
	userAgent   string
	idle        idleTimer
	pinned      bool
	fullscreen  fullscreenStrategy
	unsubscribe func()
	closed      bool
	closeOnce   sync.Once
}

// Mount creates the viewer state for a book and attaches it to its
// collaborators
func Mount(book models.BookDescriptor, pages []models.PageRef, cfg Config, deps Deps) (*Viewer, error) {
	if book.PageCount < 1 {
		return nil, fmt.Errorf("book %q has no pages", book.Slug)
	}
	if len(pages) != book.PageCount {
		return nil, fmt.Errorf("book %q has %d pages but %d page refs", book.Slug, book.PageCount, len(pages))
	}
	if deps.Engine == nil {
		return nil, errors.New("viewer requires a flip engine")
	}
	if deps.Presentation == nil {
		deps.Presentation = nopPresentation{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = TimerScheduler{}
	}
	if cfg.DownloadMode == "" {
		cfg.DownloadMode = DownloadConfirm
	}
	delay := cfg.IdleDelay
	if delay <= 0 {
		delay = IdleDelay
	}

	env := Classify(cfg.Viewport, cfg.UserAgent)
	v := &Viewer{
		book:  book,
		pages: pages,
		cfg:   cfg,
		deps:  deps,
		state: models.ViewerState{
			ControlsVisible: true,
			IsMobileDevice:  env.Mobile,
			IsIOSDevice:     env.IOS,
			ViewportSize:    cfg.Viewport,
		},
		userAgent:  cfg.UserAgent,
		idle:       idleTimer{sched: deps.Scheduler, delay: delay},
		pinned:     env.Mobile,
		fullscreen: selectFullscreen(env, deps.Platform, deps.Presentation),
	}

	deps.Presentation.SetScrollLocked(true)
	v.unsubscribe = deps.Engine.OnPageChanged(v.PageChanged)

	slog.Debug("Viewer mounted",
		"book", book.Slug,
		"pages", book.PageCount,
		"mobile", env.Mobile,
		"ios", env.IOS,
		"fullscreen", v.fullscreen.mode())
	return v, nil
}

// Close releases everything Mount attached. It is safe to call more than
// once and from any goroutine.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() {
		v.mu.Lock()
		v.closed = true
		v.idle.stop()
		if err := v.fullscreen.exit(); err != nil {
			slog.Warn("Failed to leave fullscreen on close", "book", v.book.Slug, "err", err)
		}
		v.deps.Presentation.SetScrollLocked(false)
		unsubscribe := v.unsubscribe
		v.unsubscribe = nil
		v.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		slog.Debug("Viewer closed", "book", v.book.Slug)
		v.notify()
	})
}

// Book returns the mounted book
func (v *Viewer) Book() models.BookDescriptor { return v.book }

// Pages returns a copy of the resolved page list
func (v *Viewer) Pages() []models.PageRef {
	out := make([]models.PageRef, len(v.pages))
	copy(out, v.pages)
	return out
}

// State returns a copy of the current viewer state
func (v *Viewer) State() models.ViewerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Dialog returns a copy of the download dialog state
func (v *Viewer) Dialog() models.DownloadDialogState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dialog
}

func (v *Viewer) PrevEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canPrev()
}

func (v *Viewer) NextEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canNext()
}

// PageLabel renders the one-based position, e.g. "Page 3 / 12"
func (v *Viewer) PageLabel() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pageLabel()
}

// Snapshot returns the full render state under one lock
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot()
}

// Resize records a new viewport and re-evaluates the device class. A
// mobile class pins the controls visible and stops the idle timer.
func (v *Viewer) Resize(width, height int) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	size := models.ViewportSize{Width: width, Height: height}
	env := Classify(size, v.userAgent)
	v.state.ViewportSize = size
	v.state.IsMobileDevice = env.Mobile
	v.state.IsIOSDevice = env.IOS
	if env.Mobile {
		v.pinned = true
		v.idle.stop()
		v.state.ControlsVisible = true
	} else {
		v.pinned = false
	}
	v.mu.Unlock()
	v.notify()
}

// PointerMoved shows the controls and restarts the hide countdown
func (v *Viewer) PointerMoved() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.state.ControlsVisible = true
	if !v.pinned {
		v.idle.schedule(v.hideControls)
	}
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) hideControls(gen uint64) {
	v.mu.Lock()
	if v.closed || v.pinned || !v.idle.fired(gen) {
		v.mu.Unlock()
		return
	}
	v.state.ControlsVisible = false
	v.mu.Unlock()
	v.notify()
}

// IdlePending reports whether a hide countdown is running
func (v *Viewer) IdlePending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.idle.pending()
}

// Key applies the keyboard bindings
func (v *Viewer) Key(ev KeyEvent) KeyResult {
	switch bindKey(ev) {
	case keyPrevious:
		return KeyResult{Handled: v.flip(false, false)}
	case keyNext:
		return KeyResult{Handled: v.flip(true, false)}
	case keyToggleFullscreen:
		v.toggleFullscreen(false)
		return KeyResult{Handled: true, PreventDefault: true}
	case keyExitFullscreen:
		return KeyResult{Handled: v.exitFullscreen()}
	}
	return KeyResult{}
}

// PressPrevious is the previous-page button
func (v *Viewer) PressPrevious() bool { return v.flip(false, true) }

// PressNext is the next-page button
func (v *Viewer) PressNext() bool { return v.flip(true, true) }

// PressFullscreen is the fullscreen toggle button
func (v *Viewer) PressFullscreen() { v.toggleFullscreen(true) }

// flip issues the engine command when the boundary allows it. The engine
// is called after the lock is released; the index only moves when the
// engine reports the page change.
func (v *Viewer) flip(forward, button bool) bool {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return false
	}
	ok := v.canPrev()
	if forward {
		ok = v.canNext()
	}
	if ok && button {
		v.vibrate()
	}
	v.mu.Unlock()

	if !ok {
		return false
	}
	if forward {
		v.deps.Engine.FlipNext()
	} else {
		v.deps.Engine.FlipPrevious()
	}
	return true
}

// PageChanged commits a page index reported by the flip engine
func (v *Viewer) PageChanged(index int) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if index < 0 || index >= v.book.PageCount {
		v.mu.Unlock()
		slog.Warn("Ignoring out of range page change", "book", v.book.Slug, "index", index, "pages", v.book.PageCount)
		return
	}
	v.state.CurrentPageIndex = index
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) toggleFullscreen(button bool) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if button {
		v.vibrate()
	}
	var err error
	if v.fullscreen.active() {
		err = v.fullscreen.exit()
	} else {
		err = v.fullscreen.enter()
	}
	if err != nil {
		slog.Warn("Error attempting to toggle fullscreen", "book", v.book.Slug, "mode", v.fullscreen.mode(), "err", err)
	}
	v.syncFullscreen()
	v.mu.Unlock()
	v.notify()
}

func (v *Viewer) exitFullscreen() bool {
	v.mu.Lock()
	if v.closed || !v.state.IsFullscreen {
		v.mu.Unlock()
		return false
	}
	if err := v.fullscreen.exit(); err != nil {
		slog.Warn("Error attempting to exit fullscreen", "book", v.book.Slug, "err", err)
	}
	v.syncFullscreen()
	v.mu.Unlock()
	v.notify()
	return true
}

// syncFullscreen copies the strategy's source of truth into the state.
// Native mode only moves on platform notifications. must hold v.mu
func (v *Viewer) syncFullscreen() {
	if v.fullscreen.mode() == FullscreenEmulated {
		v.state.IsFullscreen = v.fullscreen.active()
	}
}

// FullscreenChanged is the platform's fullscreen change notification
func (v *Viewer) FullscreenChanged() {
	v.mu.Lock()
	if v.closed || v.fullscreen.mode() != FullscreenNative {
		v.mu.Unlock()
		return
	}
	v.state.IsFullscreen = v.fullscreen.active()
	v.mu.Unlock()
	v.notify()
}

// FullscreenFailed records a platform rejection reported asynchronously.
// The state keeps whatever the platform last reported.
func (v *Viewer) FullscreenFailed(err error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	slog.Warn("Error attempting to enable fullscreen", "book", v.book.Slug, "err", fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err))
	if v.fullscreen.mode() == FullscreenNative {
		v.state.IsFullscreen = v.fullscreen.active()
	}
	v.mu.Unlock()
	v.notify()
}

// must hold v.mu
func (v *Viewer) vibrate() {
	if v.deps.Haptics == nil {
		return
	}
	if err := v.deps.Haptics.Vibrate(HapticPulse); err != nil {
		slog.Debug("Haptic feedback unavailable", "err", err)
	}
}

func (v *Viewer) canPrev() bool { return v.state.CurrentPageIndex > 0 }

func (v *Viewer) canNext() bool { return v.state.CurrentPageIndex < v.book.PageCount-1 }

func (v *Viewer) pageLabel() string {
	return fmt.Sprintf("Page %d / %d", v.state.CurrentPageIndex+1, v.book.PageCount)
}

func (v *Viewer) snapshot() Snapshot {
	return Snapshot{
		Book:           v.book,
		State:          v.state,
		Dialog:         v.dialog,
		PrevEnabled:    v.canPrev(),
		NextEnabled:    v.canNext(),
		PageLabel:      v.pageLabel(),
		FullscreenMode: v.fullscreen.mode(),
		Closed:         v.closed,
	}
}

func (v *Viewer) notify() {
	if v.deps.OnChange == nil {
		return
	}
	v.deps.OnChange(v.Snapshot())
}

type nopPresentation struct{}

func (nopPresentation) SetMaximized(bool)    {}
func (nopPresentation) ScrollToTop()         {}
func (nopPresentation) SetScrollLocked(bool) {}
