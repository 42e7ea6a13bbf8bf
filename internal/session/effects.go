package session

import (
	"sync"
	"time"
)

// EffectType names an action the browser must perform for the viewer
type EffectType string

const (
	EffectFlipNext          EffectType = "flipNext"
	EffectFlipPrevious      EffectType = "flipPrevious"
	EffectRequestFullscreen EffectType = "requestFullscreen"
	EffectExitFullscreen    EffectType = "exitFullscreen"
	EffectSetMaximized      EffectType = "setMaximized"
	EffectScrollToTop       EffectType = "scrollToTop"
	EffectScrollLock        EffectType = "scrollLock"
	EffectVibrate           EffectType = "vibrate"
	EffectDownload          EffectType = "download"
)

// Effect is one queued client action
type Effect struct {
	Type       EffectType `json:"type"`
	On         *bool      `json:"on,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
	URL        string     `json:"url,omitempty"`
	Filename   string     `json:"filename,omitempty"`
}

type outbox struct {
	mu      sync.Mutex
	effects []Effect
}

func (o *outbox) push(e Effect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.effects = append(o.effects, e)
}

func (o *outbox) drain() []Effect {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.effects
	o.effects = nil
	if out == nil {
		return []Effect{}
	}
	return out
}

func toggle(on bool) *bool { return &on }

// remoteEngine forwards flip commands to the page-flip library running in
// the browser; page changes come back as pageChanged events
type remoteEngine struct {
	out *outbox

	mu       sync.Mutex
	listener func(int)
}

func (e *remoteEngine) FlipNext()     { e.out.push(Effect{Type: EffectFlipNext}) }
func (e *remoteEngine) FlipPrevious() { e.out.push(Effect{Type: EffectFlipPrevious}) }

func (e *remoteEngine) OnPageChanged(f func(int)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = f
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.listener = nil
	}
}

func (e *remoteEngine) emit(index int) bool {
	e.mu.Lock()
	f := e.listener
	e.mu.Unlock()
	if f == nil {
		return false
	}
	f(index)
	return true
}

// remotePlatform mirrors the browser's fullscreen element as last reported
type remotePlatform struct {
	out       *outbox
	supported bool

	mu     sync.Mutex
	active bool
}

func (p *remotePlatform) SupportsFullscreen() bool { return p.supported }

func (p *remotePlatform) RequestFullscreen() error {
	p.out.push(Effect{Type: EffectRequestFullscreen})
	return nil
}

func (p *remotePlatform) ExitFullscreen() error {
	p.out.push(Effect{Type: EffectExitFullscreen})
	return nil
}

func (p *remotePlatform) IsFullscreen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *remotePlatform) report(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = active
}

type remotePresentation struct {
	out *outbox
}

func (p remotePresentation) SetMaximized(on bool) {
	p.out.push(Effect{Type: EffectSetMaximized, On: toggle(on)})
}

func (p remotePresentation) ScrollToTop() { p.out.push(Effect{Type: EffectScrollToTop}) }

func (p remotePresentation) SetScrollLocked(on bool) {
	p.out.push(Effect{Type: EffectScrollLock, On: toggle(on)})
}

type remoteHaptics struct {
	out *outbox
}

func (h remoteHaptics) Vibrate(d time.Duration) error {
	h.out.push(Effect{Type: EffectVibrate, DurationMS: d.Milliseconds()})
	return nil
}

type remoteAnchor struct {
	out *outbox
}

func (a remoteAnchor) Trigger(url, filename string) error {
	a.out.push(Effect{Type: EffectDownload, URL: url, Filename: filename})
	return nil
}
