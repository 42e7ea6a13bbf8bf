// Package viewertest provides deterministic collaborators for driving a
// viewer in tests.
package viewertest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ManualScheduler only runs callbacks when Advance moves its clock past
// their deadline. Callbacks run synchronously on the caller's goroutine.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*task
}

type task struct {
	at  time.Duration
	seq int
	f   func()
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &task{at: s.now + d, seq: s.seq, f: f}
	s.tasks = append(s.tasks, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, p := range s.tasks {
			if p == t {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				return true
			}
		}
		return false
	}
}

// Advance moves the clock forward and runs every task that came due, in
// deadline order
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*task
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.at <= s.now {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	for _, t := range due {
		t.f()
	}
}

// Pending is the number of scheduled tasks that have not run
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// FakeEngine records flip commands. Tests emit page changes explicitly.
type FakeEngine struct {
	mu           sync.Mutex
	Next         int
	Previous     int
	listener     func(int)
	Unsubscribed bool
}

func (e *FakeEngine) FlipNext() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Next++
}

func (e *FakeEngine) FlipPrevious() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Previous++
}

func (e *FakeEngine) OnPageChanged(f func(int)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = f
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.listener = nil
		e.Unsubscribed = true
	}
}

// Emit delivers a page change to the registered listener, if any
func (e *FakeEngine) Emit(index int) {
	e.mu.Lock()
	f := e.listener
	e.mu.Unlock()
	if f != nil {
		f(index)
	}
}

func (e *FakeEngine) Counts() (next, previous int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Next, e.Previous
}

// FakePlatform is a native fullscreen capability. Requests succeed unless
// Reject is set. Active only changes when the test sets it, after which
// the test delivers the change notification like the browser would.
type FakePlatform struct {
	Supported bool
	Reject    bool
	Active    bool
	Requests  int
	Exits     int
}

func (p *FakePlatform) SupportsFullscreen() bool { return p.Supported }

func (p *FakePlatform) RequestFullscreen() error {
	p.Requests++
	if p.Reject {
		return errors.New("request denied")
	}
	return nil
}

func (p *FakePlatform) ExitFullscreen() error {
	p.Exits++
	return nil
}

func (p *FakePlatform) IsFullscreen() bool { return p.Active }

// FakePresentation records document-level side effects
type FakePresentation struct {
	Maximized    bool
	ScrollLocked bool
	ScrollTops   int
}

func (p *FakePresentation) SetMaximized(on bool)    { p.Maximized = on }
func (p *FakePresentation) ScrollToTop()            { p.ScrollTops++ }
func (p *FakePresentation) SetScrollLocked(on bool) { p.ScrollLocked = on }

// FakeHaptics records vibration requests
type FakeHaptics struct {
	Pulses []time.Duration
}

func (h *FakeHaptics) Vibrate(d time.Duration) error {
	h.Pulses = append(h.Pulses, d)
	return nil
}

// Download is one anchor activation
type Download struct {
	URL      string
	Filename string
}

// FakeAnchor records triggered downloads
type FakeAnchor struct {
	mu        sync.Mutex
	Downloads []Download
}

func (a *FakeAnchor) Trigger(url, filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Downloads = append(a.Downloads, Download{URL: url, Filename: filename})
	return nil
}

func (a *FakeAnchor) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Downloads)
}

// FakeProber answers size probes. When Gate is non-nil each probe blocks
// until a value is received from it.
type FakeProber struct {
	Size  int64
	Err   error
	Gate  chan struct{}
	mu    sync.Mutex
	calls int
}

func (p *FakeProber) Probe(ctx context.Context, _ string) (int64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Size, nil
}

func (p *FakeProber) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
