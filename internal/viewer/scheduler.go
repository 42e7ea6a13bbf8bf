package viewer

import "time"

// Scheduler runs a function once after a delay. The returned cancel
// function reports whether the call was stopped before it fired.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func() bool)
}

// TimerScheduler schedules on the runtime's timers
type TimerScheduler struct{}

// AfterFunc implements Scheduler with time.AfterFunc
func (TimerScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// idleTimer is the single cancelable hide task of the controls. Every
// reschedule bumps the generation so a callback that already fired but has
// not yet acquired the viewer lock is discarded.
type idleTimer struct {
	sched  Scheduler
	delay  time.Duration
	cancel func() bool
	gen    uint64
}

func (t *idleTimer) schedule(fire func(gen uint64)) {
	t.stop()
	gen := t.gen
	t.cancel = t.sched.AfterFunc(t.delay, func() { fire(gen) })
}

func (t *idleTimer) stop() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
}

func (t *idleTimer) pending() bool {
	return t.cancel != nil
}

// fired clears the handle if gen is the current task
func (t *idleTimer) fired(gen uint64) bool {
	if gen != t.gen || t.cancel == nil {
		return false
	}
	t.cancel = nil
	return true
}
