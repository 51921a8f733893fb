// Package throttle collapses bursts of work into trailing-edge runs.
//
// A Throttle runs its function at most once per window. When a trigger
// arrives after a quiet period longer than the window, the function runs
// immediately. Otherwise exactly one run is scheduled at the window boundary
// and every trigger arriving before it is absorbed by that run, so no trigger
// is ever delayed by more than one window.
package throttle

import (
	"sync"
	"time"
)

type Throttle struct {
	window time.Duration
	fn     func()

	mutex     sync.Mutex
	lastRun   time.Time
	timer     *time.Timer
	isStopped bool
}

func New(window time.Duration, fn func()) *Throttle {
	return &Throttle{window: window, fn: fn}
}

// Trigger requests a run of fn. An immediate run happens on the calling
// goroutine, a scheduled one on a timer goroutine.
func (t *Throttle) Trigger() {
	t.mutex.Lock()
	if t.isStopped || t.timer != nil {
		t.mutex.Unlock()
		return
	}

	elapsed := time.Since(t.lastRun)
	if elapsed >= t.window {
		t.lastRun = time.Now()
		t.mutex.Unlock()
		t.fn()
		return
	}

	t.timer = time.AfterFunc(t.window-elapsed, t.fire)
	t.mutex.Unlock()
}

func (t *Throttle) fire() {
	t.mutex.Lock()
	if t.isStopped {
		t.mutex.Unlock()
		return
	}

	t.timer = nil
	t.lastRun = time.Now()
	t.mutex.Unlock()

	t.fn()
}

// Pending reports whether a trailing run is scheduled.
func (t *Throttle) Pending() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.timer != nil
}

// Stop cancels any scheduled run. Triggers after Stop are ignored.
func (t *Throttle) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.isStopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
