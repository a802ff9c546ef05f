package clock

import (
	"sync"
	"time"
)

// Source abstracts the current instant and delayed callbacks so tick and
// alarm logic can run against injected time.
type Source interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the call
	// was stopped before it fired.
	Stop() bool
}

// System is the Source backed by the time package.
type System struct{}

// Now implements Source.
func (System) Now() time.Time {
	return time.Now()
}

// AfterFunc implements Source.
func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Manual is a Source whose time only moves when told to. Due callbacks run
// synchronously from Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	pending []*manualTimer
}

type manualTimer struct {
	clock   *Manual
	at      time.Time
	fn      func()
	stopped bool
}

// NewManual creates a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

// Now implements Source.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t without running callbacks.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// AfterFunc implements Source.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{clock: m, at: m.now.Add(d), fn: f}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves time forward by d and runs every callback that became due.
// It returns the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var due []func()
	remaining := m.pending[:0]
	for _, t := range m.pending {
		switch {
		case t.stopped:
		case !t.at.After(m.now):
			t.stopped = true
			due = append(due, t.fn)
		default:
			remaining = append(remaining, t)
		}
	}
	m.pending = remaining
	m.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	return len(due)
}

// Stop implements Timer.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}
