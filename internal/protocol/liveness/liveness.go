// Package liveness tracks per-channel telemetry freshness. The reader
// goroutine writes observations; the periodic check reads them, so the
// tracker uses atomics instead of a mutex held across I/O.
package liveness

import (
	"sync/atomic"
	"time"
)

// State of one telemetry channel.
type State uint32

const (
	// Unseen means no snapshot has ever arrived. It never transitions to
	// Stale on its own.
	Unseen State = iota
	Valid
	Stale
)

func (s State) String() string {
	switch s {
	case Valid:
		return "valid"
	case Stale:
		return "stale"
	default:
		return "unseen"
	}
}

// Tracker holds the last-seen timestamp and validity of one channel.
type Tracker struct {
	timeout  time.Duration
	lastSeen atomic.Int64 // unix nanos
	state    atomic.Uint32
}

func NewTracker(timeout time.Duration) *Tracker {
	return &Tracker{timeout: timeout}
}

// Observe records a decoded snapshot at now. Unseen and Stale both return to
// Valid.
func (t *Tracker) Observe(now time.Time) {
	t.lastSeen.Store(now.UnixNano())
	t.state.Store(uint32(Valid))
}

// Check runs one staleness probe. It returns true exactly once per silence
// period: on the first probe that sees more than the timeout elapsed since
// the last observation. Subsequent probes while still stale return false.
func (t *Tracker) Check(now time.Time) bool {
	if State(t.state.Load()) != Valid {
		return false
	}
	if now.Sub(time.Unix(0, t.lastSeen.Load())) <= t.timeout {
		return false
	}
	return t.state.CompareAndSwap(uint32(Valid), uint32(Stale))
}

// State returns the current channel state.
func (t *Tracker) State() State {
	return State(t.state.Load())
}

// LastSeen returns the timestamp of the most recent observation; the zero
// time when unseen.
func (t *Tracker) LastSeen() time.Time {
	ns := t.lastSeen.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
