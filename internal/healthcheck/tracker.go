package healthcheck

import (
	"sync"
	"time"
)

// Snapshot describes the latest reconciliation pass.
type Snapshot struct {
	LastPassTime   *time.Time `json:"last_pass_time"`
	PassDurationMS int64      `json:"pass_duration_ms"`
	LastTrigger    string     `json:"last_trigger,omitempty"`
	ActionsRun     int        `json:"actions_run"`
	LastError      string     `json:"last_error,omitempty"`
}

// Tracker records pass timing for health endpoints.
type Tracker struct {
	mu           sync.RWMutex
	lastPass     time.Time
	passDuration time.Duration
	lastTrigger  string
	actionsRun   int
	lastError    string
	ready        bool
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordPass updates pass timing. Readiness latches after the first
// pass that completes without error.
func (t *Tracker) RecordPass(trigger string, duration time.Duration, actionsRun int, err error) {
	if t == nil {
		return
	}
	now := time.Now().UTC()
	t.mu.Lock()
	t.lastPass = now
	t.passDuration = duration
	t.lastTrigger = trigger
	t.actionsRun = actionsRun
	t.lastError = ""
	if err != nil {
		t.lastError = err.Error()
	} else {
		t.ready = true
	}
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastPass.IsZero() {
		value := t.lastPass
		last = &value
	}
	return Snapshot{
		LastPassTime:   last,
		PassDurationMS: int64(t.passDuration / time.Millisecond),
		LastTrigger:    t.lastTrigger,
		ActionsRun:     t.actionsRun,
		LastError:      t.lastError,
	}
}

// Ready reports whether at least one successful pass has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last pass completed within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil {
		return false
	}
	if pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastPass.IsZero() {
		return false
	}
	return now.Sub(t.lastPass) <= 2*pollInterval
}
