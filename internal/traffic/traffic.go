// Package traffic keeps sliding windows of outcome timestamps.
package traffic

import (
	"sync"
	"time"
)

// DefaultRetention bounds how long outcomes are kept.
const DefaultRetention = 5 * time.Minute

var actions = NewTracker(DefaultRetention)

// RecordAction records an accepted user action (POST /api/...).
func RecordAction() {
	actions.RecordSuccess()
}

// RecordDenied records an action rejected by the rate limiter.
func RecordDenied() {
	actions.RecordDenied()
}

// ActionCount returns accepted plus denied actions within the window.
func ActionCount(window time.Duration) int {
	return actions.Count(window)
}

// DenialCount returns rate-limit denials within the window.
func DenialCount(window time.Duration) int {
	return actions.DenialCount(window)
}

// Reset clears the action tracker. For tests only.
func Reset() {
	actions.Reset()
}

// Tracker counts success, error and denied outcomes over a sliding window.
type Tracker struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time
	successes []time.Time
	errors    []time.Time
	denied    []time.Time
}

// NewTracker returns a Tracker that forgets outcomes older than retention.
func NewTracker(retention time.Duration) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{retention: retention, now: time.Now}
}

// EnsureRetention raises retention to at least d so a window of d sees every outcome.
// It never shortens retention.
func (t *Tracker) EnsureRetention(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > t.retention {
		t.retention = d
	}
}

// Retention returns how long outcomes are kept.
func (t *Tracker) Retention() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retention
}

func (t *Tracker) RecordSuccess() { t.record(&t.successes) }

func (t *Tracker) RecordError() { t.record(&t.errors) }

func (t *Tracker) RecordDenied() { t.record(&t.denied) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Count returns every outcome within the window.
func (t *Tracker) Count(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return countSince(t.successes, cutoff) + countSince(t.errors, cutoff) + countSince(t.denied, cutoff)
}

// DenialCount returns denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.denied, t.now().Add(-window))
}

// ErrorRate returns (errors, successes+errors) within the window. Denials are excluded.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errors = countSince(t.errors, cutoff)
	return errors, errors + countSince(t.successes, cutoff)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes, t.errors, t.denied = nil, nil, nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Slices are in append order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for i < len(times) && times[i].Before(cutoff) {
			i++
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successes)
	prune(&t.errors)
	prune(&t.denied)
}
