// Package lifecycle holds the process phase reported by /health.
package lifecycle

import "sync/atomic"

// Phase is where the process is in its life.
type Phase int32

const (
	// Starting until the first page has been painted.
	Starting Phase = iota
	Ready
	// ShuttingDown once SIGTERM/SIGINT is received; health returns 503.
	ShuttingDown
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// MarkReady moves Starting to Ready. It never leaves ShuttingDown.
func MarkReady() {
	phase.CompareAndSwap(int32(Starting), int32(Ready))
}

// SetShuttingDown enters or, for tests, leaves the ShuttingDown phase.
func SetShuttingDown(v bool) {
	if v {
		phase.Store(int32(ShuttingDown))
		return
	}
	phase.Store(int32(Ready))
}

// Current returns the phase.
func Current() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return Current() == ShuttingDown
}

// Reset returns to Starting. For tests only.
func Reset() {
	phase.Store(int32(Starting))
}
