// Package degraded tracks table refresh outcomes and reports when the spreadsheet
// is failing often enough to mark the service degraded.
package degraded

import (
	"time"

	"github.com/kjstillabower/our-story/internal/traffic"
)

var refreshes = traffic.NewTracker(traffic.DefaultRetention)

// Configure keeps refresh outcomes for at least window, the longest window IsDegraded
// will be asked about. Call it before the first refresh.
func Configure(window time.Duration) {
	refreshes.EnsureRetention(window)
}

// RecordSuccess records a table refresh that produced records.
func RecordSuccess() {
	refreshes.RecordSuccess()
}

// RecordError records a failed table refresh.
func RecordError() {
	refreshes.RecordError()
}

// ErrorRate returns (errors, total) table refreshes within the window.
func ErrorRate(window time.Duration) (errors, total int) {
	return refreshes.ErrorRate(window)
}

// IsDegraded reports whether the refresh error rate within window is at least thresholdPct.
// No refreshes in the window is not degraded.
func IsDegraded(window time.Duration, thresholdPct int) bool {
	errors, total := ErrorRate(window)
	if total == 0 {
		return false
	}
	return errors*100 >= thresholdPct*total
}

// Reset clears all recorded data. For tests only.
func Reset() {
	refreshes.Reset()
}
