package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFlexible_SameDateAcrossFormats(t *testing.T) {
	want := time.Date(2025, 2, 18, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"18.02.2025", "2025-02-18", "02/18/2025", "18.2.2025", "2025-2-18", "2/18/2025", "  18.02.2025 "} {
		t.Run(in, func(t *testing.T) {
			got := ParseFlexible(in)
			assert.True(t, got.Equal(want), "ParseFlexible(%q) = %v, want %v", in, got, want)
		})
	}
}

func TestParseFlexible_ReturnsEpoch(t *testing.T) {
	for _, in := range []string{"", "not-a-date", "18.02", "aa.bb.cccc", "2025/02/18", "31.02.2025", "18-02-2025", "February 18, 2025"} {
		t.Run(in, func(t *testing.T) {
			got := ParseFlexible(in)
			assert.True(t, IsEpoch(got), "ParseFlexible(%q) = %v, want epoch", in, got)
		})
	}
}

func TestEpoch_Value(t *testing.T) {
	assert.Equal(t, 2000, Epoch.Year())
	assert.Equal(t, time.January, Epoch.Month())
	assert.Equal(t, 1, Epoch.Day())
}
