package dates

import (
	"strings"
	"time"
)

// Epoch is returned by ParseFlexible when nothing matches. It sorts after any real date
// in a descending order.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Layouts are picked by separator, so "01/02/2025" is always month/day/year and
// "01.02.2025" always day.month.year.
var layoutsBySeparator = []struct {
	sep    string
	layout string
}{
	{".", "2.1.2006"},
	{"-", "2006-1-2"},
	{"/", "1/2/2006"},
}

// ParseFlexible parses D.M.YYYY, YYYY-M-D and M/D/YYYY dates (leading zeros optional).
// It returns Epoch for anything else, including non-numeric or out-of-range fields.
func ParseFlexible(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return Epoch
	}
	for _, l := range layoutsBySeparator {
		if strings.Count(s, l.sep) != 2 {
			continue
		}
		t, err := time.Parse(l.layout, s)
		if err != nil {
			return Epoch
		}
		return t
	}
	return Epoch
}

// IsEpoch reports whether t is the fallback returned for unparseable input.
func IsEpoch(t time.Time) bool {
	return t.Equal(Epoch)
}
