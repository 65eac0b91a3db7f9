// Package dates holds the relationship counter arithmetic and the tolerant date parser
// used to order cities.
package dates

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// daysPerMonth is the mean Gregorian month length used for the approximate month count.
const daysPerMonth = 30.44

// Elapsed is the time between a start date and now, split into display units.
// All units are floored independently, so a start date in the future yields negative values.
type Elapsed struct {
	Days    int64 `json:"days"`
	Weeks   int64 `json:"weeks"`
	Months  int64 `json:"months"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Since computes the elapsed units between start and now.
func Since(start, now time.Time) Elapsed {
	diff := now.Sub(start)
	days := floorDiv(diff, 24*time.Hour)
	return Elapsed{
		Days:    days,
		Weeks:   int64(math.Floor(float64(days) / 7)),
		Months:  int64(math.Floor(float64(days) / daysPerMonth)),
		Hours:   floorDiv(diff, time.Hour),
		Minutes: floorDiv(diff, time.Minute),
		Seconds: floorDiv(diff, time.Second),
	}
}

func floorDiv(d, unit time.Duration) int64 {
	return int64(math.Floor(float64(d) / float64(unit)))
}

// FormatHours renders the hour count with the thousands grouping of the given locale.
// "ru" groups with a space like toLocaleString does in a Russian browser; anything else uses commas.
func (e Elapsed) FormatHours(locale string) string {
	if strings.EqualFold(strings.TrimSpace(locale), "ru") {
		return humanize.FormatInteger("# ###.", int(e.Hours))
	}
	return humanize.Comma(e.Hours)
}
