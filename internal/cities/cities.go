// Package cities orders the visited cities and turns them into render records.
package cities

import (
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/kjstillabower/our-story/internal/dates"
	"github.com/kjstillabower/our-story/internal/models"
)

// LinkPrefix is prepended to the escaped, lower-cased city name.
const LinkPrefix = "/cities/"

// Item is one rendered city.
type Item struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	PhotoURL    string `json:"photoUrl"`
	Description string `json:"description"`
	Link        string `json:"link"`
	// DateKnown is false when Date matches no supported format.
	DateKnown bool `json:"dateKnown"`
}

// Sort returns a copy of list ordered by date, most recent first. Cities with
// unparseable dates sort as dates.Epoch; ties keep their table order.
func Sort(list []models.City) []models.City {
	out := slices.Clone(list)
	sort.SliceStable(out, func(i, j int) bool {
		return dates.ParseFlexible(out[i].Date).After(dates.ParseFlexible(out[j].Date))
	})
	return out
}

// Slug is the lower-cased city name used as a link target.
func Slug(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Render converts an ordered list into render records, preserving order.
func Render(list []models.City) []Item {
	items := make([]Item, len(list))
	for i, c := range list {
		items[i] = Item{
			Name:        c.Name,
			Date:        c.Date,
			PhotoURL:    c.PhotoURL,
			Description: c.Description,
			Link:        LinkPrefix + url.PathEscape(Slug(c.Name)),
			DateKnown:   !dates.IsEpoch(dates.ParseFlexible(c.Date)),
		}
	}
	return items
}

// Reverse returns the current display order flipped. It does not re-sort.
func Reverse(items []Item) []Item {
	out := slices.Clone(items)
	slices.Reverse(out)
	return out
}

// Find returns the city whose slug matches slug.
func Find(list []models.City, slug string) (models.City, bool) {
	want := Slug(slug)
	for _, c := range list {
		if Slug(c.Name) == want {
			return c, true
		}
	}
	return models.City{}, false
}
