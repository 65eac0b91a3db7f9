// Package records turns spreadsheet rows into keyed records and typed table rows.
package records

import (
	"strings"

	"github.com/kjstillabower/our-story/internal/models"
)

// HeaderSeparator replaces spaces inside header names.
const HeaderSeparator = "_"

// Placeholder values for absent optional fields.
const (
	PlaceholderPhotoURL = "https://placehold.co/600x400?text=%F0%9F%93%B7"
	PlaceholderAuthor   = "Неизвестный автор"
)

// Record is one data row keyed by normalized header name.
type Record map[string]string

// NormalizeHeader lower-cases a header cell and replaces spaces with HeaderSeparator.
func NormalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", HeaderSeparator)
}

// FromTable maps values[1:] onto the header row values[0]. Cells missing from a short row
// become "" and cells beyond the header row are dropped. Empty input yields no records.
func FromTable(values [][]string) []Record {
	if len(values) < 2 {
		return nil
	}
	headers := make([]string, len(values[0]))
	for i, h := range values[0] {
		headers[i] = NormalizeHeader(h)
	}
	out := make([]Record, 0, len(values)-1)
	for _, row := range values[1:] {
		rec := make(Record, len(headers))
		for i, key := range headers {
			if key == "" {
				continue
			}
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// First returns the trimmed value of the first key present with a non-empty value.
func (r Record) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r[k]); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// City builds a models.City from a record of the cities table.
func (r Record) City() models.City {
	return models.City{
		Name:        r.First("город", "city", "name", "название"),
		Date:        r.First("дата", "date"),
		PhotoURL:    orDefault(r.First("фото", "photo", "photo_url", "url", "ссылка_на_фото"), PlaceholderPhotoURL),
		Description: r.First("описание", "description"),
	}
}

// Photo builds a models.Photo from a record of the photos table.
func (r Record) Photo() models.Photo {
	return models.Photo{
		URL:     r.First("фото", "ссылка", "url", "photo", "photo_url"),
		Caption: r.First("подпись", "описание", "caption", "description"),
		Date:    r.First("дата", "date"),
	}
}

// Quote builds a models.Quote from a record of the quotes table.
func (r Record) Quote() models.Quote {
	return models.Quote{
		Text:   r.First("цитата", "текст", "quote", "text"),
		Author: orDefault(r.First("автор", "author"), PlaceholderAuthor),
		Date:   r.First("дата", "date"),
	}
}

// Cities converts records, dropping rows without a city name.
func Cities(recs []Record) []models.City {
	out := make([]models.City, 0, len(recs))
	for _, r := range recs {
		c := r.City()
		if c.Name == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Photos converts records, dropping rows without a URL.
func Photos(recs []Record) []models.Photo {
	out := make([]models.Photo, 0, len(recs))
	for _, r := range recs {
		p := r.Photo()
		if p.URL == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Quotes converts records, dropping rows without text.
func Quotes(recs []Record) []models.Quote {
	out := make([]models.Quote, 0, len(recs))
	for _, r := range recs {
		q := r.Quote()
		if q.Text == "" {
			continue
		}
		out = append(out, q)
	}
	return out
}
