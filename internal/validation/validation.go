package validation

import (
	"errors"
	"strings"
	"unicode"
)

// DefaultSlugMaxLen bounds city slugs in runes.
const DefaultSlugMaxLen = 100

var (
	// ErrSlugEmpty is returned when the slug is empty or whitespace-only after trim.
	ErrSlugEmpty = errors.New("city is required")
	// ErrSlugTooLong is returned when the slug exceeds the maximum length.
	ErrSlugTooLong = errors.New("city too long")
	// ErrSlugInvalidChars is returned when the slug contains disallowed characters.
	ErrSlugInvalidChars = errors.New("city contains invalid characters")
)

// ValidateCitySlug trims the input, enforces maxLen (in runes, 0 for none) and restricts
// to letters (Unicode), digits, space, hyphen, apostrophe and dot. Returns the trimmed
// slug or an error suitable for 400 INVALID_CITY responses. Lower-casing is left to the
// lookup.
func ValidateCitySlug(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrSlugEmpty
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrSlugTooLong
	}
	for _, c := range r {
		if !isAllowedSlugRune(c) {
			return "", ErrSlugInvalidChars
		}
	}
	return s, nil
}

func isAllowedSlugRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', '-', '\'', '.':
		return true
	}
	return false
}
