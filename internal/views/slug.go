package views

import (
	"errors"
	"strings"
)

// MaxSlugLength bounds a sanitised slug.
const MaxSlugLength = 100

// ErrInvalidSlug is returned when nothing usable survives sanitising.
var ErrInvalidSlug = errors.New("views: invalid slug")

// SanitizeSlug lowercases s, keeps only [a-z0-9-], collapses dash runs and
// trims dashes at either end.
func SanitizeSlug(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
			lastDash = false
		case c == '-':
			if !lastDash {
				b.WriteByte(c)
			}
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" || len(out) > MaxSlugLength {
		return "", ErrInvalidSlug
	}
	return out, nil
}
