package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	nonSlugRunes = regexp.MustCompile(`[^a-z0-9]+`)
)

// maxSlugLength keeps slugs usable as a single DNS label.
const maxSlugLength = 63

// ErrInvalidSlug is returned when a value cannot be used as a tenant slug.
var ErrInvalidSlug = errors.New("invalid slug")

// NormalizeSlug trims whitespace, lowercases the value, and ensures it matches
// the canonical URL-safe slug pattern that also forms a valid DNS label.
func NormalizeSlug(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%w: slug is required", ErrInvalidSlug)
	}

	normalized := strings.ToLower(trimmed)
	if len(normalized) > maxSlugLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidSlug, input, maxSlugLength)
	}
	if !slugPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q must match ^[a-z0-9]+(?:-[a-z0-9]+)*$", ErrInvalidSlug, input)
	}

	return normalized, nil
}

// IsSlug reports whether s is already a canonical slug.
func IsSlug(s string) bool {
	return len(s) <= maxSlugLength && slugPattern.MatchString(s)
}

// SlugFrom suggests a slug for a company name: accents are folded, everything
// outside [a-z0-9] collapses to single hyphens. The result may be empty.
func SlugFrom(name string) string {
	folding := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	folded, _, err := transform.String(folding, name)
	if err != nil {
		folded = name
	}

	slug := nonSlugRunes.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}
