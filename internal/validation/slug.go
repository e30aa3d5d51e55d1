package validation

import (
	"errors"
	"regexp"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidateSlug accepts lowercase kebab-case slugs only, which keeps
// content lookups inside their collection directory.
func ValidateSlug(slug string) error {
	if len(slug) == 0 || len(slug) > 120 || !slugPattern.MatchString(slug) {
		return errors.New("invalid slug")
	}
	return nil
}
