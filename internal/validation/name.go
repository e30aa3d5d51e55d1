package validation

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxNameLength = 100

// NormalizeName trims whitespace, collapses inner runs of spaces and
// converts the name to Unicode NFC so that visually identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// ValidateName validates a required display name
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name is required")
	}
	return ValidateOptionalName(name)
}

// ValidateOptionalName validates a display name that may be omitted
func ValidateOptionalName(name string) error {
	if utf8.RuneCountInString(name) > maxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("name contains invalid characters")
		}
	}

	// Names are echoed into emails sent to the address owner.
	lower := strings.ToLower(name)
	if strings.Contains(lower, "://") || strings.Contains(lower, "www.") {
		return errors.New("name must not contain links")
	}

	return nil
}
