package validation

import (
	"errors"
	"net/mail"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// All lookups and uniqueness checks use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates email format and length
// Uses Go's built-in net/mail parser which follows RFC 5322
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}

	// RFC 5321: total max 254 with @
	if len(email) > 254 {
		return errors.New("email address is too long (max 254 characters)")
	}

	// Parse using Go's RFC 5322 compliant parser
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return errors.New("invalid email address format")
	}

	// Reject display-name forms like "Jane <jane@example.com>"
	if addr.Address != email {
		return errors.New("invalid email address format")
	}

	// Require a dotted domain; net/mail accepts "user@localhost"
	domain := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return errors.New("invalid email address format")
	}

	return nil
}
