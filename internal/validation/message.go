package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	minMessageLength = 10
	maxMessageLength = 5000
	maxSubjectLength = 200
)

// ValidateMessage validates the body of a contact form submission
func ValidateMessage(message string) error {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return errors.New("message is required")
	}

	n := utf8.RuneCountInString(trimmed)
	if n < minMessageLength {
		return fmt.Errorf("message is too short (min %d characters)", minMessageLength)
	}
	if n > maxMessageLength {
		return fmt.Errorf("message is too long (max %d characters)", maxMessageLength)
	}

	return nil
}

// ValidateSubject validates an optional contact form subject
func ValidateSubject(subject string) error {
	if utf8.RuneCountInString(subject) > maxSubjectLength {
		return fmt.Errorf("subject is too long (max %d characters)", maxSubjectLength)
	}
	if strings.ContainsAny(subject, "\r\n") {
		return errors.New("subject must be a single line")
	}
	return nil
}
