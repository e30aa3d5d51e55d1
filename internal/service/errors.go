package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken = errors.New("invalid or expired verification token")
	// errWriteConflict means a conditional write kept losing to concurrent changes.
	errWriteConflict = errors.New("too many concurrent updates")
)

// ValidationError reports a rejected input field. It is safe to show to the caller.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// StoreError wraps a persistence failure. The cause is logged, never shown.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotificationError wraps an email delivery failure. It never fails a request.
type NotificationError struct {
	Template string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification %s: %v", e.Template, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: err.Error()}
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
