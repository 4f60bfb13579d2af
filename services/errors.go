package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoActiveTenant is returned by every tenant-scoped operation when no
	// session is present. Nothing is read or written in that case.
	ErrNoActiveTenant     = errors.New("no active tenant")
	ErrForbidden          = errors.New("admin login required")
	ErrOrderCompleted     = errors.New("order already completed")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// ValidationError rejects an operation with a human-readable reason.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ThrottledError is returned by Login while a cooldown is running.
type ThrottledError struct {
	Wait time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %d seconds", int(e.Wait.Seconds()))
}
