// Package services implements the management surface around the analysis
// core: organizer registration and auth, hackathon lifecycle, submission
// intake and the read views (leaderboard, scorecard, costs).
package services

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped onto HTTP status codes by the API layer.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotOwner      = errors.New("resource is not owned by caller")
	ErrUnauthorized  = errors.New("invalid credentials")
	ErrImmutable     = errors.New("hackathon configuration is frozen")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
