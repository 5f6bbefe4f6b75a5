// Package calendar implements the subscription reconciliation engine and
// the webhook-driven event ingestion pipeline.
package calendar

import (
	"errors"
	"fmt"
)

// ValidationError reports a push notification missing required fields.
// Mapped to a client error so the provider does not retry it verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError reports a push notification carrying a bad channel
// token. Always fatal, never retried.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// IgnorableError reports a condition that is acknowledged as success so
// the provider does not retry, such as a notification for a channel that
// is no longer registered.
type IgnorableError struct {
	Message string
}

func (e *IgnorableError) Error() string {
	return e.Message
}

// ConsistencyError reports conflicting records for the same external
// calendar. Fatal; never auto-resolved.
type ConsistencyError struct {
	Message string
}

func (e *ConsistencyError) Error() string {
	return e.Message
}

// DependencyError reports a missing collaborator a notification cannot be
// processed without, such as an orphaned credential.
type DependencyError struct {
	Message string
}

func (e *DependencyError) Error() string {
	return e.Message
}

// ErrIncompleteChannel is returned when a legacy record carries a channel
// id but is missing other channel fields, making the channel unusable.
var ErrIncompleteChannel = errors.New("legacy channel record has incomplete provider details")

func authErrorf(format string, args ...any) error {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

func ignorablef(format string, args ...any) error {
	return &IgnorableError{Message: fmt.Sprintf(format, args...)}
}

func consistencyErrorf(format string, args ...any) error {
	return &ConsistencyError{Message: fmt.Sprintf(format, args...)}
}

func dependencyErrorf(format string, args ...any) error {
	return &DependencyError{Message: fmt.Sprintf(format, args...)}
}

// IsIgnorable reports whether err is an IgnorableError.
func IsIgnorable(err error) bool {
	var ie *IgnorableError
	return errors.As(err, &ie)
}
