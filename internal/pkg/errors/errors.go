package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed caller input. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrNoActiveModel is returned where a model is mandatory (batch submission, job start).
	ErrNoActiveModel = errors.New("no active model")
	// ErrArtifactMissing means the persisted model bundle is absent.
	ErrArtifactMissing = errors.New("model artifact missing")
	// ErrArtifactCorrupt means the persisted model bundle could not be decoded.
	ErrArtifactCorrupt = errors.New("model artifact corrupt")
	// ErrConflict marks an invalid state transition.
	ErrConflict = errors.New("conflict")
)

// Validation wraps a formatted message with ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
