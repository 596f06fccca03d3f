package apierr

import (
	"fmt"
	"net/http"

	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps domain sentinels onto an HTTP status and code. An *Error
// already in the chain wins.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if apperrors.As(err, &ae) && ae != nil {
		return ae
	}
	switch {
	case apperrors.Is(err, apperrors.ErrValidation):
		return New(http.StatusBadRequest, "validation_error", err)
	case apperrors.Is(err, apperrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case apperrors.Is(err, apperrors.ErrNoActiveModel):
		return New(http.StatusConflict, "no_active_model", err)
	case apperrors.Is(err, apperrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case apperrors.Is(err, apperrors.ErrArtifactMissing), apperrors.Is(err, apperrors.ErrArtifactCorrupt):
		return New(http.StatusServiceUnavailable, "model_unavailable", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
