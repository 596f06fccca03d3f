package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.Validation("bad date %q", "x"), http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("batch job 1: %w", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{apperrors.ErrNoActiveModel, http.StatusConflict, "no_active_model"},
		{fmt.Errorf("job is failed: %w", apperrors.ErrConflict), http.StatusConflict, "conflict"},
		{fmt.Errorf("load: %w", apperrors.ErrArtifactCorrupt), http.StatusServiceUnavailable, "model_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		{fmt.Errorf("wrapped: %w", New(http.StatusTeapot, "teapot", nil)), http.StatusTeapot, "teapot"},
	}
	for _, tc := range cases {
		got := FromError(tc.err)
		if got.Status != tc.status || got.Code != tc.code {
			t.Fatalf("FromError(%v) = %d/%s, want %d/%s", tc.err, got.Status, got.Code, tc.status, tc.code)
		}
	}
	if FromError(nil) != nil {
		t.Fatalf("nil error should map to nil")
	}
}
