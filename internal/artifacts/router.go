package artifacts

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

// Router saves to Primary and loads by location scheme, so models trained
// before a backend switch stay loadable.
type Router struct {
	Primary Store
	Local   *FileStore
	GCS     *GCSStore
}

func (r *Router) Save(ctx context.Context, key string, b *Bundle) (string, error) {
	if r.Primary == nil {
		return "", fmt.Errorf("no artifact store configured")
	}
	return r.Primary.Save(ctx, key, b)
}

func (r *Router) Load(ctx context.Context, location string) (*Bundle, error) {
	switch {
	case strings.TrimSpace(location) == "":
		return nil, fmt.Errorf("%w: empty artifact path", apperrors.ErrArtifactMissing)
	case strings.HasPrefix(location, "gs://"):
		if r.GCS == nil {
			return nil, fmt.Errorf("%w: %s (gcs store not configured)", apperrors.ErrArtifactMissing, location)
		}
		return r.GCS.Load(ctx, location)
	default:
		if r.Local == nil {
			return nil, fmt.Errorf("%w: %s (local store not configured)", apperrors.ErrArtifactMissing, location)
		}
		return r.Local.Load(ctx, location)
	}
}
