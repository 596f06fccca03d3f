package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/smartinventory-backend/internal/artifacts"
	"github.com/yungbote/smartinventory-backend/internal/clients/gcp"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

type StorageBootstrapError struct {
	Backend string
	Bucket  string
	Cause   error
}

func (e *StorageBootstrapError) Error() string {
	if e == nil {
		return "artifact storage bootstrap failed"
	}
	return fmt.Sprintf("artifact storage bootstrap failed (backend=%q bucket=%q): %v", e.Backend, e.Bucket, e.Cause)
}

func (e *StorageBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArtifactStore saves through the configured backend. Both backends
// stay readable so a model trained before a switch still loads.
func resolveArtifactStore(log *logger.Logger, cfg Config, bucket gcp.BucketService) (*artifacts.Router, error) {
	r := &artifacts.Router{Local: artifacts.NewFileStore(cfg.ArtifactDir)}
	if bucket != nil {
		r.GCS = artifacts.NewGCSStore(bucket, cfg.GCSPrefix)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.ArtifactBackend)) {
	case ArtifactBackendFile, "":
		r.Primary = r.Local
	case ArtifactBackendGCS:
		if r.GCS == nil {
			return nil, &StorageBootstrapError{Backend: cfg.ArtifactBackend, Bucket: cfg.GCSBucket, Cause: fmt.Errorf("no bucket client")}
		}
		r.Primary = r.GCS
	default:
		return nil, &StorageBootstrapError{Backend: cfg.ArtifactBackend, Cause: fmt.Errorf("unsupported backend")}
	}
	log.Info("Selected artifact store",
		"backend", cfg.ArtifactBackend,
		"dir", cfg.ArtifactDir,
		"bucket", cfg.GCSBucket,
		"gcs_readable", r.GCS != nil,
	)
	return r, nil
}
