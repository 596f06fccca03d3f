package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/smartinventory-backend/internal/clients/gcp"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

// GCSStore keeps bundles in a bucket. Locations are "gs://bucket/key".
type GCSStore struct {
	bucket gcp.BucketService
	prefix string
}

func NewGCSStore(bucket gcp.BucketService, prefix string) *GCSStore {
	return &GCSStore{bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *GCSStore) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *GCSStore) Save(ctx context.Context, key string, b *Bundle) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	raw, err := encode(b)
	if err != nil {
		return "", err
	}
	obj := s.objectKey(key)
	if err := s.bucket.UploadFile(ctx, obj, bytes.NewReader(raw)); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket.Bucket(), obj), nil
}

func (s *GCSStore) Load(ctx context.Context, location string) (*Bundle, error) {
	key := strings.TrimPrefix(location, "gs://"+s.bucket.Bucket()+"/")
	rc, err := s.bucket.DownloadFile(ctx, key)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrArtifactMissing, location)
		}
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", location, err)
	}
	return decode(raw, location)
}
