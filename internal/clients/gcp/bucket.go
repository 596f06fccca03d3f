package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
)

// ErrObjectNotFound is returned by DownloadFile when the key does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

// BucketService is a thin client over one GCS bucket holding model artifacts
// and raw upload files.
type BucketService interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Bucket() string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucket        string
	timeout       time.Duration
}

func NewBucketService(ctx context.Context, log *logger.Logger, bucket string, timeout time.Duration) (BucketService, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("missing bucket name")
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &bucketService{
		log:           log.With("service", "BucketService", "bucket", bucket),
		storageClient: stClient,
		bucket:        bucket,
		timeout:       timeout,
	}, nil
}

func (bs *bucketService) Bucket() string { return bs.bucket }

func (bs *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, bs.timeout)
	defer cancel()

	w := bs.storageClient.Bucket(bs.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	bs.log.Debug("Uploaded object", "key", key)
	return nil
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	case strings.HasSuffix(s, ".csv"):
		return "text/csv"
	default:
		return ""
	}
}

func (bs *bucketService) DeleteFile(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bs.storageClient.Bucket(bs.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, bs.bucket, err)
	}
	return nil
}

func (bs *bucketService) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := bs.storageClient.Bucket(bs.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

// readCloserWithCancel ties the download deadline to Close; cancelling before
// the caller reads would truncate the body.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, bs.timeout)
	r, err := bs.storageClient.Bucket(bs.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bs.bucket, key)
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}
