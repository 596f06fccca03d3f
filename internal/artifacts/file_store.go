package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

// FileStore keeps bundles under a local root directory.
type FileStore struct {
	Root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root}
}

func (s *FileStore) Save(ctx context.Context, key string, b *Bundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkKey(key); err != nil {
		return "", err
	}
	raw, err := encode(b)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.Root, filepath.FromSlash(key))
	if !s.contains(full) {
		return "", fmt.Errorf("%w: key %q escapes %s", ErrInvalidName, key, s.Root)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return full, nil
}

func (s *FileStore) Load(ctx context.Context, location string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.contains(location) {
		return nil, fmt.Errorf("%w: %s is outside %s", apperrors.ErrArtifactMissing, location, s.Root)
	}
	raw, err := os.ReadFile(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrArtifactMissing, location)
		}
		return nil, fmt.Errorf("read artifact %s: %w", location, err)
	}
	return decode(raw, location)
}

// contains reports whether p resolves to a path under Root.
func (s *FileStore) contains(p string) bool {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
