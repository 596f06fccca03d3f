// Package artifacts persists trained model bundles: the fitted regressor state
// together with the encoders and feature schema it was trained against.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/smartinventory-backend/internal/features"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	apperrors "github.com/yungbote/smartinventory-backend/internal/pkg/errors"
)

const FormatVersion = 1

type Bundle struct {
	Format          int                `json:"format"`
	Name            string             `json:"name"`
	Version         int                `json:"version"`
	Algorithm       string             `json:"algorithm"`
	Hyperparameters ml.Params          `json:"hyperparameters"`
	Schema          features.Schema    `json:"feature_schema"`
	Encoders        *features.Encoders `json:"encoders"`
	Model           json.RawMessage    `json:"model"`
	TrainedAt       time.Time          `json:"trained_at"`
}

// Store reads and writes bundles. Load wraps ErrArtifactMissing when the
// object is absent and ErrArtifactCorrupt when it cannot be decoded.
type Store interface {
	Save(ctx context.Context, key string, b *Bundle) (string, error)
	Load(ctx context.Context, location string) (*Bundle, error)
}

var modelNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ErrInvalidName rejects model names that cannot be a single path segment.
var ErrInvalidName = errors.New("invalid model name")

// ValidateName accepts letters, digits, '_', '.' and '-' (no leading
// punctuation, no "..", at most 128 bytes).
func ValidateName(name string) error {
	if len(name) > 128 || !modelNameRe.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Key is the name-addressed object key "<name>/v<version>/model.json".
func Key(name string, version int) string {
	return path.Join(name, fmt.Sprintf("v%d", version), "model.json")
}

// checkKey rejects keys that are absolute or climb out of the store root.
func checkKey(key string) error {
	if key == "" || path.IsAbs(key) || strings.HasPrefix(key, "\\") {
		return fmt.Errorf("%w: key %q", ErrInvalidName, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." || seg == "." || seg == "" || strings.Contains(seg, "\\") {
			return fmt.Errorf("%w: key %q", ErrInvalidName, key)
		}
	}
	return nil
}

// NewBundle captures a fitted regressor.
func NewBundle(name string, version int, reg ml.Regressor, params ml.Params, schema features.Schema, enc *features.Encoders, trainedAt time.Time) (*Bundle, error) {
	state, err := reg.State()
	if err != nil {
		return nil, fmt.Errorf("serialize model: %w", err)
	}
	return &Bundle{
		Format:          FormatVersion,
		Name:            name,
		Version:         version,
		Algorithm:       reg.Algorithm(),
		Hyperparameters: params,
		Schema:          schema,
		Encoders:        enc,
		Model:           state,
		TrainedAt:       trainedAt.UTC(),
	}, nil
}

func encode(b *Bundle) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("nil bundle")
	}
	return json.Marshal(b)
}

func decode(raw []byte, location string) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrArtifactCorrupt, location, err)
	}
	if b.Format != FormatVersion {
		return nil, fmt.Errorf("%w: %s: unsupported format %d", apperrors.ErrArtifactCorrupt, location, b.Format)
	}
	if err := b.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrArtifactCorrupt, location, err)
	}
	if b.Encoders == nil || b.Encoders.Store == nil || b.Encoders.Product == nil {
		return nil, fmt.Errorf("%w: %s: missing encoders", apperrors.ErrArtifactCorrupt, location)
	}
	if err := b.Encoders.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrArtifactCorrupt, location, err)
	}
	b.Encoders.Warm()
	return &b, nil
}

// Regressor restores the fitted model held by b.
func (b *Bundle) Regressor() (ml.Regressor, error) {
	reg, err := ml.Restore(b.Algorithm, b.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrArtifactCorrupt, err)
	}
	return reg, nil
}
