package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/smartinventory-backend/internal/jobs/pipeline/batch_predict"
	"github.com/yungbote/smartinventory-backend/internal/ml"
	"github.com/yungbote/smartinventory-backend/internal/pkg/logger"
	"github.com/yungbote/smartinventory-backend/internal/platform/envutil"
	"github.com/yungbote/smartinventory-backend/internal/services"
)

const (
	ArtifactBackendFile = "file"
	ArtifactBackendGCS  = "gcs"
)

type Config struct {
	ServiceName   string
	Environment   string
	Version       string
	HTTPAddr      string
	MetricsAddr   string
	ShutdownGrace time.Duration
	CORSOrigins   []string

	RunWorker bool

	ArtifactBackend string
	ArtifactDir     string
	GCSBucket       string
	GCSPrefix       string

	UploadDir      string
	UploadMaxBytes int64

	ModelCacheTTL      time.Duration
	ArtifactTimeout    time.Duration
	PredictionCacheTTL time.Duration
	PredictionCacheMax int
	HistoryDays        int
	Confidence         services.ProportionalBand

	Alerts     services.AlertThresholds
	AlertTopic string
	Batch      batch_predict.Options
	Health     services.HealthOptions

	Algorithm       string
	Hyperparameters ml.Params
}

// fileConfig is the optional YAML overlay. Unset keys keep the env values.
type fileConfig struct {
	Alerts struct {
		SafetyFactor    *float64 `yaml:"safety_factor"`
		OverstockFactor *float64 `yaml:"overstock_factor"`
		LookaheadDays   *int     `yaml:"lookahead_days"`
	} `yaml:"alerts"`
	Batch struct {
		ChunkSize   *int           `yaml:"chunk_size"`
		Parallelism *int           `yaml:"parallelism"`
		ItemTimeout *time.Duration `yaml:"item_timeout"`
	} `yaml:"batch"`
	Health struct {
		MaxAgeDays    *int     `yaml:"max_age_days"`
		MAPEThreshold *float64 `yaml:"mape_threshold"`
	} `yaml:"health"`
	Confidence struct {
		ErrorFraction *float64 `yaml:"error_fraction"`
		Z             *float64 `yaml:"z"`
	} `yaml:"confidence"`
	Training struct {
		Algorithm       string         `yaml:"algorithm"`
		Hyperparameters map[string]any `yaml:"hyperparameters"`
	} `yaml:"training"`
	CORSOrigins []string `yaml:"cors_origins"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		ServiceName:   envutil.String("SERVICE_NAME", "smartinventory"),
		Environment:   envutil.String("ENVIRONMENT", "development"),
		Version:       envutil.String("SERVICE_VERSION", "dev"),
		HTTPAddr:      httpAddr(),
		MetricsAddr:   envutil.String("METRICS_ADDR", ""),
		ShutdownGrace: envutil.Duration("SHUTDOWN_GRACE", 15*time.Second),
		CORSOrigins:   envutil.List("CORS_ORIGINS"),

		RunWorker: envutil.Bool("WORKER_ENABLED", true),

		ArtifactBackend: strings.ToLower(envutil.String("ARTIFACT_BACKEND", ArtifactBackendFile)),
		ArtifactDir:     envutil.String("ARTIFACT_DIR", "models"),
		GCSBucket:       envutil.String("ARTIFACT_GCS_BUCKET", ""),
		GCSPrefix:       envutil.String("ARTIFACT_GCS_PREFIX", "models"),

		UploadDir:      envutil.String("UPLOAD_DIR", "data/uploads"),
		UploadMaxBytes: int64(envutil.Int("UPLOAD_MAX_MB", 100)) << 20,

		ModelCacheTTL:      envutil.Duration("MODEL_CACHE_TTL", time.Hour),
		ArtifactTimeout:    envutil.Duration("ARTIFACT_LOAD_TIMEOUT", 30*time.Second),
		PredictionCacheTTL: envutil.Duration("PREDICTION_CACHE_TTL", time.Hour),
		PredictionCacheMax: envutil.Int("PREDICTION_CACHE_MAX_ENTRIES", 100000),
		HistoryDays:        envutil.Int("FEATURE_HISTORY_DAYS", 60),
		Confidence: services.ProportionalBand{
			ErrorFraction: envutil.Float("PREDICTION_ERROR_FRACTION", 0.2),
			Z:             envutil.Float("CONFIDENCE_Z", 1.96),
		},

		Alerts: services.AlertThresholds{
			SafetyFactor:    envutil.Float("ALERT_SAFETY_FACTOR", 1.5),
			OverstockFactor: envutil.Float("ALERT_OVERSTOCK_FACTOR", 4),
			LookaheadDays:   envutil.Int("ALERT_LOOKAHEAD_DAYS", 30),
		},
		AlertTopic: envutil.String("KAFKA_ALERT_TOPIC", "inventory.alerts"),
		Batch: batch_predict.Options{
			ChunkSize:   envutil.Int("BATCH_PREDICT_CHUNK_SIZE", 100),
			Parallelism: envutil.Int("BATCH_PREDICT_PARALLELISM", 4),
			ItemTimeout: envutil.Duration("BATCH_ITEM_TIMEOUT", 10*time.Second),
		},
		Health: services.HealthOptions{
			MaxAge:        time.Duration(envutil.Int("MODEL_MAX_AGE_DAYS", 30)) * 24 * time.Hour,
			MAPEThreshold: envutil.Float("MODEL_RETRAIN_MAPE_THRESHOLD", 15),
			Window:        7 * 24 * time.Hour,
		},

		Algorithm: envutil.String("TRAIN_ALGORITHM", ml.AlgorithmGradientBoosting),
	}

	if path := envutil.String("FORECAST_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config overlay", "path", path)
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func httpAddr() string {
	if addr := envutil.String("HTTP_ADDR", ""); addr != "" {
		return addr
	}
	return ":" + envutil.String("PORT", "8080")
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.merge(fc)
	return nil
}

func (c *Config) merge(fc fileConfig) {
	setF := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setI := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setF(&c.Alerts.SafetyFactor, fc.Alerts.SafetyFactor)
	setF(&c.Alerts.OverstockFactor, fc.Alerts.OverstockFactor)
	setI(&c.Alerts.LookaheadDays, fc.Alerts.LookaheadDays)
	setI(&c.Batch.ChunkSize, fc.Batch.ChunkSize)
	setI(&c.Batch.Parallelism, fc.Batch.Parallelism)
	if fc.Batch.ItemTimeout != nil {
		c.Batch.ItemTimeout = *fc.Batch.ItemTimeout
	}
	if fc.Health.MaxAgeDays != nil {
		c.Health.MaxAge = time.Duration(*fc.Health.MaxAgeDays) * 24 * time.Hour
	}
	setF(&c.Health.MAPEThreshold, fc.Health.MAPEThreshold)
	setF(&c.Confidence.ErrorFraction, fc.Confidence.ErrorFraction)
	setF(&c.Confidence.Z, fc.Confidence.Z)
	if fc.Training.Algorithm != "" {
		c.Algorithm = fc.Training.Algorithm
	}
	if len(fc.Training.Hyperparameters) > 0 {
		c.Hyperparameters = ml.Params(fc.Training.Hyperparameters)
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
}

func (c *Config) validate() error {
	switch c.ArtifactBackend {
	case ArtifactBackendFile:
	case ArtifactBackendGCS:
		if strings.TrimSpace(c.GCSBucket) == "" {
			return fmt.Errorf("ARTIFACT_BACKEND=gcs requires ARTIFACT_GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACT_BACKEND %q", c.ArtifactBackend)
	}
	if c.Alerts.SafetyFactor <= 0 || c.Alerts.OverstockFactor <= c.Alerts.SafetyFactor {
		return fmt.Errorf("alert thresholds need 0 < safety_factor < overstock_factor (got %v, %v)", c.Alerts.SafetyFactor, c.Alerts.OverstockFactor)
	}
	if _, err := ml.Defaults(c.Algorithm, c.Hyperparameters); err != nil {
		return fmt.Errorf("training config: %w", err)
	}
	return nil
}
