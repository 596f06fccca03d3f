package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FORECAST_CONFIG_FILE", "")
	t.Setenv("ARTIFACT_BACKEND", "")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr: %q", cfg.HTTPAddr)
	}
	if cfg.Alerts.SafetyFactor != 1.5 || cfg.Alerts.OverstockFactor != 4 || cfg.Alerts.LookaheadDays != 30 {
		t.Fatalf("alert defaults: %+v", cfg.Alerts)
	}
	if cfg.Health.MaxAge != 30*24*time.Hour || cfg.Health.MAPEThreshold != 15 {
		t.Fatalf("health defaults: %+v", cfg.Health)
	}
	if cfg.Batch.ChunkSize != 100 || cfg.ArtifactBackend != ArtifactBackendFile {
		t.Fatalf("batch/artifact defaults: %+v %q", cfg.Batch, cfg.ArtifactBackend)
	}
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	body := `
alerts:
  safety_factor: 2
  lookahead_days: 14
batch:
  chunk_size: 250
  item_timeout: 3s
health:
  max_age_days: 10
training:
  algorithm: ridge
  hyperparameters:
    alpha: 0.5
cors_origins: ["https://ops.example.com"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FORECAST_CONFIG_FILE", path)
	t.Setenv("ARTIFACT_BACKEND", "")
	t.Setenv("ALERT_OVERSTOCK_FACTOR", "5")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Alerts.SafetyFactor != 2 || cfg.Alerts.OverstockFactor != 5 || cfg.Alerts.LookaheadDays != 14 {
		t.Fatalf("alerts overlay: %+v", cfg.Alerts)
	}
	if cfg.Batch.ChunkSize != 250 || cfg.Batch.ItemTimeout != 3*time.Second {
		t.Fatalf("batch overlay: %+v", cfg.Batch)
	}
	if cfg.Health.MaxAge != 10*24*time.Hour {
		t.Fatalf("health overlay: %v", cfg.Health.MaxAge)
	}
	if cfg.Algorithm != "ridge" || cfg.Hyperparameters["alpha"] != 0.5 {
		t.Fatalf("training overlay: %q %v", cfg.Algorithm, cfg.Hyperparameters)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "https://ops.example.com" {
		t.Fatalf("cors overlay: %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigRejectsBadSettings(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"gcs without bucket", map[string]string{"ARTIFACT_BACKEND": "gcs", "ARTIFACT_GCS_BUCKET": ""}, "ARTIFACT_GCS_BUCKET"},
		{"unknown backend", map[string]string{"ARTIFACT_BACKEND": "s3"}, "unsupported"},
		{"inverted thresholds", map[string]string{"ALERT_SAFETY_FACTOR": "5", "ALERT_OVERSTOCK_FACTOR": "4"}, "safety_factor"},
		{"unknown algorithm", map[string]string{"TRAIN_ALGORITHM": "prophet"}, "unknown algorithm"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("FORECAST_CONFIG_FILE", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
