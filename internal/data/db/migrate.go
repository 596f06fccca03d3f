package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/smartinventory-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.All()...)
}

// EnsureForecastIndexes adds postgres-only indexes that gorm tags cannot express.
func EnsureForecastIndexes(db *gorm.DB) error {
	// Queue scans: queued rows by age, running rows by heartbeat.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run (status, created_at)
		WHERE status IN ('queued', 'running');
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}

	// Health checks read recent evaluated predictions of one model.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_prediction_model_evaluated
		ON forecast_prediction (model_id, created_at DESC)
		WHERE actual_demand IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_prediction_model_evaluated: %w", err)
	}

	// Alert listing is newest first, filtered by acknowledgement.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_alert_ack_created
		ON inventory_alert (is_acknowledged, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_alert_ack_created: %w", err)
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureForecastIndexes(s.db); err != nil {
		s.log.Error("Forecast index migration failed", "error", err)
		return err
	}
	return nil
}
