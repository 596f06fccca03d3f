package forecasting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrainedModel is the registry row for one fitted artifact. At most one row
// has IsActive=true; the registry flips it inside a single transaction.
type TrainedModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;not null;uniqueIndex:idx_trained_model_name_version,priority:1" json:"name"`
	Version   int       `gorm:"column:version;not null;uniqueIndex:idx_trained_model_name_version,priority:2" json:"version"`
	Algorithm string    `gorm:"column:algorithm;not null" json:"algorithm"`

	Hyperparameters datatypes.JSON `gorm:"column:hyperparameters;type:jsonb" json:"hyperparameters"`
	Metrics         datatypes.JSON `gorm:"column:performance_metrics;type:jsonb" json:"performance_metrics"`
	Encoders        datatypes.JSON `gorm:"column:encoders;type:jsonb" json:"-"`
	FeatureSchema   datatypes.JSON `gorm:"column:feature_schema;type:jsonb" json:"feature_schema"`

	ArtifactPath        string    `gorm:"column:artifact_path;not null" json:"artifact_path"`
	TrainingDataVersion string    `gorm:"column:training_data_version" json:"training_data_version,omitempty"`
	IsActive            bool      `gorm:"column:is_active;not null;index" json:"is_active"`
	TrainedAt           time.Time `gorm:"column:trained_at;not null;index" json:"trained_at"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (TrainedModel) TableName() string { return "trained_model" }

func (m *TrainedModel) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// TrainingMetrics is the record returned by training and stored on the model.
type TrainingMetrics struct {
	TrainMAE     float64 `json:"train_mae"`
	TestMAE      float64 `json:"test_mae"`
	TrainRMSE    float64 `json:"train_rmse"`
	TestRMSE     float64 `json:"test_rmse"`
	TrainMAPE    float64 `json:"train_mape"`
	TestMAPE     float64 `json:"test_mape"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`
}
