package forecasting

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	BatchPending    = "pending"
	BatchProcessing = "processing"
	BatchCompleted  = "completed"
	BatchFailed     = "failed"
)

// BatchJob tracks one bulk prediction run over stores x products x dates.
// Status only moves pending -> processing -> {completed, failed}.
type BatchJob struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ModelID        uuid.UUID      `gorm:"type:uuid;column:model_id;not null;index" json:"model_id"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	DateStart      time.Time      `gorm:"column:prediction_date_start;type:date;not null" json:"prediction_date_start"`
	DateEnd        time.Time      `gorm:"column:prediction_date_end;type:date;not null" json:"prediction_date_end"`
	StoresFilter   datatypes.JSON `gorm:"column:stores_filter;type:jsonb" json:"stores_filter"`
	ProductsFilter datatypes.JSON `gorm:"column:products_filter;type:jsonb" json:"products_filter"`
	TotalCount     int            `gorm:"column:total_predictions;not null" json:"total_predictions"`
	CompletedCount int            `gorm:"column:completed_predictions;not null" json:"completed_predictions"`
	FailedCount    int            `gorm:"column:failed_predictions;not null" json:"failed_predictions"`
	ErrorLog       string         `gorm:"column:error_log" json:"error_log,omitempty"`
	CancelRequest  bool           `gorm:"column:cancel_requested;not null" json:"cancel_requested"`
	TaskID         *uuid.UUID     `gorm:"type:uuid;column:task_id;index" json:"task_id,omitempty"`
	RequestedBy    string         `gorm:"column:requested_by" json:"requested_by,omitempty"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (BatchJob) TableName() string { return "batch_prediction_job" }

func (j *BatchJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// Percentage of processed items, 0 when nothing is planned yet.
func (j *BatchJob) Percentage() float64 {
	if j == nil || j.TotalCount <= 0 {
		return 0
	}
	return float64(j.CompletedCount) / float64(j.TotalCount) * 100
}

// Terminal reports whether the job reached completed or failed.
func (j *BatchJob) Terminal() bool {
	return j != nil && (j.Status == BatchCompleted || j.Status == BatchFailed)
}

// CanTransition encodes the allowed status edges.
func CanTransition(from, to string) bool {
	switch from {
	case BatchPending:
		return to == BatchProcessing || to == BatchFailed
	case BatchProcessing:
		return to == BatchCompleted || to == BatchFailed
	default:
		return false
	}
}
