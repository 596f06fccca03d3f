package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

const (
	TypeBatchPredict    = "batch_predict"
	TypeModelTrain      = "model_train"
	TypeInventoryAlerts = "inventory_alerts"
	TypeSalesImport     = "sales_import"
)

type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType  string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	RequestedBy string         `gorm:"column:requested_by" json:"requested_by,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null;index" json:"stage"`
	Progress    int            `gorm:"column:progress;not null" json:"progress"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	Attempts    int            `gorm:"column:attempts;not null" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime;index" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

func (j *JobRun) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func (j *JobRun) Terminal() bool {
	if j == nil {
		return false
	}
	switch j.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
