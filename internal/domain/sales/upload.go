package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UploadPending    = "pending"
	UploadProcessing = "processing"
	UploadCompleted  = "completed"
	UploadFailed     = "failed"
)

// DataUpload tracks one CSV import of sales observations.
type DataUpload struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalFilename string     `gorm:"column:original_filename;not null" json:"original_filename"`
	FilePath         string     `gorm:"column:file_path;not null" json:"-"`
	Status           string     `gorm:"column:status;not null;index" json:"status"`
	TotalRecords     int        `gorm:"column:total_records;not null" json:"total_records"`
	ProcessedRecords int        `gorm:"column:processed_records;not null" json:"processed_records"`
	ErrorRecords     int        `gorm:"column:error_records;not null" json:"error_records"`
	ErrorLog         string     `gorm:"column:error_log" json:"error_log,omitempty"`
	TaskID           *uuid.UUID `gorm:"type:uuid;column:task_id;index" json:"task_id,omitempty"`
	CreatedBy        string     `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (DataUpload) TableName() string { return "data_upload" }

func (u *DataUpload) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DataValidationError is one rejected upload row.
type DataValidationError struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UploadID     uuid.UUID `gorm:"type:uuid;column:upload_id;not null;index:idx_validation_upload_row,priority:1" json:"upload_id"`
	RowNumber    int       `gorm:"column:row_number;not null;index:idx_validation_upload_row,priority:2" json:"row_number"`
	ColumnName   string    `gorm:"column:column_name" json:"column_name,omitempty"`
	ErrorType    string    `gorm:"column:error_type;not null" json:"error_type"`
	ErrorMessage string    `gorm:"column:error_message;not null" json:"error_message"`
	RawValue     string    `gorm:"column:raw_value" json:"raw_value,omitempty"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (DataValidationError) TableName() string { return "data_validation_error" }

func (e *DataValidationError) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
