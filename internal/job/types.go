package job

import (
	"time"

	"nfesorter/internal/report"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job tracks one upload from acceptance to result. OutputPath and Stats
// stay empty unless the job completed.
type Job struct {
	ID           string        `json:"id" gorm:"type:text;primaryKey"`
	Status       Status        `json:"status" gorm:"type:text;not null;index"`
	OriginalName string        `json:"original_name,omitempty"`
	InputPath    string        `json:"input_path"`
	OutputPath   string        `json:"output_path,omitempty"`
	Stats        *report.Stats `json:"stats,omitempty" gorm:"serializer:json"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName returns the table used by the SQL store.
func (Job) TableName() string { return "jobs" }

type Options struct {
	DataDir           string
	UploadExtensions  []string
	MaxConcurrentJobs int
	// Store persists job records; defaults to the file store under DataDir.
	Store Store
}

const defaultMaxConcurrent = 3
