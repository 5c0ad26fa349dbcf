package models

import "time"

// ExportJobStatus tracks the lifecycle of an asynchronous export.
type ExportJobStatus string

const (
	ExportJobPending ExportJobStatus = "PENDING"
	ExportJobReady   ExportJobStatus = "READY"
	ExportJobFailed  ExportJobStatus = "FAILED"
)

// ExportJob describes one requested timetable export.
type ExportJob struct {
	ID          string          `json:"id"`
	TimetableID string          `json:"timetable_id"`
	Class       string          `json:"class"`
	Section     string          `json:"section"`
	Format      string          `json:"format"`
	Status      ExportJobStatus `json:"status"`
	FilePath    string          `json:"file_path,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
