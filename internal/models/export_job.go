package models

import "time"

// ExportFormat enumerates supported schedule export formats.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

// ExportStatus captures background export lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob is a persisted background schedule export.
type ExportJob struct {
	ID            string       `db:"id" json:"id"`
	InstitutionID string       `db:"institution_id" json:"institution_id"`
	ScheduleID    string       `db:"schedule_id" json:"schedule_id"`
	Format        ExportFormat `db:"format" json:"format"`
	Status        ExportStatus `db:"status" json:"status"`
	ResultURL     *string      `db:"result_url" json:"result_url,omitempty"`
	ResultPath    *string      `db:"result_path" json:"-"`
	ErrorMessage  *string      `db:"error_message" json:"error_message,omitempty"`
	CreatedBy     string       `db:"created_by" json:"created_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	FinishedAt    *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
}
