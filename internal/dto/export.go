package dto

import (
	"time"

	"github.com/timetab-app/timetab-api/internal/models"
)

// ExportRequest captures POST /schedules/:id/export payload.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required"`
}

// ExportJobResponse is returned after enqueueing an export and on status
// polls.
type ExportJobResponse struct {
	ID         string              `json:"id"`
	ScheduleID string              `json:"schedule_id"`
	Format     models.ExportFormat `json:"format"`
	Status     models.ExportStatus `json:"status"`
	ResultURL  *string             `json:"result_url,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// NewExportJobResponse maps a job row onto the API shape.
func NewExportJobResponse(job *models.ExportJob) ExportJobResponse {
	return ExportJobResponse{
		ID:         job.ID,
		ScheduleID: job.ScheduleID,
		Format:     job.Format,
		Status:     job.Status,
		ResultURL:  job.ResultURL,
		Error:      job.ErrorMessage,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
}
