package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/repository"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/export"
	"github.com/timetab-app/timetab-api/pkg/jobs"
	"github.com/timetab-app/timetab-api/pkg/storage"
)

type stubExportJobStore struct {
	jobs map[string]*models.ExportJob
}

func newStubExportJobStore() *stubExportJobStore {
	return &stubExportJobStore{jobs: map[string]*models.ExportJob{}}
}

func (s *stubExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = "job-1"
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *stubExportJobStore) GetByID(ctx context.Context, institutionID, id string) (*models.ExportJob, error) {
	job, ok := s.jobs[id]
	if !ok || job.InstitutionID != institutionID {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *stubExportJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job := s.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ResultPath != nil {
		job.ResultPath = params.ResultPath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *stubExportJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range s.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (s *stubExportJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type stubScheduleRenderer struct {
	schedule *models.Schedule
}

func (s *stubScheduleRenderer) Get(ctx context.Context, institutionID, id string) (*models.Schedule, error) {
	if s.schedule == nil || s.schedule.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	return s.schedule, nil
}

func (s *stubScheduleRenderer) BuildGrid(ctx context.Context, institutionID, scheduleID string) (export.TimetableGrid, error) {
	return export.TimetableGrid{
		Title:      "9A Odd Semester",
		DayLabels:  []string{"Monday"},
		SlotLabels: []string{"07:00-07:45"},
		Cells:      [][]string{{"9A Mathematics (R. Pratama, 101)"}},
	}, nil
}

func (s *stubScheduleRenderer) BuildDataset(ctx context.Context, institutionID, scheduleID string) (export.Dataset, string, error) {
	return export.Dataset{
		Headers: []string{"Day", "Lesson"},
		Rows:    []map[string]string{{"Day": "Monday", "Lesson": "Mathematics"}},
	}, "Timetable Odd Semester", nil
}

type stubQueue struct {
	enqueued []jobs.Job
	err      error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func exportFixture(t *testing.T) (*ExportService, *stubExportJobStore, *stubQueue) {
	t.Helper()
	store := newStubExportJobStore()
	fileStore, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	queue := &stubQueue{}

	svc := NewExportService(
		store,
		&stubScheduleRenderer{schedule: &models.Schedule{ID: "sched-1", InstitutionID: "inst-1", Name: "Odd Semester"}},
		fileStore,
		storage.NewSignedURLSigner("export-secret", time.Hour),
		nil,
		ExportConfig{APIPrefix: "/api/v1"},
		nil,
	)
	svc.SetQueue(queue)
	return svc, store, queue
}

func TestCreateJobEnqueues(t *testing.T) {
	svc, store, queue := exportFixture(t)

	job, err := svc.CreateJob(context.Background(), "inst-1", "sched-1", models.ExportFormatPDF, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusQueued, job.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, job.ID, queue.enqueued[0].ID)
	require.Contains(t, store.jobs, job.ID)
}

func TestCreateJobRejectsUnknownFormat(t *testing.T) {
	svc, _, queue := exportFixture(t)

	_, err := svc.CreateJob(context.Background(), "inst-1", "sched-1", models.ExportFormat("xlsx"), "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Empty(t, queue.enqueued)
}

func TestCreateJobRejectsUnknownSchedule(t *testing.T) {
	svc, store, _ := exportFixture(t)

	_, err := svc.CreateJob(context.Background(), "inst-1", "missing", models.ExportFormatPDF, "user-1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	require.Empty(t, store.jobs)
}

func TestProcessRendersAndSigns(t *testing.T) {
	for _, format := range []models.ExportFormat{models.ExportFormatPDF, models.ExportFormatCSV} {
		t.Run(string(format), func(t *testing.T) {
			svc, store, queue := exportFixture(t)
			job, err := svc.CreateJob(context.Background(), "inst-1", "sched-1", format, "user-1")
			require.NoError(t, err)

			require.NoError(t, svc.Process(context.Background(), queue.enqueued[0]))

			stored := store.jobs[job.ID]
			require.Equal(t, models.ExportStatusFinished, stored.Status)
			require.NotNil(t, stored.ResultURL)
			require.Contains(t, *stored.ResultURL, "/api/v1/export/")
			require.NotNil(t, stored.FinishedAt)

			download, err := svc.ResolveDownload((*stored.ResultURL)[len("/api/v1/export/"):])
			require.NoError(t, err)
			defer download.File.Close()
			info, err := download.File.Stat()
			require.NoError(t, err)
			require.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestResolveDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _ := exportFixture(t)

	_, err := svc.ResolveDownload("not-a-real-token")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
