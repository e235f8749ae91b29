package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/repository"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
	"github.com/timetab-app/timetab-api/pkg/export"
	"github.com/timetab-app/timetab-api/pkg/jobs"
	"github.com/timetab-app/timetab-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, institutionID, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type scheduleRenderer interface {
	Get(ctx context.Context, institutionID, id string) (*models.Schedule, error)
	BuildGrid(ctx context.Context, institutionID, scheduleID string) (export.TimetableGrid, error)
	BuildDataset(ctx context.Context, institutionID, scheduleID string) (export.Dataset, string, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type timetableRenderer interface {
	RenderTimetable(grid export.TimetableGrid) ([]byte, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportObserver interface {
	CountExport(status string)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	ExpiresAt time.Time
}

// exportJobPayload travels with the queued job so the worker can load the
// row without a second lookup key.
type exportJobPayload struct {
	InstitutionID string
	JobID         string
}

// ExportService renders schedule timetables in the background and hands out
// signed download links.
type ExportService struct {
	store     exportJobStore
	schedules scheduleRenderer
	storage   exportFileStorage
	queue     jobDispatcher
	pdf       timetableRenderer
	csv       datasetRenderer
	signer    *storage.SignedURLSigner
	metrics   exportObserver
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. queue may be attached later
// via SetQueue to break the service/queue construction cycle.
func NewExportService(store exportJobStore, schedules scheduleRenderer, fileStore exportFileStorage, signer *storage.SignedURLSigner, metrics exportObserver, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		store:     store,
		schedules: schedules,
		storage:   fileStore,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		signer:    signer,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// SetQueue attaches the dispatcher the service enqueues jobs onto.
func (s *ExportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists the job, and enqueues rendering.
func (s *ExportService) CreateJob(ctx context.Context, institutionID, scheduleID string, format models.ExportFormat, actorID string) (*models.ExportJob, error) {
	if format != models.ExportFormatPDF && format != models.ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if _, err := s.schedules.Get(ctx, institutionID, scheduleID); err != nil {
		return nil, err
	}
	job := &models.ExportJob{
		InstitutionID: institutionID,
		ScheduleID:    scheduleID,
		Format:        format,
		Status:        models.ExportStatusQueued,
		CreatedBy:     actorID,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue not running")
	}
	payload := exportJobPayload{InstitutionID: institutionID, JobID: job.ID}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "schedule_export", Payload: payload}); err != nil {
		s.failJob(ctx, job.ID, "failed to enqueue export job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// GetStatus exposes job metadata to clients.
func (s *ExportService) GetStatus(ctx context.Context, institutionID, id string) (*models.ExportJob, error) {
	job, err := s.store.GetByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// Process is the queue handler: it renders the schedule and stores the file.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	payload, ok := queued.Payload.(exportJobPayload)
	if !ok {
		return fmt.Errorf("export job %s carries unexpected payload %T", queued.ID, queued.Payload)
	}
	job, err := s.store.GetByID(ctx, payload.InstitutionID, payload.JobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", payload.JobID, err)
	}
	if job.Status == models.ExportStatusFinished {
		return nil
	}

	processing := models.ExportStatusProcessing
	if err := s.store.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		s.logger.Warn("failed to mark export processing", zap.String("job_id", job.ID), zap.Error(err))
	}

	payloadBytes, renderErr := s.render(ctx, job)
	if renderErr != nil {
		s.failJob(ctx, job.ID, renderErr.Error())
		s.countExport("failed")
		return renderErr
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payloadBytes)
	if err != nil {
		s.failJob(ctx, job.ID, "failed to store export file")
		s.countExport("failed")
		return fmt.Errorf("store export %s: %w", job.ID, err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.failJob(ctx, job.ID, "failed to sign download url")
		s.countExport("failed")
		return fmt.Errorf("sign export %s: %w", job.ID, err)
	}
	resultURL := fmt.Sprintf("%s/export/%s", strings.TrimRight(s.apiPrefix(), "/"), token)

	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	if err := s.store.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		ResultURL:  &resultURL,
		ResultPath: &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finalize export %s: %w", job.ID, err)
	}
	s.countExport("finished")
	s.logger.Info("schedule export finished",
		zap.String("job_id", job.ID),
		zap.String("schedule_id", job.ScheduleID),
		zap.String("format", string(job.Format)),
	)
	return nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ExportService) ResolveDownload(token string) (*ExportDownload, error) {
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer available")
	}
	return &ExportDownload{File: file, Filename: relPath, ExpiresAt: expiresAt}, nil
}

// RecoverQueued re-enqueues jobs left queued by a previous process.
func (s *ExportService) RecoverQueued(ctx context.Context, limit int) error {
	queued, err := s.store.ListQueued(ctx, limit)
	if err != nil {
		return err
	}
	for _, job := range queued {
		payload := exportJobPayload{InstitutionID: job.InstitutionID, JobID: job.ID}
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "schedule_export", Payload: payload}); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup drops export files and rows older than the result TTL.
func (s *ExportService) Cleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.ResultTTL)
	stale, err := s.store.ListFinishedBefore(ctx, cutoff, 100)
	if err != nil {
		return err
	}
	for _, job := range stale {
		if job.ResultPath != nil {
			if err := s.storage.Delete(*job.ResultPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("failed to delete stale export file", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}
	if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		return err
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, error) {
	switch job.Format {
	case models.ExportFormatPDF:
		grid, err := s.schedules.BuildGrid(ctx, job.InstitutionID, job.ScheduleID)
		if err != nil {
			return nil, err
		}
		return s.pdf.RenderTimetable(grid)
	case models.ExportFormatCSV:
		dataset, _, err := s.schedules.BuildDataset(ctx, job.InstitutionID, job.ScheduleID)
		if err != nil {
			return nil, err
		}
		return s.csv.Render(dataset)
	default:
		return nil, fmt.Errorf("unsupported export format %s", job.Format)
	}
}

func (s *ExportService) failJob(ctx context.Context, jobID, message string) {
	failed := models.ExportStatusFailed
	now := time.Now().UTC()
	if err := s.store.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &failed,
		ErrorMessage: &message,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark export failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *ExportService) countExport(status string) {
	if s.metrics != nil {
		s.metrics.CountExport(status)
	}
}

func (s *ExportService) apiPrefix() string {
	if s.cfg.APIPrefix == "" {
		return "/api/v1"
	}
	return s.cfg.APIPrefix
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("schedule_%s_%s.%s", job.ScheduleID, timestamp, job.Format)
}
