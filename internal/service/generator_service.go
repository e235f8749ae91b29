package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/scheduler"
	"github.com/timetab-app/timetab-api/pkg/config"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type generatorScheduleRepo interface {
	FindByID(ctx context.Context, institutionID, id string) (*models.Schedule, error)
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, scheduleID string, entries []models.ScheduleEntry) error
	MarkGenerated(ctx context.Context, exec sqlx.ExtContext, scheduleID string, generatedAt time.Time) error
}

type snapshotSource interface {
	Load(ctx context.Context, institutionID string) (*scheduler.Snapshot, error)
}

type generationObserver interface {
	ObserveGeneration(outcome string, seconds float64, backtracks int)
}

// GenerateResult is the outcome reported to the API for one generation run.
// Success is false for infeasible and timed-out runs; those are legitimate
// answers, not errors.
type GenerateResult struct {
	Success      bool
	Message      string
	EntriesCount *int
	Warnings     []string
}

// GeneratorService orchestrates the timetable generation pipeline: snapshot,
// validation, constraint compilation, demand expansion, search, independent
// verification, and atomic materialization.
type GeneratorService struct {
	schedules generatorScheduleRepo
	snapshots snapshotSource
	metrics   generationObserver
	config    config.GeneratorConfig
	logger    *zap.Logger
	locks     *generationLocks
}

// NewGeneratorService constructs a GeneratorService. metrics may be nil.
func NewGeneratorService(schedules generatorScheduleRepo, snapshots snapshotSource, metrics generationObserver, cfg config.GeneratorConfig, logger *zap.Logger) *GeneratorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = 15 * time.Minute
	}
	return &GeneratorService{
		schedules: schedules,
		snapshots: snapshots,
		metrics:   metrics,
		config:    cfg,
		logger:    logger,
		locks:     newGenerationLocks(),
	}
}

// Generate runs the full pipeline for one schedule. timeout nil applies the
// configured default; any value is clamped to the configured maximum. A zero
// timeout is honored literally and yields an immediate timed-out result.
func (s *GeneratorService) Generate(ctx context.Context, institutionID, scheduleID string, timeout *time.Duration) (*GenerateResult, error) {
	schedule, err := s.schedules.FindByID(ctx, institutionID, scheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch schedule")
	}

	if !s.locks.TryAcquire(schedule.ID) {
		return nil, appErrors.Clone(appErrors.ErrGenerationInProgress, "")
	}
	defer s.locks.Release(schedule.ID)

	budget := s.resolveTimeout(timeout)
	started := time.Now()

	snap, err := s.snapshots.Load(ctx, institutionID)
	if err != nil {
		if errors.Is(err, scheduler.ErrIncompleteReferenceData) {
			return nil, appErrors.Wrap(err, appErrors.ErrIncompleteReferenceData.Code, appErrors.ErrIncompleteReferenceData.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}
	if err := snap.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrIncompleteReferenceData.Code, appErrors.ErrIncompleteReferenceData.Status, err.Error())
	}

	rules := scheduler.Compile(snap, s.logger)
	requests := scheduler.ExpandDemands(snap)

	// The search runs on its own goroutine so a cancelled request stops
	// waiting; the deadline still bounds the search itself.
	resultCh := make(chan scheduler.Result, 1)
	go func() {
		resultCh <- scheduler.Solve(snap, rules, requests, started.Add(budget))
	}()

	var result scheduler.Result
	select {
	case <-ctx.Done():
		s.observe("canceled", time.Since(started), 0)
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "generation canceled")
	case result = <-resultCh:
	}
	elapsed := time.Since(started)
	s.observe(string(result.Status), elapsed, result.Stats.Backtracks)
	s.logger.Info("generation finished",
		zap.String("schedule_id", schedule.ID),
		zap.String("status", string(result.Status)),
		zap.Int("requests", len(requests)),
		zap.Int("nodes", result.Stats.Nodes),
		zap.Int("backtracks", result.Stats.Backtracks),
		zap.Duration("elapsed", elapsed),
	)

	switch result.Status {
	case scheduler.StatusTimedOut:
		return &GenerateResult{
			Success:  false,
			Message:  fmt.Sprintf("generation timed out after %s: %s", budget, result.Diagnostic),
			Warnings: rules.Warnings,
		}, nil
	case scheduler.StatusInfeasible:
		return &GenerateResult{
			Success:  false,
			Message:  "no feasible timetable exists: " + result.Diagnostic,
			Warnings: rules.Warnings,
		}, nil
	}

	if err := scheduler.VerifySolution(snap, result.Best.Assignments); err != nil {
		s.logger.Error("solver produced an inconsistent assignment", zap.String("schedule_id", schedule.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrSolverInconsistent.Code, appErrors.ErrSolverInconsistent.Status, appErrors.ErrSolverInconsistent.Message)
	}

	entries := buildEntries(schedule, result.Best.Assignments)
	if err := s.materialize(ctx, schedule.ID, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist generated schedule")
	}

	count := len(entries)
	return &GenerateResult{
		Success:      true,
		Message:      fmt.Sprintf("generated %d entries (cost %.0f)", count, result.Best.Cost),
		EntriesCount: &count,
		Warnings:     rules.Warnings,
	}, nil
}

func (s *GeneratorService) resolveTimeout(timeout *time.Duration) time.Duration {
	if timeout == nil {
		return s.config.DefaultTimeout
	}
	budget := *timeout
	if budget < 0 {
		budget = 0
	}
	if budget > s.config.MaxTimeout {
		budget = s.config.MaxTimeout
	}
	return budget
}

func (s *GeneratorService) observe(outcome string, elapsed time.Duration, backtracks int) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(outcome, elapsed.Seconds(), backtracks)
	}
}

// materialize swaps the schedule's entries and flips it to generated inside
// one transaction. Old entries survive any failure.
func (s *GeneratorService) materialize(ctx context.Context, scheduleID string, entries []models.ScheduleEntry) error {
	tx, err := s.schedules.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.schedules.ReplaceEntries(ctx, tx, scheduleID, entries); err != nil {
		return err
	}
	if err := s.schedules.MarkGenerated(ctx, tx, scheduleID, time.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit generation tx: %w", err)
	}
	return nil
}

func buildEntries(schedule *models.Schedule, assignments []scheduler.Assignment) []models.ScheduleEntry {
	entries := make([]models.ScheduleEntry, 0, len(assignments))
	for _, a := range assignments {
		classGroupID, studyGroupID := a.Request.Group.Columns()
		entries = append(entries, models.ScheduleEntry{
			ScheduleID:    schedule.ID,
			InstitutionID: schedule.InstitutionID,
			LessonID:      a.Request.LessonID,
			TeacherID:     a.Candidate.TeacherID,
			RoomID:        a.Candidate.RoomID,
			TimeSlotID:    a.Candidate.TimeSlotID,
			ClassGroupID:  classGroupID,
			StudyGroupID:  studyGroupID,
			WeekNumber:    a.Candidate.Week,
		})
	}
	return entries
}
