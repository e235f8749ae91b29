package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Lesson, error)
	Create(ctx context.Context, lesson *models.Lesson) error
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, institutionID, id string) error
}

// snapshotInvalidator drops cached generation snapshots after reference-data
// writes, so the next generation sees fresh data.
type snapshotInvalidator interface {
	Invalidate(ctx context.Context, institutionID string)
}

// LessonInput carries lesson create/update payloads.
type LessonInput struct {
	Name            string  `json:"name" validate:"required,min=1"`
	SubjectCode     *string `json:"subject_code"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,min=5,max=480"`
}

// LessonService manages the lesson catalog.
type LessonService struct {
	repo      lessonRepository
	snapshots snapshotInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLessonService constructs a LessonService. snapshots may be nil.
func NewLessonService(repo lessonRepository, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LessonService{repo: repo, snapshots: snapshots, validator: validate, logger: logger}
}

// List returns lessons with pagination metadata.
func (s *LessonService) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, *models.Pagination, error) {
	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get fetches one lesson.
func (s *LessonService) Get(ctx context.Context, institutionID, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch lesson")
	}
	return lesson, nil
}

// Create adds a lesson to the catalog.
func (s *LessonService) Create(ctx context.Context, institutionID string, input LessonInput) (*models.Lesson, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson := &models.Lesson{
		InstitutionID:   institutionID,
		Name:            input.Name,
		SubjectCode:     input.SubjectCode,
		DurationMinutes: input.DurationMinutes,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.invalidate(ctx, institutionID)
	return lesson, nil
}

// Update modifies a lesson.
func (s *LessonService) Update(ctx context.Context, institutionID, id string, input LessonInput) (*models.Lesson, error) {
	lesson, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	lesson.Name = input.Name
	lesson.SubjectCode = input.SubjectCode
	lesson.DurationMinutes = input.DurationMinutes
	if err := s.repo.Update(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	s.invalidate(ctx, institutionID)
	return lesson, nil
}

// Delete removes a lesson.
func (s *LessonService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.repo.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *LessonService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
