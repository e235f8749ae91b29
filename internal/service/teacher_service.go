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

type teacherRepository interface {
	List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Teacher, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Delete(ctx context.Context, institutionID, id string) error
	ListQualifications(ctx context.Context, teacherID string) ([]string, error)
	ReplaceQualifications(ctx context.Context, teacherID string, lessonIDs []string) error
}

type teacherLessonLookup interface {
	FindByID(ctx context.Context, institutionID, id string) (*models.Lesson, error)
}

// TeacherInput carries teacher create/update payloads.
type TeacherInput struct {
	FullName string  `json:"full_name" validate:"required,min=2"`
	Subject  *string `json:"subject"`
}

// TeacherService manages teachers and their lesson qualifications.
type TeacherService struct {
	repo      teacherRepository
	lessons   teacherLessonLookup
	snapshots snapshotInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs a TeacherService. snapshots may be nil.
func NewTeacherService(repo teacherRepository, lessons teacherLessonLookup, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TeacherService{repo: repo, lessons: lessons, snapshots: snapshots, validator: validate, logger: logger}
}

// List returns teachers with pagination metadata.
func (s *TeacherService) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, *models.Pagination, error) {
	teachers, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get fetches one teacher.
func (s *TeacherService) Get(ctx context.Context, institutionID, id string) (*models.Teacher, error) {
	teacher, err := s.repo.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch teacher")
	}
	return teacher, nil
}

// Create adds a teacher.
func (s *TeacherService) Create(ctx context.Context, institutionID string, input TeacherInput) (*models.Teacher, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher := &models.Teacher{
		InstitutionID: institutionID,
		FullName:      input.FullName,
		Subject:       input.Subject,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	s.invalidate(ctx, institutionID)
	return teacher, nil
}

// Update modifies a teacher.
func (s *TeacherService) Update(ctx context.Context, institutionID, id string, input TeacherInput) (*models.Teacher, error) {
	teacher, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	teacher.FullName = input.FullName
	teacher.Subject = input.Subject
	if err := s.repo.Update(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	s.invalidate(ctx, institutionID)
	return teacher, nil
}

// Delete removes a teacher.
func (s *TeacherService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.repo.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete teacher")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

// Qualifications lists the lesson ids a teacher may teach.
func (s *TeacherService) Qualifications(ctx context.Context, institutionID, teacherID string) ([]string, error) {
	if _, err := s.Get(ctx, institutionID, teacherID); err != nil {
		return nil, err
	}
	lessonIDs, err := s.repo.ListQualifications(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list qualifications")
	}
	return lessonIDs, nil
}

// SetQualifications replaces a teacher's qualification set. Every lesson must
// belong to the same institution.
func (s *TeacherService) SetQualifications(ctx context.Context, institutionID, teacherID string, lessonIDs []string) error {
	if _, err := s.Get(ctx, institutionID, teacherID); err != nil {
		return err
	}
	for _, lessonID := range lessonIDs {
		if _, err := s.lessons.FindByID(ctx, institutionID, lessonID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "unknown lesson "+lessonID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson")
		}
	}
	if err := s.repo.ReplaceQualifications(ctx, teacherID, lessonIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace qualifications")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *TeacherService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
