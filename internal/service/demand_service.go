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

type demandRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.LessonDemand, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.LessonDemand, error)
	Create(ctx context.Context, demand *models.LessonDemand) error
	Update(ctx context.Context, demand *models.LessonDemand) error
	Delete(ctx context.Context, institutionID, id string) error
}

type demandLessonLookup interface {
	FindByID(ctx context.Context, institutionID, id string) (*models.Lesson, error)
}

type demandClassGroupLookup interface {
	FindByID(ctx context.Context, institutionID, id string) (*models.ClassGroup, error)
}

type demandStudyGroupLookup interface {
	FindByID(ctx context.Context, institutionID, id string) (*models.StudyGroup, error)
}

// DemandInput carries demand create/update payloads. Exactly one of
// ClassGroupID and StudyGroupID must be set.
type DemandInput struct {
	LessonID     string  `json:"lesson_id" validate:"required"`
	ClassGroupID *string `json:"class_group_id"`
	StudyGroupID *string `json:"study_group_id"`
	Count        int     `json:"count" validate:"required,min=1"`
}

// DemandService manages lesson demands, the weekly occurrence requirements
// the generator expands into placement requests.
type DemandService struct {
	demands     demandRepository
	lessons     demandLessonLookup
	classGroups demandClassGroupLookup
	studyGroups demandStudyGroupLookup
	snapshots   snapshotInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDemandService constructs a DemandService. snapshots may be nil.
func NewDemandService(demands demandRepository, lessons demandLessonLookup, classGroups demandClassGroupLookup, studyGroups demandStudyGroupLookup, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *DemandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DemandService{
		demands:     demands,
		lessons:     lessons,
		classGroups: classGroups,
		studyGroups: studyGroups,
		snapshots:   snapshots,
		validator:   validate,
		logger:      logger,
	}
}

// List returns every demand of the institution.
func (s *DemandService) List(ctx context.Context, institutionID string) ([]models.LessonDemand, error) {
	demands, err := s.demands.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list demands")
	}
	return demands, nil
}

// Get fetches one demand.
func (s *DemandService) Get(ctx context.Context, institutionID, id string) (*models.LessonDemand, error) {
	demand, err := s.demands.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "demand not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch demand")
	}
	return demand, nil
}

// Create adds a demand after verifying its lesson and group references.
func (s *DemandService) Create(ctx context.Context, institutionID string, input DemandInput) (*models.LessonDemand, error) {
	if err := s.validateInput(ctx, institutionID, input); err != nil {
		return nil, err
	}
	demand := &models.LessonDemand{
		InstitutionID: institutionID,
		LessonID:      input.LessonID,
		ClassGroupID:  input.ClassGroupID,
		StudyGroupID:  input.StudyGroupID,
		Count:         input.Count,
	}
	if err := s.demands.Create(ctx, demand); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create demand")
	}
	s.invalidate(ctx, institutionID)
	return demand, nil
}

// Update modifies a demand.
func (s *DemandService) Update(ctx context.Context, institutionID, id string, input DemandInput) (*models.LessonDemand, error) {
	demand, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateInput(ctx, institutionID, input); err != nil {
		return nil, err
	}
	demand.LessonID = input.LessonID
	demand.ClassGroupID = input.ClassGroupID
	demand.StudyGroupID = input.StudyGroupID
	demand.Count = input.Count
	if err := s.demands.Update(ctx, demand); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update demand")
	}
	s.invalidate(ctx, institutionID)
	return demand, nil
}

// Delete removes a demand.
func (s *DemandService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.demands.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "demand not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete demand")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *DemandService) validateInput(ctx context.Context, institutionID string, input DemandInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid demand payload")
	}
	if _, err := models.GroupRefFromColumns(input.ClassGroupID, input.StudyGroupID); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "exactly one of class_group_id and study_group_id must be set")
	}
	if _, err := s.lessons.FindByID(ctx, institutionID, input.LessonID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown lesson "+input.LessonID)
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson")
	}
	if input.ClassGroupID != nil {
		if _, err := s.classGroups.FindByID(ctx, institutionID, *input.ClassGroupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "unknown class group "+*input.ClassGroupID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class group")
		}
	}
	if input.StudyGroupID != nil {
		if _, err := s.studyGroups.FindByID(ctx, institutionID, *input.StudyGroupID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "unknown study group "+*input.StudyGroupID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check study group")
		}
	}
	return nil
}

func (s *DemandService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
