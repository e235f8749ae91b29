package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/timetab-app/timetab-api/internal/models"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type constraintRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Constraint, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Constraint, error)
	Create(ctx context.Context, constraint *models.Constraint) error
	Update(ctx context.Context, constraint *models.Constraint) error
	Delete(ctx context.Context, institutionID, id string) error
}

// ConstraintInput carries constraint create/update payloads. ConstraintData
// is stored verbatim; unknown types are accepted and ignored at compile time.
type ConstraintInput struct {
	ConstraintType string          `json:"constraint_type" validate:"required,min=1"`
	ConstraintData json.RawMessage `json:"constraint_data"`
	Priority       int             `json:"priority" validate:"min=0,max=10"`
}

// ConstraintService manages stored scheduling rules.
type ConstraintService struct {
	constraints constraintRepository
	snapshots   snapshotInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewConstraintService constructs a ConstraintService. snapshots may be nil.
func NewConstraintService(constraints constraintRepository, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *ConstraintService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConstraintService{
		constraints: constraints,
		snapshots:   snapshots,
		validator:   validate,
		logger:      logger,
	}
}

// List returns every constraint of the institution.
func (s *ConstraintService) List(ctx context.Context, institutionID string) ([]models.Constraint, error) {
	constraints, err := s.constraints.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list constraints")
	}
	return constraints, nil
}

// Get fetches one constraint.
func (s *ConstraintService) Get(ctx context.Context, institutionID, id string) (*models.Constraint, error) {
	constraint, err := s.constraints.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "constraint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch constraint")
	}
	return constraint, nil
}

// Create stores a constraint.
func (s *ConstraintService) Create(ctx context.Context, institutionID string, input ConstraintInput) (*models.Constraint, error) {
	data, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	constraint := &models.Constraint{
		InstitutionID:  institutionID,
		ConstraintType: input.ConstraintType,
		ConstraintData: data,
		Priority:       input.Priority,
	}
	if err := s.constraints.Create(ctx, constraint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create constraint")
	}
	s.invalidate(ctx, institutionID)
	return constraint, nil
}

// Update modifies a constraint.
func (s *ConstraintService) Update(ctx context.Context, institutionID, id string, input ConstraintInput) (*models.Constraint, error) {
	constraint, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	data, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	constraint.ConstraintType = input.ConstraintType
	constraint.ConstraintData = data
	constraint.Priority = input.Priority
	if err := s.constraints.Update(ctx, constraint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update constraint")
	}
	s.invalidate(ctx, institutionID)
	return constraint, nil
}

// Delete removes a constraint.
func (s *ConstraintService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.constraints.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "constraint not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete constraint")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *ConstraintService) validateInput(input ConstraintInput) (types.JSONText, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid constraint payload")
	}
	data := input.ConstraintData
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if !json.Valid(data) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "constraint_data must be valid JSON")
	}
	return types.JSONText(data), nil
}

func (s *ConstraintService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
