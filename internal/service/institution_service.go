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

type institutionRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Institution, error)
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	OwnedBy(ctx context.Context, id, userID string) (bool, error)
	Create(ctx context.Context, institution *models.Institution) error
	Update(ctx context.Context, institution *models.Institution) error
	Delete(ctx context.Context, id string) error
}

// InstitutionInput carries institution create/update payloads.
type InstitutionInput struct {
	Name    string  `json:"name" validate:"required,min=2"`
	Address *string `json:"address"`
}

// InstitutionService manages tenants and enforces ownership.
type InstitutionService struct {
	repo      institutionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstitutionService constructs an InstitutionService.
func NewInstitutionService(repo institutionRepository, validate *validator.Validate, logger *zap.Logger) *InstitutionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &InstitutionService{repo: repo, validator: validate, logger: logger}
}

// Authorize verifies the institution exists and belongs to the user. Every
// institution-scoped handler calls this before touching nested resources.
func (s *InstitutionService) Authorize(ctx context.Context, userID, institutionID string) error {
	owned, err := s.repo.OwnedBy(ctx, institutionID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institution access")
	}
	if !owned {
		return appErrors.Clone(appErrors.ErrNotFound, "institution not found")
	}
	return nil
}

// List returns the caller's institutions.
func (s *InstitutionService) List(ctx context.Context, userID string) ([]models.Institution, error) {
	institutions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	return institutions, nil
}

// Get fetches one institution owned by the caller.
func (s *InstitutionService) Get(ctx context.Context, userID, institutionID string) (*models.Institution, error) {
	if err := s.Authorize(ctx, userID, institutionID); err != nil {
		return nil, err
	}
	institution, err := s.repo.FindByID(ctx, institutionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch institution")
	}
	return institution, nil
}

// Create registers a new institution under the caller.
func (s *InstitutionService) Create(ctx context.Context, userID string, input InstitutionInput) (*models.Institution, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}
	institution := &models.Institution{
		UserID:  userID,
		Name:    input.Name,
		Address: input.Address,
	}
	if err := s.repo.Create(ctx, institution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institution")
	}
	return institution, nil
}

// Update changes an institution's profile.
func (s *InstitutionService) Update(ctx context.Context, userID, institutionID string, input InstitutionInput) (*models.Institution, error) {
	institution, err := s.Get(ctx, userID, institutionID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institution payload")
	}
	institution.Name = input.Name
	institution.Address = input.Address
	if err := s.repo.Update(ctx, institution); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update institution")
	}
	return institution, nil
}

// Delete removes an institution and everything scoped under it.
func (s *InstitutionService) Delete(ctx context.Context, userID, institutionID string) error {
	if err := s.Authorize(ctx, userID, institutionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, institutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "institution not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete institution")
	}
	return nil
}
