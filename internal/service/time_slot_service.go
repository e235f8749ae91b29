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

type timeSlotRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	Update(ctx context.Context, slot *models.TimeSlot) error
	Delete(ctx context.Context, institutionID, id string) error
}

// TimeSlotInput carries time-slot create/update payloads. Times are HH:MM;
// DayOfWeek is 0=Monday through 6=Sunday.
type TimeSlotInput struct {
	DayOfWeek  int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime  string `json:"start_time" validate:"required,len=5"`
	EndTime    string `json:"end_time" validate:"required,len=5"`
	SlotNumber int    `json:"slot_number" validate:"required,min=1"`
}

// TimeSlotService manages the weekly slot grid.
type TimeSlotService struct {
	repo      timeSlotRepository
	snapshots snapshotInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimeSlotService constructs a TimeSlotService. snapshots may be nil.
func NewTimeSlotService(repo timeSlotRepository, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *TimeSlotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TimeSlotService{repo: repo, snapshots: snapshots, validator: validate, logger: logger}
}

// List returns every slot of the institution in week order.
func (s *TimeSlotService) List(ctx context.Context, institutionID string) ([]models.TimeSlot, error) {
	slots, err := s.repo.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// Get fetches one slot.
func (s *TimeSlotService) Get(ctx context.Context, institutionID, id string) (*models.TimeSlot, error) {
	slot, err := s.repo.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch time slot")
	}
	return slot, nil
}

// Create adds a slot to the grid.
func (s *TimeSlotService) Create(ctx context.Context, institutionID string, input TimeSlotInput) (*models.TimeSlot, error) {
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	slot := &models.TimeSlot{
		InstitutionID: institutionID,
		DayOfWeek:     input.DayOfWeek,
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		SlotNumber:    input.SlotNumber,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create time slot")
	}
	s.invalidate(ctx, institutionID)
	return slot, nil
}

// Update modifies a slot.
func (s *TimeSlotService) Update(ctx context.Context, institutionID, id string, input TimeSlotInput) (*models.TimeSlot, error) {
	slot, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}
	slot.DayOfWeek = input.DayOfWeek
	slot.StartTime = input.StartTime
	slot.EndTime = input.EndTime
	slot.SlotNumber = input.SlotNumber
	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update time slot")
	}
	s.invalidate(ctx, institutionID)
	return slot, nil
}

// Delete removes a slot.
func (s *TimeSlotService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.repo.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete time slot")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *TimeSlotService) validateInput(input TimeSlotInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}
	if input.StartTime >= input.EndTime {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must precede end_time")
	}
	return nil
}

func (s *TimeSlotService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
