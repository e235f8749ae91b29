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

type roomRepository interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Room, error)
	FindByID(ctx context.Context, institutionID, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Delete(ctx context.Context, institutionID, id string) error
}

// RoomInput carries room create/update payloads.
type RoomInput struct {
	Name      string  `json:"name" validate:"required,min=1"`
	Capacity  int     `json:"capacity" validate:"required,min=1"`
	RoomType  *string `json:"room_type"`
	Equipment *string `json:"equipment"`
}

// RoomService manages rooms.
type RoomService struct {
	repo      roomRepository
	snapshots snapshotInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService constructs a RoomService. snapshots may be nil.
func NewRoomService(repo roomRepository, snapshots snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RoomService{repo: repo, snapshots: snapshots, validator: validate, logger: logger}
}

// List returns every room of the institution.
func (s *RoomService) List(ctx context.Context, institutionID string) ([]models.Room, error) {
	rooms, err := s.repo.ListAll(ctx, institutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// Get fetches one room.
func (s *RoomService) Get(ctx context.Context, institutionID, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch room")
	}
	return room, nil
}

// Create adds a room.
func (s *RoomService) Create(ctx context.Context, institutionID string, input RoomInput) (*models.Room, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room := &models.Room{
		InstitutionID: institutionID,
		Name:          input.Name,
		Capacity:      input.Capacity,
		RoomType:      input.RoomType,
		Equipment:     input.Equipment,
	}
	if err := s.repo.Create(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	s.invalidate(ctx, institutionID)
	return room, nil
}

// Update modifies a room.
func (s *RoomService) Update(ctx context.Context, institutionID, id string, input RoomInput) (*models.Room, error) {
	room, err := s.Get(ctx, institutionID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}
	room.Name = input.Name
	room.Capacity = input.Capacity
	room.RoomType = input.RoomType
	room.Equipment = input.Equipment
	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	s.invalidate(ctx, institutionID)
	return room, nil
}

// Delete removes a room.
func (s *RoomService) Delete(ctx context.Context, institutionID, id string) error {
	if err := s.repo.Delete(ctx, institutionID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete room")
	}
	s.invalidate(ctx, institutionID)
	return nil
}

func (s *RoomService) invalidate(ctx context.Context, institutionID string) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, institutionID)
	}
}
