package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timetab-app/timetab-api/internal/models"
)

// RoomRepository manages persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// ListAll returns every room of an institution.
func (r *RoomRepository) ListAll(ctx context.Context, institutionID string) ([]models.Room, error) {
	const query = `SELECT id, institution_id, name, capacity, room_type, equipment, created_at, updated_at FROM rooms WHERE institution_id = $1 ORDER BY id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, institutionID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindByID fetches a room by ID within an institution.
func (r *RoomRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Room, error) {
	const query = `SELECT id, institution_id, name, capacity, room_type, equipment, created_at, updated_at FROM rooms WHERE id = $1 AND institution_id = $2`
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id, institutionID); err != nil {
		return nil, err
	}
	return &room, nil
}

// Create inserts a new room record.
func (r *RoomRepository) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, institution_id, name, capacity, room_type, equipment, created_at, updated_at)
		VALUES (:id, :institution_id, :name, :capacity, :room_type, :equipment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// Update modifies an existing room record.
func (r *RoomRepository) Update(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET name = :name, capacity = :capacity, room_type = :room_type, equipment = :equipment, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// Delete removes a room.
func (r *RoomRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM rooms WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("room rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
