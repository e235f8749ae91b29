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

// TimeSlotRepository manages persistence for time slots.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs a TimeSlotRepository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListAll returns every time slot of an institution in week order.
func (r *TimeSlotRepository) ListAll(ctx context.Context, institutionID string) ([]models.TimeSlot, error) {
	const query = `SELECT id, institution_id, day_of_week, start_time, end_time, slot_number, created_at, updated_at
		FROM time_slots WHERE institution_id = $1 ORDER BY day_of_week, slot_number`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, institutionID); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// FindByID fetches a time slot by ID within an institution.
func (r *TimeSlotRepository) FindByID(ctx context.Context, institutionID, id string) (*models.TimeSlot, error) {
	const query = `SELECT id, institution_id, day_of_week, start_time, end_time, slot_number, created_at, updated_at
		FROM time_slots WHERE id = $1 AND institution_id = $2`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id, institutionID); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create inserts a new time slot record.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO time_slots (id, institution_id, day_of_week, start_time, end_time, slot_number, created_at, updated_at)
		VALUES (:id, :institution_id, :day_of_week, :start_time, :end_time, :slot_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}
	return nil
}

// Update modifies an existing time slot record.
func (r *TimeSlotRepository) Update(ctx context.Context, slot *models.TimeSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE time_slots SET day_of_week = :day_of_week, start_time = :start_time, end_time = :end_time, slot_number = :slot_number, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update time slot: %w", err)
	}
	return nil
}

// Delete removes a time slot.
func (r *TimeSlotRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM time_slots WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete time slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("time slot rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
