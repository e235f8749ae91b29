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

// ClassGroupRepository manages persistence for class groups.
type ClassGroupRepository struct {
	db *sqlx.DB
}

// NewClassGroupRepository constructs a ClassGroupRepository.
func NewClassGroupRepository(db *sqlx.DB) *ClassGroupRepository {
	return &ClassGroupRepository{db: db}
}

// ListAll returns every class group of an institution.
func (r *ClassGroupRepository) ListAll(ctx context.Context, institutionID string) ([]models.ClassGroup, error) {
	const query = `SELECT id, institution_id, name, student_count, created_at, updated_at FROM class_groups WHERE institution_id = $1 ORDER BY name`
	var groups []models.ClassGroup
	if err := r.db.SelectContext(ctx, &groups, query, institutionID); err != nil {
		return nil, fmt.Errorf("list class groups: %w", err)
	}
	return groups, nil
}

// FindByID fetches a class group by ID within an institution.
func (r *ClassGroupRepository) FindByID(ctx context.Context, institutionID, id string) (*models.ClassGroup, error) {
	const query = `SELECT id, institution_id, name, student_count, created_at, updated_at FROM class_groups WHERE id = $1 AND institution_id = $2`
	var group models.ClassGroup
	if err := r.db.GetContext(ctx, &group, query, id, institutionID); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create inserts a new class group record.
func (r *ClassGroupRepository) Create(ctx context.Context, group *models.ClassGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO class_groups (id, institution_id, name, student_count, created_at, updated_at)
		VALUES (:id, :institution_id, :name, :student_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create class group: %w", err)
	}
	return nil
}

// Update modifies an existing class group record.
func (r *ClassGroupRepository) Update(ctx context.Context, group *models.ClassGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_groups SET name = :name, student_count = :student_count, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update class group: %w", err)
	}
	return nil
}

// Delete removes a class group.
func (r *ClassGroupRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM class_groups WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete class group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("class group rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
