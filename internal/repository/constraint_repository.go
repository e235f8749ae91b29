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

// ConstraintRepository manages persistence for scheduling constraints.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository constructs a ConstraintRepository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

// ListAll returns every constraint of an institution.
func (r *ConstraintRepository) ListAll(ctx context.Context, institutionID string) ([]models.Constraint, error) {
	const query = `SELECT id, institution_id, constraint_type, constraint_data, priority, created_at, updated_at
		FROM constraints WHERE institution_id = $1 ORDER BY constraint_type, id`
	var constraints []models.Constraint
	if err := r.db.SelectContext(ctx, &constraints, query, institutionID); err != nil {
		return nil, fmt.Errorf("list constraints: %w", err)
	}
	return constraints, nil
}

// FindByID fetches a constraint by ID within an institution.
func (r *ConstraintRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Constraint, error) {
	const query = `SELECT id, institution_id, constraint_type, constraint_data, priority, created_at, updated_at
		FROM constraints WHERE id = $1 AND institution_id = $2`
	var constraint models.Constraint
	if err := r.db.GetContext(ctx, &constraint, query, id, institutionID); err != nil {
		return nil, err
	}
	return &constraint, nil
}

// Create inserts a new constraint record.
func (r *ConstraintRepository) Create(ctx context.Context, constraint *models.Constraint) error {
	if constraint.ID == "" {
		constraint.ID = uuid.NewString()
	}
	if len(constraint.ConstraintData) == 0 {
		constraint.ConstraintData = []byte(`{}`)
	}
	now := time.Now().UTC()
	if constraint.CreatedAt.IsZero() {
		constraint.CreatedAt = now
	}
	constraint.UpdatedAt = now

	const query = `INSERT INTO constraints (id, institution_id, constraint_type, constraint_data, priority, created_at, updated_at)
		VALUES (:id, :institution_id, :constraint_type, :constraint_data, :priority, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, constraint); err != nil {
		return fmt.Errorf("create constraint: %w", err)
	}
	return nil
}

// Update modifies an existing constraint record.
func (r *ConstraintRepository) Update(ctx context.Context, constraint *models.Constraint) error {
	constraint.UpdatedAt = time.Now().UTC()
	const query = `UPDATE constraints SET constraint_type = :constraint_type, constraint_data = :constraint_data, priority = :priority, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, constraint); err != nil {
		return fmt.Errorf("update constraint: %w", err)
	}
	return nil
}

// Delete removes a constraint.
func (r *ConstraintRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM constraints WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete constraint: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("constraint rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
