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

// InstitutionRepository manages persistence for institutions.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs an InstitutionRepository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// ListByUser returns every institution owned by a user.
func (r *InstitutionRepository) ListByUser(ctx context.Context, userID string) ([]models.Institution, error) {
	const query = `SELECT id, user_id, name, address, created_at, updated_at FROM institutions WHERE user_id = $1 ORDER BY created_at`
	var institutions []models.Institution
	if err := r.db.SelectContext(ctx, &institutions, query, userID); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return institutions, nil
}

// FindByID fetches an institution by ID.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	const query = `SELECT id, user_id, name, address, created_at, updated_at FROM institutions WHERE id = $1`
	var institution models.Institution
	if err := r.db.GetContext(ctx, &institution, query, id); err != nil {
		return nil, err
	}
	return &institution, nil
}

// OwnedBy reports whether the institution belongs to the user.
func (r *InstitutionRepository) OwnedBy(ctx context.Context, id, userID string) (bool, error) {
	const query = `SELECT 1 FROM institutions WHERE id = $1 AND user_id = $2 LIMIT 1`
	var one int
	if err := r.db.GetContext(ctx, &one, query, id, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check institution owner: %w", err)
	}
	return true, nil
}

// Create inserts a new institution record.
func (r *InstitutionRepository) Create(ctx context.Context, institution *models.Institution) error {
	if institution.ID == "" {
		institution.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if institution.CreatedAt.IsZero() {
		institution.CreatedAt = now
	}
	institution.UpdatedAt = now

	const query = `INSERT INTO institutions (id, user_id, name, address, created_at, updated_at)
		VALUES (:id, :user_id, :name, :address, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, institution); err != nil {
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

// Update modifies an existing institution record.
func (r *InstitutionRepository) Update(ctx context.Context, institution *models.Institution) error {
	institution.UpdatedAt = time.Now().UTC()
	const query = `UPDATE institutions SET name = :name, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, institution); err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	return nil
}

// Delete removes an institution and everything scoped under it.
func (r *InstitutionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM institutions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete institution: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("institution rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
