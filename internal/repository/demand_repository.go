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

// DemandRepository manages persistence for lesson demands.
type DemandRepository struct {
	db *sqlx.DB
}

// NewDemandRepository constructs a DemandRepository.
func NewDemandRepository(db *sqlx.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

// ListAll returns every lesson demand of an institution.
func (r *DemandRepository) ListAll(ctx context.Context, institutionID string) ([]models.LessonDemand, error) {
	const query = `SELECT id, institution_id, lesson_id, class_group_id, study_group_id, count, created_at, updated_at
		FROM lesson_demands WHERE institution_id = $1 ORDER BY lesson_id, class_group_id, study_group_id`
	var demands []models.LessonDemand
	if err := r.db.SelectContext(ctx, &demands, query, institutionID); err != nil {
		return nil, fmt.Errorf("list lesson demands: %w", err)
	}
	return demands, nil
}

// FindByID fetches a lesson demand by ID within an institution.
func (r *DemandRepository) FindByID(ctx context.Context, institutionID, id string) (*models.LessonDemand, error) {
	const query = `SELECT id, institution_id, lesson_id, class_group_id, study_group_id, count, created_at, updated_at
		FROM lesson_demands WHERE id = $1 AND institution_id = $2`
	var demand models.LessonDemand
	if err := r.db.GetContext(ctx, &demand, query, id, institutionID); err != nil {
		return nil, err
	}
	return &demand, nil
}

// Create inserts a new lesson demand record.
func (r *DemandRepository) Create(ctx context.Context, demand *models.LessonDemand) error {
	if demand.ID == "" {
		demand.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if demand.CreatedAt.IsZero() {
		demand.CreatedAt = now
	}
	demand.UpdatedAt = now

	const query = `INSERT INTO lesson_demands (id, institution_id, lesson_id, class_group_id, study_group_id, count, created_at, updated_at)
		VALUES (:id, :institution_id, :lesson_id, :class_group_id, :study_group_id, :count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, demand); err != nil {
		return fmt.Errorf("create lesson demand: %w", err)
	}
	return nil
}

// Update modifies an existing lesson demand record.
func (r *DemandRepository) Update(ctx context.Context, demand *models.LessonDemand) error {
	demand.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lesson_demands SET lesson_id = :lesson_id, class_group_id = :class_group_id, study_group_id = :study_group_id, count = :count, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, demand); err != nil {
		return fmt.Errorf("update lesson demand: %w", err)
	}
	return nil
}

// Delete removes a lesson demand.
func (r *DemandRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM lesson_demands WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete lesson demand: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("lesson demand rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
