package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/timetab-app/timetab-api/internal/models"
)

// LessonRepository manages persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// List returns lessons of an institution matching filters along with total count.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.Lesson, int, error) {
	base := "FROM lessons WHERE institution_id = $1"
	args := []interface{}{filter.InstitutionID}

	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR LOWER(COALESCE(subject_code, '')) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, search)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, institution_id, name, subject_code, duration_minutes, created_at, updated_at %s ORDER BY name LIMIT %d OFFSET %d", base, size, offset)
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return lessons, total, nil
}

// ListAll returns every lesson of an institution, for snapshot loading.
func (r *LessonRepository) ListAll(ctx context.Context, institutionID string) ([]models.Lesson, error) {
	const query = `SELECT id, institution_id, name, subject_code, duration_minutes, created_at, updated_at FROM lessons WHERE institution_id = $1 ORDER BY id`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, institutionID); err != nil {
		return nil, fmt.Errorf("list all lessons: %w", err)
	}
	return lessons, nil
}

// FindByID fetches a lesson by ID within an institution.
func (r *LessonRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Lesson, error) {
	const query = `SELECT id, institution_id, name, subject_code, duration_minutes, created_at, updated_at FROM lessons WHERE id = $1 AND institution_id = $2`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id, institutionID); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create inserts a new lesson record.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, institution_id, name, subject_code, duration_minutes, created_at, updated_at)
		VALUES (:id, :institution_id, :name, :subject_code, :duration_minutes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update modifies an existing lesson record.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET name = :name, subject_code = :subject_code, duration_minutes = :duration_minutes, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("lesson rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// normalizePage clamps paging params to sane bounds.
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
