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

// TeacherRepository manages persistence for teachers and their lesson
// qualifications.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// List returns teachers of an institution matching filters along with total count.
func (r *TeacherRepository) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	base := "FROM teachers WHERE institution_id = $1"
	args := []interface{}{filter.InstitutionID}

	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		base += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR LOWER(COALESCE(subject, '')) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, search)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, institution_id, full_name, subject, created_at, updated_at %s ORDER BY full_name LIMIT %d OFFSET %d", base, size, offset)
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list teachers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count teachers: %w", err)
	}
	return teachers, total, nil
}

// ListAll returns every teacher of an institution, for snapshot loading.
func (r *TeacherRepository) ListAll(ctx context.Context, institutionID string) ([]models.Teacher, error) {
	const query = `SELECT id, institution_id, full_name, subject, created_at, updated_at FROM teachers WHERE institution_id = $1 ORDER BY id`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, institutionID); err != nil {
		return nil, fmt.Errorf("list all teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID within an institution.
func (r *TeacherRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Teacher, error) {
	const query = `SELECT id, institution_id, full_name, subject, created_at, updated_at FROM teachers WHERE id = $1 AND institution_id = $2`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id, institutionID); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// Create inserts a new teacher record.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = now
	}
	teacher.UpdatedAt = now

	const query = `INSERT INTO teachers (id, institution_id, full_name, subject, created_at, updated_at)
		VALUES (:id, :institution_id, :full_name, :subject, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// Update modifies an existing teacher record.
func (r *TeacherRepository) Update(ctx context.Context, teacher *models.Teacher) error {
	teacher.UpdatedAt = time.Now().UTC()
	const query = `UPDATE teachers SET full_name = :full_name, subject = :subject, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	return nil
}

// Delete removes a teacher and its qualifications.
func (r *TeacherRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM teachers WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete teacher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("teacher rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListQualifications returns the lesson ids a teacher may teach.
func (r *TeacherRepository) ListQualifications(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT lesson_id FROM teacher_qualifications WHERE teacher_id = $1 ORDER BY lesson_id`
	var lessonIDs []string
	if err := r.db.SelectContext(ctx, &lessonIDs, query, teacherID); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	return lessonIDs, nil
}

// ReplaceQualifications swaps a teacher's qualification set atomically.
func (r *TeacherRepository) ReplaceQualifications(ctx context.Context, teacherID string, lessonIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin qualifications tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teacher_qualifications WHERE teacher_id = $1`, teacherID); err != nil {
		return fmt.Errorf("clear qualifications: %w", err)
	}
	now := time.Now().UTC()
	for _, lessonID := range lessonIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teacher_qualifications (teacher_id, lesson_id, created_at) VALUES ($1, $2, $3)`, teacherID, lessonID, now); err != nil {
			return fmt.Errorf("insert qualification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit qualifications tx: %w", err)
	}
	return nil
}

// QualifiedTeachersByLesson maps every lesson of an institution to the sorted
// ids of teachers qualified for it.
func (r *TeacherRepository) QualifiedTeachersByLesson(ctx context.Context, institutionID string) (map[string][]string, error) {
	const query = `SELECT tq.lesson_id, tq.teacher_id FROM teacher_qualifications tq
		JOIN teachers t ON t.id = tq.teacher_id
		WHERE t.institution_id = $1
		ORDER BY tq.lesson_id, tq.teacher_id`
	rows, err := r.db.QueryxContext(ctx, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("load qualifications: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var lessonID, teacherID string
		if err := rows.Scan(&lessonID, &teacherID); err != nil {
			return nil, fmt.Errorf("scan qualification: %w", err)
		}
		result[lessonID] = append(result[lessonID], teacherID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qualifications: %w", err)
	}
	return result, nil
}
