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

// StudentRepository manages persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByClassGroup returns the students of one class group.
func (r *StudentRepository) ListByClassGroup(ctx context.Context, institutionID, classGroupID string) ([]models.Student, error) {
	const query = `SELECT id, institution_id, class_group_id, full_name, student_number, created_at, updated_at
		FROM students WHERE institution_id = $1 AND class_group_id = $2 ORDER BY full_name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, institutionID, classGroupID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID within an institution.
func (r *StudentRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Student, error) {
	const query = `SELECT id, institution_id, class_group_id, full_name, student_number, created_at, updated_at
		FROM students WHERE id = $1 AND institution_id = $2`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, institutionID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, institution_id, class_group_id, full_name, student_number, created_at, updated_at)
		VALUES (:id, :institution_id, :class_group_id, :full_name, :student_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student record.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET class_group_id = :class_group_id, full_name = :full_name, student_number = :student_number, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student and its roster memberships.
func (r *StudentRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM students WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("student rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
