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

// StudyGroupRepository manages persistence for study groups and their rosters.
type StudyGroupRepository struct {
	db *sqlx.DB
}

// NewStudyGroupRepository constructs a StudyGroupRepository.
func NewStudyGroupRepository(db *sqlx.DB) *StudyGroupRepository {
	return &StudyGroupRepository{db: db}
}

// ListAll returns every study group of an institution.
func (r *StudyGroupRepository) ListAll(ctx context.Context, institutionID string) ([]models.StudyGroup, error) {
	const query = `SELECT id, institution_id, stream_id, name, created_at, updated_at FROM study_groups WHERE institution_id = $1 ORDER BY name`
	var groups []models.StudyGroup
	if err := r.db.SelectContext(ctx, &groups, query, institutionID); err != nil {
		return nil, fmt.Errorf("list study groups: %w", err)
	}
	return groups, nil
}

// FindByID fetches a study group by ID within an institution.
func (r *StudyGroupRepository) FindByID(ctx context.Context, institutionID, id string) (*models.StudyGroup, error) {
	const query = `SELECT id, institution_id, stream_id, name, created_at, updated_at FROM study_groups WHERE id = $1 AND institution_id = $2`
	var group models.StudyGroup
	if err := r.db.GetContext(ctx, &group, query, id, institutionID); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create inserts a new study group record.
func (r *StudyGroupRepository) Create(ctx context.Context, group *models.StudyGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO study_groups (id, institution_id, stream_id, name, created_at, updated_at)
		VALUES (:id, :institution_id, :stream_id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create study group: %w", err)
	}
	return nil
}

// Update modifies an existing study group record.
func (r *StudyGroupRepository) Update(ctx context.Context, group *models.StudyGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE study_groups SET stream_id = :stream_id, name = :name, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update study group: %w", err)
	}
	return nil
}

// Delete removes a study group and its roster.
func (r *StudyGroupRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM study_groups WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete study group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("study group rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListMemberIDs returns the student ids on a study group's roster.
func (r *StudyGroupRepository) ListMemberIDs(ctx context.Context, studyGroupID string) ([]string, error) {
	const query = `SELECT student_id FROM study_group_members WHERE study_group_id = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studyGroupID); err != nil {
		return nil, fmt.Errorf("list study group members: %w", err)
	}
	return ids, nil
}

// ReplaceMembers swaps a study group's roster atomically.
func (r *StudyGroupRepository) ReplaceMembers(ctx context.Context, studyGroupID string, studentIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM study_group_members WHERE study_group_id = $1`, studyGroupID); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	for _, studentID := range studentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO study_group_members (study_group_id, student_id) VALUES ($1, $2)`, studyGroupID, studentID); err != nil {
			return fmt.Errorf("insert roster member: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

// RosterSizes maps every study group of an institution to its member count.
func (r *StudyGroupRepository) RosterSizes(ctx context.Context, institutionID string) (map[string]int, error) {
	const query = `SELECT sg.id, COUNT(m.student_id) FROM study_groups sg
		LEFT JOIN study_group_members m ON m.study_group_id = sg.id
		WHERE sg.institution_id = $1
		GROUP BY sg.id`
	rows, err := r.db.QueryxContext(ctx, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("load roster sizes: %w", err)
	}
	defer rows.Close()

	sizes := make(map[string]int)
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("scan roster size: %w", err)
		}
		sizes[id] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster sizes: %w", err)
	}
	return sizes, nil
}
