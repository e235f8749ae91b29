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

// StreamRepository manages persistence for streams and their class-group links.
type StreamRepository struct {
	db *sqlx.DB
}

// NewStreamRepository constructs a StreamRepository.
func NewStreamRepository(db *sqlx.DB) *StreamRepository {
	return &StreamRepository{db: db}
}

// ListAll returns every stream of an institution.
func (r *StreamRepository) ListAll(ctx context.Context, institutionID string) ([]models.Stream, error) {
	const query = `SELECT id, institution_id, name, created_at, updated_at FROM streams WHERE institution_id = $1 ORDER BY name`
	var streams []models.Stream
	if err := r.db.SelectContext(ctx, &streams, query, institutionID); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	return streams, nil
}

// FindByID fetches a stream by ID within an institution.
func (r *StreamRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Stream, error) {
	const query = `SELECT id, institution_id, name, created_at, updated_at FROM streams WHERE id = $1 AND institution_id = $2`
	var stream models.Stream
	if err := r.db.GetContext(ctx, &stream, query, id, institutionID); err != nil {
		return nil, err
	}
	return &stream, nil
}

// Create inserts a new stream record.
func (r *StreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	if stream.ID == "" {
		stream.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if stream.CreatedAt.IsZero() {
		stream.CreatedAt = now
	}
	stream.UpdatedAt = now

	const query = `INSERT INTO streams (id, institution_id, name, created_at, updated_at)
		VALUES (:id, :institution_id, :name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	return nil
}

// Update modifies an existing stream record.
func (r *StreamRepository) Update(ctx context.Context, stream *models.Stream) error {
	stream.UpdatedAt = time.Now().UTC()
	const query = `UPDATE streams SET name = :name, updated_at = :updated_at WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("update stream: %w", err)
	}
	return nil
}

// Delete removes a stream.
func (r *StreamRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM streams WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete stream: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("stream rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListClassGroupIDs returns the class groups attached to a stream.
func (r *StreamRepository) ListClassGroupIDs(ctx context.Context, streamID string) ([]string, error) {
	const query = `SELECT class_group_id FROM stream_class_groups WHERE stream_id = $1 ORDER BY class_group_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, streamID); err != nil {
		return nil, fmt.Errorf("list stream class groups: %w", err)
	}
	return ids, nil
}

// ReplaceClassGroups swaps a stream's class-group set atomically.
func (r *StreamRepository) ReplaceClassGroups(ctx context.Context, streamID string, classGroupIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stream links tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stream_class_groups WHERE stream_id = $1`, streamID); err != nil {
		return fmt.Errorf("clear stream links: %w", err)
	}
	for _, classGroupID := range classGroupIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO stream_class_groups (stream_id, class_group_id) VALUES ($1, $2)`, streamID, classGroupID); err != nil {
			return fmt.Errorf("insert stream link: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stream links tx: %w", err)
	}
	return nil
}
