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

// ScheduleRepository manages persistence for schedules and their entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs a ScheduleRepository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// BeginTx opens a transaction for multi-statement schedule writes.
func (r *ScheduleRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin schedule tx: %w", err)
	}
	return tx, nil
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListAll returns every schedule of an institution, newest first.
func (r *ScheduleRepository) ListAll(ctx context.Context, institutionID string) ([]models.Schedule, error) {
	const query = `SELECT id, institution_id, name, academic_period, status, generated_at, created_at, updated_at
		FROM schedules WHERE institution_id = $1 ORDER BY created_at DESC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, institutionID); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// FindByID fetches a schedule by ID within an institution.
func (r *ScheduleRepository) FindByID(ctx context.Context, institutionID, id string) (*models.Schedule, error) {
	const query = `SELECT id, institution_id, name, academic_period, status, generated_at, created_at, updated_at
		FROM schedules WHERE id = $1 AND institution_id = $2`
	var schedule models.Schedule
	if err := r.db.GetContext(ctx, &schedule, query, id, institutionID); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Create inserts a new schedule in draft status.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.Status == "" {
		schedule.Status = models.ScheduleStatusDraft
	}
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	schedule.UpdatedAt = now

	const query = `INSERT INTO schedules (id, institution_id, name, academic_period, status, generated_at, created_at, updated_at)
		VALUES (:id, :institution_id, :name, :academic_period, :status, :generated_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// Update modifies a schedule's mutable fields.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET name = :name, academic_period = :academic_period, status = :status, updated_at = :updated_at
		WHERE id = :id AND institution_id = :institution_id`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

// Delete removes a schedule and its entries.
func (r *ScheduleRepository) Delete(ctx context.Context, institutionID, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1 AND institution_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, institutionID)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListEntries returns a schedule's entries ordered for display.
func (r *ScheduleRepository) ListEntries(ctx context.Context, scheduleID string) ([]models.ScheduleEntry, error) {
	const query = `SELECT e.id, e.schedule_id, e.institution_id, e.lesson_id, e.teacher_id, e.room_id, e.time_slot_id, e.class_group_id, e.study_group_id, e.week_number, e.created_at
		FROM schedule_entries e
		JOIN time_slots ts ON ts.id = e.time_slot_id
		WHERE e.schedule_id = $1
		ORDER BY ts.day_of_week, ts.slot_number, e.id`
	var entries []models.ScheduleEntry
	if err := r.db.SelectContext(ctx, &entries, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// ReplaceEntries deletes a schedule's entries and inserts the new set. Run it
// inside the transaction that also flips the schedule to generated so readers
// never observe a half-written timetable.
func (r *ScheduleRepository) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, scheduleID string, entries []models.ScheduleEntry) error {
	target := r.exec(exec)

	if _, err := target.ExecContext(ctx, `DELETE FROM schedule_entries WHERE schedule_id = $1`, scheduleID); err != nil {
		return fmt.Errorf("clear schedule entries: %w", err)
	}

	const insertQuery = `INSERT INTO schedule_entries (id, schedule_id, institution_id, lesson_id, teacher_id, room_id, time_slot_id, class_group_id, study_group_id, week_number, created_at)
		VALUES (:id, :schedule_id, :institution_id, :lesson_id, :teacher_id, :room_id, :time_slot_id, :class_group_id, :study_group_id, :week_number, :created_at)`
	now := time.Now().UTC()
	for i := range entries {
		entries[i].ScheduleID = scheduleID
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, entries[i]); err != nil {
			return fmt.Errorf("insert schedule entry: %w", err)
		}
	}
	return nil
}

// MarkGenerated flips a schedule to generated and stamps generated_at.
func (r *ScheduleRepository) MarkGenerated(ctx context.Context, exec sqlx.ExtContext, scheduleID string, generatedAt time.Time) error {
	target := r.exec(exec)
	const query = `UPDATE schedules SET status = $2, generated_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := target.ExecContext(ctx, query, scheduleID, models.ScheduleStatusGenerated, generatedAt.UTC()); err != nil {
		return fmt.Errorf("mark schedule generated: %w", err)
	}
	return nil
}
