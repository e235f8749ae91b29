package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func newScheduleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRepositoryCreateDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec("INSERT INTO schedules").
		WithArgs(sqlmock.AnyArg(), "inst-1", "Autumn", sqlmock.AnyArg(), string(models.ScheduleStatusDraft), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	schedule := &models.Schedule{InstitutionID: "inst-1", Name: "Autumn"}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, models.ScheduleStatusDraft, schedule.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceEntriesInTx(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	classID := "class-9a"
	generatedAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE schedule_id = $1")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "sched-1", "inst-1", "lesson-1", "teacher-1", "room-1", "slot-1", "class-9a", nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE schedules SET status").
		WithArgs("sched-1", string(models.ScheduleStatusGenerated), generatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	entries := []models.ScheduleEntry{{
		InstitutionID: "inst-1",
		LessonID:      "lesson-1",
		TeacherID:     "teacher-1",
		RoomID:        "room-1",
		TimeSlotID:    "slot-1",
		ClassGroupID:  &classID,
	}}
	require.NoError(t, repo.ReplaceEntries(ctx, tx, "sched-1", entries))
	require.NoError(t, repo.MarkGenerated(ctx, tx, "sched-1", generatedAt))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceEntriesRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedule_entries WHERE schedule_id = $1")).
		WithArgs("sched-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO schedule_entries").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	classID := "class-9a"
	entries := []models.ScheduleEntry{{
		InstitutionID: "inst-1",
		LessonID:      "lesson-1",
		TeacherID:     "teacher-1",
		RoomID:        "room-1",
		TimeSlotID:    "slot-1",
		ClassGroupID:  &classID,
	}}
	err = repo.ReplaceEntries(ctx, tx, "sched-1", entries)
	require.Error(t, err)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newScheduleRepoMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE id = $1 AND institution_id = $2")).
		WithArgs("missing", "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "inst-1", "missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
