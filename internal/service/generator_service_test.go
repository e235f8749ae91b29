package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/scheduler"
	"github.com/timetab-app/timetab-api/pkg/config"
	appErrors "github.com/timetab-app/timetab-api/pkg/errors"
)

type stubGeneratorScheduleRepo struct {
	schedule   *models.Schedule
	findErr    error
	db         *sqlx.DB
	replaced   []models.ScheduleEntry
	replaceErr error
	marked     bool
}

func (r *stubGeneratorScheduleRepo) FindByID(ctx context.Context, institutionID, id string) (*models.Schedule, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.schedule, nil
}

func (r *stubGeneratorScheduleRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *stubGeneratorScheduleRepo) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, scheduleID string, entries []models.ScheduleEntry) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.replaced = entries
	return nil
}

func (r *stubGeneratorScheduleRepo) MarkGenerated(ctx context.Context, exec sqlx.ExtContext, scheduleID string, generatedAt time.Time) error {
	r.marked = true
	return nil
}

type stubSnapshotSource struct {
	snap *scheduler.Snapshot
	err  error
}

func (s *stubSnapshotSource) Load(ctx context.Context, institutionID string) (*scheduler.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func generatorSnapshot(roomCapacity int) *scheduler.Snapshot {
	snap := &scheduler.Snapshot{
		InstitutionID: "inst-1",
		Lessons: []models.Lesson{
			{ID: "lesson-math", InstitutionID: "inst-1", Name: "Mathematics", DurationMinutes: 45},
		},
		Teachers: []models.Teacher{
			{ID: "teacher-1", InstitutionID: "inst-1", FullName: "R. Pratama"},
		},
		Rooms: []models.Room{
			{ID: "room-1", InstitutionID: "inst-1", Name: "101", Capacity: roomCapacity},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "slot-mon-1", InstitutionID: "inst-1", DayOfWeek: 0, StartTime: "07:00", EndTime: "07:45", SlotNumber: 1},
			{ID: "slot-mon-2", InstitutionID: "inst-1", DayOfWeek: 0, StartTime: "07:45", EndTime: "08:30", SlotNumber: 2},
		},
		ClassGroups: []models.ClassGroup{
			{ID: "class-9a", InstitutionID: "inst-1", Name: "9A", StudentCount: 24},
		},
		QualifiedTeachers: map[string][]string{"lesson-math": {"teacher-1"}},
		Demands: []scheduler.Demand{
			{LessonID: "lesson-math", Group: models.ClassGroupRef("class-9a"), Count: 1},
		},
	}
	snap.Finalize()
	return snap
}

func newGeneratorFixture(t *testing.T, snap *scheduler.Snapshot) (*GeneratorService, *stubGeneratorScheduleRepo, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	repo := &stubGeneratorScheduleRepo{
		schedule: &models.Schedule{ID: "sched-1", InstitutionID: "inst-1", Name: "Odd Semester", Status: models.ScheduleStatusDraft},
		db:       sqlx.NewDb(rawDB, "sqlmock"),
	}
	svc := NewGeneratorService(repo, &stubSnapshotSource{snap: snap}, nil, config.GeneratorConfig{
		DefaultTimeout: 2 * time.Second,
		MaxTimeout:     5 * time.Second,
	}, nil)
	return svc, repo, mock
}

func TestGenerateSolvedMaterializesEntries(t *testing.T) {
	svc, repo, mock := newGeneratorFixture(t, generatorSnapshot(30))
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.Generate(context.Background(), "inst-1", "sched-1", nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.NotNil(t, result.EntriesCount)
	require.Equal(t, 1, *result.EntriesCount)
	require.Len(t, repo.replaced, 1)
	require.Equal(t, "sched-1", repo.replaced[0].ScheduleID)
	require.Equal(t, "teacher-1", repo.replaced[0].TeacherID)
	require.True(t, repo.marked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateScheduleNotFound(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, generatorSnapshot(30))
	repo.findErr = sql.ErrNoRows

	_, err := svc.Generate(context.Background(), "inst-1", "missing", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestGenerateRejectsConcurrentRun(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, generatorSnapshot(30))
	require.True(t, svc.locks.TryAcquire("sched-1"))
	defer svc.locks.Release("sched-1")

	_, err := svc.Generate(context.Background(), "inst-1", "sched-1", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrGenerationInProgress.Code, appErr.Code)
}

func TestGenerateIncompleteReferenceData(t *testing.T) {
	svc, _, _ := newGeneratorFixture(t, nil)
	svc.snapshots = &stubSnapshotSource{
		err: fmt.Errorf("load demands: %w", scheduler.ErrIncompleteReferenceData),
	}

	_, err := svc.Generate(context.Background(), "inst-1", "sched-1", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrIncompleteReferenceData.Code, appErr.Code)
	require.True(t, errors.Is(err, scheduler.ErrIncompleteReferenceData))
}

func TestGenerateInfeasibleIsNotAnError(t *testing.T) {
	// A 10-seat room cannot hold the 24-student class.
	svc, repo, _ := newGeneratorFixture(t, generatorSnapshot(10))

	result, err := svc.Generate(context.Background(), "inst-1", "sched-1", nil)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Nil(t, result.EntriesCount)
	require.Contains(t, result.Message, "no feasible timetable exists")
	require.Empty(t, repo.replaced)
}

func TestGenerateZeroTimeoutTimesOut(t *testing.T) {
	svc, repo, _ := newGeneratorFixture(t, generatorSnapshot(30))
	timeout := time.Duration(0)

	result, err := svc.Generate(context.Background(), "inst-1", "sched-1", &timeout)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "timed out")
	require.Empty(t, repo.replaced)
}

func TestGenerateRollsBackOnReplaceFailure(t *testing.T) {
	svc, repo, mock := newGeneratorFixture(t, generatorSnapshot(30))
	repo.replaceErr = errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Generate(context.Background(), "inst-1", "sched-1", nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	require.False(t, repo.marked)
	require.NoError(t, mock.ExpectationsWereMet())
}
