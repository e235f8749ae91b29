package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/timetab-app/timetab-api/internal/middleware"
	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/scheduler"
	"github.com/timetab-app/timetab-api/internal/service"
	"github.com/timetab-app/timetab-api/pkg/config"
)

type fakeScheduleRepo struct {
	schedule *models.Schedule
	findErr  error
	db       *sqlx.DB
	replaced []models.ScheduleEntry
}

func (r *fakeScheduleRepo) FindByID(ctx context.Context, institutionID, id string) (*models.Schedule, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.schedule, nil
}

func (r *fakeScheduleRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *fakeScheduleRepo) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, scheduleID string, entries []models.ScheduleEntry) error {
	r.replaced = entries
	return nil
}

func (r *fakeScheduleRepo) MarkGenerated(ctx context.Context, exec sqlx.ExtContext, scheduleID string, generatedAt time.Time) error {
	return nil
}

type fakeSnapshotSource struct {
	snap *scheduler.Snapshot
}

func (s *fakeSnapshotSource) Load(ctx context.Context, institutionID string) (*scheduler.Snapshot, error) {
	return s.snap, nil
}

func handlerSnapshot() *scheduler.Snapshot {
	snap := &scheduler.Snapshot{
		InstitutionID: "inst-1",
		Lessons: []models.Lesson{
			{ID: "lesson-math", InstitutionID: "inst-1", Name: "Mathematics", DurationMinutes: 45},
		},
		Teachers: []models.Teacher{
			{ID: "teacher-1", InstitutionID: "inst-1", FullName: "R. Pratama"},
		},
		Rooms: []models.Room{
			{ID: "room-1", InstitutionID: "inst-1", Name: "101", Capacity: 30},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "slot-mon-1", InstitutionID: "inst-1", DayOfWeek: 0, StartTime: "07:00", EndTime: "07:45", SlotNumber: 1},
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

func newScheduleRouter(t *testing.T, withClaims bool) (*gin.Engine, *fakeScheduleRepo, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	repo := &fakeScheduleRepo{
		schedule: &models.Schedule{ID: "sched-1", InstitutionID: "inst-1", Name: "Odd Semester", Status: models.ScheduleStatusDraft},
		db:       sqlx.NewDb(rawDB, "sqlmock"),
	}
	generator := service.NewGeneratorService(repo, &fakeSnapshotSource{snap: handlerSnapshot()}, nil, config.GeneratorConfig{
		DefaultTimeout: 2 * time.Second,
		MaxTimeout:     5 * time.Second,
	}, nil)
	h := NewScheduleHandler(nil, generator, nil)

	router := gin.New()
	if withClaims {
		router.Use(func(c *gin.Context) {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Email: "owner@school.test"})
		})
	}
	router.POST("/institutions/:institutionID/schedules/:id/generate", h.Generate)
	router.POST("/institutions/:institutionID/schedules/:id/export", h.Export)
	return router, repo, mock
}

func TestGenerateHandlerSolved(t *testing.T) {
	router, repo, mock := newScheduleRouter(t, true)
	mock.ExpectBegin()
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/institutions/inst-1/schedules/sched-1/generate", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":true`)
	require.Contains(t, w.Body.String(), `"entries_count":1`)
	require.Len(t, repo.replaced, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateHandlerMalformedPayload(t *testing.T) {
	router, _, _ := newScheduleRouter(t, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/institutions/inst-1/schedules/sched-1/generate", bytes.NewReader([]byte(`{"timeout":`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateHandlerNegativeTimeout(t *testing.T) {
	router, _, _ := newScheduleRouter(t, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/institutions/inst-1/schedules/sched-1/generate", bytes.NewReader([]byte(`{"timeout":-5}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "timeout must not be negative")
}

func TestGenerateHandlerZeroTimeoutReportsTimedOut(t *testing.T) {
	router, repo, _ := newScheduleRouter(t, true)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/institutions/inst-1/schedules/sched-1/generate", bytes.NewReader([]byte(`{"timeout":0}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success":false`)
	require.Contains(t, w.Body.String(), "timed out")
	require.Empty(t, repo.replaced)
}

func TestExportHandlerRequiresClaims(t *testing.T) {
	router, _, _ := newScheduleRouter(t, false)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/institutions/inst-1/schedules/sched-1/export", bytes.NewReader([]byte(`{"format":"pdf"}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
