package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timetab-app/timetab-api/internal/models"
)

func newTeacherRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTeacherRepositoryList(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"id", "institution_id", "full_name", "subject", "created_at", "updated_at"}).
		AddRow("t1", "inst-1", "Ivanova", nil, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, institution_id, full_name, subject, created_at, updated_at FROM teachers WHERE institution_id =").
		WithArgs("inst-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM teachers WHERE institution_id = $1")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.TeacherFilter{InstitutionID: "inst-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectExec("INSERT INTO teachers").
		WithArgs(sqlmock.AnyArg(), "inst-1", "Ivanova", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	teacher := &models.Teacher{InstitutionID: "inst-1", FullName: "Ivanova"}
	require.NoError(t, repo.Create(context.Background(), teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryReplaceQualifications(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM teacher_qualifications WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO teacher_qualifications").
		WithArgs("t1", "lesson-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO teacher_qualifications").
		WithArgs("t1", "lesson-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReplaceQualifications(context.Background(), "t1", []string{"lesson-1", "lesson-2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherRepositoryQualifiedTeachersByLesson(t *testing.T) {
	db, mock, cleanup := newTeacherRepoMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	rows := sqlmock.NewRows([]string{"lesson_id", "teacher_id"}).
		AddRow("lesson-1", "t1").
		AddRow("lesson-1", "t2").
		AddRow("lesson-2", "t2")
	mock.ExpectQuery("SELECT tq.lesson_id, tq.teacher_id FROM teacher_qualifications").
		WithArgs("inst-1").
		WillReturnRows(rows)

	qualified, err := repo.QualifiedTeachersByLesson(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, qualified["lesson-1"])
	assert.Equal(t, []string{"t2"}, qualified["lesson-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
