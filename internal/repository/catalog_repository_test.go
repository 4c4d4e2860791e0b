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

	"github.com/noah-isme/timetable-api/internal/models"
)

func newCatalogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func termRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "token", "number", "name", "published", "starts_on", "created_at", "updated_at"}).
		AddRow("term-1", "tok-1", 1, "Term 1", true, nil, now, now)
}

func expectComponentsAndSessions(mock sqlmock.Sqlmock, now time.Time) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_components WHERE course_id IN (?, ?)")).
		WithArgs("course-1", "course-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "type", "position", "created_at"}).
			AddRow("comp-1", "course-1", "L", 0, now).
			AddRow("comp-2", "course-2", "LB", 0, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE component_id IN (?, ?)")).
		WithArgs("comp-1", "comp-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "component_id", "day", "slot", "room", "instructor", "position", "created_at"}).
			AddRow("s-1", "comp-1", "MON", 1, "A1", "Dr. A", 0, now).
			AddRow("s-2", "comp-2", "SAT", 4, "Lab 2", "Dr. B", 0, now))
}

func TestCatalogRepositoryLoadTermByToken(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE token = $1")).
		WithArgs("tok-1").
		WillReturnRows(termRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sections WHERE term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "term_id", "created_at"}).AddRow("class-1", "CS-1", "term-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("JOIN class_sections cs ON cs.id = c.class_id WHERE cs.term_id = $1")).
		WithArgs("term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "code", "name", "elective", "position", "created_at"}).
			AddRow("course-1", "class-1", "CS101", "Intro", false, 0, now).
			AddRow("course-2", "class-1", "CS150", "Robotics", true, 1, now))
	expectComponentsAndSessions(mock, now)
	mock.ExpectCommit()

	snap, err := repo.LoadTerm(context.Background(), "tok-1", "")
	require.NoError(t, err)
	require.Len(t, snap.Terms, 1)
	assert.Len(t, snap.Classes, 1)
	assert.Len(t, snap.Courses, 2)
	require.Len(t, snap.Components, 2)
	assert.Equal(t, models.ComponentLab, snap.Components[1].Type)
	require.Len(t, snap.Sessions, 2)
	assert.Equal(t, models.DayMonday, snap.Sessions[0].Day)
	assert.Equal(t, models.DaySaturday, snap.Sessions[1].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryLoadTermMissing(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE id = $1")).
		WithArgs("term-x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	snap, err := repo.LoadTerm(context.Background(), "", "term-x")
	require.NoError(t, err)
	assert.Empty(t, snap.Terms)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryLoadCourses(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id IN (?, ?)")).
		WithArgs("course-2", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "class_id", "code", "name", "elective", "position", "created_at"}).
			AddRow("course-1", "class-1", "CS101", "Intro", false, 0, now).
			AddRow("course-2", "class-2", "MA200", "Algebra", false, 0, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_sections WHERE id IN (?, ?)")).
		WithArgs("class-1", "class-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "term_id", "created_at"}).
			AddRow("class-1", "CS-1", "term-1", now).
			AddRow("class-2", "MA-1", "term-1", now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM terms WHERE id IN (?)")).
		WithArgs("term-1").
		WillReturnRows(termRows(now))
	expectComponentsAndSessions(mock, now)
	mock.ExpectCommit()

	snap, err := repo.LoadCourses(context.Background(), []string{"course-2", "course-1"})
	require.NoError(t, err)
	assert.Len(t, snap.Terms, 1)
	assert.Len(t, snap.Classes, 2)
	assert.Len(t, snap.Sessions, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogRepositoryRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewCatalogRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id IN (?)")).
		WithArgs("course-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.LoadCourses(context.Background(), []string{"course-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list courses")
	assert.NoError(t, mock.ExpectationsWereMet())
}
