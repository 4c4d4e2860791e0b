package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func TestTermRepositoryListPublished(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+termColumns+" FROM terms WHERE published = TRUE ORDER BY number DESC, id LIMIT $1 OFFSET $2")).
		WithArgs(20, 0).
		WillReturnRows(termRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM terms WHERE published = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	terms, total, err := repo.List(context.Background(), models.TermFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Len(t, terms, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryListAllPaged(t *testing.T) {
	db, mock, cleanup := newCatalogRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM terms ORDER BY number DESC, id LIMIT $1 OFFSET $2")).
		WithArgs(5, 10).
		WillReturnRows(termRows(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM terms")).
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.List(context.Background(), models.TermFilter{Page: 3, PageSize: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count terms")
	assert.NoError(t, mock.ExpectationsWereMet())
}
