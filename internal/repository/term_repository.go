package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

// TermRepository pages through academic terms for the browse endpoints.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns one page of terms, newest term number first, with the total count.
// Paging is expected to be normalised by the caller.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error) {
	where := ""
	if filter.PublishedOnly {
		where = " WHERE published = TRUE"
	}
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	var terms []models.Term
	query := "SELECT " + termColumns + " FROM terms" + where + " ORDER BY number DESC, id LIMIT $1 OFFSET $2"
	if err := r.db.SelectContext(ctx, &terms, query, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM terms"+where); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}
	return terms, total, nil
}
