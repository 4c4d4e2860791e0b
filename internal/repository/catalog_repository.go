package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const (
	termColumns      = "id, token, number, name, published, starts_on, created_at, updated_at"
	classColumns     = "id, code, term_id, created_at"
	courseColumns    = "id, class_id, code, name, elective, position, created_at"
	componentColumns = "id, course_id, type, position, created_at"
	sessionColumns   = "id, component_id, day, slot, room, instructor, position, created_at"
)

// CatalogRepository reads catalog snapshots for schedule generation. Every load runs in
// one read-only transaction so the snapshot is consistent.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository instantiates a catalog repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// LoadTerm returns the snapshot of one term, looked up by token or, when token is empty,
// by id. An unknown term yields an empty snapshot.
func (r *CatalogRepository) LoadTerm(ctx context.Context, token, id string) (*models.CatalogSnapshot, error) {
	snap := &models.CatalogSnapshot{}
	err := r.readOnly(ctx, func(tx *sqlx.Tx) error {
		var term models.Term
		query := "SELECT " + termColumns + " FROM terms WHERE id = $1"
		key := id
		if token != "" {
			query = "SELECT " + termColumns + " FROM terms WHERE token = $1"
			key = token
		}
		if err := tx.GetContext(ctx, &term, query, key); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("get term: %w", err)
		}
		snap.Terms = []models.Term{term}

		if err := tx.SelectContext(ctx, &snap.Classes,
			"SELECT "+classColumns+" FROM class_sections WHERE term_id = $1 ORDER BY code, id", term.ID); err != nil {
			return fmt.Errorf("list classes: %w", err)
		}
		if err := tx.SelectContext(ctx, &snap.Courses,
			`SELECT c.id, c.class_id, c.code, c.name, c.elective, c.position, c.created_at FROM courses c
			JOIN class_sections cs ON cs.id = c.class_id WHERE cs.term_id = $1 ORDER BY c.class_id, c.position, c.id`, term.ID); err != nil {
			return fmt.Errorf("list courses: %w", err)
		}
		return r.loadComponents(ctx, tx, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadCourses returns a snapshot holding the given courses with their classes, terms,
// components and sessions. Unknown ids are silently absent.
func (r *CatalogRepository) LoadCourses(ctx context.Context, courseIDs []string) (*models.CatalogSnapshot, error) {
	snap := &models.CatalogSnapshot{}
	if len(courseIDs) == 0 {
		return snap, nil
	}
	err := r.readOnly(ctx, func(tx *sqlx.Tx) error {
		if err := selectIn(ctx, tx, &snap.Courses,
			"SELECT "+courseColumns+" FROM courses WHERE id IN (?) ORDER BY class_id, position, id", courseIDs); err != nil {
			return fmt.Errorf("list courses: %w", err)
		}
		if len(snap.Courses) == 0 {
			return nil
		}

		classIDs := uniqueIDs(len(snap.Courses), func(i int) string { return snap.Courses[i].ClassID })
		if err := selectIn(ctx, tx, &snap.Classes,
			"SELECT "+classColumns+" FROM class_sections WHERE id IN (?) ORDER BY code, id", classIDs); err != nil {
			return fmt.Errorf("list classes: %w", err)
		}

		termIDs := uniqueIDs(len(snap.Classes), func(i int) string { return snap.Classes[i].TermID })
		if err := selectIn(ctx, tx, &snap.Terms,
			"SELECT "+termColumns+" FROM terms WHERE id IN (?) ORDER BY number, id", termIDs); err != nil {
			return fmt.Errorf("list terms: %w", err)
		}
		return r.loadComponents(ctx, tx, snap)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *CatalogRepository) loadComponents(ctx context.Context, tx *sqlx.Tx, snap *models.CatalogSnapshot) error {
	if len(snap.Courses) == 0 {
		return nil
	}
	courseIDs := uniqueIDs(len(snap.Courses), func(i int) string { return snap.Courses[i].ID })
	if err := selectIn(ctx, tx, &snap.Components,
		"SELECT "+componentColumns+" FROM course_components WHERE course_id IN (?) ORDER BY course_id, position, id", courseIDs); err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	if len(snap.Components) == 0 {
		return nil
	}

	componentIDs := uniqueIDs(len(snap.Components), func(i int) string { return snap.Components[i].ID })
	if err := selectIn(ctx, tx, &snap.Sessions,
		"SELECT "+sessionColumns+" FROM sessions WHERE component_id IN (?) ORDER BY component_id, position, id", componentIDs); err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	return nil
}

func (r *CatalogRepository) readOnly(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin catalog tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

func selectIn(ctx context.Context, tx *sqlx.Tx, dest interface{}, query string, ids []string) error {
	query, args, err := sqlx.In(query, ids)
	if err != nil {
		return err
	}
	return tx.SelectContext(ctx, dest, tx.Rebind(query), args...)
}

func uniqueIDs(n int, at func(int) string) []string {
	seen := make(map[string]struct{}, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := at(i)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
