package models

import "time"

// Term models an academic term.
type Term struct {
	ID        string     `db:"id" json:"id"`
	Token     string     `db:"token" json:"token"`
	Number    int        `db:"number" json:"number"`
	Name      string     `db:"name" json:"name"`
	Published bool       `db:"published" json:"published"`
	StartsOn  *time.Time `db:"starts_on" json:"starts_on,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	PublishedOnly bool
	Page          int
	PageSize      int
}
