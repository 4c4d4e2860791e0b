package models

import "time"

// ClassSection is a cohort within a term.
type ClassSection struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	TermID    string    `db:"term_id" json:"term_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
