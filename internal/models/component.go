package models

import (
	"strings"
	"time"
)

// ComponentType identifies the teaching unit kind of a course component.
type ComponentType string

const (
	ComponentLecture ComponentType = "L"
	ComponentSection ComponentType = "S"
	ComponentLab     ComponentType = "LB"
)

// ParseComponentType normalises a raw component type token.
func ParseComponentType(raw string) (ComponentType, bool) {
	t := ComponentType(strings.ToUpper(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// Valid reports whether t is one of L, S or LB.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentLecture, ComponentSection, ComponentLab:
		return true
	default:
		return false
	}
}

// Label returns the display name of the component type.
func (t ComponentType) Label() string {
	switch t {
	case ComponentLecture:
		return "Lecture"
	case ComponentSection:
		return "Section"
	case ComponentLab:
		return "Lab"
	default:
		return "Unknown"
	}
}

// Component is a teaching unit of a course that is scheduled independently.
type Component struct {
	ID        string        `db:"id" json:"id"`
	CourseID  string        `db:"course_id" json:"course_id"`
	Type      ComponentType `db:"type" json:"type"`
	Position  int           `db:"position" json:"position"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}
