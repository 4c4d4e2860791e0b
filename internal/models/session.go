package models

import "time"

// Session is one concrete weekly occurrence offered for a component.
type Session struct {
	ID          string    `db:"id" json:"id"`
	ComponentID string    `db:"component_id" json:"component_id"`
	Day         Day       `db:"day" json:"day"`
	Slot        int       `db:"slot" json:"slot"`
	Room        string    `db:"room" json:"room"`
	Instructor  string    `db:"instructor" json:"instructor"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SlotValid reports whether the session slot lies within the teaching day.
func (s Session) SlotValid() bool {
	return s.Slot >= MinSlot && s.Slot <= MaxSlot
}
