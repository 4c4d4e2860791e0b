package scheduler

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// ChoiceSet holds the admissible sessions of one requirement in catalog order.
type ChoiceSet struct {
	Requirement
	Sessions []models.Session
}

// Index is the per-requirement choice list the enumerator walks.
type Index struct {
	Choices       []ChoiceSet
	Unschedulable []Requirement
	ExcludedDays  DaySet
}

// Infeasible reports whether some requirement has no admissible session left.
func (ix *Index) Infeasible() bool {
	return ix != nil && len(ix.Unschedulable) > 0
}

// Size is the number of required components.
func (ix *Index) Size() int {
	if ix == nil {
		return 0
	}
	return len(ix.Choices)
}

type sessionKey struct {
	day        models.Day
	slot       int
	room       string
	instructor string
}

// Index builds choice sets for every requirement of the plan. Sessions on excluded days
// and exact repeats of an earlier session are dropped.
func (c *Catalog) Index(plan *Plan) (*Index, error) {
	ix := &Index{}
	if plan == nil {
		return ix, nil
	}
	ix.ExcludedDays = plan.ExcludedDays
	ix.Choices = make([]ChoiceSet, 0, len(plan.Requirements))

	for _, req := range plan.Requirements {
		sessions := c.SessionsOf(req.Component.ID)
		choice := ChoiceSet{Requirement: req, Sessions: make([]models.Session, 0, len(sessions))}
		seen := make(map[sessionKey]struct{}, len(sessions))
		for _, session := range sessions {
			if !session.Day.Valid() {
				return nil, appErrors.Invalid("session.day",
					fmt.Sprintf("session %s of course %s has an unknown day", session.ID, req.Course.Code))
			}
			if !session.SlotValid() {
				return nil, appErrors.Invalid("session.slot",
					fmt.Sprintf("session %s of course %s has slot %d outside %d..%d",
						session.ID, req.Course.Code, session.Slot, models.MinSlot, models.MaxSlot))
			}
			if plan.ExcludedDays.Has(session.Day) {
				continue
			}
			key := sessionKey{day: session.Day, slot: session.Slot, room: session.Room, instructor: session.Instructor}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			choice.Sessions = append(choice.Sessions, session)
		}
		if len(choice.Sessions) == 0 {
			ix.Unschedulable = append(ix.Unschedulable, req)
		}
		ix.Choices = append(ix.Choices, choice)
	}
	return ix, nil
}

// occupancy bit of a (day, slot) pair in a 6x4 week.
func slotBit(day models.Day, slot int) uint32 {
	return 1 << uint((int(day)-1)*models.MaxSlot+(slot-1))
}
