package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// MaxElectives caps the elective courses a student may add to a class schedule.
const MaxElectives = 2

// ErrUnpublished marks a request for a term that exists but is not visible to the caller.
var ErrUnpublished = errors.New("term is not published")

const termUnavailable = "term not found or not published"

// TermRef identifies a term by opaque token or by id. Token wins when both are set.
type TermRef struct {
	Token string
	ID    string
}

func (r TermRef) field() string {
	if r.Token != "" {
		return "termToken"
	}
	return "termId"
}

// Constraints are the student's raw per-request constraints.
type Constraints struct {
	ExcludedDays          []string
	ElectiveCourseIDs     []string
	ExcludedCoreCourseIDs []string
}

// Validate checks everything that does not need the catalog: the elective cap, the
// day tokens and blank ids. It runs before any catalog load or search.
func (c Constraints) Validate() (DaySet, error) {
	if len(c.ElectiveCourseIDs) > MaxElectives {
		return 0, appErrors.Invalid("electiveCourseIds",
			fmt.Sprintf("at most %d elective courses may be selected, got %d", MaxElectives, len(c.ElectiveCourseIDs)))
	}
	if err := requireIDs("electiveCourseIds", c.ElectiveCourseIDs); err != nil {
		return 0, err
	}
	if err := requireIDs("excludedCoreCourseIds", c.ExcludedCoreCourseIDs); err != nil {
		return 0, err
	}
	return ParseDaySet(c.ExcludedDays)
}

// DaySet is a bitset of teaching days.
type DaySet uint8

// ParseDaySet parses day tokens into a set, rejecting unknown tokens.
func ParseDaySet(raw []string) (DaySet, error) {
	var set DaySet
	for i, token := range raw {
		day, ok := models.ParseDay(token)
		if !ok {
			return 0, appErrors.Invalid(fmt.Sprintf("excludedDays[%d]", i),
				fmt.Sprintf("unknown day %q; expected one of SAT, SUN, MON, TUE, WED, THU", token))
		}
		set = set.With(day)
	}
	return set, nil
}

// With returns the set including d.
func (s DaySet) With(d models.Day) DaySet {
	if !d.Valid() {
		return s
	}
	return s | 1<<uint(d-1)
}

// Has reports whether d is in the set.
func (s DaySet) Has(d models.Day) bool {
	return d.Valid() && s&(1<<uint(d-1)) != 0
}

// Days lists the members in week order.
func (s DaySet) Days() []models.Day {
	var days []models.Day
	for _, day := range models.AllDays() {
		if s.Has(day) {
			days = append(days, day)
		}
	}
	return days
}

// Requirement is one component the schedule must fill exactly once.
type Requirement struct {
	Course    models.Course
	Component models.Component
}

// Plan is the resolved required component list plus the day filter.
type Plan struct {
	Requirements []Requirement
	ExcludedDays DaySet
}

// Empty reports whether nothing is required.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Requirements) == 0
}

// ClassRequest describes a class/term mode request.
type ClassRequest struct {
	Term             TermRef
	ClassID          string
	Constraints      Constraints
	AllowUnpublished bool
}

// BuildClassPlan resolves core components of the class, minus excluded core courses,
// plus the chosen electives, in catalog order.
func (c *Catalog) BuildClassPlan(req ClassRequest) (*Plan, error) {
	days, err := req.Constraints.Validate()
	if err != nil {
		return nil, err
	}

	term, ok := c.Term(req.Term)
	if !ok {
		return nil, appErrors.Invalid(req.Term.field(), termUnavailable)
	}
	if !term.Published && !req.AllowUnpublished {
		return nil, appErrors.WithCause(appErrors.Invalid(req.Term.field(), termUnavailable), ErrUnpublished)
	}

	class, err := c.resolveClass(term, req.ClassID)
	if err != nil {
		return nil, err
	}

	offered := make(map[string]models.Course)
	for _, course := range c.CoursesOf(class.ID) {
		offered[course.ID] = course
	}

	excluded := make(map[string]bool, len(req.Constraints.ExcludedCoreCourseIDs))
	for i, id := range req.Constraints.ExcludedCoreCourseIDs {
		field := fmt.Sprintf("excludedCoreCourseIds[%d]", i)
		course, ok := offered[id]
		if !ok {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s is not offered to class %s", id, class.Code))
		}
		if course.Elective {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s is an elective, not a core course", course.Code))
		}
		excluded[id] = true
	}

	chosen := make(map[string]bool, len(req.Constraints.ElectiveCourseIDs))
	for i, id := range req.Constraints.ElectiveCourseIDs {
		field := fmt.Sprintf("electiveCourseIds[%d]", i)
		course, ok := offered[id]
		if !ok {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s is not offered to class %s", id, class.Code))
		}
		if !course.Elective {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s is a core course, not an elective", course.Code))
		}
		chosen[id] = true
	}

	plan := &Plan{ExcludedDays: days}
	for _, course := range c.CoursesOf(class.ID) {
		if course.Elective && !chosen[course.ID] {
			continue
		}
		if !course.Elective && excluded[course.ID] {
			continue
		}
		plan.Requirements = append(plan.Requirements, c.requirementsOf(course)...)
	}
	return plan, nil
}

// CourseSetRequest describes an "Other" mode request over courses from any term.
type CourseSetRequest struct {
	CourseIDs        []string
	ExcludedDays     []string
	AllowUnpublished bool
}

// BuildCourseSetPlan requires every component of the selected courses, in request order.
func (c *Catalog) BuildCourseSetPlan(req CourseSetRequest) (*Plan, error) {
	if err := requireIDs("courseIds", req.CourseIDs); err != nil {
		return nil, err
	}
	days, err := ParseDaySet(req.ExcludedDays)
	if err != nil {
		return nil, err
	}

	plan := &Plan{ExcludedDays: days}
	seen := make(map[string]bool, len(req.CourseIDs))
	electives := 0
	for i, id := range req.CourseIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		field := fmt.Sprintf("courseIds[%d]", i)

		course, ok := c.Course(id)
		if !ok {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s not found", id))
		}
		term, ok := c.TermOfCourse(id)
		if !ok {
			return nil, appErrors.Invalid(field, fmt.Sprintf("course %s not found", id))
		}
		if !term.Published && !req.AllowUnpublished {
			return nil, appErrors.WithCause(appErrors.Invalid(field, fmt.Sprintf("course %s not found", id)), ErrUnpublished)
		}
		if course.Elective {
			electives++
		}
		plan.Requirements = append(plan.Requirements, c.requirementsOf(course)...)
	}
	if electives > MaxElectives {
		return nil, appErrors.Invalid("courseIds",
			fmt.Sprintf("at most %d elective courses may be selected, got %d", MaxElectives, electives))
	}
	return plan, nil
}

func (c *Catalog) resolveClass(term models.Term, classID string) (models.ClassSection, error) {
	if classID != "" {
		class, ok := c.classes[classID]
		if !ok || class.TermID != term.ID {
			return models.ClassSection{}, appErrors.Invalid("classId", fmt.Sprintf("class %s not found in term", classID))
		}
		return class, nil
	}
	classes := c.ClassesOf(term.ID)
	switch len(classes) {
	case 0:
		return models.ClassSection{}, nil
	case 1:
		return classes[0], nil
	default:
		return models.ClassSection{}, appErrors.Invalid("classId",
			fmt.Sprintf("term has %d classes; classId is required", len(classes)))
	}
}

func (c *Catalog) requirementsOf(course models.Course) []Requirement {
	components := c.ComponentsOf(course.ID)
	reqs := make([]Requirement, 0, len(components))
	for _, component := range components {
		reqs = append(reqs, Requirement{Course: course, Component: component})
	}
	return reqs
}

func requireIDs(field string, ids []string) error {
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return appErrors.Invalid(fmt.Sprintf("%s[%d]", field, i), "course id must not be empty")
		}
	}
	return nil
}
