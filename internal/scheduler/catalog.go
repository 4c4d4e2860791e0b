// Package scheduler enumerates conflict-free weekly schedules from a catalog snapshot
// and a student's constraints.
//
// The pipeline is: resolve a Plan (constraints.go), index per-component choice sets
// (indexer.go), enumerate assignments (enumerator.go) and assemble the response
// (assembler.go). Everything here is request scoped; nothing is shared across calls
// except the immutable snapshot a caller passes in.
package scheduler

import (
	"github.com/noah-isme/timetable-api/internal/models"
)

// Catalog wraps a snapshot with lookup tables. It never mutates the snapshot.
type Catalog struct {
	terms        map[string]models.Term
	termsByToken map[string]models.Term
	classes      map[string]models.ClassSection
	classOrder   map[string][]models.ClassSection
	courses      map[string]models.Course
	coursesOf    map[string][]models.Course
	componentsOf map[string][]models.Component
	sessionsOf   map[string][]models.Session
}

// NewCatalog indexes the snapshot. Slice order in the snapshot is catalog order.
func NewCatalog(snap *models.CatalogSnapshot) *Catalog {
	c := &Catalog{
		terms:        make(map[string]models.Term),
		termsByToken: make(map[string]models.Term),
		classes:      make(map[string]models.ClassSection),
		classOrder:   make(map[string][]models.ClassSection),
		courses:      make(map[string]models.Course),
		coursesOf:    make(map[string][]models.Course),
		componentsOf: make(map[string][]models.Component),
		sessionsOf:   make(map[string][]models.Session),
	}
	if snap == nil {
		return c
	}
	for _, term := range snap.Terms {
		c.terms[term.ID] = term
		if term.Token != "" {
			c.termsByToken[term.Token] = term
		}
	}
	for _, class := range snap.Classes {
		c.classes[class.ID] = class
		c.classOrder[class.TermID] = append(c.classOrder[class.TermID], class)
	}
	for _, course := range snap.Courses {
		c.courses[course.ID] = course
		c.coursesOf[course.ClassID] = append(c.coursesOf[course.ClassID], course)
	}
	for _, component := range snap.Components {
		c.componentsOf[component.CourseID] = append(c.componentsOf[component.CourseID], component)
	}
	for _, session := range snap.Sessions {
		c.sessionsOf[session.ComponentID] = append(c.sessionsOf[session.ComponentID], session)
	}
	return c
}

// Term resolves a term by token first, then by id.
func (c *Catalog) Term(ref TermRef) (models.Term, bool) {
	if ref.Token != "" {
		term, ok := c.termsByToken[ref.Token]
		return term, ok
	}
	term, ok := c.terms[ref.ID]
	return term, ok
}

// TermOfCourse returns the term a course belongs to through its class.
func (c *Catalog) TermOfCourse(courseID string) (models.Term, bool) {
	course, ok := c.courses[courseID]
	if !ok {
		return models.Term{}, false
	}
	class, ok := c.classes[course.ClassID]
	if !ok {
		return models.Term{}, false
	}
	term, ok := c.terms[class.TermID]
	return term, ok
}

// Course looks a course up by id.
func (c *Catalog) Course(id string) (models.Course, bool) {
	course, ok := c.courses[id]
	return course, ok
}

// ClassesOf lists the classes of a term in catalog order.
func (c *Catalog) ClassesOf(termID string) []models.ClassSection {
	return c.classOrder[termID]
}

// CoursesOf lists the courses of a class in catalog order.
func (c *Catalog) CoursesOf(classID string) []models.Course {
	return c.coursesOf[classID]
}

// ComponentsOf lists the components of a course in catalog order.
func (c *Catalog) ComponentsOf(courseID string) []models.Component {
	return c.componentsOf[courseID]
}

// SessionsOf lists the sessions of a component in catalog order.
func (c *Catalog) SessionsOf(componentID string) []models.Session {
	return c.sessionsOf[componentID]
}
