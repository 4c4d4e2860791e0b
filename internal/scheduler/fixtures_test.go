package scheduler

import (
	"fmt"

	"github.com/noah-isme/timetable-api/internal/models"
)

type catalogBuilder struct {
	snap models.CatalogSnapshot
	seq  int
}

func newCatalogBuilder() *catalogBuilder {
	return &catalogBuilder{}
}

func (b *catalogBuilder) term(id, token string, published bool) *catalogBuilder {
	b.snap.Terms = append(b.snap.Terms, models.Term{ID: id, Token: token, Name: id, Published: published})
	return b
}

func (b *catalogBuilder) class(id, termID string) *catalogBuilder {
	b.snap.Classes = append(b.snap.Classes, models.ClassSection{ID: id, Code: id, TermID: termID})
	return b
}

func (b *catalogBuilder) course(id, classID string, elective bool) *catalogBuilder {
	b.snap.Courses = append(b.snap.Courses, models.Course{ID: id, ClassID: classID, Code: id, Name: "Course " + id, Elective: elective})
	return b
}

func (b *catalogBuilder) component(id, courseID string, kind models.ComponentType) *catalogBuilder {
	b.snap.Components = append(b.snap.Components, models.Component{ID: id, CourseID: courseID, Type: kind})
	return b
}

func (b *catalogBuilder) session(componentID string, day models.Day, slot int) *catalogBuilder {
	b.seq++
	b.snap.Sessions = append(b.snap.Sessions, models.Session{
		ID:          fmt.Sprintf("s%d", b.seq),
		ComponentID: componentID,
		Day:         day,
		Slot:        slot,
		Room:        fmt.Sprintf("R%d", b.seq),
		Instructor:  "Dr. " + componentID,
	})
	return b
}

func (b *catalogBuilder) build() *Catalog {
	return NewCatalog(&b.snap)
}

// denseCatalog has n single-component core courses, each offered in every slot of the
// week, which yields far more assignments than any cap.
func denseCatalog(n int) *Catalog {
	b := newCatalogBuilder().term("t1", "tok-1", true).class("c1", "t1")
	for i := 0; i < n; i++ {
		course := fmt.Sprintf("course-%d", i)
		component := fmt.Sprintf("comp-%d", i)
		b.course(course, "c1", false).component(component, course, models.ComponentLecture)
		for _, day := range models.AllDays() {
			for slot := models.MinSlot; slot <= models.MaxSlot; slot++ {
				b.session(component, day, slot)
			}
		}
	}
	return b.build()
}

func classPlan(c *Catalog, constraints Constraints) (*Plan, error) {
	return c.BuildClassPlan(ClassRequest{Term: TermRef{Token: "tok-1"}, Constraints: constraints})
}
