package scheduler

import (
	"sort"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
)

// Assemble expands raw assignments into the response shape. Courses keep the order in
// which they first appear among the requirements; the timeline is sorted by day then slot.
func Assemble(ix *Index, candidates []Candidate) []dto.ScheduleCandidate {
	out := make([]dto.ScheduleCandidate, 0, len(candidates))
	for n, candidate := range candidates {
		out = append(out, assembleOne(ix, n, candidate))
	}
	return out
}

// Unschedulable describes the requirements left without sessions.
func Unschedulable(ix *Index) []dto.UnschedulableComponent {
	if ix == nil {
		return []dto.UnschedulableComponent{}
	}
	out := make([]dto.UnschedulableComponent, 0, len(ix.Unschedulable))
	for _, req := range ix.Unschedulable {
		out = append(out, dto.UnschedulableComponent{
			ComponentID: req.Component.ID,
			CourseID:    req.Course.ID,
			CourseCode:  req.Course.Code,
			Type:        req.Component.Type,
		})
	}
	return out
}

func assembleOne(ix *Index, n int, candidate Candidate) dto.ScheduleCandidate {
	result := dto.ScheduleCandidate{
		Index:    n,
		Courses:  []dto.CandidateCourse{},
		Timeline: make([]dto.TimelineEntry, 0, len(candidate.Picks)),
	}
	position := make(map[string]int)

	for i, pick := range candidate.Picks {
		choice := ix.Choices[i]
		session := sessionDetail(choice.Sessions[pick])

		at, ok := position[choice.Course.ID]
		if !ok {
			at = len(result.Courses)
			position[choice.Course.ID] = at
			result.Courses = append(result.Courses, dto.CandidateCourse{
				CourseID:   choice.Course.ID,
				Code:       choice.Course.Code,
				Name:       choice.Course.Name,
				Elective:   choice.Course.Elective,
				Components: []dto.CandidateComponent{},
			})
		}
		result.Courses[at].Components = append(result.Courses[at].Components, dto.CandidateComponent{
			ComponentID: choice.Component.ID,
			Type:        choice.Component.Type,
			TypeLabel:   choice.Component.Type.Label(),
			Session:     session,
		})
		result.Timeline = append(result.Timeline, dto.TimelineEntry{
			CandidateSession: session,
			CourseCode:       choice.Course.Code,
			CourseName:       choice.Course.Name,
			ComponentType:    choice.Component.Type,
		})
	}

	sort.SliceStable(result.Timeline, func(a, b int) bool {
		if result.Timeline[a].Day != result.Timeline[b].Day {
			return result.Timeline[a].Day < result.Timeline[b].Day
		}
		return result.Timeline[a].Slot < result.Timeline[b].Slot
	})
	return result
}

func sessionDetail(session models.Session) dto.CandidateSession {
	return dto.CandidateSession{
		SessionID:  session.ID,
		Day:        session.Day,
		DayName:    session.Day.Name(),
		Slot:       session.Slot,
		Room:       session.Room,
		Instructor: session.Instructor,
	}
}
