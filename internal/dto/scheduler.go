package dto

import "github.com/noah-isme/timetable-api/internal/models"

// ScheduleStatus summarises the outcome of a generation request.
type ScheduleStatus string

const (
	// ScheduleStatusOK means the search completed and every candidate was returned.
	ScheduleStatusOK ScheduleStatus = "OK"
	// ScheduleStatusTruncated means the result cap was reached.
	ScheduleStatusTruncated ScheduleStatus = "TRUNCATED"
	// ScheduleStatusPartial means the deadline elapsed after some candidates were found.
	ScheduleStatusPartial ScheduleStatus = "PARTIAL"
	// ScheduleStatusEmpty means no component was required.
	ScheduleStatusEmpty ScheduleStatus = "EMPTY"
	// ScheduleStatusInfeasible means no complete conflict-free assignment exists.
	ScheduleStatusInfeasible ScheduleStatus = "INFEASIBLE"
)

// Generation modes.
const (
	ModeClass = "class"
	ModeOther = "other"
)

// Truncation reasons.
const (
	TruncatedByCap     = "cap"
	TruncatedByTimeout = "timeout"
)

// GenerateScheduleRequest asks for the schedules of one class within a term.
type GenerateScheduleRequest struct {
	TermToken             string   `json:"termToken" validate:"required_without=TermID"`
	TermID                string   `json:"termId" validate:"required_without=TermToken"`
	ClassID               string   `json:"classId"`
	ExcludedDays          []string `json:"excludedDays"`
	ElectiveCourseIDs     []string `json:"electiveCourseIds"`
	ExcludedCoreCourseIDs []string `json:"excludedCoreCourseIds"`
}

// GenerateOtherScheduleRequest asks for schedules over a free selection of courses.
type GenerateOtherScheduleRequest struct {
	CourseIDs    []string `json:"courseIds" validate:"required,min=1,dive,required"`
	ExcludedDays []string `json:"excludedDays"`
}

// ExportScheduleRequest regenerates a schedule and renders one candidate.
type ExportScheduleRequest struct {
	Mode  string                        `json:"mode" validate:"required,oneof=class other"`
	Class *GenerateScheduleRequest      `json:"class" validate:"required_if=Mode class,omitempty"`
	Other *GenerateOtherScheduleRequest `json:"other" validate:"required_if=Mode other,omitempty"`
	Index int                           `json:"index" validate:"min=0"`
}

// GenerateScheduleResponse returns every candidate found for the request.
type GenerateScheduleResponse struct {
	RequestID        string                   `json:"requestId"`
	Mode             string                   `json:"mode"`
	Status           ScheduleStatus           `json:"status"`
	Infeasible       bool                     `json:"infeasible"`
	Truncated        bool                     `json:"truncated"`
	TruncationReason string                   `json:"truncationReason,omitempty"`
	Cap              int                      `json:"cap"`
	Count            int                      `json:"count"`
	Unschedulable    []UnschedulableComponent `json:"unschedulable"`
	Candidates       []ScheduleCandidate      `json:"candidates"`
	Stats            SearchStats              `json:"stats"`
}

// UnschedulableComponent names a required component left without candidate sessions.
type UnschedulableComponent struct {
	ComponentID string               `json:"componentId"`
	CourseID    string               `json:"courseId"`
	CourseCode  string               `json:"courseCode"`
	Type        models.ComponentType `json:"type"`
}

// SearchStats describes the work performed by the enumerator.
type SearchStats struct {
	Components   int   `json:"components"`
	NodesVisited int64 `json:"nodesVisited"`
	DurationMs   int64 `json:"durationMs"`
	Workers      int   `json:"workers"`
}

// ScheduleCandidate is one complete conflict-free weekly schedule.
type ScheduleCandidate struct {
	Index    int               `json:"index"`
	Courses  []CandidateCourse `json:"courses"`
	Timeline []TimelineEntry   `json:"timeline"`
}

// CandidateCourse groups the chosen sessions of one course.
type CandidateCourse struct {
	CourseID   string               `json:"courseId"`
	Code       string               `json:"code"`
	Name       string               `json:"name"`
	Elective   bool                 `json:"elective"`
	Components []CandidateComponent `json:"components"`
}

// CandidateComponent is a component with its chosen session.
type CandidateComponent struct {
	ComponentID string               `json:"componentId"`
	Type        models.ComponentType `json:"type"`
	TypeLabel   string               `json:"typeLabel"`
	Session     CandidateSession     `json:"session"`
}

// CandidateSession carries the chosen session detail.
type CandidateSession struct {
	SessionID  string     `json:"sessionId"`
	Day        models.Day `json:"day"`
	DayName    string     `json:"dayName"`
	Slot       int        `json:"slot"`
	Room       string     `json:"room"`
	Instructor string     `json:"instructor"`
}

// TimelineEntry is a flattened session ordered by day and slot.
type TimelineEntry struct {
	CandidateSession
	CourseCode    string               `json:"courseCode"`
	CourseName    string               `json:"courseName"`
	ComponentType models.ComponentType `json:"componentType"`
}
