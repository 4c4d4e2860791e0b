package export

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsLocalTime = "20060102T150405"

// CalendarEvent is a weekly recurring session. Start and End are floating local times
// of the first occurrence.
type CalendarEvent struct {
	UID         string
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
}

// ICSExporter renders weekly recurring events as an iCalendar file.
type ICSExporter struct {
	productID string
}

// NewICSExporter constructs an iCalendar exporter.
func NewICSExporter(productID string) *ICSExporter {
	if productID == "" {
		productID = "-//timetable-api//schedule export//EN"
	}
	return &ICSExporter{productID: productID}
}

// Render emits one VEVENT per event repeating weekly for the given number of weeks.
func (e *ICSExporter) Render(name string, events []CalendarEvent, weeks int) ([]byte, error) {
	if weeks <= 0 {
		return nil, fmt.Errorf("ics export requires a positive week count")
	}
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(e.productID)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	for _, evt := range events {
		if !evt.End.After(evt.Start) {
			return nil, fmt.Errorf("event %s ends before it starts", evt.UID)
		}
		vevent := cal.AddEvent(evt.UID)
		vevent.SetDtStampTime(stamp)
		vevent.SetProperty(ics.ComponentPropertyDtStart, evt.Start.Format(icsLocalTime))
		vevent.SetProperty(ics.ComponentPropertyDtEnd, evt.End.Format(icsLocalTime))
		vevent.SetSummary(evt.Summary)
		if evt.Location != "" {
			vevent.SetLocation(evt.Location)
		}
		if evt.Description != "" {
			vevent.SetDescription(evt.Description)
		}
		vevent.AddRrule(fmt.Sprintf("FREQ=WEEKLY;COUNT=%d", weeks))
	}
	return []byte(cal.Serialize()), nil
}
