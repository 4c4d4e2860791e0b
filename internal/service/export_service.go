package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatICS  = "ics"
)

var contentTypes = map[string]string{
	FormatCSV:  "text/csv; charset=utf-8",
	FormatPDF:  "application/pdf",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatICS:  "text/calendar; charset=utf-8",
}

var timelineHeaders = []string{"Day", "Slot", "Time", "Course", "Name", "Type", "Room", "Instructor"}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	SlotTimes []string
	TermWeeks int
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

type slotWindow struct {
	label      string
	start, end time.Duration
}

// ExportService regenerates a schedule deterministically and renders one candidate.
type ExportService struct {
	generator *ScheduleGeneratorService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	xlsx      *export.XLSXExporter
	ics       *export.ICSExporter
	slots     []slotWindow
	weeks     int
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Slot times must cover every teaching slot.
func NewExportService(generator *ScheduleGeneratorService, cfg ExportConfig, logger *zap.Logger) (*ExportService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TermWeeks <= 0 {
		cfg.TermWeeks = 14
	}
	slots, err := parseSlotTimes(cfg.SlotTimes)
	if err != nil {
		return nil, err
	}
	return &ExportService{
		generator: generator,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		xlsx:      export.NewXLSXExporter(),
		ics:       export.NewICSExporter(""),
		slots:     slots,
		weeks:     cfg.TermWeeks,
		logger:    logger,
	}, nil
}

// Export regenerates the requested schedule and renders candidate req.Index in format.
func (s *ExportService) Export(ctx context.Context, caller Caller, req dto.ExportScheduleRequest, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	contentType, ok := contentTypes[format]
	if !ok {
		return nil, appErrors.Invalid("format", fmt.Sprintf("unsupported export format %q; expected csv, pdf, xlsx or ics", format))
	}
	if err := s.generator.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule export payload")
	}

	var (
		gen *generation
		err error
	)
	switch req.Mode {
	case dto.ModeClass:
		gen, err = s.generator.generateClass(ctx, caller, *req.Class)
	default:
		gen, err = s.generator.generateOther(ctx, caller, *req.Other)
	}
	if err != nil {
		return nil, s.generator.fail(req.Mode, caller, err)
	}

	resp := gen.response
	if resp.Count == 0 {
		return nil, appErrors.Invalid("index", fmt.Sprintf("no schedule to export; generation status is %s", resp.Status))
	}
	if req.Index >= resp.Count {
		return nil, appErrors.Invalid("index", fmt.Sprintf("index %d out of range; %d candidates available", req.Index, resp.Count))
	}
	candidate := resp.Candidates[req.Index]
	title := fmt.Sprintf("Schedule %d of %d", req.Index+1, resp.Count)

	var body []byte
	switch format {
	case FormatCSV:
		body, err = s.csv.Render(s.dataset(title, candidate))
	case FormatPDF:
		body, err = s.pdf.Render(s.dataset(title, candidate))
	case FormatXLSX:
		body, err = s.xlsx.Render(s.grid(title, candidate))
	case FormatICS:
		var events []export.CalendarEvent
		events, err = s.calendar(gen, candidate)
		if err == nil {
			body, err = s.ics.Render(title, events, s.weeks)
		}
	}
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.Error("schedule export failed", zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("schedule-%s-%d.%s", req.Mode, req.Index+1, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (s *ExportService) dataset(title string, candidate dto.ScheduleCandidate) export.Dataset {
	data := export.Dataset{Title: title, Headers: timelineHeaders, Rows: make([][]string, 0, len(candidate.Timeline))}
	for _, entry := range candidate.Timeline {
		data.Rows = append(data.Rows, []string{
			entry.DayName,
			strconv.Itoa(entry.Slot),
			s.slotLabel(entry.Slot),
			entry.CourseCode,
			entry.CourseName,
			entry.ComponentType.Label(),
			entry.Room,
			entry.Instructor,
		})
	}
	return data
}

func (s *ExportService) grid(title string, candidate dto.ScheduleCandidate) export.Grid {
	grid := export.Grid{Title: title}
	for _, day := range models.AllDays() {
		grid.Days = append(grid.Days, day.Name())
	}
	for slot := models.MinSlot; slot <= models.MaxSlot; slot++ {
		grid.Slots = append(grid.Slots, fmt.Sprintf("%d  %s", slot, s.slotLabel(slot)))
	}
	for _, entry := range candidate.Timeline {
		grid.Entries = append(grid.Entries, export.GridEntry{
			Day:  int(entry.Day) - 1,
			Slot: entry.Slot - models.MinSlot,
			Text: fmt.Sprintf("%s %s\n%s\n%s", entry.CourseCode, entry.ComponentType.Label(), entry.Room, entry.Instructor),
		})
	}
	return grid
}

func (s *ExportService) calendar(gen *generation, candidate dto.ScheduleCandidate) ([]export.CalendarEvent, error) {
	var startsOn *time.Time
	for _, term := range gen.terms {
		if term.StartsOn != nil {
			startsOn = term.StartsOn
			break
		}
	}
	if startsOn == nil {
		return nil, appErrors.Invalid("format", "the term has no start date; ics export is unavailable")
	}
	first := time.Date(startsOn.Year(), startsOn.Month(), startsOn.Day(), 0, 0, 0, 0, time.UTC)

	events := make([]export.CalendarEvent, 0, len(candidate.Timeline))
	for _, entry := range candidate.Timeline {
		window := s.slots[entry.Slot-models.MinSlot]
		offset := (int(entry.Day.Weekday()) - int(first.Weekday()) + 7) % 7
		day := first.AddDate(0, 0, offset)
		events = append(events, export.CalendarEvent{
			UID:         fmt.Sprintf("%s-%s@timetable", entry.SessionID, entry.ComponentType),
			Summary:     fmt.Sprintf("%s %s", entry.CourseCode, entry.ComponentType.Label()),
			Location:    entry.Room,
			Description: fmt.Sprintf("%s\nInstructor: %s", entry.CourseName, entry.Instructor),
			Start:       day.Add(window.start),
			End:         day.Add(window.end),
		})
	}
	return events, nil
}

func (s *ExportService) slotLabel(slot int) string {
	i := slot - models.MinSlot
	if i < 0 || i >= len(s.slots) {
		return ""
	}
	return s.slots[i].label
}

func parseSlotTimes(raw []string) ([]slotWindow, error) {
	want := models.MaxSlot - models.MinSlot + 1
	if len(raw) != want {
		return nil, fmt.Errorf("slot times: need %d windows, got %d", want, len(raw))
	}
	windows := make([]slotWindow, 0, want)
	for i, value := range raw {
		parts := strings.Split(value, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("slot time %d: %q is not HH:MM-HH:MM", i+1, value)
		}
		start, err := clockOffset(parts[0])
		if err != nil {
			return nil, fmt.Errorf("slot time %d: %w", i+1, err)
		}
		end, err := clockOffset(parts[1])
		if err != nil {
			return nil, fmt.Errorf("slot time %d: %w", i+1, err)
		}
		if end <= start {
			return nil, fmt.Errorf("slot time %d: %q ends before it starts", i+1, value)
		}
		windows = append(windows, slotWindow{label: strings.TrimSpace(value), start: start, end: end})
	}
	return windows, nil
}

func clockOffset(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
