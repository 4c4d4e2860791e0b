package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

var testSlotTimes = []string{"08:00-09:30", "09:45-11:15", "11:30-13:00", "13:30-15:00"}

func newExportFixture(t *testing.T, snap *models.CatalogSnapshot) *ExportService {
	t.Helper()
	generator, _, _ := newGeneratorFixture(t, &stubCatalog{snap: snap})
	svc, err := NewExportService(generator, ExportConfig{SlotTimes: testSlotTimes, TermWeeks: 12}, nil)
	require.NoError(t, err)
	return svc
}

func classExport(index int) dto.ExportScheduleRequest {
	return dto.ExportScheduleRequest{
		Mode:  dto.ModeClass,
		Class: &dto.GenerateScheduleRequest{TermToken: "fall-24"},
		Index: index,
	}
}

func TestExportServiceCSV(t *testing.T) {
	svc := newExportFixture(t, snapshotFixture(true))

	file, err := svc.Export(context.Background(), Caller{Role: models.RoleStudent}, classExport(0), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "schedule-class-1.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Day,Slot,Time,Course,Name,Type,Room,Instructor", lines[0])
	assert.Equal(t, "Saturday,1,08:00-09:30,MTH101,Calculus,Lecture,R1,Dr. Smith", lines[1])
}

func TestExportServiceIsDeterministic(t *testing.T) {
	svc := newExportFixture(t, snapshotFixture(true))

	first, err := svc.Export(context.Background(), Caller{}, classExport(2), FormatCSV)
	require.NoError(t, err)
	second, err := svc.Export(context.Background(), Caller{}, classExport(2), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, first.Body, second.Body)
}

func TestExportServiceXLSXAndPDF(t *testing.T) {
	svc := newExportFixture(t, snapshotFixture(true))

	xlsx, err := svc.Export(context.Background(), Caller{}, classExport(1), FormatXLSX)
	require.NoError(t, err)
	assert.NotEmpty(t, xlsx.Body)
	assert.Equal(t, "schedule-class-2.xlsx", xlsx.Filename)

	pdf, err := svc.Export(context.Background(), Caller{}, classExport(1), FormatPDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Body), "%PDF"))
}

func TestExportServiceICS(t *testing.T) {
	snap := snapshotFixture(true)
	// 2024-09-02 is a Monday
	startsOn := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	snap.Terms[0].StartsOn = &startsOn
	svc := newExportFixture(t, snap)

	file, err := svc.Export(context.Background(), Caller{}, classExport(0), FormatICS)
	require.NoError(t, err)
	body := string(file.Body)
	assert.Equal(t, 3, strings.Count(body, "BEGIN:VEVENT"))
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;COUNT=12")
	// first candidate: math lecture Saturday slot 1, first Saturday after the start date
	assert.Contains(t, body, "DTSTART:20240907T080000")
	// physics lecture Monday slot 3 falls on the start date itself
	assert.Contains(t, body, "DTSTART:20240902T113000")
}

func TestExportServiceICSWithoutStartDate(t *testing.T) {
	svc := newExportFixture(t, snapshotFixture(true))

	_, err := svc.Export(context.Background(), Caller{}, classExport(0), FormatICS)
	require.Error(t, err)
	assert.Equal(t, "format", appErrors.FromError(err).Field)
}

func TestExportServiceRejectsBadRequests(t *testing.T) {
	svc := newExportFixture(t, snapshotFixture(true))

	cases := []struct {
		name   string
		req    dto.ExportScheduleRequest
		format string
		field  string
		code   string
	}{
		{name: "format", req: classExport(0), format: "docx", field: "format", code: appErrors.ErrInvalidInput.Code},
		{name: "index out of range", req: classExport(3), format: FormatCSV, field: "index", code: appErrors.ErrInvalidInput.Code},
		{name: "missing mode payload", req: dto.ExportScheduleRequest{Mode: dto.ModeOther}, format: FormatCSV, field: "other", code: appErrors.ErrValidation.Code},
		{name: "unknown mode", req: dto.ExportScheduleRequest{Mode: "semester"}, format: FormatCSV, field: "mode", code: appErrors.ErrValidation.Code},
		{
			name: "infeasible",
			req: dto.ExportScheduleRequest{
				Mode:  dto.ModeClass,
				Class: &dto.GenerateScheduleRequest{TermToken: "fall-24", ExcludedDays: []string{"SAT"}},
			},
			format: FormatCSV,
			field:  "index",
			code:   appErrors.ErrInvalidInput.Code,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Export(context.Background(), Caller{}, tc.req, tc.format)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.field, appErr.Field)
		})
	}
}

func TestNewExportServiceRejectsBadSlotTimes(t *testing.T) {
	generator, _, _ := newGeneratorFixture(t, &stubCatalog{snap: snapshotFixture(true)})

	_, err := NewExportService(generator, ExportConfig{SlotTimes: []string{"08:00-09:30"}}, nil)
	assert.Error(t, err)
	_, err = NewExportService(generator, ExportConfig{SlotTimes: []string{"08:00-09:30", "10:00-09:00", "11:30-13:00", "13:30-15:00"}}, nil)
	assert.Error(t, err)
}
