package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Schedule 1",
		Headers: []string{"Day", "Slot", "Course"},
		Rows: [][]string{
			{"Saturday", "1", "MTH101"},
			{"Monday", "3", "PHY101"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Day,Slot,Course\nSaturday,1,MTH101\nMonday,3,PHY101\n", string(out))

	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"only one"})
	_, err = NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestXLSXExporterRenderGrid(t *testing.T) {
	grid := Grid{
		Title: "Schedule 1",
		Days:  []string{"Saturday", "Sunday"},
		Slots: []string{"1 08:00-09:30", "2 09:45-11:15"},
		Entries: []GridEntry{
			{Day: 0, Slot: 0, Text: "MTH101 Lecture"},
			{Day: 1, Slot: 1, Text: "PHY101 Lab"},
		},
	}
	out, err := NewXLSXExporter().Render(grid)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(gridSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Saturday", header)
	first, err := f.GetCellValue(gridSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "MTH101 Lecture", first)
	second, err := f.GetCellValue(gridSheet, "C4")
	require.NoError(t, err)
	assert.Equal(t, "PHY101 Lab", second)

	grid.Entries = append(grid.Entries, GridEntry{Day: 5, Slot: 0})
	_, err = NewXLSXExporter().Render(grid)
	assert.Error(t, err)
}

func TestICSExporterRender(t *testing.T) {
	start := time.Date(2024, 9, 7, 8, 0, 0, 0, time.UTC)
	out, err := NewICSExporter("").Render("Schedule 1", []CalendarEvent{{
		UID:      "s1@timetable",
		Summary:  "MTH101 Lecture",
		Location: "R1",
		Start:    start,
		End:      start.Add(90 * time.Minute),
	}}, 14)
	require.NoError(t, err)

	body := string(out)
	assert.Contains(t, body, "BEGIN:VEVENT")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY;COUNT=14")
	assert.Contains(t, body, "DTSTART:20240907T080000")
	assert.Contains(t, body, "SUMMARY:MTH101 Lecture")
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))

	_, err = NewICSExporter("").Render("", nil, 0)
	assert.Error(t, err)
}
