package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const gridSheet = "Schedule"

// GridEntry places one session on the weekly grid.
type GridEntry struct {
	Day  int // column, 0-based index into Grid.Days
	Slot int // row, 0-based index into Grid.Slots
	Text string
}

// Grid is a day by slot timetable.
type Grid struct {
	Title   string
	Days    []string
	Slots   []string
	Entries []GridEntry
}

// XLSXExporter renders a Grid as a spreadsheet with days as columns and slots as rows.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the grid into a single-sheet workbook.
func (e *XLSXExporter) Render(grid Grid) ([]byte, error) {
	if len(grid.Days) == 0 || len(grid.Slots) == 0 {
		return nil, fmt.Errorf("xlsx grid requires days and slots")
	}

	cells := make(map[[2]int][]string)
	for _, entry := range grid.Entries {
		if entry.Day < 0 || entry.Day >= len(grid.Days) || entry.Slot < 0 || entry.Slot >= len(grid.Slots) {
			return nil, fmt.Errorf("grid entry outside grid: day %d slot %d", entry.Day, entry.Slot)
		}
		key := [2]int{entry.Day, entry.Slot}
		cells[key] = append(cells[key], entry.Text)
	}

	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(gridSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	cellStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("cell style: %w", err)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(grid.Days) + 1)
	row := 1
	if grid.Title != "" {
		_ = f.SetCellValue(gridSheet, "A1", grid.Title)
		_ = f.MergeCell(gridSheet, "A1", lastCol+"1")
		_ = f.SetCellStyle(gridSheet, "A1", "A1", headerStyle)
		row = 2
	}

	_ = f.SetColWidth(gridSheet, "A", "A", 18)
	_ = f.SetColWidth(gridSheet, "B", lastCol, 26)

	_ = f.SetCellValue(gridSheet, cellName(1, row), "Slot")
	for i, day := range grid.Days {
		_ = f.SetCellValue(gridSheet, cellName(i+2, row), day)
	}
	_ = f.SetCellStyle(gridSheet, cellName(1, row), cellName(len(grid.Days)+1, row), headerStyle)

	for s, slot := range grid.Slots {
		r := row + 1 + s
		_ = f.SetCellValue(gridSheet, cellName(1, r), slot)
		_ = f.SetCellStyle(gridSheet, cellName(1, r), cellName(1, r), headerStyle)
		for d := range grid.Days {
			if texts, ok := cells[[2]int{d, s}]; ok {
				_ = f.SetCellValue(gridSheet, cellName(d+2, r), strings.Join(texts, "\n"))
			}
		}
		_ = f.SetCellStyle(gridSheet, cellName(2, r), cellName(len(grid.Days)+1, r), cellStyle)
		_ = f.SetRowHeight(gridSheet, r, 48)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
