package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TimetableGrid is a week grid: one column per day, one row per time slot.
type TimetableGrid struct {
	Title      string
	DayLabels  []string
	SlotLabels []string
	// Cells is indexed [slot][day]; multi-session cells are newline separated.
	Cells [][]string
}

// PDFExporter renders schedules into printable PDF documents.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderTimetable draws the weekly grid in landscape orientation.
func (e *PDFExporter) RenderTimetable(grid TimetableGrid) ([]byte, error) {
	if len(grid.DayLabels) == 0 || len(grid.SlotLabels) == 0 {
		return nil, fmt.Errorf("timetable grid requires day and slot labels")
	}
	if len(grid.Cells) != len(grid.SlotLabels) {
		return nil, fmt.Errorf("timetable grid has %d rows, expected %d", len(grid.Cells), len(grid.SlotLabels))
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	const slotColWidth = 28.0
	dayColWidth := (277.0 - slotColWidth) / float64(len(grid.DayLabels))

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(slotColWidth, 8, "", "1", 0, "C", false, 0, "")
	for _, day := range grid.DayLabels {
		pdf.CellFormat(dayColWidth, 8, day, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	for rowIdx, slotLabel := range grid.SlotLabels {
		row := grid.Cells[rowIdx]
		rowHeight := 7.0 * float64(maxLines(row))

		pdf.SetFont("Arial", "B", 8)
		x, y := pdf.GetXY()
		pdf.CellFormat(slotColWidth, rowHeight, slotLabel, "1", 0, "C", false, 0, "")

		pdf.SetFont("Arial", "", 8)
		for colIdx := range grid.DayLabels {
			var cell string
			if colIdx < len(row) {
				cell = row[colIdx]
			}
			cx := x + slotColWidth + float64(colIdx)*dayColWidth
			pdf.SetXY(cx, y)
			pdf.MultiCell(dayColWidth, rowHeight/float64(maxLines(row)), cell, "1", "C", false)
		}
		pdf.SetXY(x, y+rowHeight)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timetable pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func maxLines(row []string) int {
	max := 1
	for _, cell := range row {
		lines := strings.Count(cell, "\n") + 1
		if lines > max {
			max = lines
		}
	}
	return max
}
