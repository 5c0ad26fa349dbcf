package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a weekly timetable grid into a landscape PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a one-page PDF with days as rows and periods as columns.
func (e *PDFExporter) Render(grid TimetableGrid) ([]byte, error) {
	if len(grid.Periods) == 0 {
		return nil, fmt.Errorf("pdf requires at least one period column")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if grid.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(grid.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	const dayColWidth = 30.0
	colWidth := (277.0 - dayColWidth) / float64(len(grid.Periods))

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(dayColWidth, 8, "Day", "1", 0, "C", false, 0, "")
	for _, period := range grid.Periods {
		pdf.CellFormat(colWidth, 8, period, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, day := range grid.Days {
		pdf.CellFormat(dayColWidth, 10, day, "1", 0, "", false, 0, "")
		for i := range grid.Periods {
			cell := ""
			if cells := grid.Rows[day]; i < len(cells) {
				cell = cells[i]
			}
			pdf.CellFormat(colWidth, 10, cell, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
