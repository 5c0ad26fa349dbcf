package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// TimetableGrid is the renderable form of one section's weekly schedule.
// Rows maps day name to one cell per period, in period order.
type TimetableGrid struct {
	Title   string
	Days    []string
	Periods []string
	Rows    map[string][]string
}

// CSVExporter renders a timetable grid into CSV bytes.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes with a header row of period labels
// and one row per day.
func (e *CSVExporter) Render(grid TimetableGrid) ([]byte, error) {
	if len(grid.Periods) == 0 {
		return nil, fmt.Errorf("csv requires at least one period column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	header := append([]string{"Day"}, grid.Periods...)
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, day := range grid.Days {
		record := make([]string, 0, len(grid.Periods)+1)
		record = append(record, day)
		cells := grid.Rows[day]
		for i := range grid.Periods {
			if i < len(cells) {
				record = append(record, cells[i])
			} else {
				record = append(record, "")
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
