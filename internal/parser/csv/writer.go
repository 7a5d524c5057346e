package csv

import (
	"encoding/csv"
	"fmt"
	"io"

	"h1b/pkg/records"
)

// Writer emits records as delimited text with a header line.
type Writer struct {
	// Comma specifies the field delimiter. When zero, DefaultComma is used.
	Comma rune
}

// Write writes columns as the header line followed by one line per row, taking
// each cell from the row by column name. Missing cells are written empty.
func (w Writer) Write(dst io.Writer, columns []string, rows []records.Record) error {
	cw := csv.NewWriter(dst)
	cw.Comma = DefaultComma
	if w.Comma != 0 {
		cw.Comma = w.Comma
	}

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	line := make([]string, len(columns))
	for i, r := range rows {
		for j, c := range columns {
			line[j] = r.Value(c)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
