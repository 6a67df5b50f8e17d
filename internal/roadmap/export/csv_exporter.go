package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

func writeCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.labels()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	keys := t.keys()
	for _, row := range t.Rows {
		record := make([]string, len(keys))
		for i, key := range keys {
			record[i] = formatValue(row[key])
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
