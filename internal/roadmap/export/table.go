// Package export renders a titled table as CSV, XLSX or PDF.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts csv, xlsx (or excel) and pdf, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/csv"
}

// Column is one table column: Key indexes the row maps, Label is the header.
type Column struct {
	Key   string
	Label string
}

// SummaryItem is a labelled value printed above the table in PDF output.
type SummaryItem struct {
	Label string
	Value interface{}
}

// Table is the format-independent export input.
type Table struct {
	Title       string
	Subtitle    string
	Columns     []Column
	Rows        []map[string]interface{}
	Summary     []SummaryItem
	GeneratedAt time.Time
}

// Write renders t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, t)
	case FormatXLSX:
		return writeExcel(w, t)
	case FormatPDF:
		return writePDF(w, t)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

func (t Table) keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

func (t Table) labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
		if labels[i] == "" {
			labels[i] = c.Key
		}
	}
	return labels
}

// formatValue renders a cell as text for CSV and PDF.
func formatValue(val interface{}) string {
	if val == nil {
		return ""
	}

	switch v := val.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format("2006-01-02")
	case []string:
		return strings.Join(v, "; ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
