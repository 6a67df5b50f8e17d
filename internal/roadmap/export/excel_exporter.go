package export

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Roadmap"

func writeExcel(w io.Writer, t Table) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	widths := make([]int, len(t.Columns))
	for i, label := range t.labels() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheetName, cell, label); err != nil {
			return fmt.Errorf("failed to set header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(label)
	}
	last, _ := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err := file.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for r, row := range t.Rows {
		for c, key := range t.keys() {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			val := excelValue(row[key])
			if err := file.SetCellValue(sheetName, cell, val); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if n := utf8.RuneCountInString(formatValue(row[key])); n > widths[c] {
				widths[c] = n
			}
		}
	}

	if err := file.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	if len(t.Rows) > 0 {
		if err := file.AutoFilter(sheetName, "A1:"+last, nil); err != nil {
			return fmt.Errorf("failed to add filter: %w", err)
		}
	}

	// Min width 10, max width 50
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		fw := float64(width) + 2
		if fw < 10 {
			fw = 10
		}
		if fw > 50 {
			fw = 50
		}
		if err := file.SetColWidth(sheetName, col, col, fw); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	return file.Write(w)
}

// excelValue keeps numbers and booleans native so spreadsheets can sum them.
func excelValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return ""
	case int, int64, float64, bool, string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v
	}
	return formatValue(val)
}
