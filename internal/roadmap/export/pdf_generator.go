package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	fontFamily    = "Arial"
	fontSize      = 10.0
	titleFontSize = 16.0
	marginMM      = 15.0
)

func writePDF(w io.Writer, t Table) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(marginMM, 20, marginMM)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", titleFontSize)
	pdf.CellFormat(0, 10, t.Title, "", 1, "C", false, 0, "")
	if t.Subtitle != "" {
		pdf.SetFont(fontFamily, "", fontSize+2)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, t.Subtitle, "", 1, "C", false, 0, "")
	}
	generated := t.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.SetFont(fontFamily, "", fontSize-1)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 6, "Generated: "+generated.Format("2006-01-02"), "", 1, "R", false, 0, "")

	if len(t.Summary) > 0 {
		pdf.Ln(4)
		pdf.SetTextColor(0, 0, 0)
		for _, item := range t.Summary {
			pdf.SetFont(fontFamily, "B", fontSize)
			pdf.CellFormat(50, 6, item.Label+":", "", 0, "L", false, 0, "")
			pdf.SetFont(fontFamily, "", fontSize)
			pdf.CellFormat(0, 6, formatValue(item.Value), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	widths := columnWidths(pdf, t)
	addTableHeader(pdf, t.labels(), widths)

	pdf.SetFont(fontFamily, "", fontSize)
	_, pageHeight := pdf.GetPageSize()
	for i, row := range t.Rows {
		if pdf.GetY()+8 > pageHeight-20 {
			pdf.AddPage()
			addTableHeader(pdf, t.labels(), widths)
			pdf.SetFont(fontFamily, "", fontSize)
		}
		if i%2 == 1 {
			pdf.SetFillColor(242, 242, 242)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		pdf.SetTextColor(0, 0, 0)
		for j, key := range t.keys() {
			pdf.CellFormat(widths[j], 7, fit(pdf, formatValue(row[key]), widths[j]), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

func addTableHeader(pdf *gofpdf.Fpdf, labels []string, widths []float64) {
	pdf.SetFont(fontFamily, "B", fontSize+1)
	pdf.SetFillColor(68, 114, 196)
	pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		pdf.CellFormat(widths[i], 8, label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

// columnWidths shares the printable width in proportion to each column's
// longest text, with a floor so short columns stay legible.
func columnWidths(pdf *gofpdf.Fpdf, t Table) []float64 {
	pageWidth, _ := pdf.GetPageSize()
	available := pageWidth - 2*marginMM

	pdf.SetFont(fontFamily, "", fontSize)
	want := make([]float64, len(t.Columns))
	total := 0.0
	for i, c := range t.labels() {
		want[i] = pdf.GetStringWidth(c) + 4
		for _, row := range t.Rows {
			if w := pdf.GetStringWidth(formatValue(row[t.Columns[i].Key])) + 4; w > want[i] {
				want[i] = w
			}
		}
		if want[i] < 20 {
			want[i] = 20
		}
		total += want[i]
	}
	if total > available {
		for i := range want {
			want[i] = want[i] * available / total
		}
	}
	return want
}

func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width-2 {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width-2 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
