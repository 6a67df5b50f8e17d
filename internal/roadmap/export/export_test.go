package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	return Table{
		Title:    "Side income roadmap",
		Subtitle: "25% complete",
		Columns: []Column{
			{Key: "phase", Label: "Phase"},
			{Key: "step", Label: "Step"},
			{Key: "hours", Label: "Hours"},
			{Key: "done", Label: "Done"},
		},
		Rows: []map[string]interface{}{
			{"phase": "Research", "step": "Read two sector reports", "hours": 3.5, "done": true},
			{"phase": "Research", "step": "Shortlist, \"quoted\"", "hours": 2, "done": false},
		},
		Summary:     []SummaryItem{{Label: "Progress", Value: "25%"}},
		GeneratedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"CSV": FormatCSV, "excel": FormatXLSX, " pdf ": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("docx")
	assert.Error(t, err)
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleTable()))

	want := "Phase,Step,Hours,Done\n" +
		"Research,Read two sector reports,3.5,Yes\n" +
		"Research,\"Shortlist, \"\"quoted\"\"\",2,No\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(sheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Step", header)

	hours, err := f.GetCellValue(sheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "3.5", hours)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPDF, sampleTable()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
