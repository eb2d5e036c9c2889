package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"date", "student", "total_hours"}}
	data.Append("2026-03-02", "Ana Ruiz", "6.50")
	data.Append("2026-03-03", "Ben, Jr", "4.00")

	out, err := NewCSVExporter(false).Render(data)
	require.NoError(t, err)
	assert.Equal(t, "date,student,total_hours\n2026-03-02,Ana Ruiz,6.50\n2026-03-03,\"Ben, Jr\",4.00\n", string(out))
}

func TestCSVExporterBOMAndHeaders(t *testing.T) {
	out, err := NewCSVExporter(true).Render(Dataset{Headers: []string{"a"}})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("\ufeff")))

	_, err = NewCSVExporter(false).Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterNeutralizesFormulas(t *testing.T) {
	data := Dataset{Headers: []string{"name", "balance"}}
	data.Append("=HYPERLINK(\"http://x\")", "-125.50")
	data.Append("@SUM(A1)", "+1")
	data.Append("short")

	out, err := NewCSVExporter(false).Render(data)
	require.NoError(t, err)
	assert.Equal(t, "name,balance\n\"'=HYPERLINK(\"\"http://x\"\")\",-125.50\n'@SUM(A1),'+1\nshort,\n", string(out))
}

func TestXLSXExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"student", "hours", "status"}}
	data.Append("Ana Ruiz", "6.50", "present")
	data.Append("=cmd", "-2", "absent")

	exporter := NewXLSXExporter("Attendance")
	out, err := exporter.Render(data)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", exporter.Extension())

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Attendance")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"student", "hours", "status"}, rows[0])
	assert.Equal(t, "=cmd", rows[2][0])

	cellType, err := f.GetCellType("Attendance", "B2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	formula, err := f.GetCellFormula("Attendance", "A3")
	require.NoError(t, err)
	assert.Empty(t, formula)

	_, err = exporter.Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	table := &Dataset{Headers: []string{"Date", "Hours"}}
	table.Append("2026-03-02", "6.50")

	out, err := NewPDFExporter("Academy").Render(Document{
		Title:  "Transcript",
		Fields: []Field{{Label: "Student", Value: "Ana Ruiz"}},
		Body:   []string{"Hours completed to date."},
		Table:  table,
		Footer: "Generated automatically",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	out, err = NewPDFExporter("Academy").Render(Document{Title: "Certificate", Landscape: true})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = NewPDFExporter("").Render(Document{})
	require.Error(t, err)
}
