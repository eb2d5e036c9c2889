package spreadsheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "\xef\xbb\xbfFirst Name,last_name,Email\nAda,Lovelace,ada@example.com\n,,\nGrace,Hopper,grace@example.com\n"
	sheet, err := Read("students.csv", strings.NewReader(input))
	require.NoError(t, err)

	assert.Empty(t, sheet.MissingColumns("first_name", "email"))
	assert.Equal(t, []string{"program_code"}, sheet.MissingColumns("program_code"))

	rows := sheet.DataRows()
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "Ada", rows[0].Get("first_name"))
	assert.Equal(t, 4, rows[1].Number)
	assert.Equal(t, "grace@example.com", rows[1].Get("EMAIL"))
	assert.Equal(t, "", rows[1].Get("missing"))
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"student_number", "date"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"S-1", "2024-01-02"}))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))

	sheet, err := Read("attendance.xlsx", buf)
	require.NoError(t, err)
	rows := sheet.DataRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "S-1", rows[0].Get("student_number"))
}

func TestReadRejectsUnsupported(t *testing.T) {
	_, err := Read("students.txt", strings.NewReader("a"))
	require.Error(t, err)

	_, err = Read("empty.csv", strings.NewReader(""))
	require.Error(t, err)
}
