// Package spreadsheet reads CSV and XLSX uploads into header-indexed rows.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet holds the parsed header and data rows of an upload.
type Sheet struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Row is a single data row with header-aware lookups.
type Row struct {
	// Number is the 1-indexed line in the source file, counting the header as line 1.
	Number int
	values []string
	index  map[string]int
}

// Read parses data according to the filename extension (.csv or .xlsx).
func Read(filename string, r io.Reader) (*Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(data)
	case ".xlsx":
		rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("unsupported file type (csv, xlsx)")
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	return newSheet(rows), nil
}

func newSheet(rows [][]string) *Sheet {
	header := make([]string, len(rows[0]))
	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		key := normalizeHeader(h)
		header[i] = key
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			data = append(data, nil)
			continue
		}
		data = append(data, row)
	}
	return &Sheet{Header: header, Rows: data, index: index}
}

// MissingColumns returns the required columns absent from the header.
func (s *Sheet) MissingColumns(required ...string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := s.index[normalizeHeader(col)]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// DataRows returns non-blank rows with their source line numbers.
func (s *Sheet) DataRows() []Row {
	out := make([]Row, 0, len(s.Rows))
	for i, values := range s.Rows {
		if values == nil {
			continue
		}
		out = append(out, Row{Number: i + 2, values: values, index: s.index})
	}
	return out
}

// Get returns the trimmed cell value for a column, or "" when absent.
func (r Row) Get(column string) string {
	idx, ok := r.index[normalizeHeader(column)]
	if !ok || idx >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[idx])
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)
	if sheet == "" {
		sheet = "Sheet1"
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "-", "_")
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
