package export

// Dataset is a header-ordered table shared by the CSV, XLSX and PDF renderers.
type Dataset struct {
	Headers []string
	Rows    [][]string
}

// Append adds a row, padding or trimming values to the header width.
func (d *Dataset) Append(values ...string) {
	row := make([]string, len(d.Headers))
	copy(row, values)
	d.Rows = append(d.Rows, row)
}

// Len reports the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}
