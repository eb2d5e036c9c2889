package models

// ImportRowError describes why a spreadsheet row was skipped. Row is the
// 1-indexed line number in the uploaded file including the header.
type ImportRowError struct {
	Row   int    `json:"row"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

// ImportResult summarises a bulk upload.
type ImportResult struct {
	Imported int              `json:"imported"`
	Failed   int              `json:"failed"`
	Errors   []ImportRowError `json:"errors"`
}

// Fail records a row failure.
func (r *ImportResult) Fail(row int, field, message string) {
	r.Failed++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Field: field, Error: message})
}
