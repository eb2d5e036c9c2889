package dto

// DocumentRequest captures POST /documents/:kind payload.
type DocumentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Persist   bool   `json:"persist"`
}
