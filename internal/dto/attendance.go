package dto

import (
	"time"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// ClockInRequest captures POST /attendance/clock-in payload.
type ClockInRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	CampusID  *string `json:"campus_id,omitempty"`
	Tardy     bool    `json:"tardy"`
}

// ClockOutRequest captures POST /attendance/:id/clock-out payload.
type ClockOutRequest struct {
	TheoryOverridePct *float64 `json:"theory_override_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// CorrectionRequest captures POST /attendance/corrections payload.
type CorrectionRequest struct {
	StudentID         string    `json:"student_id" validate:"required"`
	CampusID          *string   `json:"campus_id,omitempty"`
	Date              time.Time `json:"date" validate:"required"`
	ClockIn           time.Time `json:"clock_in" validate:"required"`
	ClockOut          time.Time `json:"clock_out" validate:"required"`
	Reason            string    `json:"reason" validate:"required,max=500"`
	CorrectsRecordID  *string   `json:"corrects_record_id,omitempty"`
	TheoryOverridePct *float64  `json:"theory_override_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// ReviewRequest captures an approve or reject note.
type ReviewRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// ClockOutResult is returned after a session closes or a correction is approved.
type ClockOutResult struct {
	Record     models.AttendanceRecord   `json:"record"`
	Totals     models.HourTotals         `json:"totals"`
	Milestones []models.StudentMilestone `json:"milestones"`
}
