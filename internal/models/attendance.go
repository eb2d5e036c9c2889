package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent         AttendanceStatus = "present"
	AttendanceStatusAbsent          AttendanceStatus = "absent"
	AttendanceStatusTardy           AttendanceStatus = "tardy"
	AttendanceStatusExcused         AttendanceStatus = "excused"
	AttendanceStatusPendingApproval AttendanceStatus = "pending_approval"
	AttendanceStatusRejected        AttendanceStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusTardy, AttendanceStatusExcused,
		AttendanceStatusPendingApproval, AttendanceStatusRejected:
		return true
	default:
		return false
	}
}

// Importable reports whether the status may be supplied in a bulk upload.
func (s AttendanceStatus) Importable() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusTardy, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// AttendanceRecord is one clock-in/clock-out session or a correction to one.
type AttendanceRecord struct {
	ID                string           `db:"id" json:"id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	CampusID          *string          `db:"campus_id" json:"campus_id,omitempty"`
	Date              time.Time        `db:"date" json:"date"`
	ClockInTime       *time.Time       `db:"clock_in_time" json:"clock_in_time,omitempty"`
	ClockOutTime      *time.Time       `db:"clock_out_time" json:"clock_out_time,omitempty"`
	ActualHours       float64          `db:"actual_hours" json:"actual_hours"`
	TheoryHours       float64          `db:"theory_hours" json:"theory_hours"`
	PracticalHours    float64          `db:"practical_hours" json:"practical_hours"`
	Status            AttendanceStatus `db:"status" json:"status"`
	IsCorrection      bool             `db:"is_correction" json:"is_correction"`
	CorrectionReason  *string          `db:"correction_reason" json:"correction_reason,omitempty"`
	CorrectsRecordID  *string          `db:"corrects_record_id" json:"corrects_record_id,omitempty"`
	TheoryOverridePct *float64         `db:"theory_override_pct" json:"theory_override_pct,omitempty"`
	RecordedBy        *string          `db:"recorded_by" json:"recorded_by,omitempty"`
	ApprovedBy        *string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt        *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// Totals returns the record's hours as a running-total increment.
func (r AttendanceRecord) Totals() HourTotals {
	return HourTotals{Total: r.ActualHours, Theory: r.TheoryHours, Practical: r.PracticalHours}
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	StudentID    string
	CampusID     string
	Status       *AttendanceStatus
	IsCorrection *bool
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// AttendanceReportRow joins attendance with student identity for exports.
type AttendanceReportRow struct {
	Date           time.Time        `db:"date" json:"date"`
	StudentNumber  string           `db:"student_number" json:"student_number"`
	StudentName    string           `db:"student_name" json:"student_name"`
	ClockInTime    *time.Time       `db:"clock_in_time" json:"clock_in_time,omitempty"`
	ClockOutTime   *time.Time       `db:"clock_out_time" json:"clock_out_time,omitempty"`
	ActualHours    float64          `db:"actual_hours" json:"actual_hours"`
	TheoryHours    float64          `db:"theory_hours" json:"theory_hours"`
	PracticalHours float64          `db:"practical_hours" json:"practical_hours"`
	Status         AttendanceStatus `db:"status" json:"status"`
	IsCorrection   bool             `db:"is_correction" json:"is_correction"`
}

// StudentMilestone records the first time a student crossed an hour threshold.
type StudentMilestone struct {
	ID                 string    `db:"id" json:"id"`
	StudentID          string    `db:"student_id" json:"student_id"`
	MilestoneType      string    `db:"milestone_type" json:"milestone_type"`
	HoursAtAchievement float64   `db:"hours_at_achievement" json:"hours_at_achievement"`
	AchievedAt         time.Time `db:"achieved_at" json:"achieved_at"`
}

// SAPEvaluation is a point-in-time satisfactory academic progress review.
type SAPEvaluation struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	EvaluatedAt    time.Time `db:"evaluated_at" json:"evaluated_at"`
	ScheduledHours float64   `db:"scheduled_hours" json:"scheduled_hours"`
	CompletedHours float64   `db:"completed_hours" json:"completed_hours"`
	AttendancePct  float64   `db:"attendance_pct" json:"attendance_pct"`
	GPA            *float64  `db:"gpa" json:"gpa,omitempty"`
	PreviousStatus SAPStatus `db:"previous_status" json:"previous_status"`
	ResultStatus   SAPStatus `db:"result_status" json:"result_status"`
	EvaluatedBy    *string   `db:"evaluated_by" json:"evaluated_by,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
}
