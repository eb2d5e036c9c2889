package models

import "time"

// EnrollmentStatus tracks where a student is in their program lifecycle.
type EnrollmentStatus string

const (
	EnrollmentStatusApplicant EnrollmentStatus = "applicant"
	EnrollmentStatusEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusLOA       EnrollmentStatus = "loa"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
	EnrollmentStatusGraduated EnrollmentStatus = "graduated"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusApplicant, EnrollmentStatusEnrolled, EnrollmentStatusActive, EnrollmentStatusLOA,
		EnrollmentStatusWithdrawn, EnrollmentStatusGraduated, EnrollmentStatusDropped:
		return true
	default:
		return false
	}
}

// CanAttend reports whether the student may clock hours.
func (s EnrollmentStatus) CanAttend() bool {
	return s == EnrollmentStatusEnrolled || s == EnrollmentStatusActive
}

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusApplicant: {EnrollmentStatusEnrolled, EnrollmentStatusDropped},
	EnrollmentStatusEnrolled:  {EnrollmentStatusActive, EnrollmentStatusLOA, EnrollmentStatusWithdrawn, EnrollmentStatusDropped},
	EnrollmentStatusActive:    {EnrollmentStatusLOA, EnrollmentStatusWithdrawn, EnrollmentStatusGraduated, EnrollmentStatusDropped},
	EnrollmentStatusLOA:       {EnrollmentStatusActive, EnrollmentStatusWithdrawn, EnrollmentStatusDropped},
	EnrollmentStatusWithdrawn: {EnrollmentStatusEnrolled},
	EnrollmentStatusDropped:   {},
	EnrollmentStatusGraduated: {},
}

// CanTransitionTo reports whether next is reachable from s.
func (s EnrollmentStatus) CanTransitionTo(next EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SAPStatus is the satisfactory academic progress standing.
type SAPStatus string

const (
	SAPStatusSatisfactory SAPStatus = "satisfactory"
	SAPStatusWarning      SAPStatus = "warning"
	SAPStatusProbation    SAPStatus = "probation"
	SAPStatusSuspension   SAPStatus = "suspension"
)

// Escalate returns the next, more severe standing.
func (s SAPStatus) Escalate() SAPStatus {
	switch s {
	case SAPStatusSatisfactory:
		return SAPStatusWarning
	case SAPStatusWarning:
		return SAPStatusProbation
	default:
		return SAPStatusSuspension
	}
}

// Campus is a physical school location.
type Campus struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Program is a course of study with a required clock-hour total.
type Program struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	TotalHours  float64   `db:"total_hours" json:"total_hours"`
	TheoryHours float64   `db:"theory_hours" json:"theory_hours"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Student represents a learner enrolled at the academy. Students are never deleted.
type Student struct {
	ID                      string           `db:"id" json:"id"`
	StudentNumber           string           `db:"student_number" json:"student_number"`
	FirstName               string           `db:"first_name" json:"first_name"`
	LastName                string           `db:"last_name" json:"last_name"`
	Email                   string           `db:"email" json:"email"`
	Phone                   *string          `db:"phone" json:"phone,omitempty"`
	ProgramID               string           `db:"program_id" json:"program_id"`
	CampusID                string           `db:"campus_id" json:"campus_id"`
	StartDate               *time.Time       `db:"start_date" json:"start_date,omitempty"`
	EnrollmentStatus        EnrollmentStatus `db:"enrollment_status" json:"enrollment_status"`
	SAPStatus               SAPStatus        `db:"sap_status" json:"sap_status"`
	TotalHoursCompleted     float64          `db:"total_hours_completed" json:"total_hours_completed"`
	TheoryHoursCompleted    float64          `db:"theory_hours_completed" json:"theory_hours_completed"`
	PracticalHoursCompleted float64          `db:"practical_hours_completed" json:"practical_hours_completed"`
	CreatedAt               time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time        `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last names.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ProgramID string
	CampusID  string
	Status    *EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail contains the student with program and campus context.
type StudentDetail struct {
	Student
	ProgramCode       string  `db:"program_code" json:"program_code"`
	ProgramName       string  `db:"program_name" json:"program_name"`
	ProgramTotalHours float64 `db:"program_total_hours" json:"program_total_hours"`
	CampusName        string  `db:"campus_name" json:"campus_name"`
}

// HoursRemaining returns program hours still to complete, never negative.
func (d StudentDetail) HoursRemaining() float64 {
	remaining := d.ProgramTotalHours - d.TotalHoursCompleted
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HourTotals is an increment applied atomically to a student's running totals.
type HourTotals struct {
	Total     float64 `db:"total_hours_completed" json:"total_hours_completed"`
	Theory    float64 `db:"theory_hours_completed" json:"theory_hours_completed"`
	Practical float64 `db:"practical_hours_completed" json:"practical_hours_completed"`
}
