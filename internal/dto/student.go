package dto

import (
	"time"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// CreateStudentRequest captures POST /students payload.
type CreateStudentRequest struct {
	StudentNumber string     `json:"student_number" validate:"omitempty,max=30"`
	FirstName     string     `json:"first_name" validate:"required,max=100"`
	LastName      string     `json:"last_name" validate:"required,max=100"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	ProgramID     string     `json:"program_id" validate:"required"`
	CampusID      string     `json:"campus_id" validate:"required"`
	StartDate     *time.Time `json:"start_date,omitempty"`
}

// UpdateStudentRequest captures PUT /students/:id payload.
type UpdateStudentRequest struct {
	FirstName string     `json:"first_name" validate:"required,max=100"`
	LastName  string     `json:"last_name" validate:"required,max=100"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	ProgramID string     `json:"program_id" validate:"required"`
	CampusID  string     `json:"campus_id" validate:"required"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

// StudentStatusRequest captures PATCH /students/:id/status payload.
type StudentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required"`
}

// SAPEvaluationRequest captures POST /students/:id/sap-evaluations payload.
type SAPEvaluationRequest struct {
	ScheduledHours float64  `json:"scheduled_hours" validate:"gt=0"`
	GPA            *float64 `json:"gpa,omitempty" validate:"omitempty,gte=0,lte=4"`
	Notes          *string  `json:"notes,omitempty" validate:"omitempty,max=1000"`
}
