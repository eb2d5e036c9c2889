package dto

import (
	"time"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// LeadRequest captures POST /leads payload.
type LeadRequest struct {
	FirstName   string  `json:"first_name" validate:"required,max=100"`
	LastName    string  `json:"last_name" validate:"max=100"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Source      string  `json:"source" validate:"required,max=50"`
	Notes       *string `json:"notes,omitempty"`
	ExternalRef *string `json:"external_ref,omitempty"`
}

// LeadStatusRequest captures PATCH /leads/:id/status payload.
type LeadStatusRequest struct {
	Status models.LeadStatus `json:"status" validate:"required"`
}

// LeadResult reports whether the lead was created or an existing one reused.
type LeadResult struct {
	Lead    models.Lead `json:"lead"`
	Created bool        `json:"created"`
}

// ApplicationRequest captures POST /applications payload.
type ApplicationRequest struct {
	LeadID           *string    `json:"lead_id,omitempty"`
	FirstName        string     `json:"first_name" validate:"required,max=100"`
	LastName         string     `json:"last_name" validate:"required,max=100"`
	Email            string     `json:"email" validate:"required,email"`
	Phone            *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	ProgramID        string     `json:"program_id" validate:"required"`
	CampusID         string     `json:"campus_id" validate:"required"`
	DesiredStartDate *time.Time `json:"desired_start_date,omitempty"`
}

// DecisionRequest captures POST /applications/:id/decision payload.
type DecisionRequest struct {
	Decision models.ApplicationStatus `json:"decision" validate:"required,oneof=accepted denied"`
	Note     *string                  `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ApplicationEnrollment is returned when an accepted applicant becomes a student.
type ApplicationEnrollment struct {
	Application models.Application    `json:"application"`
	Student     models.Student        `json:"student"`
	Account     models.StudentAccount `json:"account"`
}
