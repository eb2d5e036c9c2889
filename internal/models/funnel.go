package models

import "time"

// LeadStatus tracks a prospect through admissions.
type LeadStatus string

const (
	LeadStatusLead      LeadStatus = "lead"
	LeadStatusApplicant LeadStatus = "applicant"
	LeadStatusLost      LeadStatus = "lost"
)

// Valid returns true when the status is a supported value.
func (s LeadStatus) Valid() bool {
	return s == LeadStatusLead || s == LeadStatusApplicant || s == LeadStatusLost
}

// LeadSourcePhoneCall marks leads created from call analytics.
const LeadSourcePhoneCall = "phone_call"

// Lead is a prospective student.
type Lead struct {
	ID          string     `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	Email       *string    `db:"email" json:"email,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	Source      string     `db:"source" json:"source"`
	Status      LeadStatus `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	ExternalRef *string    `db:"external_ref" json:"external_ref,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// LeadFilter narrows lead listings.
type LeadFilter struct {
	Status   *LeadStatus
	Source   string
	Search   string
	Page     int
	PageSize int
}

// ApplicationStatus is the admissions decision lifecycle.
type ApplicationStatus string

const (
	ApplicationStatusDraft     ApplicationStatus = "draft"
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusDenied    ApplicationStatus = "denied"
	ApplicationStatusEnrolled  ApplicationStatus = "enrolled"
)

// Application is a prospect's request for admission to a program.
type Application struct {
	ID               string            `db:"id" json:"id"`
	LeadID           *string           `db:"lead_id" json:"lead_id,omitempty"`
	FirstName        string            `db:"first_name" json:"first_name"`
	LastName         string            `db:"last_name" json:"last_name"`
	Email            string            `db:"email" json:"email"`
	Phone            *string           `db:"phone" json:"phone,omitempty"`
	ProgramID        string            `db:"program_id" json:"program_id"`
	CampusID         string            `db:"campus_id" json:"campus_id"`
	DesiredStartDate *time.Time        `db:"desired_start_date" json:"desired_start_date,omitempty"`
	Status           ApplicationStatus `db:"status" json:"status"`
	SubmittedAt      *time.Time        `db:"submitted_at" json:"submitted_at,omitempty"`
	DecidedAt        *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	DecidedBy        *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecisionNote     *string           `db:"decision_note" json:"decision_note,omitempty"`
	StudentID        *string           `db:"student_id" json:"student_id,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	Status   *ApplicationStatus
	Page     int
	PageSize int
}
