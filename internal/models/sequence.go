package models

import "time"

// SequenceEnrollmentStatus tracks a contact's progress through a drip sequence.
type SequenceEnrollmentStatus string

const (
	SequenceStatusActive       SequenceEnrollmentStatus = "active"
	SequenceStatusPaused       SequenceEnrollmentStatus = "paused"
	SequenceStatusCompleted    SequenceEnrollmentStatus = "completed"
	SequenceStatusUnsubscribed SequenceEnrollmentStatus = "unsubscribed"
)

// Well-known sequence codes seeded by migrations.
const (
	SequenceLeadNurture         = "lead_nurture"
	SequenceApplicationFollowup = "application_followup"
)

// EmailSequence is a named drip campaign.
type EmailSequence struct {
	ID     string `db:"id" json:"id"`
	Code   string `db:"code" json:"code"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// EmailSequenceStep is one email in a sequence. Steps are numbered from 1.
type EmailSequenceStep struct {
	SequenceID   string `db:"sequence_id" json:"sequence_id"`
	StepNumber   int    `db:"step_number" json:"step_number"`
	DelayHours   int    `db:"delay_hours" json:"delay_hours"`
	TemplateCode string `db:"template_code" json:"template_code"`
}

// Delay returns the wait before this step is due.
func (s EmailSequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayHours) * time.Hour
}

// EmailSequenceEnrollment is a contact's membership in a sequence.
// CurrentStep is the last step sent; zero means nothing sent yet.
type EmailSequenceEnrollment struct {
	ID             string                   `db:"id" json:"id"`
	SequenceID     string                   `db:"sequence_id" json:"sequence_id"`
	ContactEmail   string                   `db:"contact_email" json:"contact_email"`
	ContactName    string                   `db:"contact_name" json:"contact_name"`
	LeadID         *string                  `db:"lead_id" json:"lead_id,omitempty"`
	ApplicationID  *string                  `db:"application_id" json:"application_id,omitempty"`
	CurrentStep    int                      `db:"current_step" json:"current_step"`
	Status         SequenceEnrollmentStatus `db:"status" json:"status"`
	NextEmailDueAt *time.Time               `db:"next_email_due_at" json:"next_email_due_at,omitempty"`
	EnrolledAt     time.Time                `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt    *time.Time               `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt      time.Time                `db:"updated_at" json:"updated_at"`
}

// EmailSendStatus records the outcome of a send attempt.
type EmailSendStatus string

const (
	EmailSendStatusSent   EmailSendStatus = "sent"
	EmailSendStatusFailed EmailSendStatus = "failed"
)

// EmailSendLog is an append-only record of each send attempt.
type EmailSendLog struct {
	ID           string          `db:"id" json:"id"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	StepNumber   int             `db:"step_number" json:"step_number"`
	TemplateCode string          `db:"template_code" json:"template_code"`
	ToEmail      string          `db:"to_email" json:"to_email"`
	Subject      string          `db:"subject" json:"subject"`
	Status       EmailSendStatus `db:"status" json:"status"`
	Error        *string         `db:"error" json:"error,omitempty"`
	SentAt       time.Time       `db:"sent_at" json:"sent_at"`
}

// ProcessDueSummary reports one sweep over due enrollments.
type ProcessDueSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// StepOutcome describes what processing one enrollment did.
type StepOutcome struct {
	Enrollment EmailSequenceEnrollment `json:"enrollment"`
	Sent       bool                    `json:"sent"`
	StepNumber int                     `json:"step_number,omitempty"`
}
