package dto

// EnrollSequenceRequest captures POST /sequences/enrollments payload.
type EnrollSequenceRequest struct {
	SequenceCode  string  `json:"sequence_code" validate:"required"`
	Email         string  `json:"email" validate:"required,email"`
	Name          string  `json:"name" validate:"max=200"`
	LeadID        *string `json:"lead_id,omitempty"`
	ApplicationID *string `json:"application_id,omitempty"`
}

// UnsubscribeRequest captures POST /sequences/unsubscribe payload.
type UnsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ProcessDueRequest optionally bounds one sweep.
type ProcessDueRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"`
}
