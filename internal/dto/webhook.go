package dto

// CallAnalyticsEvent is the inbound call analytics webhook body.
type CallAnalyticsEvent struct {
	Event string            `json:"event"`
	Call  CallAnalyticsCall `json:"call"`
}

// CallAnalyticsCall carries the analysed call and the caller details extracted from it.
type CallAnalyticsCall struct {
	CallID      string `json:"call_id"`
	FromNumber  string `json:"from_number"`
	Summary     string `json:"summary"`
	CallerName  string `json:"caller_name"`
	CallerEmail string `json:"caller_email"`
	CallerPhone string `json:"caller_phone"`
	Interest    string `json:"interest"`
}

// WebhookAck is returned for every accepted delivery.
type WebhookAck struct {
	Received bool    `json:"received"`
	Ignored  bool    `json:"ignored,omitempty"`
	LeadID   *string `json:"lead_id,omitempty"`
	Created  bool    `json:"created,omitempty"`
}
