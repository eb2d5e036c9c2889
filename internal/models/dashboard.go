package models

import "time"

// CountByStatus is a grouped count row.
type CountByStatus struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// DashboardSummary is the admin landing view.
type DashboardSummary struct {
	Leads             []CountByStatus `json:"leads"`
	Applications      []CountByStatus `json:"applications"`
	Students          []CountByStatus `json:"students"`
	ActiveSequences   int             `json:"active_sequences"`
	HoursLast30Days   float64         `json:"hours_last_30_days"`
	PendingCorrection int             `json:"pending_corrections"`
	OutstandingAR     float64         `json:"outstanding_receivables"`
	GeneratedAt       time.Time       `json:"generated_at"`
}
