package dto

import (
	"time"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// AidRecordRequest captures POST /students/:id/aid-records payload.
type AidRecordRequest struct {
	AwardYear string `json:"award_year" validate:"required,len=9"`
}

// AwardRequest captures POST /aid-records/:id/awards payload.
type AwardRequest struct {
	AwardType models.AwardType `json:"award_type" validate:"required"`
	Amount    float64          `json:"amount" validate:"gt=0"`
}

// DisbursementRequest captures POST /awards/:id/disbursements payload.
type DisbursementRequest struct {
	Amount        float64   `json:"amount" validate:"gt=0"`
	ScheduledDate time.Time `json:"scheduled_date" validate:"required"`
}

// ReleaseResult is returned after a disbursement posts to the ledger.
type ReleaseResult struct {
	Disbursement models.Disbursement `json:"disbursement"`
	Payment      models.Payment      `json:"payment"`
	Balance      float64             `json:"balance"`
	AwardStatus  models.AwardStatus  `json:"award_status"`
}
