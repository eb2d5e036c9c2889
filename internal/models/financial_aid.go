package models

import "time"

// AwardType enumerates federal and institutional aid kinds.
type AwardType string

const (
	AwardTypePell             AwardType = "pell"
	AwardTypeSubsidizedLoan   AwardType = "subsidized_loan"
	AwardTypeUnsubsidizedLoan AwardType = "unsubsidized_loan"
	AwardTypePlusLoan         AwardType = "plus_loan"
	AwardTypeScholarship      AwardType = "scholarship"
	AwardTypeGrant            AwardType = "grant"
)

// Valid returns true when the type is a supported value.
func (t AwardType) Valid() bool {
	switch t {
	case AwardTypePell, AwardTypeSubsidizedLoan, AwardTypeUnsubsidizedLoan, AwardTypePlusLoan, AwardTypeScholarship, AwardTypeGrant:
		return true
	default:
		return false
	}
}

// AwardStatus is the packaging lifecycle of an award.
type AwardStatus string

const (
	AwardStatusPending   AwardStatus = "pending"
	AwardStatusPackaged  AwardStatus = "packaged"
	AwardStatusAccepted  AwardStatus = "accepted"
	AwardStatusDisbursed AwardStatus = "disbursed"
	AwardStatusCancelled AwardStatus = "cancelled"
)

// DisbursementStatus tracks a scheduled release of aid funds.
type DisbursementStatus string

const (
	DisbursementStatusScheduled DisbursementStatus = "scheduled"
	DisbursementStatusReleased  DisbursementStatus = "released"
	DisbursementStatusCancelled DisbursementStatus = "cancelled"
)

// FinancialAidRecord groups a student's awards for one award year.
type FinancialAidRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	AwardYear string    `db:"award_year" json:"award_year"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FinancialAidAward is one award within an aid record.
type FinancialAidAward struct {
	ID          string      `db:"id" json:"id"`
	AidRecordID string      `db:"aid_record_id" json:"aid_record_id"`
	AwardType   AwardType   `db:"award_type" json:"award_type"`
	Amount      float64     `db:"amount" json:"amount"`
	Status      AwardStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Disbursement is a scheduled release of award funds to the student account.
type Disbursement struct {
	ID             string             `db:"id" json:"id"`
	AwardID        string             `db:"award_id" json:"award_id"`
	SequenceNumber int                `db:"sequence_number" json:"sequence_number"`
	Amount         float64            `db:"amount" json:"amount"`
	ScheduledDate  time.Time          `db:"scheduled_date" json:"scheduled_date"`
	Status         DisbursementStatus `db:"status" json:"status"`
	ReleasedAt     *time.Time         `db:"released_at" json:"released_at,omitempty"`
	PaymentID      *string            `db:"payment_id" json:"payment_id,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
}

// FinancialAidPackage is an aid record with its awards and disbursements.
type FinancialAidPackage struct {
	Record        FinancialAidRecord  `json:"record"`
	Awards        []FinancialAidAward `json:"awards"`
	Disbursements []Disbursement      `json:"disbursements"`
}
