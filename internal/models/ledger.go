package models

import "time"

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodACH          PaymentMethod = "ach"
	PaymentMethodFinancialAid PaymentMethod = "financial_aid"
)

// Valid returns true when the method is a supported value.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCheck, PaymentMethodACH, PaymentMethodFinancialAid:
		return true
	default:
		return false
	}
}

// PaymentStatus tracks settlement of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	default:
		return false
	}
}

// StudentAccount holds the derived balance for a student's ledger.
type StudentAccount struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	CurrentBalance float64   `db:"current_balance" json:"current_balance"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Charge is an amount owed by the student.
type Charge struct {
	ID          string     `db:"id" json:"id"`
	AccountID   string     `db:"account_id" json:"account_id"`
	Description string     `db:"description" json:"description"`
	ChargeType  string     `db:"charge_type" json:"charge_type"`
	Amount      float64    `db:"amount" json:"amount"`
	IsVoided    bool       `db:"is_voided" json:"is_voided"`
	VoidedAt    *time.Time `db:"voided_at" json:"voided_at,omitempty"`
	VoidReason  *string    `db:"void_reason" json:"void_reason,omitempty"`
	CreatedBy   *string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Payment is money received, or returned when IsRefund is set.
type Payment struct {
	ID             string        `db:"id" json:"id"`
	AccountID      string        `db:"account_id" json:"account_id"`
	Amount         float64       `db:"amount" json:"amount"`
	Method         PaymentMethod `db:"method" json:"method"`
	Status         PaymentStatus `db:"status" json:"status"`
	IsRefund       bool          `db:"is_refund" json:"is_refund"`
	Reference      *string       `db:"reference" json:"reference,omitempty"`
	DisbursementID *string       `db:"disbursement_id" json:"disbursement_id,omitempty"`
	CreatedBy      *string       `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// AccountStatement bundles an account with its ledger lines.
type AccountStatement struct {
	Account  StudentAccount `json:"account"`
	Charges  []Charge       `json:"charges"`
	Payments []Payment      `json:"payments"`
}
