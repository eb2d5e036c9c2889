package dto

import "github.com/noah-isme/barber-academy-api/internal/models"

// ChargeRequest captures POST /students/:id/charges payload.
type ChargeRequest struct {
	Description string  `json:"description" validate:"required,max=255"`
	ChargeType  string  `json:"charge_type" validate:"required,max=50"`
	Amount      float64 `json:"amount" validate:"gt=0"`
}

// VoidChargeRequest captures POST /charges/:id/void payload.
type VoidChargeRequest struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// PaymentRequest captures POST /students/:id/payments payload.
type PaymentRequest struct {
	Amount    float64              `json:"amount" validate:"gt=0"`
	Method    models.PaymentMethod `json:"method" validate:"required"`
	Status    models.PaymentStatus `json:"status,omitempty"`
	IsRefund  bool                 `json:"is_refund"`
	Reference *string              `json:"reference,omitempty" validate:"omitempty,max=100"`
}

// PaymentStatusRequest captures PATCH /payments/:id/status payload.
type PaymentStatusRequest struct {
	Status models.PaymentStatus `json:"status" validate:"required"`
}
