package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

type ledgerService interface {
	Statement(ctx context.Context, studentID string) (*models.AccountStatement, error)
	Recalculate(ctx context.Context, accountID string) (*models.StudentAccount, error)
	PostCharge(ctx context.Context, actor models.Actor, studentID string, req dto.ChargeRequest) (*models.Charge, error)
	VoidCharge(ctx context.Context, actor models.Actor, chargeID string, req dto.VoidChargeRequest) (*models.Charge, error)
	RecordPayment(ctx context.Context, actor models.Actor, studentID string, req dto.PaymentRequest) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, actor models.Actor, paymentID string, req dto.PaymentStatusRequest) (*models.Payment, error)
}

// LedgerHandler exposes student account endpoints.
type LedgerHandler struct {
	service ledgerService
}

// NewLedgerHandler constructs LedgerHandler.
func NewLedgerHandler(service ledgerService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// Account godoc
// @Summary Student account with charges and payments
// @Tags Ledger
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/account [get]
func (h *LedgerHandler) Account(c *gin.Context) {
	statement, err := h.service.Statement(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statement, nil)
}

// PostCharge godoc
// @Summary Post a charge to a student account
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.ChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/charges [post]
func (h *LedgerHandler) PostCharge(c *gin.Context) {
	var req dto.ChargeRequest
	if !bindJSON(c, &req) {
		return
	}
	charge, err := h.service.PostCharge(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, charge)
}

// VoidCharge godoc
// @Summary Void a charge
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Charge ID"
// @Param payload body dto.VoidChargeRequest true "Void reason"
// @Success 200 {object} response.Envelope
// @Router /charges/{id}/void [post]
func (h *LedgerHandler) VoidCharge(c *gin.Context) {
	var req dto.VoidChargeRequest
	if !bindJSON(c, &req) {
		return
	}
	charge, err := h.service.VoidCharge(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, charge, nil)
}

// RecordPayment godoc
// @Summary Record a payment or refund
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.PaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/payments [post]
func (h *LedgerHandler) RecordPayment(c *gin.Context) {
	var req dto.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.service.RecordPayment(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// UpdatePaymentStatus godoc
// @Summary Settle or fail a pending payment
// @Tags Ledger
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.PaymentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /payments/{id}/status [patch]
func (h *LedgerHandler) UpdatePaymentStatus(c *gin.Context) {
	var req dto.PaymentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := h.service.UpdatePaymentStatus(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Recalculate godoc
// @Summary Recompute an account balance from its ledger lines
// @Tags Ledger
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} response.Envelope
// @Router /accounts/{id}/recalculate [post]
func (h *LedgerHandler) Recalculate(c *gin.Context) {
	account, err := h.service.Recalculate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, account, nil)
}
