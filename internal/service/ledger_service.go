package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type ledgerRepository interface {
	EnsureAccount(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.StudentAccount, error)
	FindAccountByStudent(ctx context.Context, studentID string) (*models.StudentAccount, error)
	LockAccount(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error)
	UpdateBalance(ctx context.Context, exec sqlx.ExtContext, id string, balance float64) error
	ListCharges(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Charge, error)
	ListPayments(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Payment, error)
	CreateCharge(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) error
	LockCharge(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Charge, error)
	VoidCharge(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error
	CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	LockPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// ComputeBalance derives an account balance from its ledger lines:
// non-voided charges, minus completed payments, plus completed refunds.
func ComputeBalance(charges []models.Charge, payments []models.Payment) float64 {
	var balance float64
	for _, c := range charges {
		if !c.IsVoided {
			balance += c.Amount
		}
	}
	for _, p := range payments {
		if p.Status != models.PaymentStatusCompleted {
			continue
		}
		if p.IsRefund {
			balance += p.Amount
		} else {
			balance -= p.Amount
		}
	}
	return round2(balance)
}

// LedgerService posts charges and payments and keeps the stored balance equal
// to ComputeBalance over the account's rows. Every mutation recomputes the
// balance while holding the account row lock.
type LedgerService struct {
	repo      ledgerRepository
	students  studentReader
	tx        txProvider
	audit     AuditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLedgerService constructs a LedgerService.
func NewLedgerService(repo ledgerRepository, students studentReader, tx txProvider, audit AuditRecorder, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &LedgerService{repo: repo, students: students, tx: tx, audit: audit, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// EnsureAccount returns the student's account, creating it on first use.
func (s *LedgerService) EnsureAccount(ctx context.Context, studentID string) (*models.StudentAccount, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	account, err := s.repo.EnsureAccount(ctx, nil, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to ensure student account")
	}
	return account, nil
}

// Recalculate recomputes and stores an account's balance.
func (s *LedgerService) Recalculate(ctx context.Context, accountID string) (*models.StudentAccount, error) {
	var account *models.StudentAccount
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.lockAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		balance, err := s.recompute(ctx, tx, locked.ID)
		if err != nil {
			return err
		}
		locked.CurrentBalance = balance
		account = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// PostCharge adds a charge to the student's account.
func (s *LedgerService) PostCharge(ctx context.Context, actor models.Actor, studentID string, req dto.ChargeRequest) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid charge payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}

	charge := &models.Charge{
		Description: strings.TrimSpace(req.Description),
		ChargeType:  strings.TrimSpace(req.ChargeType),
		Amount:      round2(req.Amount),
		CreatedBy:   actor.UserIDPtr(),
	}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		account, err := s.ensureLocked(ctx, tx, studentID)
		if err != nil {
			return err
		}
		charge.AccountID = account.ID
		if err := s.repo.CreateCharge(ctx, tx, charge); err != nil {
			return appErrors.Internal(err, "failed to create charge")
		}
		_, err = s.recompute(ctx, tx, account.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionChargePost, "charge", charge.ID, charge)
	return charge, nil
}

// VoidCharge marks a charge voided; voided charges no longer count toward the balance.
func (s *LedgerService) VoidCharge(ctx context.Context, actor models.Actor, chargeID string, req dto.VoidChargeRequest) (*models.Charge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid void payload")
	}

	var voided *models.Charge
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		charge, err := s.repo.LockCharge(ctx, tx, chargeID)
		if err != nil {
			return notFound(err, "charge not found", "failed to load charge")
		}
		if charge.IsVoided {
			return appErrors.Clone(appErrors.ErrInvalidState, "charge is already voided")
		}
		if _, err := s.lockAccount(ctx, tx, charge.AccountID); err != nil {
			return err
		}
		at := s.now().UTC()
		reason := strings.TrimSpace(req.Reason)
		if err := s.repo.VoidCharge(ctx, tx, charge.ID, reason, at); err != nil {
			return appErrors.Internal(err, "failed to void charge")
		}
		if _, err := s.recompute(ctx, tx, charge.AccountID); err != nil {
			return err
		}
		charge.IsVoided = true
		charge.VoidedAt = &at
		charge.VoidReason = &reason
		voided = charge
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionChargeVoid, "charge", chargeID, map[string]interface{}{"reason": req.Reason})
	return voided, nil
}

// RecordPayment posts a payment or refund. Only completed payments affect the balance.
func (s *LedgerService) RecordPayment(ctx context.Context, actor models.Actor, studentID string, req dto.PaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if !req.Method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment method")
	}
	status := req.Status
	if status == "" {
		status = models.PaymentStatusCompleted
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}

	payment := &models.Payment{
		Amount:    round2(req.Amount),
		Method:    req.Method,
		Status:    status,
		IsRefund:  req.IsRefund,
		Reference: req.Reference,
		CreatedBy: actor.UserIDPtr(),
	}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		account, err := s.ensureLocked(ctx, tx, studentID)
		if err != nil {
			return err
		}
		payment.AccountID = account.ID
		if err := s.repo.CreatePayment(ctx, tx, payment); err != nil {
			return appErrors.Internal(err, "failed to record payment")
		}
		_, err = s.recompute(ctx, tx, account.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionPaymentRecord, "payment", payment.ID, payment)
	return payment, nil
}

// UpdatePaymentStatus settles or fails a pending payment.
func (s *LedgerService) UpdatePaymentStatus(ctx context.Context, actor models.Actor, paymentID string, req dto.PaymentStatusRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid payment status")
	}

	var updated *models.Payment
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		payment, err := s.repo.LockPayment(ctx, tx, paymentID)
		if err != nil {
			return notFound(err, "payment not found", "failed to load payment")
		}
		if payment.Status == req.Status {
			updated = payment
			return nil
		}
		if payment.Status != models.PaymentStatusPending {
			return appErrors.Clone(appErrors.ErrInvalidState, "only pending payments can change status")
		}
		if _, err := s.lockAccount(ctx, tx, payment.AccountID); err != nil {
			return err
		}
		if err := s.repo.UpdatePaymentStatus(ctx, tx, payment.ID, req.Status); err != nil {
			return appErrors.Internal(err, "failed to update payment status")
		}
		if _, err := s.recompute(ctx, tx, payment.AccountID); err != nil {
			return err
		}
		payment.Status = req.Status
		updated = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionPaymentStatus, "payment", paymentID, map[string]interface{}{"status": req.Status})
	return updated, nil
}

// ApplyPayment posts payment inside an existing transaction and returns the
// new balance. The caller owns the transaction.
func (s *LedgerService) ApplyPayment(ctx context.Context, tx sqlx.ExtContext, studentID string, payment *models.Payment) (float64, error) {
	account, err := s.ensureLocked(ctx, tx, studentID)
	if err != nil {
		return 0, err
	}
	payment.AccountID = account.ID
	if err := s.repo.CreatePayment(ctx, tx, payment); err != nil {
		return 0, appErrors.Internal(err, "failed to record payment")
	}
	return s.recompute(ctx, tx, account.ID)
}

// OpenAccount creates the student's account inside an existing transaction.
func (s *LedgerService) OpenAccount(ctx context.Context, tx sqlx.ExtContext, studentID string) (*models.StudentAccount, error) {
	account, err := s.repo.EnsureAccount(ctx, tx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open student account")
	}
	return account, nil
}

// Statement returns the account with its charges and payments.
func (s *LedgerService) Statement(ctx context.Context, studentID string) (*models.AccountStatement, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	account, err := s.repo.FindAccountByStudent(ctx, studentID)
	if err != nil {
		return nil, notFound(err, "student account not found", "failed to load student account")
	}
	charges, err := s.repo.ListCharges(ctx, nil, account.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list charges")
	}
	payments, err := s.repo.ListPayments(ctx, nil, account.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list payments")
	}
	return &models.AccountStatement{Account: *account, Charges: charges, Payments: payments}, nil
}

func (s *LedgerService) ensureLocked(ctx context.Context, tx sqlx.ExtContext, studentID string) (*models.StudentAccount, error) {
	account, err := s.repo.EnsureAccount(ctx, tx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to ensure student account")
	}
	return s.lockAccount(ctx, tx, account.ID)
}

func (s *LedgerService) lockAccount(ctx context.Context, tx sqlx.ExtContext, accountID string) (*models.StudentAccount, error) {
	account, err := s.repo.LockAccount(ctx, tx, accountID)
	if err != nil {
		return nil, notFound(err, "student account not found", "failed to lock student account")
	}
	return account, nil
}

// recompute must run while the account row is locked.
func (s *LedgerService) recompute(ctx context.Context, tx sqlx.ExtContext, accountID string) (float64, error) {
	charges, err := s.repo.ListCharges(ctx, tx, accountID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list charges")
	}
	payments, err := s.repo.ListPayments(ctx, tx, accountID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to list payments")
	}
	balance := ComputeBalance(charges, payments)
	if err := s.repo.UpdateBalance(ctx, tx, accountID, balance); err != nil {
		return 0, appErrors.Internal(err, "failed to update balance")
	}
	s.metrics.LedgerRecalculated()
	return balance, nil
}
