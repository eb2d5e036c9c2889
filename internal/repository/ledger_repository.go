package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

const (
	accountColumns = `id, student_id, current_balance, created_at, updated_at`
	chargeColumns  = `id, account_id, description, charge_type, amount, is_voided, voided_at, void_reason, created_by, created_at`
	paymentColumns = `id, account_id, amount, method, status, is_refund, reference, disbursement_id, created_by, created_at, updated_at`
)

// LedgerRepository persists student accounts with their charges and payments.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// EnsureAccount creates the student's account when missing and returns it.
func (r *LedgerRepository) EnsureAccount(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.StudentAccount, error) {
	target := pick(r.db, exec)
	now := time.Now().UTC()
	const insert = `INSERT INTO student_accounts (id, student_id, current_balance, created_at, updated_at)
        VALUES ($1, $2, 0, $3, $3) ON CONFLICT (student_id) DO NOTHING`
	if _, err := target.ExecContext(ctx, insert, uuid.NewString(), studentID, now); err != nil {
		return nil, fmt.Errorf("ensure student account: %w", err)
	}
	var account models.StudentAccount
	if err := sqlx.GetContext(ctx, target, &account, "SELECT "+accountColumns+" FROM student_accounts WHERE student_id = $1", studentID); err != nil {
		return nil, fmt.Errorf("load student account: %w", err)
	}
	return &account, nil
}

// FindAccountByStudent returns the account for a student.
func (r *LedgerRepository) FindAccountByStudent(ctx context.Context, studentID string) (*models.StudentAccount, error) {
	var account models.StudentAccount
	if err := r.db.GetContext(ctx, &account, "SELECT "+accountColumns+" FROM student_accounts WHERE student_id = $1", studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find account by student: %w", err)
	}
	return &account, nil
}

// LockAccount selects the account row FOR UPDATE.
func (r *LedgerRepository) LockAccount(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error) {
	var account models.StudentAccount
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &account, "SELECT "+accountColumns+" FROM student_accounts WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return &account, nil
}

// UpdateBalance overwrites the derived balance.
func (r *LedgerRepository) UpdateBalance(ctx context.Context, exec sqlx.ExtContext, id string, balance float64) error {
	const query = `UPDATE student_accounts SET current_balance = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, balance, time.Now().UTC()); err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return nil
}

// ListCharges returns every charge on an account, voided included.
func (r *LedgerRepository) ListCharges(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Charge, error) {
	var charges []models.Charge
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &charges, "SELECT "+chargeColumns+" FROM charges WHERE account_id = $1 ORDER BY created_at", accountID); err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	return charges, nil
}

// ListPayments returns every payment on an account.
func (r *LedgerRepository) ListPayments(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Payment, error) {
	var payments []models.Payment
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &payments, "SELECT "+paymentColumns+" FROM payments WHERE account_id = $1 ORDER BY created_at", accountID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// CreateCharge inserts a charge.
func (r *LedgerRepository) CreateCharge(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	if charge.CreatedAt.IsZero() {
		charge.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO charges (` + chargeColumns + `) VALUES (:id, :account_id, :description, :charge_type, :amount, :is_voided,
        :voided_at, :void_reason, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, charge); err != nil {
		return fmt.Errorf("create charge: %w", err)
	}
	return nil
}

// LockCharge selects a charge FOR UPDATE.
func (r *LedgerRepository) LockCharge(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Charge, error) {
	var charge models.Charge
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &charge, "SELECT "+chargeColumns+" FROM charges WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock charge: %w", err)
	}
	return &charge, nil
}

// VoidCharge flags a charge as voided.
func (r *LedgerRepository) VoidCharge(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error {
	const query = `UPDATE charges SET is_voided = TRUE, voided_at = $2, void_reason = $3 WHERE id = $1 AND is_voided = FALSE`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, at, reason); err != nil {
		return fmt.Errorf("void charge: %w", err)
	}
	return nil
}

// CreatePayment inserts a payment.
func (r *LedgerRepository) CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (` + paymentColumns + `) VALUES (:id, :account_id, :amount, :method, :status, :is_refund, :reference,
        :disbursement_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// LockPayment selects a payment FOR UPDATE.
func (r *LedgerRepository) LockPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &payment, "SELECT "+paymentColumns+" FROM payments WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}
	return &payment, nil
}

// UpdatePaymentStatus changes a payment's settlement status.
func (r *LedgerRepository) UpdatePaymentStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// OutstandingTotal sums positive balances across accounts.
func (r *LedgerRepository) OutstandingTotal(ctx context.Context) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(current_balance), 0) FROM student_accounts WHERE current_balance > 0`); err != nil {
		return 0, fmt.Errorf("sum outstanding balances: %w", err)
	}
	return total, nil
}
