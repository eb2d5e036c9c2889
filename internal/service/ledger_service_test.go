package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type fakeLedgerRepo struct {
	accounts map[string]*models.StudentAccount
	charges  map[string]*models.Charge
	payments map[string]*models.Payment
	locks    []string
	seq      int
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{
		accounts: make(map[string]*models.StudentAccount),
		charges:  make(map[string]*models.Charge),
		payments: make(map[string]*models.Payment),
	}
}

func (f *fakeLedgerRepo) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeLedgerRepo) EnsureAccount(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.StudentAccount, error) {
	for _, a := range f.accounts {
		if a.StudentID == studentID {
			clone := *a
			return &clone, nil
		}
	}
	account := &models.StudentAccount{ID: f.nextID("acct"), StudentID: studentID}
	f.accounts[account.ID] = account
	clone := *account
	return &clone, nil
}

func (f *fakeLedgerRepo) FindAccountByStudent(ctx context.Context, studentID string) (*models.StudentAccount, error) {
	for _, a := range f.accounts {
		if a.StudentID == studentID {
			clone := *a
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeLedgerRepo) LockAccount(ctx context.Context, exec sqlx.ExtContext, id string) (*models.StudentAccount, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	f.locks = append(f.locks, id)
	clone := *a
	return &clone, nil
}

func (f *fakeLedgerRepo) UpdateBalance(ctx context.Context, exec sqlx.ExtContext, id string, balance float64) error {
	f.accounts[id].CurrentBalance = balance
	return nil
}

func (f *fakeLedgerRepo) ListCharges(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Charge, error) {
	var out []models.Charge
	for _, c := range f.charges {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) ListPayments(ctx context.Context, exec sqlx.ExtContext, accountID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range f.payments {
		if p.AccountID == accountID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) CreateCharge(ctx context.Context, exec sqlx.ExtContext, charge *models.Charge) error {
	charge.ID = f.nextID("chg")
	clone := *charge
	f.charges[charge.ID] = &clone
	return nil
}

func (f *fakeLedgerRepo) LockCharge(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Charge, error) {
	c, ok := f.charges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (f *fakeLedgerRepo) VoidCharge(ctx context.Context, exec sqlx.ExtContext, id, reason string, at time.Time) error {
	c := f.charges[id]
	c.IsVoided = true
	c.VoidReason = &reason
	c.VoidedAt = &at
	return nil
}

func (f *fakeLedgerRepo) CreatePayment(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	payment.ID = f.nextID("pay")
	clone := *payment
	f.payments[payment.ID] = &clone
	return nil
}

func (f *fakeLedgerRepo) LockPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (f *fakeLedgerRepo) UpdatePaymentStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.PaymentStatus) error {
	f.payments[id].Status = status
	return nil
}

func (f *fakeLedgerRepo) OutstandingTotal(ctx context.Context) (float64, error) {
	var total float64
	for _, a := range f.accounts {
		if a.CurrentBalance > 0 {
			total += a.CurrentBalance
		}
	}
	return total, nil
}

func (f *fakeLedgerRepo) balanceFor(studentID string) float64 {
	for _, a := range f.accounts {
		if a.StudentID == studentID {
			return a.CurrentBalance
		}
	}
	return 0
}

func (f *fakeLedgerRepo) computedFor(studentID string) float64 {
	account, _ := f.FindAccountByStudent(context.Background(), studentID)
	charges, _ := f.ListCharges(context.Background(), nil, account.ID)
	payments, _ := f.ListPayments(context.Background(), nil, account.ID)
	return ComputeBalance(charges, payments)
}

func TestComputeBalance(t *testing.T) {
	charges := []models.Charge{
		{Amount: 100},
		{Amount: 50, IsVoided: true},
	}
	payments := []models.Payment{
		{Amount: 30, Status: models.PaymentStatusCompleted},
		{Amount: 10, Status: models.PaymentStatusCompleted, IsRefund: true},
		{Amount: 500, Status: models.PaymentStatusPending},
		{Amount: 75, Status: models.PaymentStatusFailed},
	}
	assert.Equal(t, 80.0, ComputeBalance(charges, payments))
	assert.Equal(t, 0.0, ComputeBalance(nil, nil))
	assert.Equal(t, 0.3, ComputeBalance([]models.Charge{{Amount: 0.1}, {Amount: 0.2}}, nil))
}

func newLedgerFixture(t *testing.T) (*LedgerService, *fakeLedgerRepo, *recordingAudit, sqlmock.Sqlmock) {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	repo := newFakeLedgerRepo()
	audit := &recordingAudit{}
	svc := NewLedgerService(repo, newFakeStudentRepo(activeStudent("stu-1")), tx, audit, nil, nil, nil)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return svc, repo, audit, mock
}

func expectCommit(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectCommit()
}

func expectRollback(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectRollback()
}

func TestLedgerMutationsKeepStoredBalanceInSync(t *testing.T) {
	svc, repo, audit, mock := newLedgerFixture(t)
	ctx := context.Background()

	expectCommit(mock)
	tuition, err := svc.PostCharge(ctx, staffActor, "stu-1", dto.ChargeRequest{Description: "Tuition", ChargeType: "tuition", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, 100.0, repo.balanceFor("stu-1"))

	expectCommit(mock)
	kit, err := svc.PostCharge(ctx, staffActor, "stu-1", dto.ChargeRequest{Description: "Clipper kit", ChargeType: "kit", Amount: 50})
	require.NoError(t, err)
	assert.Equal(t, 150.0, repo.balanceFor("stu-1"))

	expectCommit(mock)
	_, err = svc.VoidCharge(ctx, staffActor, kit.ID, dto.VoidChargeRequest{Reason: "kit returned"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, repo.balanceFor("stu-1"))

	expectCommit(mock)
	_, err = svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: 30, Method: models.PaymentMethodCard})
	require.NoError(t, err)

	expectCommit(mock)
	_, err = svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: 10, Method: models.PaymentMethodCard, IsRefund: true})
	require.NoError(t, err)

	expectCommit(mock)
	pending, err := svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: 40, Method: models.PaymentMethodACH, Status: models.PaymentStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 80.0, repo.balanceFor("stu-1"))

	expectCommit(mock)
	_, err = svc.UpdatePaymentStatus(ctx, staffActor, pending.ID, dto.PaymentStatusRequest{Status: models.PaymentStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 40.0, repo.balanceFor("stu-1"))
	assert.Equal(t, repo.computedFor("stu-1"), repo.balanceFor("stu-1"))

	assert.NotEmpty(t, tuition.ID)
	assert.Contains(t, audit.actions(), models.AuditActionChargeVoid)
	assert.Contains(t, audit.actions(), models.AuditActionPaymentStatus)
}

func TestVoidChargeTwiceIsInvalid(t *testing.T) {
	svc, repo, _, mock := newLedgerFixture(t)
	ctx := context.Background()

	expectCommit(mock)
	charge, err := svc.PostCharge(ctx, staffActor, "stu-1", dto.ChargeRequest{Description: "Tuition", ChargeType: "tuition", Amount: 100})
	require.NoError(t, err)
	expectCommit(mock)
	_, err = svc.VoidCharge(ctx, staffActor, charge.ID, dto.VoidChargeRequest{Reason: "posted twice"})
	require.NoError(t, err)

	expectRollback(mock)
	_, err = svc.VoidCharge(ctx, staffActor, charge.ID, dto.VoidChargeRequest{Reason: "again"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, 0.0, repo.balanceFor("stu-1"))

	_, err = svc.VoidCharge(ctx, staffActor, charge.ID, dto.VoidChargeRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestRecalculateRepairsDriftedBalance(t *testing.T) {
	svc, repo, _, mock := newLedgerFixture(t)
	ctx := context.Background()

	expectCommit(mock)
	_, err := svc.PostCharge(ctx, staffActor, "stu-1", dto.ChargeRequest{Description: "Tuition", ChargeType: "tuition", Amount: 250.5})
	require.NoError(t, err)

	account, err := repo.FindAccountByStudent(ctx, "stu-1")
	require.NoError(t, err)
	repo.accounts[account.ID].CurrentBalance = 999

	expectCommit(mock)
	recalculated, err := svc.Recalculate(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 250.5, recalculated.CurrentBalance)
	assert.Equal(t, 250.5, repo.balanceFor("stu-1"))
	assert.Contains(t, repo.locks, account.ID)
}

func TestRecordPaymentValidatesMethodAndStudent(t *testing.T) {
	svc, _, _, _ := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: 10, Method: "barter"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.RecordPayment(ctx, staffActor, "missing", dto.PaymentRequest{Amount: 10, Method: models.PaymentMethodCash})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: -5, Method: models.PaymentMethodCash})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStatementReturnsLedgerLines(t *testing.T) {
	svc, _, _, mock := newLedgerFixture(t)
	ctx := context.Background()

	expectCommit(mock)
	_, err := svc.PostCharge(ctx, staffActor, "stu-1", dto.ChargeRequest{Description: "Tuition", ChargeType: "tuition", Amount: 100})
	require.NoError(t, err)
	expectCommit(mock)
	_, err = svc.RecordPayment(ctx, staffActor, "stu-1", dto.PaymentRequest{Amount: 25, Method: models.PaymentMethodCash})
	require.NoError(t, err)

	statement, err := svc.Statement(ctx, "stu-1")
	require.NoError(t, err)
	assert.Len(t, statement.Charges, 1)
	assert.Len(t, statement.Payments, 1)
	assert.Equal(t, 75.0, statement.Account.CurrentBalance)
}
