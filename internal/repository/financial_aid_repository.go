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
	aidRecordColumns    = `id, student_id, award_year, status, created_at`
	awardColumns        = `id, aid_record_id, award_type, amount, status, created_at, updated_at`
	disbursementColumns = `id, award_id, sequence_number, amount, scheduled_date, status, released_at, payment_id, created_at`
)

// FinancialAidRepository persists aid records, awards and disbursements.
type FinancialAidRepository struct {
	db *sqlx.DB
}

// NewFinancialAidRepository constructs a FinancialAidRepository.
func NewFinancialAidRepository(db *sqlx.DB) *FinancialAidRepository {
	return &FinancialAidRepository{db: db}
}

// CreateRecord inserts an aid record for an award year.
func (r *FinancialAidRepository) CreateRecord(ctx context.Context, record *models.FinancialAidRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = "open"
	}
	record.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO financial_aid_records (` + aidRecordColumns + `) VALUES (:id, :student_id, :award_year, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create aid record: %w", err)
	}
	return nil
}

// FindRecord returns an aid record by id.
func (r *FinancialAidRepository) FindRecord(ctx context.Context, id string) (*models.FinancialAidRecord, error) {
	var record models.FinancialAidRecord
	if err := r.db.GetContext(ctx, &record, "SELECT "+aidRecordColumns+" FROM financial_aid_records WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find aid record: %w", err)
	}
	return &record, nil
}

// ListRecordsByStudent returns a student's aid records newest year first.
func (r *FinancialAidRepository) ListRecordsByStudent(ctx context.Context, studentID string) ([]models.FinancialAidRecord, error) {
	var records []models.FinancialAidRecord
	if err := r.db.SelectContext(ctx, &records, "SELECT "+aidRecordColumns+" FROM financial_aid_records WHERE student_id = $1 ORDER BY award_year DESC", studentID); err != nil {
		return nil, fmt.Errorf("list aid records: %w", err)
	}
	return records, nil
}

// CreateAward inserts an award.
func (r *FinancialAidRepository) CreateAward(ctx context.Context, award *models.FinancialAidAward) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	award.CreatedAt = now
	award.UpdatedAt = now
	const query = `INSERT INTO financial_aid_awards (` + awardColumns + `) VALUES (:id, :aid_record_id, :award_type, :amount, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, award); err != nil {
		return fmt.Errorf("create award: %w", err)
	}
	return nil
}

// LockAward selects an award FOR UPDATE.
func (r *FinancialAidRepository) LockAward(ctx context.Context, exec sqlx.ExtContext, id string) (*models.FinancialAidAward, error) {
	var award models.FinancialAidAward
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &award, "SELECT "+awardColumns+" FROM financial_aid_awards WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock award: %w", err)
	}
	return &award, nil
}

// UpdateAwardStatus changes an award's status.
func (r *FinancialAidRepository) UpdateAwardStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.AwardStatus) error {
	const query = `UPDATE financial_aid_awards SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update award status: %w", err)
	}
	return nil
}

// ListAwards returns awards in a record.
func (r *FinancialAidRepository) ListAwards(ctx context.Context, recordID string) ([]models.FinancialAidAward, error) {
	var awards []models.FinancialAidAward
	if err := r.db.SelectContext(ctx, &awards, "SELECT "+awardColumns+" FROM financial_aid_awards WHERE aid_record_id = $1 ORDER BY created_at", recordID); err != nil {
		return nil, fmt.Errorf("list awards: %w", err)
	}
	return awards, nil
}

// CreateDisbursement inserts a disbursement numbered after the award's last one.
func (r *FinancialAidRepository) CreateDisbursement(ctx context.Context, exec sqlx.ExtContext, d *models.Disbursement) error {
	target := pick(r.db, exec)
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DisbursementStatusScheduled
	}
	d.CreatedAt = time.Now().UTC()
	const next = `SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM financial_aid_disbursements WHERE award_id = $1`
	if err := sqlx.GetContext(ctx, target, &d.SequenceNumber, next, d.AwardID); err != nil {
		return fmt.Errorf("next disbursement number: %w", err)
	}
	const query = `INSERT INTO financial_aid_disbursements (` + disbursementColumns + `) VALUES (:id, :award_id, :sequence_number, :amount,
        :scheduled_date, :status, :released_at, :payment_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, d); err != nil {
		return fmt.Errorf("create disbursement: %w", err)
	}
	return nil
}

// LockDisbursement selects a disbursement FOR UPDATE.
func (r *FinancialAidRepository) LockDisbursement(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Disbursement, error) {
	var d models.Disbursement
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &d, "SELECT "+disbursementColumns+" FROM financial_aid_disbursements WHERE id = $1 FOR UPDATE", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock disbursement: %w", err)
	}
	return &d, nil
}

// MarkReleased links the disbursement to its payment.
func (r *FinancialAidRepository) MarkReleased(ctx context.Context, exec sqlx.ExtContext, id, paymentID string, at time.Time) error {
	const query = `UPDATE financial_aid_disbursements SET status = 'released', released_at = $2, payment_id = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, at, paymentID); err != nil {
		return fmt.Errorf("release disbursement: %w", err)
	}
	return nil
}

// CancelScheduled cancels every disbursement of an award that has not been released.
func (r *FinancialAidRepository) CancelScheduled(ctx context.Context, exec sqlx.ExtContext, awardID string) (int64, error) {
	const query = `UPDATE financial_aid_disbursements SET status = 'cancelled' WHERE award_id = $1 AND status = 'scheduled'`
	res, err := pick(r.db, exec).ExecContext(ctx, query, awardID)
	if err != nil {
		return 0, fmt.Errorf("cancel scheduled disbursements: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListDisbursements returns disbursements for an award.
func (r *FinancialAidRepository) ListDisbursements(ctx context.Context, exec sqlx.ExtContext, awardID string) ([]models.Disbursement, error) {
	var ds []models.Disbursement
	if err := sqlx.SelectContext(ctx, pick(r.db, exec), &ds, "SELECT "+disbursementColumns+" FROM financial_aid_disbursements WHERE award_id = $1 ORDER BY sequence_number", awardID); err != nil {
		return nil, fmt.Errorf("list disbursements: %w", err)
	}
	return ds, nil
}

// FindStudentForAward resolves the student owning an award.
func (r *FinancialAidRepository) FindStudentForAward(ctx context.Context, exec sqlx.ExtContext, awardID string) (string, error) {
	const query = `SELECT r.student_id FROM financial_aid_awards a JOIN financial_aid_records r ON r.id = a.aid_record_id WHERE a.id = $1`
	var studentID string
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &studentID, query, awardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("find award student: %w", err)
	}
	return studentID, nil
}
