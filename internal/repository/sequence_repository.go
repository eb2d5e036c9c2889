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

const enrollmentColumns = `id, sequence_id, contact_email, contact_name, lead_id, application_id, current_step, status, next_email_due_at,
        enrolled_at, completed_at, updated_at`

// SequenceRepository persists email sequences, enrollments and send logs.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs a SequenceRepository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// FindSequenceByCode returns a sequence by its code.
func (r *SequenceRepository) FindSequenceByCode(ctx context.Context, code string) (*models.EmailSequence, error) {
	var seq models.EmailSequence
	if err := r.db.GetContext(ctx, &seq, `SELECT id, code, name, active FROM email_sequences WHERE code = $1`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find sequence: %w", err)
	}
	return &seq, nil
}

// FindStep returns one step of a sequence.
func (r *SequenceRepository) FindStep(ctx context.Context, sequenceID string, step int) (*models.EmailSequenceStep, error) {
	const query = `SELECT sequence_id, step_number, delay_hours, template_code FROM email_sequence_steps WHERE sequence_id = $1 AND step_number = $2`
	var s models.EmailSequenceStep
	if err := r.db.GetContext(ctx, &s, query, sequenceID, step); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find sequence step: %w", err)
	}
	return &s, nil
}

// FindActiveEnrollment returns the active enrollment for a sequence and email.
func (r *SequenceRepository) FindActiveEnrollment(ctx context.Context, sequenceID, email string) (*models.EmailSequenceEnrollment, error) {
	query := "SELECT " + enrollmentColumns + ` FROM email_sequence_enrollments
        WHERE sequence_id = $1 AND LOWER(contact_email) = LOWER($2) AND status = 'active' LIMIT 1`
	var e models.EmailSequenceEnrollment
	if err := r.db.GetContext(ctx, &e, query, sequenceID, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &e, nil
}

// CreateEnrollment inserts an enrollment.
func (r *SequenceRepository) CreateEnrollment(ctx context.Context, e *models.EmailSequenceEnrollment) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = now
	}
	e.UpdatedAt = now
	query := `INSERT INTO email_sequence_enrollments (` + enrollmentColumns + `) VALUES (:id, :sequence_id, :contact_email, :contact_name,
        :lead_id, :application_id, :current_step, :status, :next_email_due_at, :enrolled_at, :completed_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// FindEnrollment returns an enrollment by id.
func (r *SequenceRepository) FindEnrollment(ctx context.Context, id string) (*models.EmailSequenceEnrollment, error) {
	var e models.EmailSequenceEnrollment
	if err := r.db.GetContext(ctx, &e, "SELECT "+enrollmentColumns+" FROM email_sequence_enrollments WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &e, nil
}

// AdvanceEnrollment stores progress only if the enrollment is still active at
// expectedStep. It reports false when another worker already moved it.
func (r *SequenceRepository) AdvanceEnrollment(ctx context.Context, exec sqlx.ExtContext, e *models.EmailSequenceEnrollment, expectedStep int) (bool, error) {
	e.UpdatedAt = time.Now().UTC()
	const query = `UPDATE email_sequence_enrollments SET current_step = $2, status = $3, next_email_due_at = $4, completed_at = $5, updated_at = $6
        WHERE id = $1 AND current_step = $7 AND status = 'active'`
	res, err := pick(r.db, exec).ExecContext(ctx, query, e.ID, e.CurrentStep, e.Status, e.NextEmailDueAt, e.CompletedAt, e.UpdatedAt, expectedStep)
	if err != nil {
		return false, fmt.Errorf("advance enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("advance enrollment rows affected: %w", err)
	}
	return n > 0, nil
}

// ClaimEnrollment moves the due time of an active enrollment to leaseUntil, but
// only while it still sits at expectedStep with the due time the caller read.
// It reports false when another worker claimed or advanced it first.
func (r *SequenceRepository) ClaimEnrollment(ctx context.Context, id string, expectedStep int, expectedDue *time.Time, leaseUntil time.Time) (bool, error) {
	const query = `UPDATE email_sequence_enrollments SET next_email_due_at = $2, updated_at = $3
        WHERE id = $1 AND current_step = $4 AND status = 'active' AND next_email_due_at IS NOT DISTINCT FROM $5`
	res, err := r.db.ExecContext(ctx, query, id, leaseUntil, time.Now().UTC(), expectedStep, expectedDue)
	if err != nil {
		return false, fmt.Errorf("claim enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim enrollment rows affected: %w", err)
	}
	return n > 0, nil
}

// CountFailedSends counts failed attempts at one step of an enrollment.
func (r *SequenceRepository) CountFailedSends(ctx context.Context, enrollmentID string, step int) (int, error) {
	const query = `SELECT COUNT(*) FROM email_send_logs WHERE enrollment_id = $1 AND step_number = $2 AND status = 'failed'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, enrollmentID, step); err != nil {
		return 0, fmt.Errorf("count failed sends: %w", err)
	}
	return count, nil
}

// UpdateStatus sets status and due time without touching the step.
func (r *SequenceRepository) UpdateStatus(ctx context.Context, id string, status models.SequenceEnrollmentStatus, due *time.Time) error {
	const query = `UPDATE email_sequence_enrollments SET status = $2, next_email_due_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, due, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListDue returns active enrollments due at or before now, oldest first.
func (r *SequenceRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.EmailSequenceEnrollment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT " + enrollmentColumns + ` FROM email_sequence_enrollments
        WHERE status = 'active' AND next_email_due_at IS NOT NULL AND next_email_due_at <= $1
        ORDER BY next_email_due_at LIMIT $2`
	var due []models.EmailSequenceEnrollment
	if err := r.db.SelectContext(ctx, &due, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due enrollments: %w", err)
	}
	return due, nil
}

// UnsubscribeEmail stops every active or paused enrollment for an address.
func (r *SequenceRepository) UnsubscribeEmail(ctx context.Context, email string) (int64, error) {
	const query = `UPDATE email_sequence_enrollments SET status = 'unsubscribed', next_email_due_at = NULL, updated_at = $2
        WHERE LOWER(contact_email) = LOWER($1) AND status IN ('active', 'paused')`
	res, err := r.db.ExecContext(ctx, query, email, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("unsubscribe email: %w", err)
	}
	return res.RowsAffected()
}

// CreateSendLog appends a send attempt.
func (r *SequenceRepository) CreateSendLog(ctx context.Context, exec sqlx.ExtContext, log *models.EmailSendLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.SentAt.IsZero() {
		log.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO email_send_logs (id, enrollment_id, step_number, template_code, to_email, subject, status, error, sent_at)
        VALUES (:id, :enrollment_id, :step_number, :template_code, :to_email, :subject, :status, :error, :sent_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, log); err != nil {
		return fmt.Errorf("create send log: %w", err)
	}
	return nil
}

// CountActive counts active enrollments.
func (r *SequenceRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM email_sequence_enrollments WHERE status = 'active'`); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}
