package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// SAPRepository stores satisfactory academic progress evaluations.
type SAPRepository struct {
	db *sqlx.DB
}

// NewSAPRepository constructs a SAPRepository.
func NewSAPRepository(db *sqlx.DB) *SAPRepository {
	return &SAPRepository{db: db}
}

// Create inserts an evaluation.
func (r *SAPRepository) Create(ctx context.Context, exec sqlx.ExtContext, eval *models.SAPEvaluation) error {
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	const query = `INSERT INTO sap_evaluations (id, student_id, evaluated_at, scheduled_hours, completed_hours, attendance_pct, gpa,
        previous_status, result_status, evaluated_by, notes)
        VALUES (:id, :student_id, :evaluated_at, :scheduled_hours, :completed_hours, :attendance_pct, :gpa,
        :previous_status, :result_status, :evaluated_by, :notes)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, eval); err != nil {
		return fmt.Errorf("create sap evaluation: %w", err)
	}
	return nil
}

// ListByStudent returns evaluations newest first.
func (r *SAPRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SAPEvaluation, error) {
	const query = `SELECT id, student_id, evaluated_at, scheduled_hours, completed_hours, attendance_pct, gpa, previous_status,
        result_status, evaluated_by, notes FROM sap_evaluations WHERE student_id = $1 ORDER BY evaluated_at DESC`
	var evals []models.SAPEvaluation
	if err := r.db.SelectContext(ctx, &evals, query, studentID); err != nil {
		return nil, fmt.Errorf("list sap evaluations: %w", err)
	}
	return evals, nil
}
