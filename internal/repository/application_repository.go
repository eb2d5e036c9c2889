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

const applicationColumns = `id, lead_id, first_name, last_name, email, phone, program_id, campus_id, desired_start_date, status,
        submitted_at, decided_at, decided_by, decision_note, student_id, created_at, updated_at`

// ApplicationRepository persists admissions applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs an ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts an application.
func (r *ApplicationRepository) Create(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusDraft
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	const query = `INSERT INTO applications (` + applicationColumns + `) VALUES (:id, :lead_id, :first_name, :last_name, :email, :phone,
        :program_id, :campus_id, :desired_start_date, :status, :submitted_at, :decided_at, :decided_by, :decision_note, :student_id,
        :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by id.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	return r.get(ctx, r.db, "SELECT "+applicationColumns+" FROM applications WHERE id = $1", id)
}

// LockByID selects an application FOR UPDATE.
func (r *ApplicationRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Application, error) {
	return r.get(ctx, pick(r.db, exec), "SELECT "+applicationColumns+" FROM applications WHERE id = $1 FOR UPDATE", id)
}

func (r *ApplicationRepository) get(ctx context.Context, q sqlx.QueryerContext, query, id string) (*models.Application, error) {
	var app models.Application
	if err := sqlx.GetContext(ctx, q, &app, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// UpdateState persists status and decision columns.
func (r *ApplicationRepository) UpdateState(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error {
	app.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applications SET status = :status, submitted_at = :submitted_at, decided_at = :decided_at, decided_by = :decided_by,
        decision_note = :decision_note, student_id = :student_id, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, app); err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

// List returns applications newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	where := &whereBuilder{}
	if filter.Status != nil {
		where.add("status = $%d", *filter.Status)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM applications %s ORDER BY created_at DESC LIMIT %d OFFSET %d", applicationColumns, where.sql(), limit, offset)
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications "+where.sql(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// CountByStatus groups applications by status.
func (r *ApplicationRepository) CountByStatus(ctx context.Context) ([]models.CountByStatus, error) {
	var rows []models.CountByStatus
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM applications GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("count applications by status: %w", err)
	}
	return rows, nil
}
