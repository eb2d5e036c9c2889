package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

const leadColumns = `id, first_name, last_name, email, phone, source, status, notes, external_ref, created_at, updated_at`

// LeadRepository persists admissions leads.
type LeadRepository struct {
	db *sqlx.DB
}

// NewLeadRepository constructs a LeadRepository.
func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a lead.
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusLead
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	const query = `INSERT INTO leads (` + leadColumns + `) VALUES (:id, :first_name, :last_name, :email, :phone, :source, :status, :notes,
        :external_ref, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

// FindByID returns a lead by id.
func (r *LeadRepository) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByEmail returns the newest lead with a case-insensitive email match.
func (r *LeadRepository) FindByEmail(ctx context.Context, email string) (*models.Lead, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

// FindByPhone returns the lead with the given phone.
func (r *LeadRepository) FindByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	return r.findOne(ctx, "phone = $1", phone)
}

func (r *LeadRepository) findOne(ctx context.Context, condition string, arg interface{}) (*models.Lead, error) {
	var lead models.Lead
	query := "SELECT " + leadColumns + " FROM leads WHERE " + condition + " ORDER BY created_at DESC LIMIT 1"
	if err := r.db.GetContext(ctx, &lead, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find lead: %w", err)
	}
	return &lead, nil
}

// UpdateStatus changes a lead's funnel status.
func (r *LeadRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeadStatus) error {
	const query = `UPDATE leads SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return nil
}

// List returns leads matching the filter newest first.
func (r *LeadRepository) List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error) {
	where := &whereBuilder{}
	if filter.Status != nil {
		where.add("status = $%d", *filter.Status)
	}
	if filter.Source != "" {
		where.add("source = $%d", filter.Source)
	}
	if filter.Search != "" {
		where.add("(LOWER(first_name || ' ' || last_name) LIKE $%[1]d OR LOWER(COALESCE(email, '')) LIKE $%[1]d OR COALESCE(phone, '') LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM leads %s ORDER BY created_at DESC LIMIT %d OFFSET %d", leadColumns, where.sql(), limit, offset)
	var leads []models.Lead
	if err := r.db.SelectContext(ctx, &leads, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM leads "+where.sql(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}
	return leads, total, nil
}

// CountByStatus groups leads by status.
func (r *LeadRepository) CountByStatus(ctx context.Context) ([]models.CountByStatus, error) {
	var rows []models.CountByStatus
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM leads GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("count leads by status: %w", err)
	}
	return rows, nil
}
