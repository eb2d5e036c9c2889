package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// LookupRepository reads reference data: programs and campuses.
type LookupRepository struct {
	db *sqlx.DB
}

// NewLookupRepository constructs a LookupRepository.
func NewLookupRepository(db *sqlx.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

// ListPrograms returns every program ordered by code.
func (r *LookupRepository) ListPrograms(ctx context.Context) ([]models.Program, error) {
	const query = `SELECT id, code, name, total_hours, theory_hours, created_at FROM programs ORDER BY code`
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindProgram returns a program by id.
func (r *LookupRepository) FindProgram(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, code, name, total_hours, theory_hours, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find program: %w", err)
	}
	return &program, nil
}

// ListCampuses returns every campus ordered by code.
func (r *LookupRepository) ListCampuses(ctx context.Context) ([]models.Campus, error) {
	const query = `SELECT id, code, name, created_at FROM campuses ORDER BY code`
	var campuses []models.Campus
	if err := r.db.SelectContext(ctx, &campuses, query); err != nil {
		return nil, fmt.Errorf("list campuses: %w", err)
	}
	return campuses, nil
}

// FindCampus returns a campus by id.
func (r *LookupRepository) FindCampus(ctx context.Context, id string) (*models.Campus, error) {
	const query = `SELECT id, code, name, created_at FROM campuses WHERE id = $1`
	var campus models.Campus
	if err := r.db.GetContext(ctx, &campus, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find campus: %w", err)
	}
	return &campus, nil
}
