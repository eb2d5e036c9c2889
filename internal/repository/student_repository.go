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

const studentDetailColumns = `s.id, s.student_number, s.first_name, s.last_name, s.email, s.phone, s.program_id, s.campus_id, s.start_date,
        s.enrollment_status, s.sap_status, s.total_hours_completed, s.theory_hours_completed, s.practical_hours_completed,
        s.created_at, s.updated_at, p.code AS program_code, p.name AS program_name, p.total_hours AS program_total_hours, c.name AS campus_name`

const studentDetailFrom = `FROM students s JOIN programs p ON p.id = s.program_id JOIN campuses c ON c.id = s.campus_id`

// StudentKey is the identity subset used for duplicate detection during imports.
type StudentKey struct {
	ID            string `db:"id"`
	StudentNumber string `db:"student_number"`
	Email         string `db:"email"`
	ProgramID     string `db:"program_id"`
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	where := &whereBuilder{}
	if filter.ProgramID != "" {
		where.add("s.program_id = $%d", filter.ProgramID)
	}
	if filter.CampusID != "" {
		where.add("s.campus_id = $%d", filter.CampusID)
	}
	if filter.Status != nil {
		where.add("s.enrollment_status = $%d", *filter.Status)
	}
	if filter.Search != "" {
		where.add("(LOWER(s.first_name || ' ' || s.last_name) LIKE $%[1]d OR LOWER(s.student_number) LIKE $%[1]d OR LOWER(s.email) LIKE $%[1]d)", "%"+strings.ToLower(filter.Search)+"%")
	}

	order := orderClause(filter.SortBy, filter.SortOrder, map[string]string{
		"last_name":      "s.last_name",
		"student_number": "s.student_number",
		"hours":          "s.total_hours_completed",
		"created_at":     "s.created_at",
	}, "s.created_at")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s %s %s ORDER BY %s LIMIT %d OFFSET %d", studentDetailColumns, studentDetailFrom, where.sql(), order, limit, offset)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", studentDetailFrom, where.sql())
	if err := r.db.GetContext(ctx, &total, countQuery, where.args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student with program and campus context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf("SELECT %s %s WHERE s.id = $1", studentDetailColumns, studentDetailFrom)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &detail, nil
}

// ExistsByEmail checks for a case-insensitive email match, optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return r.exists(ctx, "LOWER(email) = LOWER($1)", email, excludeID)
}

// ExistsByNumber checks whether a student number is taken.
func (r *StudentRepository) ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error) {
	return r.exists(ctx, "student_number = $1", number, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, condition, value, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE " + condition
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var found int
	if err := r.db.GetContext(ctx, &found, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student uniqueness: %w", err)
	}
	return true, nil
}

// ListKeys returns identity columns for every student.
func (r *StudentRepository) ListKeys(ctx context.Context) ([]StudentKey, error) {
	const query = `SELECT id, student_number, LOWER(email) AS email, program_id FROM students`
	var keys []StudentKey
	if err := r.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list student keys: %w", err)
	}
	return keys, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.EnrollmentStatus == "" {
		student.EnrollmentStatus = models.EnrollmentStatusEnrolled
	}
	if student.SAPStatus == "" {
		student.SAPStatus = models.SAPStatusSatisfactory
	}
	const query = `INSERT INTO students (id, student_number, first_name, last_name, email, phone, program_id, campus_id, start_date,
        enrollment_status, sap_status, total_hours_completed, theory_hours_completed, practical_hours_completed, created_at, updated_at)
        VALUES (:id, :student_number, :first_name, :last_name, :email, :phone, :program_id, :campus_id, :start_date,
        :enrollment_status, :sap_status, :total_hours_completed, :theory_hours_completed, :practical_hours_completed, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies the editable profile columns of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_number = :student_number, first_name = :first_name, last_name = :last_name, email = :email,
        phone = :phone, program_id = :program_id, campus_id = :campus_id, start_date = :start_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateStatus sets the enrollment status.
func (r *StudentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE students SET enrollment_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update student status: %w", err)
	}
	return nil
}

// UpdateSAPStatus sets the SAP standing.
func (r *StudentRepository) UpdateSAPStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SAPStatus) error {
	const query = `UPDATE students SET sap_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := pick(r.db, exec).ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update sap status: %w", err)
	}
	return nil
}

// IncrementHours adds delta to the running totals in a single statement and
// returns the new totals.
func (r *StudentRepository) IncrementHours(ctx context.Context, exec sqlx.ExtContext, id string, delta models.HourTotals) (*models.HourTotals, error) {
	const query = `UPDATE students SET
        total_hours_completed = total_hours_completed + $2,
        theory_hours_completed = theory_hours_completed + $3,
        practical_hours_completed = practical_hours_completed + $4,
        updated_at = $5
        WHERE id = $1
        RETURNING total_hours_completed, theory_hours_completed, practical_hours_completed`
	var totals models.HourTotals
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &totals, query, id, delta.Total, delta.Theory, delta.Practical, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("increment student hours: %w", err)
	}
	return &totals, nil
}

// CountByStatus groups students by enrollment status.
func (r *StudentRepository) CountByStatus(ctx context.Context) ([]models.CountByStatus, error) {
	const query = `SELECT enrollment_status AS status, COUNT(*) AS count FROM students GROUP BY enrollment_status ORDER BY enrollment_status`
	var rows []models.CountByStatus
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count students by status: %w", err)
	}
	return rows, nil
}
