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

const attendanceColumns = `id, student_id, campus_id, date, clock_in_time, clock_out_time, actual_hours, theory_hours, practical_hours,
        status, is_correction, correction_reason, corrects_record_id, theory_override_pct, recorded_by, approved_by, approved_at, created_at, updated_at`

// SessionKey identifies the single regular session a student may have per day.
type SessionKey struct {
	StudentID string    `db:"student_id"`
	Date      time.Time `db:"date"`
}

// AttendanceRepository persists clock-in/out sessions and corrections.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts a record.
func (r *AttendanceRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (` + attendanceColumns + `) VALUES (:id, :student_id, :campus_id, :date, :clock_in_time, :clock_out_time,
        :actual_hours, :theory_hours, :practical_hours, :status, :is_correction, :correction_reason, :corrects_record_id, :theory_override_pct,
        :recorded_by, :approved_by, :approved_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, record); err != nil {
		return fmt.Errorf("create attendance record: %w", err)
	}
	return nil
}

// FindByID returns a record by id.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	return r.find(ctx, r.db, "SELECT "+attendanceColumns+" FROM attendance_records WHERE id = $1", id)
}

// LockByID returns a record and holds a row lock until exec's transaction ends.
func (r *AttendanceRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AttendanceRecord, error) {
	return r.find(ctx, pick(r.db, exec), "SELECT "+attendanceColumns+" FROM attendance_records WHERE id = $1 FOR UPDATE", id)
}

// FindSession returns the regular (non-correction) record for a student and date.
func (r *AttendanceRepository) FindSession(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	query := "SELECT " + attendanceColumns + " FROM attendance_records WHERE student_id = $1 AND date = $2 AND is_correction = FALSE LIMIT 1"
	return r.find(ctx, r.db, query, studentID, date)
}

func (r *AttendanceRepository) find(ctx context.Context, q sqlx.QueryerContext, query string, args ...interface{}) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	if err := sqlx.GetContext(ctx, q, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return &record, nil
}

// ExistsSession reports whether a regular record exists for the student and date.
func (r *AttendanceRepository) ExistsSession(ctx context.Context, studentID string, date time.Time) (bool, error) {
	const query = `SELECT 1 FROM attendance_records WHERE student_id = $1 AND date = $2 AND is_correction = FALSE LIMIT 1`
	var found int
	if err := r.db.GetContext(ctx, &found, query, studentID, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check attendance session: %w", err)
	}
	return true, nil
}

// ListSessionKeys returns (student, date) pairs of regular records within the range.
func (r *AttendanceRepository) ListSessionKeys(ctx context.Context, from, to time.Time) ([]SessionKey, error) {
	const query = `SELECT student_id, date FROM attendance_records WHERE is_correction = FALSE AND date BETWEEN $1 AND $2`
	var keys []SessionKey
	if err := r.db.SelectContext(ctx, &keys, query, from, to); err != nil {
		return nil, fmt.Errorf("list attendance sessions: %w", err)
	}
	return keys, nil
}

// CompleteClockOut writes the clock-out time and the hour split.
func (r *AttendanceRepository) CompleteClockOut(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance_records SET clock_out_time = :clock_out_time, actual_hours = :actual_hours, theory_hours = :theory_hours,
        practical_hours = :practical_hours, theory_override_pct = :theory_override_pct, updated_at = :updated_at
        WHERE id = :id AND clock_out_time IS NULL`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, record)
	if err != nil {
		return fmt.Errorf("complete clock out: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetReviewStatus records an approval or rejection of a correction.
func (r *AttendanceRepository) SetReviewStatus(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	const query = `UPDATE attendance_records SET status = :status, approved_by = :approved_by, approved_at = :approved_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, record); err != nil {
		return fmt.Errorf("update correction review: %w", err)
	}
	return nil
}

// CloseSuperseded closes an open session that an approved correction replaces.
// The session keeps zero hours so it can no longer be clocked out. Returns
// sql.ErrNoRows when the session is missing or was already clocked out.
func (r *AttendanceRepository) CloseSuperseded(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE attendance_records SET clock_out_time = clock_in_time, updated_at = $2
        WHERE id = $1 AND clock_out_time IS NULL`
	res, err := pick(r.db, exec).ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("close superseded session: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func attendanceWhere(filter models.AttendanceFilter, alias string) *whereBuilder {
	where := &whereBuilder{}
	if filter.StudentID != "" {
		where.add(alias+"student_id = $%d", filter.StudentID)
	}
	if filter.CampusID != "" {
		where.add(alias+"campus_id = $%d", filter.CampusID)
	}
	if filter.Status != nil {
		where.add(alias+"status = $%d", *filter.Status)
	}
	if filter.IsCorrection != nil {
		where.add(alias+"is_correction = $%d", *filter.IsCorrection)
	}
	if filter.DateFrom != nil {
		where.add(alias+"date >= $%d", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where.add(alias+"date <= $%d", *filter.DateTo)
	}
	return where
}

// List returns records matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	where := attendanceWhere(filter, "")
	order := orderClause(filter.SortBy, filter.SortOrder, map[string]string{
		"date":       "date",
		"created_at": "created_at",
		"hours":      "actual_hours",
	}, "date")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM attendance_records %s ORDER BY %s LIMIT %d OFFSET %d", attendanceColumns, where.sql(), order, limit, offset)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, where.args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance records: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM attendance_records "+where.sql(), where.args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}
	return records, total, nil
}

// ListForStudent returns every finalized hour-bearing record for transcripts.
func (r *AttendanceRepository) ListForStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	query := "SELECT " + attendanceColumns + ` FROM attendance_records WHERE student_id = $1
        AND status NOT IN ('pending_approval', 'rejected') ORDER BY date, created_at`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

// ReportRows returns attendance joined with student identity, unpaginated.
func (r *AttendanceRepository) ReportRows(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceReportRow, error) {
	where := attendanceWhere(filter, "a.")
	query := fmt.Sprintf(`SELECT a.date, s.student_number, s.first_name || ' ' || s.last_name AS student_name, a.clock_in_time, a.clock_out_time,
        a.actual_hours, a.theory_hours, a.practical_hours, a.status, a.is_correction
        FROM attendance_records a JOIN students s ON s.id = a.student_id %s ORDER BY a.date, s.student_number`, where.sql())
	var rows []models.AttendanceReportRow
	if err := r.db.SelectContext(ctx, &rows, query, where.args...); err != nil {
		return nil, fmt.Errorf("attendance report rows: %w", err)
	}
	return rows, nil
}

// SumHoursSince totals counted hours recorded on or after since.
func (r *AttendanceRepository) SumHoursSince(ctx context.Context, since time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(actual_hours), 0) FROM attendance_records WHERE date >= $1 AND status NOT IN ('pending_approval', 'rejected')`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("sum attendance hours: %w", err)
	}
	return total, nil
}

// CountPendingCorrections counts corrections awaiting review.
func (r *AttendanceRepository) CountPendingCorrections(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_records WHERE is_correction = TRUE AND status = 'pending_approval'`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count pending corrections: %w", err)
	}
	return count, nil
}
