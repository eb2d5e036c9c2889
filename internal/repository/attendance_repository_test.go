package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

var attendanceRowColumns = []string{"id", "student_id", "campus_id", "date", "clock_in_time", "clock_out_time", "actual_hours", "theory_hours",
	"practical_hours", "status", "is_correction", "correction_reason", "corrects_record_id", "theory_override_pct", "recorded_by", "approved_by",
	"approved_at", "created_at", "updated_at"}

func TestAttendanceRepositoryLockByIDUsesRowLock(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAttendanceRepository(db)

	in := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM attendance_records WHERE id = \$1 FOR UPDATE`).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).
			AddRow("a-1", "s-1", nil, in, in, nil, 0.0, 0.0, 0.0, "present", false, nil, nil, nil, nil, nil, nil, in, in))
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	record, err := repo.LockByID(context.Background(), tx, "a-1")
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	require.NotNil(t, record.ClockInTime)
	assert.Nil(t, record.ClockOutTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCompleteClockOutGuardsDoubleClockOut(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(`(?s)UPDATE attendance_records SET clock_out_time = .* WHERE id = \? AND clock_out_time IS NULL`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	out := time.Now()
	err := repo.CompleteClockOut(context.Background(), nil, &models.AttendanceRecord{ID: "a-1", ClockOutTime: &out, ActualHours: 8})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCloseSupersededReportsClosedSession(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(`(?s)UPDATE attendance_records SET clock_out_time = clock_in_time.* WHERE id = \$1 AND clock_out_time IS NULL`).
		WithArgs("a-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`(?s)UPDATE attendance_records SET clock_out_time = clock_in_time.* WHERE id = \$1 AND clock_out_time IS NULL`).
		WithArgs("a-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, repo.CloseSuperseded(context.Background(), nil, "a-1"), sql.ErrNoRows)
	assert.NoError(t, repo.CloseSuperseded(context.Background(), nil, "a-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryExistsSession(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAttendanceRepository(db)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT 1 FROM attendance_records WHERE student_id = \$1 AND date = \$2 AND is_correction = FALSE`).
		WithArgs("s-1", day).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsSession(context.Background(), "s-1", day)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFilters(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewAttendanceRepository(db)

	correction := true
	mock.ExpectQuery(`FROM attendance_records WHERE student_id = \$1 AND is_correction = \$2 ORDER BY date DESC LIMIT 50 OFFSET 50`).
		WithArgs("s-1", true).
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_records WHERE student_id = \$1 AND is_correction = \$2`).
		WithArgs("s-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(51))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{StudentID: "s-1", IsCorrection: &correction, Page: 2, PageSize: 50})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 51, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
