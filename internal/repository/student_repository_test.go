package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var studentDetailRowColumns = []string{"id", "student_number", "first_name", "last_name", "email", "phone", "program_id", "campus_id", "start_date",
	"enrollment_status", "sap_status", "total_hours_completed", "theory_hours_completed", "practical_hours_completed", "created_at", "updated_at",
	"program_code", "program_name", "program_total_hours", "campus_name"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentDetailRowColumns).
		AddRow("s-1", "BA-001", "Ana", "Ruiz", "ana@example.com", nil, "p-1", "c-1", nil, "active", "satisfactory", 120.5, 36.15, 84.35, now, now, "COS", "Cosmetology", 1500.0, "Main")
	mock.ExpectQuery(`(?s)SELECT s\.id, s\.student_number,.* FROM students s JOIN programs p .* WHERE s\.enrollment_status = \$1 ORDER BY s\.created_at DESC LIMIT 20 OFFSET 0`).
		WithArgs(models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s JOIN programs p ON p.id = s.program_id JOIN campuses c ON c.id = s.campus_id WHERE s.enrollment_status = $1")).
		WithArgs(models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	status := models.EnrollmentStatusActive
	students, total, err := repo.List(context.Background(), models.StudentFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Cosmetology", students[0].ProgramName)
	assert.InDelta(t, 1379.5, students[0].HoursRemaining(), 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryIncrementHoursIsSingleStatement(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`(?s)UPDATE students SET\s+total_hours_completed = total_hours_completed \+ \$2,\s+theory_hours_completed = theory_hours_completed \+ \$3,\s+practical_hours_completed = practical_hours_completed \+ \$4.*RETURNING`).
		WithArgs("s-1", 6.5, 1.95, 4.55, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_hours_completed", "theory_hours_completed", "practical_hours_completed"}).AddRow(106.5, 31.95, 74.55))

	totals, err := repo.IncrementHours(context.Background(), nil, "s-1", models.HourTotals{Total: 6.5, Theory: 1.95, Practical: 4.55})
	require.NoError(t, err)
	assert.Equal(t, 106.5, totals.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryIncrementHoursMissingStudent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`UPDATE students SET`).WillReturnError(sql.ErrNoRows)
	_, err := repo.IncrementHours(context.Background(), nil, "missing", models.HourTotals{Total: 1})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryCreateWithinTx(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	student := &models.Student{StudentNumber: "BA-002", FirstName: "Ben", LastName: "Cole", Email: "ben@example.com", ProgramID: "p-1", CampusID: "c-1"}
	require.NoError(t, repo.Create(context.Background(), tx, student))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.EnrollmentStatusEnrolled, student.EnrollmentStatus)
	assert.Equal(t, models.SAPStatusSatisfactory, student.SAPStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByEmail(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("ana@example.com").
		WillReturnError(sql.ErrNoRows)
	exists, err := repo.ExistsByEmail(context.Background(), "ana@example.com", "")
	require.NoError(t, err)
	assert.False(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("ana@example.com", "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	exists, err = repo.ExistsByEmail(context.Background(), "ana@example.com", "s-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
