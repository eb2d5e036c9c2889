package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type attendanceFixture struct {
	svc        *AttendanceService
	records    *fakeAttendanceRepo
	students   *fakeStudentRepo
	milestones *fakeMilestoneRepo
	audit      *recordingAudit
	mock       sqlmock.Sqlmock
	clock      *time.Time
}

func newAttendanceFixture(t *testing.T, students ...models.StudentDetail) *attendanceFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	records := newFakeAttendanceRepo()
	studentRepo := newFakeStudentRepo(students...)
	milestoneRepo := newFakeMilestoneRepo()
	audit := &recordingAudit{}
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	svc := NewAttendanceService(records, studentRepo, newFakeProgramRepo(), NewMilestoneChecker(milestoneRepo, nil), tx, audit, nil, nil, nil,
		AttendanceConfig{Location: loc, DefaultTheoryRatio: 0.30})
	clock := time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
	fixture := &attendanceFixture{svc: svc, records: records, students: studentRepo, milestones: milestoneRepo, audit: audit, mock: mock, clock: &clock}
	svc.now = func() time.Time { return *fixture.clock }
	return fixture
}

func (f *attendanceFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestSplitHoursAlwaysSumsToActual(t *testing.T) {
	program := &models.Program{TotalHours: 1500, TheoryHours: 450}
	empty := &models.Program{}
	cases := []struct {
		name     string
		actual   float64
		override *float64
		program  *models.Program
		theory   float64
	}{
		{name: "program ratio", actual: 3, program: program, theory: 0.9},
		{name: "override wins", actual: 4, override: floatPtr(50), program: program, theory: 2},
		{name: "default when program has no hours", actual: 7.33, program: empty, theory: 2.2},
		{name: "default without program", actual: 1.01, theory: 0.3},
		{name: "odd cents", actual: 5.17, override: floatPtr(33.3), theory: 1.72},
		{name: "zero override", actual: 6.5, override: floatPtr(0), program: program, theory: 0},
		{name: "full override", actual: 6.5, override: floatPtr(100), program: program, theory: 6.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			theory, practical := SplitHours(tc.actual, tc.override, tc.program, 0.30)
			assert.InDelta(t, tc.theory, theory, 0.001)
			assert.InDelta(t, tc.actual, theory+practical, 0.001)
			assert.GreaterOrEqual(t, practical, 0.0)
		})
	}
}

func TestSessionHoursRoundsToCents(t *testing.T) {
	in := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 3.0, SessionHours(in, in.Add(3*time.Hour)))
	assert.Equal(t, 1.33, SessionHours(in, in.Add(80*time.Minute)))
	assert.Equal(t, 0.01, SessionHours(in, in.Add(40*time.Second)))
}

func TestClockInUsesConfiguredTimezoneDate(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	// 01:30 UTC on March 5 is still March 4 in New York.
	*f.clock = time.Date(2024, 3, 5, 1, 30, 0, 0, time.UTC)

	record, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), record.Date)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	require.NotNil(t, record.CampusID)
	assert.Equal(t, "campus-main", *record.CampusID)
	assert.Equal(t, []string{models.AuditActionClockIn}, f.audit.actions())
}

func TestClockInRejectsSecondSessionSameDay(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	_, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	f.advance(2 * time.Hour)
	_, err = f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Len(t, f.records.records, 1)
}

func TestClockInRejectsStudentsWhoCannotAttend(t *testing.T) {
	student := activeStudent("stu-loa")
	student.EnrollmentStatus = models.EnrollmentStatusLOA
	f := newAttendanceFixture(t, student)

	_, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-loa"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "missing"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestClockOutSplitsHoursAndCreditsTotals(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	record, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	f.advance(3 * time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.ClockOut(context.Background(), staffActor, record.ID, dto.ClockOutRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3.0, result.Record.ActualHours)
	assert.InDelta(t, 0.9, result.Record.TheoryHours, 0.001)
	assert.InDelta(t, 2.1, result.Record.PracticalHours, 0.001)
	assert.InDelta(t, 3.0, result.Totals.Total, 0.001)
	assert.Empty(t, result.Milestones)

	stored := f.students.students["stu-1"]
	assert.InDelta(t, stored.TotalHoursCompleted, stored.TheoryHoursCompleted+stored.PracticalHoursCompleted, 0.001)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestClockOutTwiceIsRejectedAndRolledBack(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	record, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	f.advance(time.Hour)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.ClockOut(context.Background(), staffActor, record.ID, dto.ClockOutRequest{})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.ClockOut(context.Background(), staffActor, record.ID, dto.ClockOutRequest{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.InDelta(t, 1.0, f.students.students["stu-1"].TotalHoursCompleted, 0.001)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestClockOutRejectsOverrideOutOfRange(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	_, err := f.svc.ClockOut(context.Background(), staffActor, "att-1", dto.ClockOutRequest{TheoryOverridePct: floatPtr(120)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestClockOutRecordsMilestonesOnce(t *testing.T) {
	student := activeStudent("stu-1")
	student.TotalHoursCompleted = 98
	student.TheoryHoursCompleted = 29.4
	student.PracticalHoursCompleted = 68.6
	f := newAttendanceFixture(t, student)

	record, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	f.advance(4 * time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	result, err := f.svc.ClockOut(context.Background(), staffActor, record.ID, dto.ClockOutRequest{})
	require.NoError(t, err)
	require.Len(t, result.Milestones, 1)
	assert.Equal(t, "hours_100", result.Milestones[0].MilestoneType)
	assert.Equal(t, 102.0, result.Milestones[0].HoursAtAchievement)

	// The next day's session stays above 100 but must not record it again.
	f.advance(20 * time.Hour)
	second, err := f.svc.ClockIn(context.Background(), staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)
	f.advance(time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	result, err = f.svc.ClockOut(context.Background(), staffActor, second.ID, dto.ClockOutRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Milestones)
	assert.Len(t, f.milestones.recorded, 1)
}

func TestCorrectionsCountOnlyAfterApproval(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	ctx := context.Background()
	in := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	pending, err := f.svc.RequestCorrection(ctx, staffActor, dto.CorrectionRequest{
		StudentID: "stu-1",
		Date:      in,
		ClockIn:   in,
		ClockOut:  in.Add(5 * time.Hour),
		Reason:    "forgot to clock in",
	})
	require.NoError(t, err)
	assert.True(t, pending.IsCorrection)
	assert.Equal(t, models.AttendanceStatusPendingApproval, pending.Status)
	assert.InDelta(t, 5.0, pending.TheoryHours+pending.PracticalHours, 0.001)
	assert.Zero(t, f.students.students["stu-1"].TotalHoursCompleted)

	rejected, err := f.svc.RequestCorrection(ctx, staffActor, dto.CorrectionRequest{
		StudentID: "stu-1",
		Date:      in.AddDate(0, 0, 1),
		ClockIn:   in.AddDate(0, 0, 1),
		ClockOut:  in.AddDate(0, 0, 1).Add(2 * time.Hour),
		Reason:    "duplicate entry",
	})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	approved, err := f.svc.ApproveCorrection(ctx, staffActor, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, approved.Record.Status)
	require.NotNil(t, approved.Record.ApprovedBy)
	assert.Equal(t, staffActor.UserID, *approved.Record.ApprovedBy)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.RejectCorrection(ctx, staffActor, rejected.ID, dto.ReviewRequest{Note: "already counted"})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.ApproveCorrection(ctx, staffActor, rejected.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	stored := f.students.students["stu-1"]
	assert.InDelta(t, 5.0, stored.TotalHoursCompleted, 0.001)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCorrectionRequiresReasonAndOrderedTimes(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	in := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	_, err := f.svc.RequestCorrection(context.Background(), staffActor, dto.CorrectionRequest{
		StudentID: "stu-1", Date: in, ClockIn: in, ClockOut: in.Add(time.Hour),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.RequestCorrection(context.Background(), staffActor, dto.CorrectionRequest{
		StudentID: "stu-1", Date: in, ClockIn: in, ClockOut: in.Add(-time.Hour), Reason: "wrong order",
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestApprovedCorrectionClosesCorrectedSession(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	ctx := context.Background()
	open, err := f.svc.ClockIn(ctx, staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	correction, err := f.svc.RequestCorrection(ctx, staffActor, dto.CorrectionRequest{
		StudentID:        "stu-1",
		Date:             open.Date,
		ClockIn:          *open.ClockInTime,
		ClockOut:         open.ClockInTime.Add(6 * time.Hour),
		Reason:           "forgot to clock out",
		CorrectsRecordID: &open.ID,
	})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.ApproveCorrection(ctx, staffActor, correction.ID)
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.ClockOut(ctx, staffActor, open.ID, dto.ClockOutRequest{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.InDelta(t, 6.0, f.students.students["stu-1"].TotalHoursCompleted, 0.001)
}

func TestApproveRejectsCorrectionOfClockedOutSession(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	ctx := context.Background()
	open, err := f.svc.ClockIn(ctx, staffActor, dto.ClockInRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	correction, err := f.svc.RequestCorrection(ctx, staffActor, dto.CorrectionRequest{
		StudentID:        "stu-1",
		Date:             open.Date,
		ClockIn:          *open.ClockInTime,
		ClockOut:         open.ClockInTime.Add(6 * time.Hour),
		Reason:           "forgot to clock out",
		CorrectsRecordID: &open.ID,
	})
	require.NoError(t, err)

	f.advance(4 * time.Hour)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.ClockOut(ctx, staffActor, open.ID, dto.ClockOutRequest{})
	require.NoError(t, err)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.ApproveCorrection(ctx, staffActor, correction.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	assert.InDelta(t, 4.0, f.students.students["stu-1"].TotalHoursCompleted, 0.001)
	assert.Equal(t, models.AttendanceStatusPendingApproval, f.records.records[correction.ID].Status)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTotalsEqualSumOfCountedRecords(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	ctx := context.Background()
	durations := []time.Duration{3*time.Hour + 17*time.Minute, 7 * time.Hour, 95 * time.Minute, 8*time.Hour + 1*time.Minute}

	for i, d := range durations {
		record, err := f.svc.ClockIn(ctx, staffActor, dto.ClockInRequest{StudentID: "stu-1"})
		require.NoError(t, err)
		f.advance(d)
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
		var override *float64
		if i%2 == 1 {
			override = floatPtr(42)
		}
		_, err = f.svc.ClockOut(ctx, staffActor, record.ID, dto.ClockOutRequest{TheoryOverridePct: override})
		require.NoError(t, err)
		f.advance(24*time.Hour - d)
	}

	in := time.Date(2024, 2, 20, 14, 0, 0, 0, time.UTC)
	correction, err := f.svc.RequestCorrection(ctx, staffActor, dto.CorrectionRequest{
		StudentID: "stu-1", Date: in, ClockIn: in, ClockOut: in.Add(2*time.Hour + 10*time.Minute), Reason: "paper sign-in sheet",
	})
	require.NoError(t, err)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.ApproveCorrection(ctx, staffActor, correction.ID)
	require.NoError(t, err)

	stored := f.students.students["stu-1"]
	counted := f.records.countedHours("stu-1")
	assert.InDelta(t, counted.Total, stored.TotalHoursCompleted, 0.001)
	assert.InDelta(t, counted.Theory, stored.TheoryHoursCompleted, 0.001)
	assert.InDelta(t, counted.Practical, stored.PracticalHoursCompleted, 0.001)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestOpenSessionReturnsTodaysUnclosedRecord(t *testing.T) {
	f := newAttendanceFixture(t, activeStudent("stu-1"))
	ctx := context.Background()

	_, err := f.svc.OpenSession(ctx, "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	record, err := f.svc.ClockIn(ctx, staffActor, dto.ClockInRequest{StudentID: "stu-1", Tardy: true})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusTardy, record.Status)

	open, err := f.svc.OpenSession(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, open.ID)
}
