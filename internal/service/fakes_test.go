package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/internal/repository"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type auditEntry struct {
	Action     string
	Resource   string
	ResourceID string
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (r *recordingAudit) Record(actor models.Actor, action, resource, resourceID string, values interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, auditEntry{Action: action, Resource: resource, ResourceID: resourceID})
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

var staffActor = models.Actor{UserID: "user-staff", Role: models.RoleStaff, IP: "127.0.0.1"}

// fakeStudentRepo keeps students in memory and applies hour increments the way
// the UPDATE ... RETURNING statement does.
type fakeStudentRepo struct {
	students map[string]*models.StudentDetail
	seq      int
}

func newFakeStudentRepo(students ...models.StudentDetail) *fakeStudentRepo {
	repo := &fakeStudentRepo{students: make(map[string]*models.StudentDetail)}
	for i := range students {
		s := students[i]
		repo.students[s.ID] = &s
	}
	return repo
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s
	return &clone, nil
}

func (f *fakeStudentRepo) IncrementHours(ctx context.Context, exec sqlx.ExtContext, id string, delta models.HourTotals) (*models.HourTotals, error) {
	s, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.TotalHoursCompleted = round2(s.TotalHoursCompleted + delta.Total)
	s.TheoryHoursCompleted = round2(s.TheoryHoursCompleted + delta.Theory)
	s.PracticalHoursCompleted = round2(s.PracticalHoursCompleted + delta.Practical)
	return &models.HourTotals{Total: s.TotalHoursCompleted, Theory: s.TheoryHoursCompleted, Practical: s.PracticalHoursCompleted}, nil
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var out []models.StudentDetail
	for _, s := range f.students {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (f *fakeStudentRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for id, s := range f.students {
		if id != excludeID && strings.EqualFold(s.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error) {
	for id, s := range f.students {
		if id != excludeID && s.StudentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStudentRepo) ListKeys(ctx context.Context) ([]repository.StudentKey, error) {
	var keys []repository.StudentKey
	for _, s := range f.students {
		keys = append(keys, repository.StudentKey{ID: s.ID, StudentNumber: s.StudentNumber, Email: s.Email, ProgramID: s.ProgramID})
	}
	return keys, nil
}

func (f *fakeStudentRepo) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		f.seq++
		student.ID = fmt.Sprintf("student-new-%d", f.seq)
	}
	if student.EnrollmentStatus == "" {
		student.EnrollmentStatus = models.EnrollmentStatusEnrolled
	}
	if student.SAPStatus == "" {
		student.SAPStatus = models.SAPStatusSatisfactory
	}
	f.students[student.ID] = &models.StudentDetail{Student: *student}
	return nil
}

func (f *fakeStudentRepo) Update(ctx context.Context, student *models.Student) error {
	s, ok := f.students[student.ID]
	if !ok {
		return sql.ErrNoRows
	}
	s.Student = *student
	return nil
}

func (f *fakeStudentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.EnrollmentStatus = status
	return nil
}

func (f *fakeStudentRepo) UpdateSAPStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SAPStatus) error {
	s, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.SAPStatus = status
	return nil
}

func (f *fakeStudentRepo) CountByStatus(ctx context.Context) ([]models.CountByStatus, error) {
	counts := map[string]int{}
	for _, s := range f.students {
		counts[string(s.EnrollmentStatus)]++
	}
	var out []models.CountByStatus
	for status, n := range counts {
		out = append(out, models.CountByStatus{Status: status, Count: n})
	}
	return out, nil
}

type fakeProgramRepo struct {
	programs map[string]models.Program
	campuses map[string]models.Campus
}

func newFakeProgramRepo() *fakeProgramRepo {
	return &fakeProgramRepo{
		programs: map[string]models.Program{
			"prog-barber": {ID: "prog-barber", Code: "BARB1500", Name: "Master Barber", TotalHours: 1500, TheoryHours: 450},
			"prog-color":  {ID: "prog-color", Code: "COLOR", Name: "Color Specialist", TotalHours: 0},
		},
		campuses: map[string]models.Campus{
			"campus-main": {ID: "campus-main", Code: "MAIN", Name: "Main Street"},
		},
	}
}

func (f *fakeProgramRepo) FindProgram(ctx context.Context, id string) (*models.Program, error) {
	p, ok := f.programs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (f *fakeProgramRepo) ListPrograms(ctx context.Context) ([]models.Program, error) {
	var out []models.Program
	for _, p := range f.programs {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProgramRepo) FindCampus(ctx context.Context, id string) (*models.Campus, error) {
	c, ok := f.campuses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeProgramRepo) ListCampuses(ctx context.Context) ([]models.Campus, error) {
	var out []models.Campus
	for _, c := range f.campuses {
		out = append(out, c)
	}
	return out, nil
}

type fakeAttendanceRepo struct {
	records map[string]*models.AttendanceRecord
	order   []string
	seq     int
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[string]*models.AttendanceRecord)}
}

func (f *fakeAttendanceRepo) Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	if record.ID == "" {
		f.seq++
		record.ID = fmt.Sprintf("att-%d", f.seq)
	}
	clone := *record
	f.records[record.ID] = &clone
	f.order = append(f.order, record.ID)
	return nil
}

func (f *fakeAttendanceRepo) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	r, ok := f.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (f *fakeAttendanceRepo) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AttendanceRecord, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeAttendanceRepo) FindSession(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error) {
	for _, id := range f.order {
		r := f.records[id]
		if r.StudentID == studentID && r.Date.Equal(date) && !r.IsCorrection {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceRepo) ExistsSession(ctx context.Context, studentID string, date time.Time) (bool, error) {
	_, err := f.FindSession(ctx, studentID, date)
	return err == nil, nil
}

func (f *fakeAttendanceRepo) ListSessionKeys(ctx context.Context, from, to time.Time) ([]repository.SessionKey, error) {
	var keys []repository.SessionKey
	for _, r := range f.records {
		if !r.IsCorrection && !r.Date.Before(from) && !r.Date.After(to) {
			keys = append(keys, repository.SessionKey{StudentID: r.StudentID, Date: r.Date})
		}
	}
	return keys, nil
}

func (f *fakeAttendanceRepo) CompleteClockOut(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	stored, ok := f.records[record.ID]
	if !ok || stored.ClockOutTime != nil {
		return sql.ErrNoRows
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeAttendanceRepo) SetReviewStatus(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error {
	stored, ok := f.records[record.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Status = record.Status
	stored.ApprovedBy = record.ApprovedBy
	stored.ApprovedAt = record.ApprovedAt
	return nil
}

func (f *fakeAttendanceRepo) CloseSuperseded(ctx context.Context, exec sqlx.ExtContext, id string) error {
	stored, ok := f.records[id]
	if !ok || stored.ClockOutTime != nil {
		return sql.ErrNoRows
	}
	stored.ClockOutTime = stored.ClockInTime
	return nil
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	var out []models.AttendanceRecord
	for _, id := range f.order {
		r := f.records[id]
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeAttendanceRepo) ListForStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	records, _, err := f.List(ctx, models.AttendanceFilter{StudentID: studentID})
	return records, err
}

// countedHours sums the records that contribute to a student's totals.
func (f *fakeAttendanceRepo) countedHours(studentID string) models.HourTotals {
	var totals models.HourTotals
	for _, r := range f.records {
		if r.StudentID != studentID {
			continue
		}
		counted := (!r.IsCorrection && r.ClockOutTime != nil) ||
			(r.IsCorrection && r.Status == models.AttendanceStatusPresent)
		if !counted {
			continue
		}
		totals.Total = round2(totals.Total + r.ActualHours)
		totals.Theory = round2(totals.Theory + r.TheoryHours)
		totals.Practical = round2(totals.Practical + r.PracticalHours)
	}
	return totals
}

type fakeMilestoneRepo struct {
	mu       sync.Mutex
	recorded map[string]models.StudentMilestone
}

func newFakeMilestoneRepo() *fakeMilestoneRepo {
	return &fakeMilestoneRepo{recorded: make(map[string]models.StudentMilestone)}
}

func (f *fakeMilestoneRepo) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, m *models.StudentMilestone) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := m.StudentID + "|" + m.MilestoneType
	if _, ok := f.recorded[key]; ok {
		return false, nil
	}
	m.ID = key
	f.recorded[key] = *m
	return true, nil
}

func (f *fakeMilestoneRepo) ListByStudent(ctx context.Context, studentID string) ([]models.StudentMilestone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StudentMilestone
	for _, m := range f.recorded {
		if m.StudentID == studentID {
			out = append(out, m)
		}
	}
	return out, nil
}

func activeStudent(id string) models.StudentDetail {
	return models.StudentDetail{
		Student: models.Student{
			ID:               id,
			StudentNumber:    "BA-" + id,
			FirstName:        "Marcus",
			LastName:         "Lee",
			Email:            id + "@example.com",
			ProgramID:        "prog-barber",
			CampusID:         "campus-main",
			EnrollmentStatus: models.EnrollmentStatusActive,
			SAPStatus:        models.SAPStatusSatisfactory,
		},
		ProgramCode:       "BARB1500",
		ProgramTotalHours: 1500,
	}
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }
