package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/internal/repository"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/spreadsheet"
)

const (
	importKindStudents   = "students"
	importKindAttendance = "attendance"
	importDateLayout     = "2006-01-02"
)

var importTimeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

type importStudentRepository interface {
	ListKeys(ctx context.Context) ([]repository.StudentKey, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error)
	IncrementHours(ctx context.Context, exec sqlx.ExtContext, id string, delta models.HourTotals) (*models.HourTotals, error)
}

type importLookupRepository interface {
	ListPrograms(ctx context.Context) ([]models.Program, error)
	ListCampuses(ctx context.Context) ([]models.Campus, error)
}

type importAttendanceRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	ListSessionKeys(ctx context.Context, from, to time.Time) ([]repository.SessionKey, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

// ImportConfig bounds uploads.
type ImportConfig struct {
	MaxRows            int
	Location           *time.Location
	DefaultTheoryRatio float64
}

// ImportService loads students and attendance from spreadsheets. Bad rows are
// collected and skipped; good rows are written.
type ImportService struct {
	students   importStudentRepository
	lookups    importLookupRepository
	attendance importAttendanceRepository
	milestones milestoneRecorder
	tx         txProvider
	cache      cacheInvalidator
	audit      AuditRecorder
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	config     ImportConfig
	now        func() time.Time
}

// NewImportService constructs an ImportService.
func NewImportService(
	students importStudentRepository,
	lookups importLookupRepository,
	attendance importAttendanceRepository,
	milestones milestoneRecorder,
	tx txProvider,
	cache cacheInvalidator,
	audit AuditRecorder,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ImportConfig,
) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if cfg.DefaultTheoryRatio <= 0 {
		cfg.DefaultTheoryRatio = 0.30
	}
	return &ImportService{
		students:   students,
		lookups:    lookups,
		attendance: attendance,
		milestones: milestones,
		tx:         tx,
		cache:      cache,
		audit:      audit,
		metrics:    metrics,
		validator:  validator.New(),
		logger:     logger,
		config:     cfg,
		now:        time.Now,
	}
}

func (s *ImportService) rowsOf(sheet *spreadsheet.Sheet, required ...string) ([]spreadsheet.Row, error) {
	if sheet == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	if missing := sheet.MissingColumns(required...); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing columns: "+strings.Join(missing, ", "))
	}
	rows := sheet.DataRows()
	if len(rows) > s.config.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("too many rows (max %d)", s.config.MaxRows))
	}
	return rows, nil
}

// ImportStudents creates one student per row. Later rows see students created
// by earlier rows when checking duplicates.
func (s *ImportService) ImportStudents(ctx context.Context, actor models.Actor, sheet *spreadsheet.Sheet) (*models.ImportResult, error) {
	rows, err := s.rowsOf(sheet, "first_name", "last_name", "email", "program_code", "campus_code")
	if err != nil {
		return nil, err
	}

	programs, err := s.lookups.ListPrograms(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load programs")
	}
	programIDs := make(map[string]string, len(programs))
	for _, p := range programs {
		programIDs[strings.ToUpper(p.Code)] = p.ID
	}
	campuses, err := s.lookups.ListCampuses(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load campuses")
	}
	campusIDs := make(map[string]string, len(campuses))
	for _, c := range campuses {
		campusIDs[strings.ToUpper(c.Code)] = c.ID
	}
	keys, err := s.students.ListKeys(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing students")
	}
	emails := make(map[string]struct{}, len(keys))
	numbers := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		emails[strings.ToLower(k.Email)] = struct{}{}
		numbers[k.StudentNumber] = struct{}{}
	}

	result := &models.ImportResult{Errors: []models.ImportRowError{}}
	for _, row := range rows {
		if ctx.Err() != nil {
			return nil, appErrors.Internal(ctx.Err(), "import cancelled")
		}
		student, field, msg := s.parseStudentRow(row, programIDs, campusIDs, emails, numbers)
		if msg != "" {
			result.Fail(row.Number, field, msg)
			continue
		}
		if student.StudentNumber == "" {
			number, err := GenerateStudentNumber(ctx, s.students, s.now())
			if err != nil {
				result.Fail(row.Number, "student_number", "could not allocate a student number")
				continue
			}
			student.StudentNumber = number
		}
		if err := s.students.Create(ctx, nil, student); err != nil {
			if appErrors.IsUniqueViolation(err) {
				result.Fail(row.Number, "email", "student already exists")
				continue
			}
			s.logger.Error("import student insert failed", zap.Int("row", row.Number), zap.Error(err))
			result.Fail(row.Number, "", "failed to insert student")
			continue
		}
		emails[student.Email] = struct{}{}
		numbers[student.StudentNumber] = struct{}{}
		result.Imported++
	}

	s.finish(ctx, actor, importKindStudents, result)
	return result, nil
}

func (s *ImportService) parseStudentRow(
	row spreadsheet.Row,
	programIDs, campusIDs map[string]string,
	emails, numbers map[string]struct{},
) (*models.Student, string, string) {
	for _, col := range []string{"first_name", "last_name", "email", "program_code", "campus_code"} {
		if row.Get(col) == "" {
			return nil, col, col + " is required"
		}
	}
	email := strings.ToLower(row.Get("email"))
	if err := s.validator.Var(email, "email"); err != nil {
		return nil, "email", "invalid email"
	}
	programID, ok := programIDs[strings.ToUpper(row.Get("program_code"))]
	if !ok {
		return nil, "program_code", "unknown program " + row.Get("program_code")
	}
	campusID, ok := campusIDs[strings.ToUpper(row.Get("campus_code"))]
	if !ok {
		return nil, "campus_code", "unknown campus " + row.Get("campus_code")
	}
	if _, dup := emails[email]; dup {
		return nil, "email", "duplicate email " + email
	}
	number := row.Get("student_number")
	if number != "" {
		if _, dup := numbers[number]; dup {
			return nil, "student_number", "duplicate student number " + number
		}
	}
	status := models.EnrollmentStatusEnrolled
	if raw := row.Get("enrollment_status"); raw != "" {
		status = models.EnrollmentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return nil, "enrollment_status", "invalid enrollment status " + raw
		}
	}
	var startDate *time.Time
	if raw := row.Get("start_date"); raw != "" {
		d, err := time.Parse(importDateLayout, raw)
		if err != nil {
			return nil, "start_date", "start_date must be YYYY-MM-DD"
		}
		startDate = &d
	}
	var phone *string
	if raw := row.Get("phone"); raw != "" {
		phone = &raw
	}
	return &models.Student{
		StudentNumber:    number,
		FirstName:        row.Get("first_name"),
		LastName:         row.Get("last_name"),
		Email:            email,
		Phone:            phone,
		ProgramID:        programID,
		CampusID:         campusID,
		StartDate:        startDate,
		EnrollmentStatus: status,
		SAPStatus:        models.SAPStatusSatisfactory,
	}, "", ""
}

type attendanceRow struct {
	row     spreadsheet.Row
	date    time.Time
	dateErr bool
}

// ImportAttendance writes one attendance record per row. Each row's insert
// and hour credit commit together.
func (s *ImportService) ImportAttendance(ctx context.Context, actor models.Actor, sheet *spreadsheet.Sheet) (*models.ImportResult, error) {
	rows, err := s.rowsOf(sheet, "student_number", "date", "clock_in", "clock_out")
	if err != nil {
		return nil, err
	}

	keys, err := s.students.ListKeys(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load existing students")
	}
	byNumber := make(map[string]repository.StudentKey, len(keys))
	for _, k := range keys {
		byNumber[k.StudentNumber] = k
	}
	programs, err := s.lookups.ListPrograms(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load programs")
	}
	programByID := make(map[string]models.Program, len(programs))
	for _, p := range programs {
		programByID[p.ID] = p
	}

	parsed := make([]attendanceRow, len(rows))
	var from, to time.Time
	for i, row := range rows {
		parsed[i].row = row
		d, err := time.Parse(importDateLayout, row.Get("date"))
		if err != nil {
			parsed[i].dateErr = true
			continue
		}
		parsed[i].date = d
		if from.IsZero() || d.Before(from) {
			from = d
		}
		if to.IsZero() || d.After(to) {
			to = d
		}
	}
	sessions := make(map[string]struct{})
	if !from.IsZero() {
		existing, err := s.attendance.ListSessionKeys(ctx, from, to)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load existing attendance")
		}
		for _, k := range existing {
			sessions[sessionKey(k.StudentID, k.Date)] = struct{}{}
		}
	}

	result := &models.ImportResult{Errors: []models.ImportRowError{}}
	for _, p := range parsed {
		if ctx.Err() != nil {
			return nil, appErrors.Internal(ctx.Err(), "import cancelled")
		}
		row := p.row
		if row.Get("student_number") == "" {
			result.Fail(row.Number, "student_number", "student_number is required")
			continue
		}
		student, ok := byNumber[row.Get("student_number")]
		if !ok {
			result.Fail(row.Number, "student_number", "unknown student "+row.Get("student_number"))
			continue
		}
		if p.dateErr {
			result.Fail(row.Number, "date", "date must be YYYY-MM-DD")
			continue
		}
		key := sessionKey(student.ID, p.date)
		if _, dup := sessions[key]; dup {
			result.Fail(row.Number, "date", "attendance already recorded for this date")
			continue
		}

		var program *models.Program
		if prog, ok := programByID[student.ProgramID]; ok {
			program = &prog
		}
		record, field, msg := s.parseAttendanceRow(row, student.ID, p.date, program)
		if msg != "" {
			result.Fail(row.Number, field, msg)
			continue
		}
		record.RecordedBy = actor.UserIDPtr()

		var recorded []models.StudentMilestone
		err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
			if err := s.attendance.Create(ctx, tx, record); err != nil {
				return err
			}
			if record.ActualHours == 0 {
				return nil
			}
			totals, err := s.students.IncrementHours(ctx, tx, student.ID, record.Totals())
			if err != nil {
				return err
			}
			recorded, err = s.milestones.Check(ctx, tx, student.ID, totals.Total)
			return err
		})
		if err != nil {
			if appErrors.IsUniqueViolation(err) {
				result.Fail(row.Number, "date", "attendance already recorded for this date")
				continue
			}
			s.logger.Error("import attendance row failed", zap.Int("row", row.Number), zap.Error(err))
			result.Fail(row.Number, "", "failed to record attendance")
			continue
		}
		for _, m := range recorded {
			s.metrics.MilestoneRecorded(m.MilestoneType)
		}
		s.metrics.AddHours(record.TheoryHours, record.PracticalHours)
		sessions[key] = struct{}{}
		result.Imported++
	}

	s.finish(ctx, actor, importKindAttendance, result)
	return result, nil
}

func (s *ImportService) parseAttendanceRow(row spreadsheet.Row, studentID string, date time.Time, program *models.Program) (*models.AttendanceRecord, string, string) {
	status := models.AttendanceStatusPresent
	if raw := row.Get("status"); raw != "" {
		status = models.AttendanceStatus(strings.ToLower(raw))
		if !status.Importable() {
			return nil, "status", "invalid status " + raw
		}
	}

	var override *float64
	if raw := row.Get("theory_pct"); raw != "" {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil || pct < 0 || pct > 100 {
			return nil, "theory_pct", "theory_pct must be between 0 and 100"
		}
		override = &pct
	}

	record := &models.AttendanceRecord{
		StudentID:         studentID,
		Date:              date,
		Status:            status,
		TheoryOverridePct: override,
	}
	if status == models.AttendanceStatusAbsent || status == models.AttendanceStatusExcused {
		if row.Get("clock_in") != "" || row.Get("clock_out") != "" {
			return nil, "status", string(status) + " rows cannot carry clock times"
		}
		return record, "", ""
	}

	in, err := s.parseClock(date, row.Get("clock_in"))
	if err != nil {
		return nil, "clock_in", clockMessage("clock_in", err)
	}
	out, err := s.parseClock(date, row.Get("clock_out"))
	if err != nil {
		return nil, "clock_out", clockMessage("clock_out", err)
	}
	if !out.After(in) {
		return nil, "clock_out", "clock_out must be after clock_in"
	}
	record.ClockInTime = &in
	record.ClockOutTime = &out
	record.ActualHours = SessionHours(in, out)
	record.TheoryHours, record.PracticalHours = SplitHours(record.ActualHours, override, program, s.config.DefaultTheoryRatio)
	return record, "", ""
}

func (s *ImportService) parseClock(date time.Time, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, d := t.In(s.config.Location).Date()
		if y != date.Year() || m != date.Month() || d != date.Day() {
			return time.Time{}, errClockOffDate
		}
		return t.UTC(), nil
	}
	for _, layout := range importTimeLayouts {
		t, err := time.Parse(layout, strings.ToUpper(raw))
		if err != nil {
			continue
		}
		local := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), t.Second(), 0, s.config.Location)
		return local.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", raw)
}

var errClockOffDate = errors.New("time falls outside the row date")

func clockMessage(field string, err error) string {
	if errors.Is(err, errClockOffDate) {
		return field + " must fall on the row date"
	}
	return field + " must be HH:MM"
}

func (s *ImportService) finish(ctx context.Context, actor models.Actor, kind string, result *models.ImportResult) {
	s.metrics.ImportRows(kind, result.Imported, result.Failed)
	s.logger.Info("import finished",
		zap.String("kind", kind),
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
	)
	if result.Imported > 0 && s.cache != nil {
		s.cache.Invalidate(ctx, dashboardCachePattern)
	}
	s.audit.Record(actor, models.AuditActionImport, kind, "", map[string]interface{}{
		"imported": result.Imported,
		"failed":   result.Failed,
	})
}

func sessionKey(studentID string, date time.Time) string {
	return studentID + "|" + date.Format(importDateLayout)
}
