package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type attendanceRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.AttendanceRecord, error)
	FindSession(ctx context.Context, studentID string, date time.Time) (*models.AttendanceRecord, error)
	ExistsSession(ctx context.Context, studentID string, date time.Time) (bool, error)
	CompleteClockOut(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	SetReviewStatus(ctx context.Context, exec sqlx.ExtContext, record *models.AttendanceRecord) error
	CloseSuperseded(ctx context.Context, exec sqlx.ExtContext, id string) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type studentHoursRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	IncrementHours(ctx context.Context, exec sqlx.ExtContext, id string, delta models.HourTotals) (*models.HourTotals, error)
}

type programReader interface {
	FindProgram(ctx context.Context, id string) (*models.Program, error)
}

type milestoneRecorder interface {
	Check(ctx context.Context, exec sqlx.ExtContext, studentID string, total float64) ([]models.StudentMilestone, error)
}

// AttendanceConfig tunes date handling and the hour split fallback.
type AttendanceConfig struct {
	Location           *time.Location
	DefaultTheoryRatio float64
}

// AttendanceService coordinates clock-in/out sessions and corrections. Every
// finalized session updates the student's running totals in the same
// transaction so totals always equal the sum of counted records.
type AttendanceService struct {
	records    attendanceRepository
	students   studentHoursRepository
	programs   programReader
	milestones milestoneRecorder
	tx         txProvider
	audit      AuditRecorder
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	config     AttendanceConfig
	now        func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(
	records attendanceRepository,
	students studentHoursRepository,
	programs programReader,
	milestones milestoneRecorder,
	tx txProvider,
	audit AuditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AttendanceConfig,
) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultTheoryRatio < 0 || cfg.DefaultTheoryRatio > 1 {
		cfg.DefaultTheoryRatio = 0.30
	}
	return &AttendanceService{
		records:    records,
		students:   students,
		programs:   programs,
		milestones: milestones,
		tx:         tx,
		audit:      audit,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		config:     cfg,
		now:        time.Now,
	}
}

// SplitHours divides actual hours into theory and practical. The ratio comes
// from the override percentage, then the program's theory share, then the
// default ratio. Theory plus practical always equals actual to the cent.
func SplitHours(actual float64, overridePct *float64, program *models.Program, defaultRatio float64) (float64, float64) {
	ratio := defaultRatio
	switch {
	case overridePct != nil:
		ratio = *overridePct / 100
	case program != nil && program.TotalHours > 0:
		ratio = program.TheoryHours / program.TotalHours
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	theory := round2(actual * ratio)
	return theory, round2(actual - theory)
}

// SessionHours returns the rounded hours between clock-in and clock-out.
func SessionHours(in, out time.Time) float64 {
	return round2(out.Sub(in).Hours())
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *AttendanceService) today() time.Time {
	return dateOnly(s.now().In(s.config.Location))
}

// ClockIn opens today's session for a student.
func (s *AttendanceService) ClockIn(ctx context.Context, actor models.Actor, req dto.ClockInRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid clock-in payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	if !student.EnrollmentStatus.CanAttend() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student is not enrolled or active")
	}

	date := s.today()
	exists, err := s.records.ExistsSession(ctx, student.ID, date)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check attendance session")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already clocked in today")
	}

	campusID := req.CampusID
	if campusID == nil || *campusID == "" {
		id := student.CampusID
		campusID = &id
	}
	now := s.now().UTC()
	status := models.AttendanceStatusPresent
	if req.Tardy {
		status = models.AttendanceStatusTardy
	}
	record := &models.AttendanceRecord{
		StudentID:   student.ID,
		CampusID:    campusID,
		Date:        date,
		ClockInTime: &now,
		Status:      status,
		RecordedBy:  actor.UserIDPtr(),
	}
	if err := s.records.Create(ctx, nil, record); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already clocked in today")
		}
		return nil, appErrors.Internal(err, "failed to create attendance record")
	}

	s.audit.Record(actor, models.AuditActionClockIn, "attendance", record.ID, record)
	s.logger.Info("student clocked in", zap.String("student_id", student.ID), zap.String("record_id", record.ID))
	return record, nil
}

// ClockOut closes an open session, splits its hours and credits the student.
func (s *AttendanceService) ClockOut(ctx context.Context, actor models.Actor, recordID string, req dto.ClockOutRequest) (*dto.ClockOutResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid clock-out payload")
	}

	result := &dto.ClockOutResult{}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		record, err := s.records.LockByID(ctx, tx, recordID)
		if err != nil {
			return notFound(err, "attendance record not found", "failed to load attendance record")
		}
		if record.IsCorrection {
			return appErrors.Clone(appErrors.ErrInvalidState, "corrections cannot be clocked out")
		}
		if record.ClockInTime == nil {
			return appErrors.Clone(appErrors.ErrInvalidState, "record has no clock-in time")
		}
		if record.ClockOutTime != nil {
			return appErrors.Clone(appErrors.ErrConflict, "record is already clocked out")
		}

		out := s.now().UTC()
		if out.Before(*record.ClockInTime) {
			return appErrors.Clone(appErrors.ErrValidation, "clock-out precedes clock-in")
		}
		program, err := s.programForStudent(ctx, record.StudentID)
		if err != nil {
			return err
		}

		record.ClockOutTime = &out
		record.ActualHours = SessionHours(*record.ClockInTime, out)
		record.TheoryHours, record.PracticalHours = SplitHours(record.ActualHours, req.TheoryOverridePct, program, s.config.DefaultTheoryRatio)
		record.TheoryOverridePct = req.TheoryOverridePct

		if err := s.records.CompleteClockOut(ctx, tx, record); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "record is already clocked out")
			}
			return appErrors.Internal(err, "failed to update attendance record")
		}

		credited, err := s.credit(ctx, tx, record)
		if err != nil {
			return err
		}
		result.Record = *record
		result.Totals = credited.Totals
		result.Milestones = credited.Milestones
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveClockOut(result.Record.ActualHours, result.Record.TheoryHours, result.Record.PracticalHours)
	s.publishMilestones(result.Milestones)
	s.audit.Record(actor, models.AuditActionClockOut, "attendance", recordID, result.Record)
	return result, nil
}

// RequestCorrection files a manual session awaiting approval. Its hours are
// not credited until approved.
func (s *AttendanceService) RequestCorrection(ctx context.Context, actor models.Actor, req dto.CorrectionRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid correction payload")
	}
	if !req.ClockOut.After(req.ClockIn) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clock_out must be after clock_in")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}

	if req.CorrectsRecordID != nil && *req.CorrectsRecordID != "" {
		target, err := s.records.FindByID(ctx, *req.CorrectsRecordID)
		if err != nil {
			return nil, notFound(err, "corrected record not found", "failed to load corrected record")
		}
		if target.StudentID != student.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "corrected record belongs to another student")
		}
		if target.IsCorrection || target.ClockOutTime != nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only open sessions can be corrected")
		}
	}

	program, err := s.program(ctx, student.ProgramID)
	if err != nil {
		return nil, err
	}

	campusID := req.CampusID
	if campusID == nil || *campusID == "" {
		id := student.CampusID
		campusID = &id
	}
	in := req.ClockIn.UTC()
	out := req.ClockOut.UTC()
	reason := req.Reason
	record := &models.AttendanceRecord{
		StudentID:         student.ID,
		CampusID:          campusID,
		Date:              dateOnly(req.Date),
		ClockInTime:       &in,
		ClockOutTime:      &out,
		ActualHours:       SessionHours(in, out),
		Status:            models.AttendanceStatusPendingApproval,
		IsCorrection:      true,
		CorrectionReason:  &reason,
		CorrectsRecordID:  req.CorrectsRecordID,
		TheoryOverridePct: req.TheoryOverridePct,
		RecordedBy:        actor.UserIDPtr(),
	}
	record.TheoryHours, record.PracticalHours = SplitHours(record.ActualHours, req.TheoryOverridePct, program, s.config.DefaultTheoryRatio)

	if err := s.records.Create(ctx, nil, record); err != nil {
		return nil, appErrors.Internal(err, "failed to create correction")
	}
	s.audit.Record(actor, models.AuditActionCorrectionRequest, "attendance", record.ID, record)
	return record, nil
}

// ApproveCorrection counts a pending correction toward the student's totals.
func (s *AttendanceService) ApproveCorrection(ctx context.Context, actor models.Actor, id string) (*dto.ClockOutResult, error) {
	result := &dto.ClockOutResult{}
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		record, err := s.lockPendingCorrection(ctx, tx, id)
		if err != nil {
			return err
		}

		if record.CorrectsRecordID != nil {
			err := s.records.CloseSuperseded(ctx, tx, *record.CorrectsRecordID)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return appErrors.Clone(appErrors.ErrInvalidState, "corrected session was already clocked out; reject this correction or file a new one")
			case err != nil:
				return appErrors.Internal(err, "failed to close corrected session")
			}
		}

		at := s.now().UTC()
		record.Status = models.AttendanceStatusPresent
		record.ApprovedBy = actor.UserIDPtr()
		record.ApprovedAt = &at
		if err := s.records.SetReviewStatus(ctx, tx, record); err != nil {
			return appErrors.Internal(err, "failed to approve correction")
		}

		credited, err := s.credit(ctx, tx, record)
		if err != nil {
			return err
		}
		result.Record = *record
		result.Totals = credited.Totals
		result.Milestones = credited.Milestones
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddHours(result.Record.TheoryHours, result.Record.PracticalHours)
	s.publishMilestones(result.Milestones)
	s.audit.Record(actor, models.AuditActionCorrectionApprove, "attendance", id, result.Record)
	return result, nil
}

// RejectCorrection closes a pending correction without crediting hours.
func (s *AttendanceService) RejectCorrection(ctx context.Context, actor models.Actor, id string, req dto.ReviewRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid review payload")
	}
	var rejected *models.AttendanceRecord
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		record, err := s.lockPendingCorrection(ctx, tx, id)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		record.Status = models.AttendanceStatusRejected
		record.ApprovedBy = actor.UserIDPtr()
		record.ApprovedAt = &at
		if err := s.records.SetReviewStatus(ctx, tx, record); err != nil {
			return appErrors.Internal(err, "failed to reject correction")
		}
		rejected = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionCorrectionReject, "attendance", id, map[string]interface{}{
		"status": rejected.Status,
		"note":   req.Note,
	})
	return rejected, nil
}

// List returns attendance records with pagination.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid attendance status filter")
	}
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list attendance")
	}
	return records, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one attendance record.
func (s *AttendanceService) Get(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "attendance record not found", "failed to load attendance record")
	}
	return record, nil
}

// OpenSession returns the student's session for today if it has not been clocked out.
func (s *AttendanceService) OpenSession(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	record, err := s.records.FindSession(ctx, studentID, s.today())
	if err != nil {
		return nil, notFound(err, "no open session today", "failed to load attendance session")
	}
	if record.ClockOutTime != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no open session today")
	}
	return record, nil
}

type creditResult struct {
	Totals     models.HourTotals
	Milestones []models.StudentMilestone
}

// credit adds the record's hours to the student's totals and checks milestones
// inside tx.
func (s *AttendanceService) credit(ctx context.Context, tx sqlx.ExtContext, record *models.AttendanceRecord) (*creditResult, error) {
	totals, err := s.students.IncrementHours(ctx, tx, record.StudentID, record.Totals())
	if err != nil {
		return nil, notFound(err, "student not found", "failed to update student hours")
	}
	milestones, err := s.milestones.Check(ctx, tx, record.StudentID, totals.Total)
	if err != nil {
		return nil, err
	}
	return &creditResult{Totals: *totals, Milestones: milestones}, nil
}

func (s *AttendanceService) lockPendingCorrection(ctx context.Context, tx sqlx.ExtContext, id string) (*models.AttendanceRecord, error) {
	record, err := s.records.LockByID(ctx, tx, id)
	if err != nil {
		return nil, notFound(err, "correction not found", "failed to load correction")
	}
	if !record.IsCorrection {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "record is not a correction")
	}
	if record.Status != models.AttendanceStatusPendingApproval {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "correction has already been reviewed")
	}
	return record, nil
}

func (s *AttendanceService) programForStudent(ctx context.Context, studentID string) (*models.Program, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	return s.program(ctx, student.ProgramID)
}

// program returns nil when the program is missing so the default ratio applies.
func (s *AttendanceService) program(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.programs.FindProgram(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("program not found, using default theory ratio", zap.String("program_id", id))
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}
	return program, nil
}

func (s *AttendanceService) publishMilestones(milestones []models.StudentMilestone) {
	for _, m := range milestones {
		s.metrics.MilestoneRecorded(m.MilestoneType)
	}
}
