package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

const (
	// SAPMinAttendance is the minimum completed/scheduled ratio for satisfactory progress.
	SAPMinAttendance = 0.67
	// SAPMinGPA is the minimum grade point average for satisfactory progress.
	SAPMinGPA = 2.0
)

type sapRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, eval *models.SAPEvaluation) error
	ListByStudent(ctx context.Context, studentID string) ([]models.SAPEvaluation, error)
}

type sapStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	UpdateSAPStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SAPStatus) error
}

// SAPService evaluates satisfactory academic progress.
type SAPService struct {
	repo      sapRepository
	students  sapStudentRepository
	tx        txProvider
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSAPService constructs a SAPService.
func NewSAPService(repo sapRepository, students sapStudentRepository, tx txProvider, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *SAPService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &SAPService{repo: repo, students: students, tx: tx, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// EvaluateStanding returns the SAP result for a student currently at previous.
func EvaluateStanding(previous models.SAPStatus, attendancePct float64, gpa *float64) models.SAPStatus {
	if attendancePct >= SAPMinAttendance && (gpa == nil || *gpa >= SAPMinGPA) {
		return models.SAPStatusSatisfactory
	}
	if previous == "" {
		previous = models.SAPStatusSatisfactory
	}
	return previous.Escalate()
}

// Evaluate records an evaluation against the student's completed hours and
// updates the student's standing in the same transaction.
func (s *SAPService) Evaluate(ctx context.Context, actor models.Actor, studentID string, req dto.SAPEvaluationRequest) (*models.SAPEvaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid sap evaluation payload")
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}

	completed := student.TotalHoursCompleted
	pct := round2(completed / req.ScheduledHours)
	eval := &models.SAPEvaluation{
		StudentID:      studentID,
		EvaluatedAt:    s.now().UTC(),
		ScheduledHours: req.ScheduledHours,
		CompletedHours: completed,
		AttendancePct:  pct,
		GPA:            req.GPA,
		PreviousStatus: student.SAPStatus,
		ResultStatus:   EvaluateStanding(student.SAPStatus, completed/req.ScheduledHours, req.GPA),
		EvaluatedBy:    actor.UserIDPtr(),
		Notes:          req.Notes,
	}

	err = runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, eval); err != nil {
			return appErrors.Internal(err, "failed to record sap evaluation")
		}
		if err := s.students.UpdateSAPStatus(ctx, tx, studentID, eval.ResultStatus); err != nil {
			return appErrors.Internal(err, "failed to update sap status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if eval.ResultStatus != models.SAPStatusSatisfactory {
		s.logger.Info("student below sap standard",
			zap.String("student_id", studentID),
			zap.String("status", string(eval.ResultStatus)),
			zap.Float64("attendance_pct", pct),
		)
	}
	s.audit.Record(actor, models.AuditActionSAPEvaluate, "student", studentID, eval)
	return eval, nil
}

// History lists a student's evaluations, newest first.
func (s *SAPService) History(ctx context.Context, studentID string) ([]models.SAPEvaluation, error) {
	evals, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sap evaluations")
	}
	return evals, nil
}
