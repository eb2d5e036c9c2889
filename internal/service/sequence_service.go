package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/mailer"
)

type sequenceRepository interface {
	FindSequenceByCode(ctx context.Context, code string) (*models.EmailSequence, error)
	FindStep(ctx context.Context, sequenceID string, step int) (*models.EmailSequenceStep, error)
	FindActiveEnrollment(ctx context.Context, sequenceID, email string) (*models.EmailSequenceEnrollment, error)
	CreateEnrollment(ctx context.Context, e *models.EmailSequenceEnrollment) error
	FindEnrollment(ctx context.Context, id string) (*models.EmailSequenceEnrollment, error)
	AdvanceEnrollment(ctx context.Context, exec sqlx.ExtContext, e *models.EmailSequenceEnrollment, expectedStep int) (bool, error)
	ClaimEnrollment(ctx context.Context, id string, expectedStep int, expectedDue *time.Time, leaseUntil time.Time) (bool, error)
	CountFailedSends(ctx context.Context, enrollmentID string, step int) (int, error)
	UpdateStatus(ctx context.Context, id string, status models.SequenceEnrollmentStatus, due *time.Time) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.EmailSequenceEnrollment, error)
	UnsubscribeEmail(ctx context.Context, email string) (int64, error)
	CreateSendLog(ctx context.Context, exec sqlx.ExtContext, log *models.EmailSendLog) error
}

// SequenceConfig tunes the stepper.
type SequenceConfig struct {
	AppName   string
	BatchSize int
	// RetryDelay is how far a claimed step is pushed back; a failed send
	// is retried once it elapses.
	RetryDelay time.Duration
	// MaxFailures pauses an enrollment after that many failed attempts at one step.
	MaxFailures int
}

// SequenceService enrolls contacts in drip sequences and sends due steps.
// A step is claimed by moving its due time forward with a compare-and-swap
// before the email goes out, so overlapping sweeps skip enrollments another
// worker holds. Progress is then recorded with a compare-and-swap on
// current_step.
type SequenceService struct {
	repo      sequenceRepository
	templates *TemplateRegistry
	mailer    mailer.Mailer
	tx        txProvider
	audit     AuditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    SequenceConfig
	now       func() time.Time
}

// NewSequenceService constructs a SequenceService.
func NewSequenceService(
	repo sequenceRepository,
	templates *TemplateRegistry,
	sender mailer.Mailer,
	tx txProvider,
	audit AuditRecorder,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SequenceConfig,
) *SequenceService {
	if templates == nil {
		templates = NewTemplateRegistry()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Hour
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	return &SequenceService{
		repo:      repo,
		templates: templates,
		mailer:    sender,
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Enroll adds a contact to a sequence. A contact may hold only one active
// enrollment per sequence.
func (s *SequenceService) Enroll(ctx context.Context, actor models.Actor, req dto.EnrollSequenceRequest) (*models.EmailSequenceEnrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	sequence, err := s.repo.FindSequenceByCode(ctx, req.SequenceCode)
	if err != nil {
		return nil, notFound(err, "sequence not found", "failed to load sequence")
	}
	if !sequence.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "sequence is inactive")
	}

	if _, err := s.repo.FindActiveEnrollment(ctx, sequence.ID, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}

	now := s.now().UTC()
	enrollment := &models.EmailSequenceEnrollment{
		SequenceID:    sequence.ID,
		ContactEmail:  email,
		ContactName:   strings.TrimSpace(req.Name),
		LeadID:        req.LeadID,
		ApplicationID: req.ApplicationID,
		Status:        models.SequenceStatusActive,
		EnrolledAt:    now,
	}
	first, err := s.repo.FindStep(ctx, sequence.ID, 1)
	switch {
	case err == nil:
		due := now.Add(first.Delay())
		enrollment.NextEmailDueAt = &due
	case errors.Is(err, sql.ErrNoRows):
		enrollment.Status = models.SequenceStatusCompleted
		enrollment.CompletedAt = &now
	default:
		return nil, appErrors.Internal(err, "failed to load sequence step")
	}

	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled")
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}

	s.audit.Record(actor, models.AuditActionSequenceEnroll, "email_sequence_enrollment", enrollment.ID, map[string]interface{}{
		"sequence": sequence.Code,
		"email":    email,
	})
	return enrollment, nil
}

// ProcessSequenceEmail sends the next step of one active enrollment.
func (s *SequenceService) ProcessSequenceEmail(ctx context.Context, enrollmentID string) (*models.StepOutcome, error) {
	enrollment, err := s.repo.FindEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, notFound(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status != models.SequenceStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment is not active")
	}
	return s.process(ctx, enrollment)
}

func (s *SequenceService) process(ctx context.Context, enrollment *models.EmailSequenceEnrollment) (*models.StepOutcome, error) {
	expected := enrollment.CurrentStep
	stepNumber := expected + 1
	now := s.now().UTC()

	step, err := s.repo.FindStep(ctx, enrollment.SequenceID, stepNumber)
	if errors.Is(err, sql.ErrNoRows) {
		enrollment.Status = models.SequenceStatusCompleted
		enrollment.CompletedAt = &now
		enrollment.NextEmailDueAt = nil
		if err := s.advance(ctx, nil, enrollment, expected); err != nil {
			return nil, err
		}
		return &models.StepOutcome{Enrollment: *enrollment}, nil
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load sequence step")
	}

	lease := now.Add(s.config.RetryDelay)
	claimed, err := s.repo.ClaimEnrollment(ctx, enrollment.ID, expected, enrollment.NextEmailDueAt, lease)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to claim enrollment")
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment is being processed elsewhere")
	}
	enrollment.NextEmailDueAt = &lease

	rendered, err := s.templates.Render(step.TemplateCode, TemplateData{
		Name:       enrollment.ContactName,
		Email:      enrollment.ContactEmail,
		AppName:    s.config.AppName,
		StepNumber: stepNumber,
	})
	if err != nil {
		s.logFailedSend(ctx, enrollment, step, "", err)
		s.pauseIfFailing(ctx, enrollment, step)
		return nil, appErrors.Internal(err, "failed to render sequence email")
	}

	msg := mailer.Message{To: enrollment.ContactEmail, ToName: enrollment.ContactName, Subject: rendered.Subject, HTML: rendered.HTML}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logFailedSend(ctx, enrollment, step, rendered.Subject, err)
		s.pauseIfFailing(ctx, enrollment, step)
		return nil, appErrors.Internal(err, "failed to send sequence email")
	}
	s.metrics.EmailAttempt(step.TemplateCode, true)

	next, err := s.repo.FindStep(ctx, enrollment.SequenceID, stepNumber+1)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load sequence step")
	}
	enrollment.CurrentStep = stepNumber
	if next != nil && err == nil {
		due := now.Add(next.Delay())
		enrollment.NextEmailDueAt = &due
	} else {
		enrollment.Status = models.SequenceStatusCompleted
		enrollment.CompletedAt = &now
		enrollment.NextEmailDueAt = nil
	}

	sendLog := &models.EmailSendLog{
		EnrollmentID: enrollment.ID,
		StepNumber:   stepNumber,
		TemplateCode: step.TemplateCode,
		ToEmail:      enrollment.ContactEmail,
		Subject:      rendered.Subject,
		Status:       models.EmailSendStatusSent,
		SentAt:       now,
	}
	var advanced bool
	err = runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.repo.CreateSendLog(ctx, tx, sendLog); err != nil {
			return appErrors.Internal(err, "failed to log sequence email")
		}
		ok, err := s.repo.AdvanceEnrollment(ctx, tx, enrollment, expected)
		if err != nil {
			return appErrors.Internal(err, "failed to advance enrollment")
		}
		advanced = ok
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !advanced {
		s.logger.Warn("enrollment advanced concurrently", zap.String("enrollment_id", enrollment.ID), zap.Int("step", stepNumber))
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment changed while processing")
	}

	return &models.StepOutcome{Enrollment: *enrollment, Sent: true, StepNumber: stepNumber}, nil
}

func (s *SequenceService) advance(ctx context.Context, exec sqlx.ExtContext, enrollment *models.EmailSequenceEnrollment, expected int) error {
	ok, err := s.repo.AdvanceEnrollment(ctx, exec, enrollment, expected)
	if err != nil {
		return appErrors.Internal(err, "failed to advance enrollment")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment changed while processing")
	}
	return nil
}

func (s *SequenceService) logFailedSend(ctx context.Context, enrollment *models.EmailSequenceEnrollment, step *models.EmailSequenceStep, subject string, cause error) {
	s.metrics.EmailAttempt(step.TemplateCode, false)
	message := cause.Error()
	entry := &models.EmailSendLog{
		EnrollmentID: enrollment.ID,
		StepNumber:   step.StepNumber,
		TemplateCode: step.TemplateCode,
		ToEmail:      enrollment.ContactEmail,
		Subject:      subject,
		Status:       models.EmailSendStatusFailed,
		Error:        &message,
		SentAt:       s.now().UTC(),
	}
	if err := s.repo.CreateSendLog(ctx, nil, entry); err != nil {
		s.logger.Error("failed to log failed send", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
	s.logger.Warn("sequence email failed",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("template", step.TemplateCode),
		zap.Error(cause),
	)
}

// pauseIfFailing stops an enrollment whose current step keeps failing. Below
// the limit the claimed due time stands as the retry time.
func (s *SequenceService) pauseIfFailing(ctx context.Context, enrollment *models.EmailSequenceEnrollment, step *models.EmailSequenceStep) {
	failures, err := s.repo.CountFailedSends(ctx, enrollment.ID, step.StepNumber)
	if err != nil {
		s.logger.Error("failed to count failed sends", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return
	}
	if failures < s.config.MaxFailures {
		return
	}
	if err := s.repo.UpdateStatus(ctx, enrollment.ID, models.SequenceStatusPaused, enrollment.NextEmailDueAt); err != nil {
		s.logger.Error("failed to pause failing enrollment", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		return
	}
	enrollment.Status = models.SequenceStatusPaused
	s.logger.Warn("enrollment paused after repeated failures",
		zap.String("enrollment_id", enrollment.ID),
		zap.Int("step", step.StepNumber),
		zap.Int("failures", failures),
	)
}

// ProcessDue sends every due step, up to limit enrollments. Failures are
// counted and do not stop the sweep.
func (s *SequenceService) ProcessDue(ctx context.Context, now time.Time, limit int) (*models.ProcessDueSummary, error) {
	if limit <= 0 {
		limit = s.config.BatchSize
	}
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list due enrollments")
	}

	summary := &models.ProcessDueSummary{}
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		summary.Processed++
		outcome, err := s.process(ctx, &due[i])
		if err != nil {
			summary.Failed++
			continue
		}
		if outcome.Sent {
			summary.Sent++
		}
		if outcome.Enrollment.Status == models.SequenceStatusCompleted {
			summary.Completed++
		}
	}

	s.logger.Info("sequence sweep finished",
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// Pause stops sending for an active enrollment.
func (s *SequenceService) Pause(ctx context.Context, actor models.Actor, id string) (*models.EmailSequenceEnrollment, error) {
	enrollment, err := s.repo.FindEnrollment(ctx, id)
	if err != nil {
		return nil, notFound(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status != models.SequenceStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only active enrollments can be paused")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.SequenceStatusPaused, enrollment.NextEmailDueAt); err != nil {
		return nil, appErrors.Internal(err, "failed to pause enrollment")
	}
	enrollment.Status = models.SequenceStatusPaused
	s.audit.Record(actor, models.AuditActionSequenceState, "email_sequence_enrollment", id, map[string]interface{}{"status": enrollment.Status})
	return enrollment, nil
}

// Resume reactivates a paused enrollment. An overdue step becomes due now.
func (s *SequenceService) Resume(ctx context.Context, actor models.Actor, id string) (*models.EmailSequenceEnrollment, error) {
	enrollment, err := s.repo.FindEnrollment(ctx, id)
	if err != nil {
		return nil, notFound(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status != models.SequenceStatusPaused {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only paused enrollments can be resumed")
	}
	now := s.now().UTC()
	due := now
	if enrollment.NextEmailDueAt != nil && enrollment.NextEmailDueAt.After(now) {
		due = *enrollment.NextEmailDueAt
	}
	if err := s.repo.UpdateStatus(ctx, id, models.SequenceStatusActive, &due); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled")
		}
		return nil, appErrors.Internal(err, "failed to resume enrollment")
	}
	enrollment.Status = models.SequenceStatusActive
	enrollment.NextEmailDueAt = &due
	s.audit.Record(actor, models.AuditActionSequenceState, "email_sequence_enrollment", id, map[string]interface{}{"status": enrollment.Status})
	return enrollment, nil
}

// Unsubscribe stops every active or paused enrollment for an email address.
func (s *SequenceService) Unsubscribe(ctx context.Context, actor models.Actor, req dto.UnsubscribeRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, validationError(err, "invalid unsubscribe payload")
	}
	n, err := s.repo.UnsubscribeEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return 0, appErrors.Internal(err, "failed to unsubscribe")
	}
	s.audit.Record(actor, models.AuditActionSequenceState, "email_sequence_enrollment", "", map[string]interface{}{
		"status":   models.SequenceStatusUnsubscribed,
		"email":    req.Email,
		"affected": n,
	})
	return n, nil
}
