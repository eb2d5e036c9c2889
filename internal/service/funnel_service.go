package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type leadRepository interface {
	Create(ctx context.Context, lead *models.Lead) error
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	FindByEmail(ctx context.Context, email string) (*models.Lead, error)
	FindByPhone(ctx context.Context, phone string) (*models.Lead, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.LeadStatus) error
	List(ctx context.Context, filter models.LeadFilter) ([]models.Lead, int, error)
}

type applicationRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Application, error)
	UpdateState(ctx context.Context, exec sqlx.ExtContext, app *models.Application) error
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
}

type funnelStudentRepository interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

type accountOpener interface {
	OpenAccount(ctx context.Context, tx sqlx.ExtContext, studentID string) (*models.StudentAccount, error)
}

type sequenceEnroller interface {
	Enroll(ctx context.Context, actor models.Actor, req dto.EnrollSequenceRequest) (*models.EmailSequenceEnrollment, error)
}

// FunnelService manages leads and applications up to student enrollment.
type FunnelService struct {
	leads        leadRepository
	applications applicationRepository
	students     funnelStudentRepository
	lookups      lookupReader
	accounts     accountOpener
	sequences    sequenceEnroller
	tx           txProvider
	audit        AuditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// FunnelServiceParams groups constructor dependencies.
type FunnelServiceParams struct {
	Leads        leadRepository
	Applications applicationRepository
	Students     funnelStudentRepository
	Lookups      lookupReader
	Accounts     accountOpener
	Sequences    sequenceEnroller
	Tx           txProvider
	Audit        AuditRecorder
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewFunnelService constructs a FunnelService.
func NewFunnelService(params FunnelServiceParams) *FunnelService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	audit := params.Audit
	if audit == nil {
		audit = noopAudit{}
	}
	return &FunnelService{
		leads:        params.Leads,
		applications: params.Applications,
		students:     params.Students,
		lookups:      params.Lookups,
		accounts:     params.Accounts,
		sequences:    params.Sequences,
		tx:           params.Tx,
		audit:        audit,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// NormalizePhone strips formatting, keeping a leading plus and digits.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CreateLead records a prospect. An existing lead with the same email or
// phone is returned instead of creating a duplicate.
func (s *FunnelService) CreateLead(ctx context.Context, actor models.Actor, req dto.LeadRequest) (*dto.LeadResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lead payload")
	}
	lead := &models.Lead{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Source:      strings.TrimSpace(req.Source),
		Status:      models.LeadStatusLead,
		Notes:       req.Notes,
		ExternalRef: req.ExternalRef,
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		lead.Email = &email
	}
	if req.Phone != nil {
		if phone := NormalizePhone(*req.Phone); phone != "" {
			lead.Phone = &phone
		}
	}
	if lead.Email == nil && lead.Phone == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email or phone is required")
	}

	existing, err := s.findExistingLead(ctx, lead.Email, lead.Phone)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &dto.LeadResult{Lead: *existing, Created: false}, nil
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		if !appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Internal(err, "failed to create lead")
		}
		// A concurrent delivery inserted the same contact first.
		existing, findErr := s.findExistingLead(ctx, lead.Email, lead.Phone)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, appErrors.Internal(err, "failed to create lead")
		}
		return &dto.LeadResult{Lead: *existing, Created: false}, nil
	}
	s.audit.Record(actor, models.AuditActionLeadCreate, "lead", lead.ID, lead)

	if lead.Email != nil {
		leadID := lead.ID
		s.enrollBestEffort(ctx, actor, dto.EnrollSequenceRequest{
			SequenceCode: models.SequenceLeadNurture,
			Email:        *lead.Email,
			Name:         strings.TrimSpace(lead.FirstName + " " + lead.LastName),
			LeadID:       &leadID,
		})
	}
	return &dto.LeadResult{Lead: *lead, Created: true}, nil
}

func (s *FunnelService) findExistingLead(ctx context.Context, email, phone *string) (*models.Lead, error) {
	if email != nil {
		lead, err := s.leads.FindByEmail(ctx, *email)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to check lead email")
		}
	}
	if phone != nil {
		lead, err := s.leads.FindByPhone(ctx, *phone)
		if err == nil {
			return lead, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to check lead phone")
		}
	}
	return nil, nil
}

func (s *FunnelService) enrollBestEffort(ctx context.Context, actor models.Actor, req dto.EnrollSequenceRequest) {
	if s.sequences == nil {
		return
	}
	if _, err := s.sequences.Enroll(ctx, actor, req); err != nil && !errors.Is(err, appErrors.ErrAlreadyEnrolled) {
		s.logger.Warn("sequence auto-enroll failed",
			zap.String("sequence", req.SequenceCode),
			zap.String("email", req.Email),
			zap.Error(err),
		)
	}
}

// CreateLeadFromCall turns an analyzed phone call into a lead.
func (s *FunnelService) CreateLeadFromCall(ctx context.Context, call dto.CallAnalyticsCall) (*dto.LeadResult, error) {
	first, last := splitName(call.CallerName)
	if first == "" {
		first = "Caller"
	}
	phone := call.CallerPhone
	if strings.TrimSpace(phone) == "" {
		phone = call.FromNumber
	}
	req := dto.LeadRequest{
		FirstName: first,
		LastName:  last,
		Source:    models.LeadSourcePhoneCall,
	}
	if strings.TrimSpace(phone) != "" {
		req.Phone = &phone
	}
	if email := strings.TrimSpace(call.CallerEmail); email != "" {
		if s.validator.Var(email, "email") == nil {
			req.Email = &email
		} else {
			s.logger.Debug("ignoring invalid caller email", zap.String("call_id", call.CallID))
		}
	}
	var notes []string
	if call.Interest != "" {
		notes = append(notes, "Interest: "+call.Interest)
	}
	if call.Summary != "" {
		notes = append(notes, call.Summary)
	}
	if len(notes) > 0 {
		joined := strings.Join(notes, "\n")
		req.Notes = &joined
	}
	if call.CallID != "" {
		ref := call.CallID
		req.ExternalRef = &ref
	}
	return s.CreateLead(ctx, models.SystemActor, req)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// UpdateLeadStatus changes a lead's funnel status.
func (s *FunnelService) UpdateLeadStatus(ctx context.Context, actor models.Actor, id string, req dto.LeadStatusRequest) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lead status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lead status")
	}
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "lead not found", "failed to load lead")
	}
	if lead.Status == req.Status {
		return lead, nil
	}
	if err := s.leads.UpdateStatus(ctx, nil, id, req.Status); err != nil {
		return nil, appErrors.Internal(err, "failed to update lead status")
	}
	previous := lead.Status
	lead.Status = req.Status
	s.audit.Record(actor, models.AuditActionLeadStatus, "lead", id, map[string]interface{}{"from": previous, "to": req.Status})
	return lead, nil
}

// ListLeads returns leads and pagination metadata.
func (s *FunnelService) ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, *models.Pagination, error) {
	leads, total, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list leads")
	}
	return leads, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetLead returns one lead.
func (s *FunnelService) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "lead not found", "failed to load lead")
	}
	return lead, nil
}

// CreateApplication opens a draft application. When it comes from a lead the
// lead becomes an applicant in the same transaction.
func (s *FunnelService) CreateApplication(ctx context.Context, actor models.Actor, req dto.ApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid application payload")
	}
	if _, err := s.lookups.FindProgram(ctx, req.ProgramID); err != nil {
		return nil, notFound(err, "program not found", "failed to load program")
	}
	if _, err := s.lookups.FindCampus(ctx, req.CampusID); err != nil {
		return nil, notFound(err, "campus not found", "failed to load campus")
	}
	if req.LeadID != nil {
		lead, err := s.leads.FindByID(ctx, *req.LeadID)
		if err != nil {
			return nil, notFound(err, "lead not found", "failed to load lead")
		}
		if lead.Status == models.LeadStatusLost {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "lead is marked lost")
		}
	}

	app := &models.Application{
		LeadID:           req.LeadID,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            strings.ToLower(strings.TrimSpace(req.Email)),
		ProgramID:        req.ProgramID,
		CampusID:         req.CampusID,
		DesiredStartDate: req.DesiredStartDate,
		Status:           models.ApplicationStatusDraft,
	}
	if req.Phone != nil {
		if phone := NormalizePhone(*req.Phone); phone != "" {
			app.Phone = &phone
		}
	}

	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.applications.Create(ctx, tx, app); err != nil {
			return appErrors.Internal(err, "failed to create application")
		}
		if app.LeadID != nil {
			if err := s.leads.UpdateStatus(ctx, tx, *app.LeadID, models.LeadStatusApplicant); err != nil {
				return appErrors.Internal(err, "failed to update lead status")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionApplicationChange, "application", app.ID, app)
	appID := app.ID
	s.enrollBestEffort(ctx, actor, dto.EnrollSequenceRequest{
		SequenceCode:  models.SequenceApplicationFollowup,
		Email:         app.Email,
		Name:          strings.TrimSpace(app.FirstName + " " + app.LastName),
		LeadID:        app.LeadID,
		ApplicationID: &appID,
	})
	return app, nil
}

// GetApplication returns one application.
func (s *FunnelService) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "application not found", "failed to load application")
	}
	return app, nil
}

// ListApplications returns applications and pagination metadata.
func (s *FunnelService) ListApplications(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	apps, total, err := s.applications.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list applications")
	}
	return apps, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// SubmitApplication moves a draft to submitted.
func (s *FunnelService) SubmitApplication(ctx context.Context, actor models.Actor, id string) (*models.Application, error) {
	return s.transitionApplication(ctx, actor, id, models.ApplicationStatusDraft, func(app *models.Application, now time.Time) {
		app.Status = models.ApplicationStatusSubmitted
		app.SubmittedAt = &now
	})
}

// DecideApplication accepts or denies a submitted application.
func (s *FunnelService) DecideApplication(ctx context.Context, actor models.Actor, id string, req dto.DecisionRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid decision payload")
	}
	return s.transitionApplication(ctx, actor, id, models.ApplicationStatusSubmitted, func(app *models.Application, now time.Time) {
		app.Status = req.Decision
		app.DecidedAt = &now
		app.DecidedBy = actor.UserIDPtr()
		app.DecisionNote = req.Note
	})
}

func (s *FunnelService) transitionApplication(ctx context.Context, actor models.Actor, id string, from models.ApplicationStatus, apply func(*models.Application, time.Time)) (*models.Application, error) {
	var app *models.Application
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		app, err = s.applications.LockByID(ctx, tx, id)
		if err != nil {
			return notFound(err, "application not found", "failed to load application")
		}
		if app.Status != from {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application is %s, expected %s", app.Status, from))
		}
		apply(app, s.now().UTC())
		if err := s.applications.UpdateState(ctx, tx, app); err != nil {
			return appErrors.Internal(err, "failed to update application")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(actor, models.AuditActionApplicationChange, "application", app.ID, map[string]interface{}{"status": app.Status})
	return app, nil
}

// EnrollApplication converts an accepted application into an enrolled student
// with an open account.
func (s *FunnelService) EnrollApplication(ctx context.Context, actor models.Actor, id string) (*dto.ApplicationEnrollment, error) {
	var result dto.ApplicationEnrollment
	err := runInTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		app, err := s.applications.LockByID(ctx, tx, id)
		if err != nil {
			return notFound(err, "application not found", "failed to load application")
		}
		if app.Status != models.ApplicationStatusAccepted {
			return appErrors.Clone(appErrors.ErrInvalidState, "only accepted applications can be enrolled")
		}
		exists, err := s.students.ExistsByEmail(ctx, app.Email, "")
		if err != nil {
			return appErrors.Internal(err, "failed to validate email")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
		}
		number, err := GenerateStudentNumber(ctx, s.students, s.now())
		if err != nil {
			return err
		}

		student := models.Student{
			StudentNumber:    number,
			FirstName:        app.FirstName,
			LastName:         app.LastName,
			Email:            app.Email,
			Phone:            app.Phone,
			ProgramID:        app.ProgramID,
			CampusID:         app.CampusID,
			StartDate:        app.DesiredStartDate,
			EnrollmentStatus: models.EnrollmentStatusEnrolled,
			SAPStatus:        models.SAPStatusSatisfactory,
		}
		if err := s.students.Create(ctx, tx, &student); err != nil {
			if appErrors.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "student already exists")
			}
			return appErrors.Internal(err, "failed to create student")
		}
		account, err := s.accounts.OpenAccount(ctx, tx, student.ID)
		if err != nil {
			return err
		}

		app.Status = models.ApplicationStatusEnrolled
		app.StudentID = &student.ID
		if err := s.applications.UpdateState(ctx, tx, app); err != nil {
			return appErrors.Internal(err, "failed to update application")
		}
		result = dto.ApplicationEnrollment{Application: *app, Student: student, Account: *account}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(actor, models.AuditActionApplicationChange, "application", id, map[string]interface{}{
		"status":     result.Application.Status,
		"student_id": result.Student.ID,
	})
	s.audit.Record(actor, models.AuditActionStudentCreate, "student", result.Student.ID, result.Student)
	return &result, nil
}
