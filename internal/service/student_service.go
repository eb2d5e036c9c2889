package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
}

type lookupReader interface {
	FindProgram(ctx context.Context, id string) (*models.Program, error)
	FindCampus(ctx context.Context, id string) (*models.Campus, error)
}

type milestoneLister interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.StudentMilestone, error)
}

// StudentService handles student use-cases.
type StudentService struct {
	repo       studentRepository
	lookups    lookupReader
	milestones milestoneLister
	audit      AuditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, lookups lookupReader, milestones milestoneLister, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &StudentService{
		repo:       repo,
		lookups:    lookups,
		milestones: milestones,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid enrollment status filter")
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	return student, nil
}

// Create registers a new student. A student number is generated when none is supplied.
func (s *StudentService) Create(ctx context.Context, actor models.Actor, req dto.CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.checkPlacement(ctx, req.ProgramID, req.CampusID); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, email, ""); err != nil {
		return nil, err
	}

	number := strings.TrimSpace(req.StudentNumber)
	if number == "" {
		generated, err := GenerateStudentNumber(ctx, s.repo, s.now())
		if err != nil {
			return nil, err
		}
		number = generated
	} else {
		exists, err := s.repo.ExistsByNumber(ctx, number, "")
		if err != nil {
			return nil, appErrors.Internal(err, "failed to validate student number")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student number already used")
		}
	}

	student := &models.Student{
		StudentNumber:    number,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            email,
		Phone:            req.Phone,
		ProgramID:        req.ProgramID,
		CampusID:         req.CampusID,
		StartDate:        req.StartDate,
		EnrollmentStatus: models.EnrollmentStatusEnrolled,
		SAPStatus:        models.SAPStatusSatisfactory,
	}
	if err := s.repo.Create(ctx, nil, student); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already exists")
		}
		return nil, appErrors.Internal(err, "failed to create student")
	}

	s.audit.Record(actor, models.AuditActionStudentCreate, "student", student.ID, student)
	return s.Get(ctx, student.ID)
}

// Update modifies an existing student's profile. Hour totals and statuses are not editable here.
func (s *StudentService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.checkPlacement(ctx, req.ProgramID, req.CampusID); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, email, id); err != nil {
		return nil, err
	}

	student := detail.Student
	student.FirstName = strings.TrimSpace(req.FirstName)
	student.LastName = strings.TrimSpace(req.LastName)
	student.Email = email
	student.Phone = req.Phone
	student.ProgramID = req.ProgramID
	student.CampusID = req.CampusID
	student.StartDate = req.StartDate
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Internal(err, "failed to update student")
	}

	s.audit.Record(actor, models.AuditActionStudentUpdate, "student", id, student)
	return s.Get(ctx, id)
}

// UpdateStatus moves a student through the enrollment lifecycle.
func (s *StudentService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req dto.StudentStatusRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid status payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown enrollment status")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "student not found", "failed to load student")
	}
	previous := detail.EnrollmentStatus
	if previous == req.Status {
		return detail, nil
	}
	if !previous.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot move student from %s to %s", previous, req.Status))
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Internal(err, "failed to update student status")
	}
	detail.EnrollmentStatus = req.Status

	s.audit.Record(actor, models.AuditActionStudentStatus, "student", id, map[string]interface{}{
		"from": previous,
		"to":   req.Status,
	})
	return detail, nil
}

// Milestones lists the hour milestones a student has reached.
func (s *StudentService) Milestones(ctx context.Context, id string) ([]models.StudentMilestone, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	milestones, err := s.milestones.ListForStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list milestones")
	}
	return milestones, nil
}

func (s *StudentService) checkPlacement(ctx context.Context, programID, campusID string) error {
	if _, err := s.lookups.FindProgram(ctx, programID); err != nil {
		return notFound(err, "program not found", "failed to load program")
	}
	if _, err := s.lookups.FindCampus(ctx, campusID); err != nil {
		return notFound(err, "campus not found", "failed to load campus")
	}
	return nil
}

func (s *StudentService) checkEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to validate email")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

type studentNumberChecker interface {
	ExistsByNumber(ctx context.Context, number, excludeID string) (bool, error)
}

// GenerateStudentNumber returns an unused number of the form BA<year>-<6 hex>.
func GenerateStudentNumber(ctx context.Context, repo studentNumberChecker, now time.Time) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
		number := fmt.Sprintf("BA%d-%s", now.Year(), suffix)
		exists, err := repo.ExistsByNumber(ctx, number, "")
		if err != nil {
			return "", appErrors.Internal(err, "failed to validate student number")
		}
		if !exists {
			return number, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrConflict, "could not allocate a student number")
}
