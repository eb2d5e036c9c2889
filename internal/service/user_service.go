package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

// UserService manages login accounts for staff, instructors and students.
type UserService struct {
	repo      userRepository
	students  studentReader
	audit     AuditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, students studentReader, audit AuditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &UserService{repo: repo, students: students, audit: audit, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user not found", "failed to load user")
	}
	return user, nil
}

// Create provisions a login. Student logins are bound to an existing student record.
func (s *UserService) Create(ctx context.Context, actor models.Actor, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid create user payload")
	}
	var studentID *string
	if req.Role == models.RoleStudent {
		if req.StudentID == nil || strings.TrimSpace(*req.StudentID) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required for student logins")
		}
		student, err := s.students.FindByID(ctx, *req.StudentID)
		if err != nil {
			return nil, notFound(err, "student not found", "failed to load student")
		}
		studentID = &student.ID
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		StudentID:    studentID,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if appErrors.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit.Record(actor, models.AuditActionUserCreate, "users", user.ID, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})
	return user, nil
}

// Update modifies name, role, active flag and optionally the password.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "user not found", "failed to load user")
	}
	if req.Role == models.RoleStudent && user.StudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "account is not linked to a student")
	}
	if actor.UserID == user.ID && (req.Role != user.Role || (req.Active != nil && !*req.Active)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own role or disable yourself")
	}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != "" {
		hash, err := HashPassword(req.Password)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		user.PasswordHash = hash
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, notFound(err, "user not found", "failed to update user")
	}

	s.audit.Record(actor, models.AuditActionUserUpdate, "users", user.ID, map[string]interface{}{
		"role":             user.Role,
		"active":           user.Active,
		"password_changed": req.Password != "",
	})
	return user, nil
}

// Deactivate disables a login.
func (s *UserService) Deactivate(ctx context.Context, actor models.Actor, id string) error {
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot disable yourself")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return notFound(err, "user not found", "failed to deactivate user")
	}
	s.audit.Record(actor, models.AuditActionUserDeactivate, "users", id, nil)
	return nil
}
