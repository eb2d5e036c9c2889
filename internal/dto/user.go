package dto

import "github.com/noah-isme/barber-academy-api/internal/models"

// CreateUserRequest captures POST /users payload. Student logins must name their student record.
type CreateUserRequest struct {
	Email     string          `json:"email" validate:"required,email"`
	FullName  string          `json:"full_name" validate:"required,max=200"`
	Role      models.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF INSTRUCTOR STUDENT"`
	StudentID *string         `json:"student_id"`
	Password  string          `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserRequest captures PUT /users/:id payload. Empty password keeps the current one.
type UpdateUserRequest struct {
	FullName string          `json:"full_name" validate:"required,max=200"`
	Role     models.UserRole `json:"role" validate:"required,oneof=ADMIN STAFF INSTRUCTOR STUDENT"`
	Active   *bool           `json:"active"`
	Password string          `json:"password" validate:"omitempty,min=8,max=72"`
}
