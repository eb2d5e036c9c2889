package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	listErr error
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		repo.users[u.ID] = &u
	}
	return repo
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("u-%d", len(m.users)+1)
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Active = false
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := newMockUserRepo(
		models.User{ID: "1", Email: "a@example.com", Role: models.RoleStaff},
		models.User{ID: "2", Email: "b@example.com", Role: models.RoleInstructor},
	)
	svc := NewUserService(repo, newFakeStudentRepo(), nil, nil, nil)
	role := models.RoleStaff
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Role: &role, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreateStaff(t *testing.T) {
	repo := newMockUserRepo()
	audit := &recordingAudit{}
	svc := NewUserService(repo, newFakeStudentRepo(), audit, nil, nil)

	user, err := svc.Create(context.Background(), staffActor, dto.CreateUserRequest{
		Email: " Front.Desk@EXAMPLE.com ", FullName: "Front Desk", Password: "clippers1", Role: models.RoleStaff,
	})
	require.NoError(t, err)
	assert.Equal(t, "front.desk@example.com", user.Email)
	assert.True(t, user.Active)
	assert.Nil(t, user.StudentID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("clippers1")))
	assert.Equal(t, []string{models.AuditActionUserCreate}, audit.actions())

	_, err = svc.Create(context.Background(), staffActor, dto.CreateUserRequest{
		Email: "front.desk@example.com", FullName: "Again", Password: "clippers1", Role: models.RoleStaff,
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestUserServiceCreateStudentLogin(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), newFakeStudentRepo(activeStudent("stu-1")), nil, nil, nil)

	_, err := svc.Create(context.Background(), staffActor, dto.CreateUserRequest{
		Email: "ava@example.com", FullName: "Ava", Password: "fadeskills", Role: models.RoleStudent,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(context.Background(), staffActor, dto.CreateUserRequest{
		Email: "ava@example.com", FullName: "Ava", Password: "fadeskills", Role: models.RoleStudent, StudentID: strPtr("missing"),
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	user, err := svc.Create(context.Background(), staffActor, dto.CreateUserRequest{
		Email: "ava@example.com", FullName: "Ava", Password: "fadeskills", Role: models.RoleStudent, StudentID: strPtr("stu-1"),
	})
	require.NoError(t, err)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, "stu-1", *user.StudentID)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleInstructor, Active: true, PasswordHash: "old"})
	svc := NewUserService(repo, newFakeStudentRepo(), nil, nil, nil)
	active := false

	user, err := svc.Update(context.Background(), staffActor, "1", dto.UpdateUserRequest{FullName: "New", Role: models.RoleStaff, Active: &active})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.False(t, user.Active)
	assert.Equal(t, "old", repo.users["1"].PasswordHash)

	_, err = svc.Update(context.Background(), staffActor, "1", dto.UpdateUserRequest{FullName: "New", Role: models.RoleStudent})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), staffActor, "missing", dto.UpdateUserRequest{FullName: "X", Role: models.RoleStaff})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceRejectsSelfLockout(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: staffActor.UserID, Email: "me@example.com", FullName: "Me", Role: models.RoleStaff, Active: true})
	svc := NewUserService(repo, newFakeStudentRepo(), nil, nil, nil)

	_, err := svc.Update(context.Background(), staffActor, staffActor.UserID, dto.UpdateUserRequest{FullName: "Me", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	assert.ErrorIs(t, svc.Deactivate(context.Background(), staffActor, staffActor.UserID), appErrors.ErrForbidden)
}

func TestUserServiceDeactivate(t *testing.T) {
	repo := newMockUserRepo(models.User{ID: "1", Email: "a@example.com", FullName: "Old", Role: models.RoleInstructor, Active: true})
	audit := &recordingAudit{}
	svc := NewUserService(repo, newFakeStudentRepo(), audit, nil, nil)

	require.NoError(t, svc.Deactivate(context.Background(), staffActor, "1"))
	assert.False(t, repo.users["1"].Active)
	assert.Equal(t, []string{models.AuditActionUserDeactivate}, audit.actions())
	assert.ErrorIs(t, svc.Deactivate(context.Background(), staffActor, "missing"), appErrors.ErrNotFound)
}
