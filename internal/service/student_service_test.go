package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

func newStudentFixture(students ...models.StudentDetail) (*StudentService, *fakeStudentRepo, *fakeMilestoneRepo, *recordingAudit) {
	repo := newFakeStudentRepo(students...)
	milestones := newFakeMilestoneRepo()
	audit := &recordingAudit{}
	svc := NewStudentService(repo, newFakeProgramRepo(), NewMilestoneChecker(milestones, nil), audit, nil, nil)
	return svc, repo, milestones, audit
}

func TestCreateStudentGeneratesNumberAndNormalisesEmail(t *testing.T) {
	svc, repo, _, audit := newStudentFixture()

	student, err := svc.Create(context.Background(), staffActor, dto.CreateStudentRequest{
		FirstName: "Dana",
		LastName:  "Cruz",
		Email:     " Dana.Cruz@Example.com ",
		ProgramID: "prog-barber",
		CampusID:  "campus-main",
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^BA\d{4}-[0-9A-F]{6}$`), student.StudentNumber)
	assert.Equal(t, "dana.cruz@example.com", student.Email)
	assert.Equal(t, models.EnrollmentStatusEnrolled, student.EnrollmentStatus)
	assert.Len(t, repo.students, 1)
	assert.Equal(t, []string{models.AuditActionStudentCreate}, audit.actions())
}

func TestCreateStudentRejectsDuplicatesAndUnknownProgram(t *testing.T) {
	svc, _, _, _ := newStudentFixture(activeStudent("stu-1"))
	ctx := context.Background()

	_, err := svc.Create(ctx, staffActor, dto.CreateStudentRequest{
		FirstName: "Dup", LastName: "Email", Email: "STU-1@example.com", ProgramID: "prog-barber", CampusID: "campus-main",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(ctx, staffActor, dto.CreateStudentRequest{
		StudentNumber: "BA-stu-1", FirstName: "Dup", LastName: "Number", Email: "new@example.com", ProgramID: "prog-barber", CampusID: "campus-main",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(ctx, staffActor, dto.CreateStudentRequest{
		FirstName: "No", LastName: "Program", Email: "np@example.com", ProgramID: "prog-missing", CampusID: "campus-main",
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Create(ctx, staffActor, dto.CreateStudentRequest{FirstName: "Bad", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUpdateStudentKeepsHourTotals(t *testing.T) {
	existing := activeStudent("stu-1")
	existing.TotalHoursCompleted = 120
	svc, repo, _, _ := newStudentFixture(existing)

	updated, err := svc.Update(context.Background(), staffActor, "stu-1", dto.UpdateStudentRequest{
		FirstName: "Marcus", LastName: "Leigh", Email: "marcus@example.com", ProgramID: "prog-color", CampusID: "campus-main",
	})
	require.NoError(t, err)
	assert.Equal(t, "Leigh", updated.LastName)
	assert.Equal(t, 120.0, repo.students["stu-1"].TotalHoursCompleted)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	svc, repo, _, audit := newStudentFixture(activeStudent("stu-1"))
	ctx := context.Background()

	detail, err := svc.UpdateStatus(ctx, staffActor, "stu-1", dto.StudentStatusRequest{Status: models.EnrollmentStatusLOA})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusLOA, detail.EnrollmentStatus)

	_, err = svc.UpdateStatus(ctx, staffActor, "stu-1", dto.StudentStatusRequest{Status: models.EnrollmentStatusGraduated})
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	_, err = svc.UpdateStatus(ctx, staffActor, "stu-1", dto.StudentStatusRequest{Status: "expelled"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.UpdateStatus(ctx, staffActor, "stu-1", dto.StudentStatusRequest{Status: models.EnrollmentStatusWithdrawn})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, repo.students["stu-1"].EnrollmentStatus)
	assert.Equal(t, []string{models.AuditActionStudentStatus, models.AuditActionStudentStatus}, audit.actions())
}

func TestStudentMilestonesRequiresStudent(t *testing.T) {
	svc, _, milestones, _ := newStudentFixture(activeStudent("stu-1"))
	ctx := context.Background()
	_, err := milestones.InsertIfAbsent(ctx, nil, &models.StudentMilestone{StudentID: "stu-1", MilestoneType: MilestoneType(100), HoursAtAchievement: 101})
	require.NoError(t, err)

	list, err := svc.Milestones(ctx, "stu-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Milestones(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
