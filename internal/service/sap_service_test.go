package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

type fakeSAPRepo struct {
	evals     []models.SAPEvaluation
	createErr error
}

func (f *fakeSAPRepo) Create(_ context.Context, _ sqlx.ExtContext, eval *models.SAPEvaluation) error {
	if f.createErr != nil {
		return f.createErr
	}
	eval.ID = "sap-" + eval.StudentID
	f.evals = append(f.evals, *eval)
	return nil
}

func (f *fakeSAPRepo) ListByStudent(_ context.Context, studentID string) ([]models.SAPEvaluation, error) {
	var out []models.SAPEvaluation
	for i := len(f.evals) - 1; i >= 0; i-- {
		if f.evals[i].StudentID == studentID {
			out = append(out, f.evals[i])
		}
	}
	return out, nil
}

func newSAPFixture(t *testing.T, completed float64) (*SAPService, *fakeSAPRepo, *fakeStudentRepo, *recordingAudit, sqlmock.Sqlmock) {
	tx, mock := newTxProviderMock(t)
	student := activeStudent("stu-1")
	student.TotalHoursCompleted = completed
	students := newFakeStudentRepo(student)
	repo := &fakeSAPRepo{}
	audit := &recordingAudit{}
	svc := NewSAPService(repo, students, tx, audit, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 17, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return svc, repo, students, audit, mock
}

func TestEvaluateStanding(t *testing.T) {
	cases := []struct {
		name     string
		previous models.SAPStatus
		pct      float64
		gpa      *float64
		want     models.SAPStatus
	}{
		{"meets both", models.SAPStatusWarning, 0.67, floatPtr(2.0), models.SAPStatusSatisfactory},
		{"no gpa on file", models.SAPStatusProbation, 0.9, nil, models.SAPStatusSatisfactory},
		{"low attendance", models.SAPStatusSatisfactory, 0.66, nil, models.SAPStatusWarning},
		{"low gpa", models.SAPStatusWarning, 0.95, floatPtr(1.9), models.SAPStatusProbation},
		{"already suspended", models.SAPStatusSuspension, 0.1, nil, models.SAPStatusSuspension},
		{"unset standing", "", 0.5, nil, models.SAPStatusWarning},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateStanding(tc.previous, tc.pct, tc.gpa))
		})
	}
}

func TestSAPEvaluateRecordsSatisfactoryProgress(t *testing.T) {
	svc, repo, students, audit, mock := newSAPFixture(t, 500)
	expectCommit(mock)

	eval, err := svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 600, GPA: floatPtr(3.1)})
	require.NoError(t, err)
	assert.Equal(t, 0.83, eval.AttendancePct)
	assert.Equal(t, 500.0, eval.CompletedHours)
	assert.Equal(t, models.SAPStatusSatisfactory, eval.PreviousStatus)
	assert.Equal(t, models.SAPStatusSatisfactory, eval.ResultStatus)
	assert.Equal(t, time.Date(2024, 6, 30, 17, 0, 0, 0, time.UTC), eval.EvaluatedAt)
	require.Len(t, repo.evals, 1)
	require.NotNil(t, repo.evals[0].EvaluatedBy)
	assert.Equal(t, staffActor.UserID, *repo.evals[0].EvaluatedBy)
	assert.Equal(t, models.SAPStatusSatisfactory, students.students["stu-1"].SAPStatus)
	assert.Equal(t, []string{models.AuditActionSAPEvaluate}, audit.actions())
}

func TestSAPEvaluateEscalatesRepeatedShortfalls(t *testing.T) {
	svc, _, students, _, mock := newSAPFixture(t, 300)

	expectCommit(mock)
	first, err := svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 600})
	require.NoError(t, err)
	assert.Equal(t, 0.5, first.AttendancePct)
	assert.Equal(t, models.SAPStatusWarning, first.ResultStatus)
	assert.Equal(t, models.SAPStatusWarning, students.students["stu-1"].SAPStatus)

	expectCommit(mock)
	second, err := svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 600})
	require.NoError(t, err)
	assert.Equal(t, models.SAPStatusWarning, second.PreviousStatus)
	assert.Equal(t, models.SAPStatusProbation, second.ResultStatus)

	history, err := svc.History(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.SAPStatusProbation, history[0].ResultStatus)
}

func TestSAPEvaluateRejectsBadInput(t *testing.T) {
	svc, repo, _, audit, _ := newSAPFixture(t, 300)

	_, err := svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 100, GPA: floatPtr(4.5)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Evaluate(context.Background(), staffActor, "missing", dto.SAPEvaluationRequest{ScheduledHours: 100})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Empty(t, repo.evals)
	assert.Empty(t, audit.actions())
}

func TestSAPEvaluateRollsBackOnFailure(t *testing.T) {
	svc, repo, students, audit, mock := newSAPFixture(t, 100)
	repo.createErr = errors.New("insert failed")
	expectRollback(mock)

	_, err := svc.Evaluate(context.Background(), staffActor, "stu-1", dto.SAPEvaluationRequest{ScheduledHours: 600})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, models.SAPStatusSatisfactory, students.students["stu-1"].SAPStatus)
	assert.Empty(t, audit.actions())
}
