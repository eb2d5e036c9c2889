package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

func TestMilestoneRepositoryInsertIfAbsent(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewMilestoneRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO student_milestones .* ON CONFLICT \(student_id, milestone_type\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)INSERT INTO student_milestones .* ON CONFLICT \(student_id, milestone_type\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first := &models.StudentMilestone{StudentID: "s-1", MilestoneType: "hours_100", HoursAtAchievement: 101, AchievedAt: time.Now()}
	inserted, err := repo.InsertIfAbsent(context.Background(), nil, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := &models.StudentMilestone{StudentID: "s-1", MilestoneType: "hours_100", HoursAtAchievement: 101, AchievedAt: time.Now()}
	inserted, err = repo.InsertIfAbsent(context.Background(), nil, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
