package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

// MilestoneThresholds are the cumulative hour marks that earn a milestone.
var MilestoneThresholds = []float64{100, 250, 500, 750, 1000}

// MilestoneType names the milestone for a threshold, e.g. hours_250.
func MilestoneType(threshold float64) string {
	return fmt.Sprintf("hours_%d", int(threshold))
}

type milestoneRepository interface {
	InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, milestone *models.StudentMilestone) (bool, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.StudentMilestone, error)
}

// MilestoneChecker records hour milestones. Each milestone is written at most
// once per student; repeated checks are no-ops.
type MilestoneChecker struct {
	repo   milestoneRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewMilestoneChecker constructs a MilestoneChecker.
func NewMilestoneChecker(repo milestoneRepository, logger *zap.Logger) *MilestoneChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MilestoneChecker{repo: repo, logger: logger, now: time.Now}
}

// Check records every threshold at or below total and returns the milestones
// that were new. Runs on exec so it shares the caller's transaction; callers
// publish metrics for the returned milestones once that transaction commits.
func (c *MilestoneChecker) Check(ctx context.Context, exec sqlx.ExtContext, studentID string, total float64) ([]models.StudentMilestone, error) {
	var recorded []models.StudentMilestone
	for _, threshold := range MilestoneThresholds {
		if total < threshold {
			break
		}
		milestone := models.StudentMilestone{
			StudentID:          studentID,
			MilestoneType:      MilestoneType(threshold),
			HoursAtAchievement: total,
			AchievedAt:         c.now().UTC(),
		}
		inserted, err := c.repo.InsertIfAbsent(ctx, exec, &milestone)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to record milestone")
		}
		if !inserted {
			continue
		}
		recorded = append(recorded, milestone)
		c.logger.Debug("milestone recorded",
			zap.String("student_id", studentID),
			zap.String("milestone", milestone.MilestoneType),
			zap.Float64("hours", total),
		)
	}
	return recorded, nil
}

// ListForStudent returns milestones achieved by the student.
func (c *MilestoneChecker) ListForStudent(ctx context.Context, studentID string) ([]models.StudentMilestone, error) {
	milestones, err := c.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list milestones")
	}
	return milestones, nil
}
