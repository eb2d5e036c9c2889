package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/barber-academy-api/internal/models"
)

// MilestoneRepository stores hour milestones.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository constructs a MilestoneRepository.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// InsertIfAbsent records a milestone unless the student already has it.
// It reports whether a row was written.
func (r *MilestoneRepository) InsertIfAbsent(ctx context.Context, exec sqlx.ExtContext, milestone *models.StudentMilestone) (bool, error) {
	if milestone.ID == "" {
		milestone.ID = uuid.NewString()
	}
	const query = `INSERT INTO student_milestones (id, student_id, milestone_type, hours_at_achievement, achieved_at)
        VALUES (:id, :student_id, :milestone_type, :hours_at_achievement, :achieved_at)
        ON CONFLICT (student_id, milestone_type) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, milestone)
	if err != nil {
		return false, fmt.Errorf("insert milestone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("milestone rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns a student's milestones oldest first.
func (r *MilestoneRepository) ListByStudent(ctx context.Context, studentID string) ([]models.StudentMilestone, error) {
	const query = `SELECT id, student_id, milestone_type, hours_at_achievement, achieved_at FROM student_milestones
        WHERE student_id = $1 ORDER BY hours_at_achievement`
	var milestones []models.StudentMilestone
	if err := r.db.SelectContext(ctx, &milestones, query, studentID); err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return milestones, nil
}
