package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/models"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
)

const (
	dashboardCacheKey     = "dash:summary"
	dashboardCachePattern = "dash:*"
)

type statusCounter interface {
	CountByStatus(ctx context.Context) ([]models.CountByStatus, error)
}

type attendanceStats interface {
	SumHoursSince(ctx context.Context, since time.Time) (float64, error)
	CountPendingCorrections(ctx context.Context) (int, error)
}

type sequenceStats interface {
	CountActive(ctx context.Context) (int, error)
}

type receivablesReader interface {
	OutstandingTotal(ctx context.Context) (float64, error)
}

// DashboardService composes the admin landing summary.
type DashboardService struct {
	leads        statusCounter
	applications statusCounter
	students     statusCounter
	attendance   attendanceStats
	sequences    sequenceStats
	ledger       receivablesReader
	cache        *CacheService
	logger       *zap.Logger
	now          func() time.Time
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Leads        statusCounter
	Applications statusCounter
	Students     statusCounter
	Attendance   attendanceStats
	Sequences    sequenceStats
	Ledger       receivablesReader
	Cache        *CacheService
	Logger       *zap.Logger
}

// NewDashboardService constructs a DashboardService. A nil cache disables caching.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		leads:        params.Leads,
		applications: params.Applications,
		students:     params.Students,
		attendance:   params.Attendance,
		sequences:    params.Sequences,
		ledger:       params.Ledger,
		cache:        params.Cache,
		logger:       logger,
		now:          time.Now,
	}
}

// Summary returns funnel, student and hour stats and reports whether it came from cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if s.cache.Load(ctx, dashboardCacheKey, &cached) {
		return &cached, true, nil
	}

	start := s.now()
	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	s.logger.Debug("dashboard summary composed", zap.Duration("took", s.now().Sub(start)))
	s.cache.Store(ctx, dashboardCacheKey, summary)
	return summary, false, nil
}

// Invalidate drops cached dashboard payloads.
func (s *DashboardService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, dashboardCachePattern)
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	now := s.now().UTC()
	summary := &models.DashboardSummary{GeneratedAt: now}
	var err error

	if summary.Leads, err = s.leads.CountByStatus(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to count leads")
	}
	if summary.Applications, err = s.applications.CountByStatus(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to count applications")
	}
	if summary.Students, err = s.students.CountByStatus(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to count students")
	}
	if summary.ActiveSequences, err = s.sequences.CountActive(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to count sequence enrollments")
	}
	hours, err := s.attendance.SumHoursSince(ctx, dateOnly(now.AddDate(0, 0, -30)))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sum attendance hours")
	}
	summary.HoursLast30Days = round2(hours)
	if summary.PendingCorrection, err = s.attendance.CountPendingCorrections(ctx); err != nil {
		return nil, appErrors.Internal(err, "failed to count pending corrections")
	}
	outstanding, err := s.ledger.OutstandingTotal(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to total receivables")
	}
	summary.OutstandingAR = round2(outstanding)
	return summary, nil
}
