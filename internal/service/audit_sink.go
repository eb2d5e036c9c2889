package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/jobs"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder accepts audit entries without blocking the caller.
type AuditRecorder interface {
	Record(actor models.Actor, action, resource, resourceID string, values interface{})
}

type noopAudit struct{}

func (noopAudit) Record(models.Actor, string, string, string, interface{}) {}

// AuditSink queues audit entries and persists them from background workers.
// Write failures and drops are logged and counted but never surface to the
// operation that produced the entry.
type AuditSink struct {
	repo    auditWriter
	queue   *jobs.Queue[*models.AuditLog]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditSink builds a sink backed by an in-memory job queue.
func NewAuditSink(repo auditWriter, cfg jobs.Config, metrics *MetricsService, logger *zap.Logger) *AuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := &AuditSink{repo: repo, metrics: metrics, logger: logger}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	sink.queue = jobs.New("audit", sink.persist, cfg)
	return sink
}

// Start launches the queue workers.
func (s *AuditSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Shutdown flushes pending entries until ctx expires.
func (s *AuditSink) Shutdown(ctx context.Context) {
	s.queue.Drain(ctx)
}

// Record enqueues an entry. It never blocks.
func (s *AuditSink) Record(actor models.Actor, action, resource, resourceID string, values interface{}) {
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		UserID:    actor.UserIDPtr(),
		Action:    action,
		Resource:  resource,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if values != nil {
		payload, err := json.Marshal(values)
		if err != nil {
			s.logger.Warn("failed to encode audit values", zap.String("action", action), zap.Error(err))
		} else {
			entry.NewValues = payload
		}
	}

	if err := s.queue.Submit(entry); err != nil {
		s.metrics.AuditDropped()
		s.logger.Warn("audit entry dropped",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Int64("dropped_total", s.queue.Dropped()),
			zap.Error(err),
		)
	}
}

func (s *AuditSink) persist(ctx context.Context, entry *models.AuditLog) error {
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("persist audit entry %s: %w", entry.Action, err)
	}
	return nil
}
