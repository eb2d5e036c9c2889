package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/jobs"
)

type memoryAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *memoryAuditRepo) Create(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
	return nil
}

func TestAuditSinkPersistsOnDrain(t *testing.T) {
	repo := &memoryAuditRepo{}
	sink := NewAuditSink(repo, jobs.Config{Workers: 2, Backoff: time.Millisecond}, nil, nil)
	sink.Start(context.Background())

	actor := models.Actor{UserID: "user-1", Role: models.RoleStaff, IP: "10.0.0.7", UserAgent: "curl"}
	sink.Record(actor, models.AuditActionClockOut, "attendance_record", "rec-1", map[string]interface{}{"actual_hours": 7.5})
	sink.Record(models.Actor{}, models.AuditActionImport, "students", "", nil)
	sink.Shutdown(context.Background())

	require.Len(t, repo.entries, 2)
	byAction := map[string]*models.AuditLog{}
	for _, e := range repo.entries {
		byAction[e.Action] = e
	}

	clockOut := byAction[models.AuditActionClockOut]
	require.NotNil(t, clockOut)
	require.NotNil(t, clockOut.UserID)
	assert.Equal(t, "user-1", *clockOut.UserID)
	require.NotNil(t, clockOut.ResourceID)
	assert.Equal(t, "rec-1", *clockOut.ResourceID)
	assert.Equal(t, "10.0.0.7", clockOut.IPAddress)
	var values map[string]float64
	require.NoError(t, json.Unmarshal(clockOut.NewValues, &values))
	assert.Equal(t, 7.5, values["actual_hours"])

	imported := byAction[models.AuditActionImport]
	require.NotNil(t, imported)
	assert.Nil(t, imported.UserID)
	assert.Nil(t, imported.ResourceID)
}

func TestAuditSinkDropsBeforeStart(t *testing.T) {
	repo := &memoryAuditRepo{}
	sink := NewAuditSink(repo, jobs.Config{}, nil, nil)

	sink.Record(staffActor, models.AuditActionClockIn, "attendance_record", "rec-2", nil)
	assert.Empty(t, repo.entries)
}
