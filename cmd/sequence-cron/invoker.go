package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/middleware"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/middleware/requestid"
)

// invoker calls the process-due endpoint of the API.
type invoker struct {
	url       string
	token     string
	batchSize int
	client    *http.Client
	logger    *zap.Logger
}

func newInvoker(url, token string, batchSize int, timeout time.Duration, logger *zap.Logger) *invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &invoker{
		url:       url,
		token:     token,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type processDueEnvelope struct {
	Data  *models.ProcessDueSummary `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (i *invoker) run(ctx context.Context, runID string) (*models.ProcessDueSummary, error) {
	body, err := json.Marshal(map[string]int{"limit": i.batchSize})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.InvokerTokenHeader, i.token)
	req.Header.Set(requestid.Header, runID)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call process-due: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var envelope processDueEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if envelope.Error != nil {
			return nil, fmt.Errorf("process-due returned %d: %s %s", resp.StatusCode, envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("process-due returned %d", resp.StatusCode)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("process-due returned no summary")
	}
	return envelope.Data, nil
}

// tick runs one invocation and logs its outcome under a fresh run id.
func (i *invoker) tick(ctx context.Context) {
	runID := "sweep-" + uuid.NewString()
	summary, err := i.run(ctx, runID)
	if err != nil {
		i.logger.Error("sequence sweep failed", zap.String("request_id", runID), zap.Error(err))
		return
	}
	i.logger.Info("sequence sweep finished",
		zap.String("request_id", runID),
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
}
