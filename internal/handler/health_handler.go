package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe is a named readiness check. Optional probes degrade the report without
// failing it.
type Probe struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

// HealthHandler serves liveness, readiness and the Prometheus scrape endpoint.
type HealthHandler struct {
	scrape  http.Handler
	probes  []Probe
	timeout time.Duration
}

// NewHealthHandler constructs the handler. scrape may be nil when metrics are off.
func NewHealthHandler(scrape http.Handler, timeout time.Duration, probes ...Probe) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{scrape: scrape, probes: probes, timeout: timeout}
}

// Prometheus serves the scrape endpoint.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	if h.scrape == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.scrape.ServeHTTP(c.Writer, c.Request)
}

// Health reports process liveness only.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready runs every probe concurrently under a shared deadline.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.probes))
	failed := make([]bool, len(h.probes))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i, probe := range h.probes {
		wg.Add(1)
		go func(i int, probe Probe) {
			defer wg.Done()
			outcome := "ok"
			if err := probe.Check(ctx); err != nil {
				outcome = err.Error()
				failed[i] = true
			}
			mu.Lock()
			results[probe.Name] = outcome
			mu.Unlock()
		}(i, probe)
	}
	wg.Wait()

	status, code := "ready", http.StatusOK
	for i, probe := range h.probes {
		if !failed[i] {
			continue
		}
		if !probe.Optional {
			status, code = "unavailable", http.StatusServiceUnavailable
			break
		}
		status = "degraded"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}
