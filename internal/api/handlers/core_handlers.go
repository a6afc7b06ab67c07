package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rail-service/deposit_monitor/pkg/logger"
)

const serviceVersion = "1.0.0"

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// CoreHandlers contains health and metrics handlers
type CoreHandlers struct {
	checks   map[string]CheckFunc
	gatherer prometheus.Gatherer
	logger   *logger.Logger
}

// NewCoreHandlers creates core handlers. Every check must pass for the
// service to report ready.
func NewCoreHandlers(checks map[string]CheckFunc, gatherer prometheus.Gatherer, logger *logger.Logger) *CoreHandlers {
	return &CoreHandlers{
		checks:   checks,
		gatherer: gatherer,
		logger:   logger,
	}
}

var startTime = time.Now()

// HealthCheck represents a health check result
type HealthCheck struct {
	Service   string        `json:"service"`
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    time.Duration          `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// Health performs comprehensive health checks
func (h *CoreHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	checks, healthy := h.runChecks(ctx)
	status := "healthy"
	statusCode := http.StatusOK
	if !healthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   serviceVersion,
		Uptime:    time.Since(startTime),
		Checks:    checks,
	})
}

// Ready checks if the application is ready to serve traffic
func (h *CoreHandlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, ready := h.runChecks(ctx)
	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

// Live checks if the application is alive
func (h *CoreHandlers) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime),
	})
}

// Metrics exposes the Prometheus registry
func (h *CoreHandlers) Metrics() gin.HandlerFunc {
	handler := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

func (h *CoreHandlers) runChecks(ctx context.Context) (map[string]HealthCheck, bool) {
	results := make(map[string]HealthCheck, len(h.checks))
	healthy := true

	for name, check := range h.checks {
		start := time.Now()
		result := HealthCheck{Service: name, Timestamp: start}

		err := check(ctx)
		result.Latency = time.Since(start)
		if err != nil {
			healthy = false
			result.Status = "unhealthy"
			result.Error = err.Error()
			h.logger.Warn("Health check failed", "service", name, "error", err)
		} else {
			result.Status = "healthy"
		}
		results[name] = result
	}

	return results, healthy
}
