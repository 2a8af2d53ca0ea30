package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseform/servicecore/internal/api/middleware"
	"github.com/pulseform/servicecore/internal/auth"
	"github.com/pulseform/servicecore/internal/infrastructure/monitoring"
	"github.com/pulseform/servicecore/internal/infrastructure/resilience"
)

// Handlers holds the operational HTTP endpoints.
type Handlers struct {
	breakers   *resilience.Registry
	validator  *auth.Validator
	metrics    *monitoring.Metrics
	staleGrace time.Duration
	startTime  time.Time
}

// NewHandlers creates the operational handler set.
func NewHandlers(breakers *resilience.Registry, validator *auth.Validator, metrics *monitoring.Metrics, staleGrace time.Duration) *Handlers {
	return &Handlers{
		breakers:   breakers,
		validator:  validator,
		metrics:    metrics,
		staleGrace: staleGrace,
		startTime:  time.Now(),
	}
}

// Health reports service liveness and a per-dependency breaker summary.
// The service stays healthy while breakers are open; an open breaker means
// a dependency is down, not this process.
func (h *Handlers) Health(c *gin.Context) {
	snapshot := h.breakers.Snapshot()

	dependencies := make(gin.H, len(snapshot))
	for name, stats := range snapshot {
		dependencies[name] = stats.State
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"dependencies":   dependencies,
	})
}

// ListBreakers returns the status of every registered circuit breaker.
func (h *Handlers) ListBreakers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"breakers": h.breakers.Snapshot(),
	})
}

// GetBreaker returns the status of a single circuit breaker.
func (h *Handlers) GetBreaker(c *gin.Context) {
	dependency := c.Param("dependency")

	stats, ok := h.breakers.Status(dependency)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "unknown dependency: " + dependency,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"breaker": stats,
	})
}

// ResetBreaker forces a circuit breaker back to closed.
func (h *Handlers) ResetBreaker(c *gin.Context) {
	dependency := c.Param("dependency")

	if !h.breakers.Reset(dependency) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "unknown dependency: " + dependency,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"dependency": dependency,
		"message":    "breaker reset to closed",
	})
}

// CacheStats reports credential cache occupancy and in-flight validations.
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"entries":             h.validator.Cache().Len(),
		"pending_validations": h.validator.PendingValidations(),
	})
}

// SweepCache removes expired credential cache entries on demand.
func (h *Handlers) SweepCache(c *gin.Context) {
	removed := h.validator.Cache().Sweep(h.staleGrace)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"removed": removed,
	})
}

// Stats returns a JSON snapshot of the service counters. The Prometheus
// scrape endpoint remains the source of truth; this is for quick
// inspection without a scraper.
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.metrics.GetSnapshot(),
	})
}

// Me returns the identity attached to the authenticated request.
func (h *Handlers) Me(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "no identity on request",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    identity,
	})
}
