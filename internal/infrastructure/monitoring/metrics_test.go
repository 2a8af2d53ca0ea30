package monitoring

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

func TestSnapshotTracksRequests(t *testing.T) {
	m := newTestMetrics()

	m.RecordHTTPRequest("GET", "/api/v1/me", "200", 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/me", "503", 30*time.Millisecond)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.InDelta(t, 20.0, snap.AvgDurationMs, 0.5)
}

func TestSnapshotTracksOutbound(t *testing.T) {
	m := newTestMetrics()

	m.RecordOutbound("identity", "success", 5*time.Millisecond)
	m.RecordOutbound("identity", "transport_error", 15*time.Millisecond)
	m.RecordBreakerRejection("identity")

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.OutboundCalls)
	assert.Equal(t, int64(1), snap.OutboundFailures)
	assert.Equal(t, int64(1), snap.BreakerRejected)
}

func TestSnapshotTracksCache(t *testing.T) {
	m := newTestMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordStaleServed()

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.Equal(t, int64(1), snap.StaleServed)
}

func TestMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ping", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, int64(1), m.GetSnapshot().TotalRequests)
}
