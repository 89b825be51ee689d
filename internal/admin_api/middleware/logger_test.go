package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sendbulk-reconciler/internal/platform/metrics"
	"github.com/stretchr/testify/assert"
)

func newLoggedRouter(buf *bytes.Buffer, level slog.Level) *gin.Engine {
	testLogger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level}))

	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Logger(testLogger))
	router.GET("/api/v1/batches/:batchId", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	router.POST("/api/v1/batches", func(c *gin.Context) {
		c.String(http.StatusConflict, "dup")
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return router
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("LogsRequestDetails", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer, slog.LevelInfo)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/batches/2234556?verbose=1", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set(CorrelationIDHeader, "corr-42")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		logOutput := logBuffer.String()
		assert.Contains(t, logOutput, `"level":"INFO"`)
		assert.Contains(t, logOutput, `"msg":"HTTP request"`)
		assert.Contains(t, logOutput, `"path":"/api/v1/batches/2234556?verbose=1"`)
		assert.Contains(t, logOutput, `"route":"/api/v1/batches/:batchId"`)
		assert.Contains(t, logOutput, `"status":200`)
		assert.Contains(t, logOutput, `"user_agent":"test-agent"`)
		assert.Contains(t, logOutput, `"correlation_id":"corr-42"`)
	})

	t.Run("ClientErrorsLogAtWarn", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer, slog.LevelInfo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/batches", nil))

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Contains(t, logBuffer.String(), `"level":"WARN"`)
		assert.Contains(t, logBuffer.String(), `"status":409`)
	})

	t.Run("HealthChecksOnlyAtDebug", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer, slog.LevelInfo)

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, logBuffer.String())
	})

	t.Run("RecordsMetricsByRoute", func(t *testing.T) {
		var logBuffer bytes.Buffer
		router := newLoggedRouter(&logBuffer, slog.LevelInfo)

		counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/batches/:batchId", "200")
		before := testutil.ToFloat64(counter)
		unmatched := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
		beforeUnmatched := testutil.ToFloat64(unmatched)

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/batches/1", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/batches/2", nil))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		assert.Equal(t, before+2, testutil.ToFloat64(counter))
		assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(unmatched))
	})
}
