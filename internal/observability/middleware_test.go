package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRequestsLogsRoleAndState(t *testing.T) {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	state := "backoff"

	r := gin.New()
	r.Use(StatusRequests(logger, "listener", func() string { return state }))
	r.GET("/ready", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "status.request", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "listener", entry["role"])
	assert.Equal(t, "backoff", entry["state"])
	assert.Equal(t, "/ready", entry["path"])
	assert.EqualValues(t, http.StatusServiceUnavailable, entry["status"])
}

func TestStatusRequestsQuietsMetricsScrapes(t *testing.T) {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	r := gin.New()
	r.Use(StatusRequests(logger, "sender", nil))
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Empty(t, buf.String())
}
