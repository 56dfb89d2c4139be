package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StateFunc reports the session loop state at the time of a request.
type StateFunc func() string

// StatusRequests logs and counts status endpoint hits, tagging each one with
// the client role and the loop state it observed. Scrapes of /metrics are
// counted but logged at trace level.
func StatusRequests(logger zerolog.Logger, role string, state StateFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		RecordHTTPRequest(role, c.Request.Method, path, status, elapsed)

		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case path == "/metrics":
			event = logger.Trace()
		}
		if state != nil {
			event = event.Str("state", state())
		}
		event.
			Str("role", role).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("status.request")
	}
}
