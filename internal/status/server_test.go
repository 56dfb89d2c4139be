package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/minechat/internal/protocol/session"
	"github.com/danmuck/minechat/internal/reconnect"
	"github.com/danmuck/minechat/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedReporter struct {
	snap reconnect.Snapshot
}

func (f fixedReporter) Snapshot() reconnect.Snapshot { return f.snap }

func newTestServer(t *testing.T, state session.State) *Server {
	t.Helper()
	logger := testlog.Start(t)
	srv, err := New(Config{Role: "listener", Logger: logger}, fixedReporter{snap: reconnect.Snapshot{
		Role:          "listener",
		State:         state,
		Endpoint:      "minechat.dvmn.org:5000",
		SessionID:     "abc",
		LinesReceived: 7,
	}})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, session.StateConnecting)
	rec := get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "listener", body["role"])
}

func TestReadyFollowsLoopState(t *testing.T) {
	rec := get(t, newTestServer(t, session.StateStreaming).Handler(), "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, newTestServer(t, session.StateConnecting).Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"connecting"`)
}

func TestSessionReturnsSnapshot(t *testing.T) {
	rec := get(t, newTestServer(t, session.StateStreaming).Handler(), "/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap reconnect.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, session.StateStreaming, snap.State)
	assert.Equal(t, "abc", snap.SessionID)
	assert.EqualValues(t, 7, snap.LinesReceived)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, session.StateStreaming)
	_ = get(t, srv.Handler(), "/health")
	rec := get(t, srv.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "minechat_")
}

func TestNewRequiresReporter(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.ErrorIs(t, err, ErrReporterRequired)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := newTestServer(t, session.StateStreaming)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serveListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestNormalizeOriginsDefaultsToLocalhost(t *testing.T) {
	assert.Equal(t, []string{"http://localhost:3000"}, normalizeOrigins([]string{" ", ""}))
	assert.Equal(t, []string{"https://a.example"}, normalizeOrigins([]string{" https://a.example "}))
}
