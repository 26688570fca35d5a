package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/previewlabs/previewctl/internal/types"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.Retry.MaxRetries = 2
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.CircuitBreakerEnabled = false
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err, "empty BaseURL must be rejected")
}

func TestStartPreview(t *testing.T) {
	var gotBody StartRequest
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/preview/start", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(StartResponse{SessionID: "sess-1", Status: "pending", ServerVersion: "v1.0.0"})
	}))

	resp, err := c.StartPreview(context.Background(), StartRequest{
		ProjectName:     "demo",
		ProjectFiles:    map[string]string{"index.html": "<html></html>"},
		TTLMinutes:      45,
		GenerateBackend: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.True(t, resp.VersionSupported())
	assert.Equal(t, "demo", gotBody.ProjectName)
	assert.Equal(t, 45, gotBody.TTLMinutes)
	assert.True(t, gotBody.GenerateBackend)
}

func TestVersionSupported(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{name: "newer", version: "v1.2.0", want: true},
		{name: "exact minimum", version: "v0.4.0", want: true},
		{name: "older", version: "v0.3.9", want: false},
		{name: "missing v prefix", version: "1.0.0", want: true},
		{name: "unreported", version: "", want: true},
		{name: "garbage", version: "latest", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := StartResponse{ServerVersion: tt.version}
			assert.Equal(t, tt.want, r.VersionSupported())
		})
	}
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown session"})
	}))

	_, err := c.Status(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.False(t, IsTransport(err))
	assert.Contains(t, err.Error(), "unknown session")
}

func TestGetRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Slam the connection shut to simulate a transport error
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		json.NewEncoder(w).Encode(types.HealthMetrics{SessionID: "sess-1", State: types.HealthHealthy})
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.Retry.MaxRetries = 3
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.CircuitBreakerEnabled = false
	c, err := NewClient(cfg)
	require.NoError(t, err)

	m, err := c.Health(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, m.State)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetDoesNotRetryStatusErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Health(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "server-reported statuses are definitive answers")
}

func TestLogsQueryParameters(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/observability/logs/sess-1", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("tail"))
		assert.Equal(t, "error", r.URL.Query().Get("level"))
		json.NewEncoder(w).Encode([]types.LogEntry{{Message: "boom", Level: types.LevelError}})
	}))

	entries, err := c.Logs(context.Background(), "sess-1", 50, types.LevelError)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Message)
}

func TestExtendTTL(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cleanup/extend/sess-1", r.URL.Path)
		assert.Equal(t, "15", r.URL.Query().Get("minutes"))
		json.NewEncoder(w).Encode(ExtendResponse{Success: true, TTLRemaining: 42})
	}))

	resp, err := c.ExtendTTL(context.Background(), "sess-1", 15)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 42, resp.TTLRemaining)
}

func TestReleaseContainerBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/cleanup/container", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sess-1", body["session_id"])
		assert.Equal(t, "preview_ended", body["reason"])
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, c.ReleaseContainer(context.Background(), "sess-1", "preview_ended"))
}

func TestDeleteSession(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/observability/session/sess-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	assert.NoError(t, c.DeleteSession(context.Background(), "sess-1"))
}

func TestStreamLogsDecodesJSONLines(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/observability/logs/sess-1/stream", r.URL.Path)
		enc := json.NewEncoder(w)
		enc.Encode(types.LogEntry{Timestamp: base, Level: types.LevelInfo, Message: "one", SessionID: "sess-1"})
		enc.Encode(types.LogEntry{Timestamp: base.Add(time.Second), Level: types.LevelError, Message: "two", SessionID: "sess-1"})
	}))

	stream, err := c.StreamLogs(context.Background(), "sess-1")
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "one", first.Message)
	assert.Equal(t, base, first.Timestamp)

	second, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, "two", second.Message)
}

func TestSnapshotCombined(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.Snapshot{
			SessionID: "sess-1",
			Health:    &types.HealthMetrics{State: types.HealthDegraded},
			Logs:      []types.LogEntry{{Message: "warn line"}},
			Failures:  []types.StartupFailure{{Category: types.CategoryRuntime}},
			Timeline:  []types.TimelineEvent{{Event: "deployed"}},
		})
	}))

	snap, err := c.Snapshot(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.HealthDegraded, snap.Health.State)
	assert.Len(t, snap.Logs, 1)
	assert.Len(t, snap.Failures, 1)
	assert.Len(t, snap.Timeline, 1)
}
