package orchestrator

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

	"github.com/previewlabs/previewctl/internal/api"
	"github.com/previewlabs/previewctl/internal/cleanup"
	"github.com/previewlabs/previewctl/internal/health"
	"github.com/previewlabs/previewctl/internal/types"
)

// TestPreviewLifecycle drives the full protocol against a scripted HTTP
// server: start, staged progress to ready, healthy backend, terminal
// cleanup, and a locally rejected post-cleanup extension.
func TestPreviewLifecycle(t *testing.T) {
	stages := []types.Progress{
		{Stage: types.StagePending, OverallProgress: 0, Message: "queued"},
		{Stage: types.StageGeneratingBackend, OverallProgress: 20, Message: "generating backend"},
		{Stage: types.StageBuildingImage, OverallProgress: 45, Message: "building image"},
		{Stage: types.StageDeployingContainer, OverallProgress: 65, Message: "deploying container"},
		{Stage: types.StageWaitingForHealth, OverallProgress: 80, Message: "waiting for health"},
		{Stage: types.StageReady, OverallProgress: 100, Message: "ready", BackendURL: "http://10.0.0.5:8080"},
	}

	var statusCalls, releaseCalls, extendCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/preview/start", func(w http.ResponseWriter, r *http.Request) {
		var req api.StartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 45, req.TTLMinutes)
		assert.NotEmpty(t, req.CorrelationID)
		json.NewEncoder(w).Encode(api.StartResponse{SessionID: "sess-e2e", Status: "pending", ServerVersion: "v1.1.0"})
	})
	mux.HandleFunc("GET /api/preview/status/sess-e2e", func(w http.ResponseWriter, r *http.Request) {
		i := int(statusCalls.Add(1)) - 1
		if i >= len(stages) {
			i = len(stages) - 1
		}
		json.NewEncoder(w).Encode(stages[i])
	})
	mux.HandleFunc("GET /api/observability/health/sess-e2e", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.HealthMetrics{
			SessionID:     "sess-e2e",
			State:         types.HealthHealthy,
			UptimeSeconds: 12,
			HealthChecks:  types.HealthChecks{Total: 6, Failed: 0, SuccessRate: 1},
		})
	})
	mux.HandleFunc("POST /api/cleanup/container", func(w http.ResponseWriter, r *http.Request) {
		releaseCalls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "preview_ended", body["reason"])
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /api/cleanup/extend/sess-e2e", func(w http.ResponseWriter, r *http.Request) {
		extendCalls.Add(1)
		json.NewEncoder(w).Encode(api.ExtendResponse{Success: true})
	})
	mux.HandleFunc("DELETE /api/observability/session/sess-e2e", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := api.DefaultConfig(srv.URL)
	cfg.Retry.InitialBackoff = time.Millisecond
	client, err := api.NewClient(cfg)
	require.NoError(t, err)

	o := New(client)

	var progressSeq []int
	var stageSeq []types.Stage
	result := o.StartPreview(context.Background(), StartOptions{
		ProjectName:     "demo-shop",
		ProjectFiles:    map[string]string{"index.html": "<html></html>"},
		TTLMinutes:      45,
		GenerateBackend: true,
		PollInterval:    5 * time.Millisecond,
		MaxWait:         5 * time.Second,
		OnProgress: func(stage types.Stage, overall int, message string) {
			progressSeq = append(progressSeq, overall)
		},
		OnStageChange: func(stage types.Stage, message string) {
			stageSeq = append(stageSeq, stage)
		},
	})

	require.True(t, result.OK(), "mock fallback: %s", result.MockReason)
	assert.Equal(t, "sess-e2e", result.Session.ID)
	assert.Equal(t, "http://10.0.0.5:8080", o.BackendAddress())

	// The staged sequence arrived in order with monotonic progress
	assert.Equal(t, []types.Stage{
		types.StagePending, types.StageGeneratingBackend, types.StageBuildingImage,
		types.StageDeployingContainer, types.StageWaitingForHealth, types.StageReady,
	}, stageSeq)
	for i := 1; i < len(progressSeq); i++ {
		assert.GreaterOrEqual(t, progressSeq[i], progressSeq[i-1])
	}

	// Backend reports healthy
	poller := health.NewPoller(client, nil)
	metrics, err := poller.GetHealth(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, types.HealthHealthy, metrics.State)

	// Terminal cleanup releases exactly once; a later extension is a local no-op
	handler := cleanup.NewHandler(client, result.Session.ID)
	handler.OnReleased = o.Remove
	require.NoError(t, handler.OnPreviewEnd(context.Background()))
	require.NoError(t, handler.OnPreviewEnd(context.Background()))
	assert.Equal(t, int32(1), releaseCalls.Load())
	assert.Nil(t, o.Session(result.Session.ID))

	resp, err := handler.Extend(context.Background(), 15)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, int32(0), extendCalls.Load())
}
