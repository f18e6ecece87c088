package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentmesh/engine/api"
	"github.com/agentmesh/engine/config"
	"github.com/agentmesh/engine/engine"
	"github.com/agentmesh/engine/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Redis.Addr = ""
	cfg.LLM.Provider = "mock"
	cfg.API.RateLimitRPS = 1000
	cfg.API.RateLimitBurst = 1000

	e, err := engine.New(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)

	handler := api.NewRouter(ctx, e, cfg.API)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, e
}

func TestSubmitAgentTaskFastPath(t *testing.T) {
	srv, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"requester_id": "req-1",
		"prompt":       "draft a cold email",
	})
	resp, err := http.Post(srv.URL+"/agents/"+types.AgentOutboundMail, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Contains(t, []int{http.StatusOK, http.StatusAccepted}, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["task_id"])
}

func TestGetTaskRoundTrip(t *testing.T) {
	srv, e := newTestServer(t)

	task, err := e.Orchestrator.Submit(context.Background(), "req-1", types.AgentOutboundMail,
		map[string]any{"prompt": "draft a cold email"}, "", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := e.Orchestrator.Get(context.Background(), task.ID)
		return err == nil && got.State.IsTerminal()
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(srv.URL + "/tasks/" + task.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Task
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, task.ID, got.ID)
}

func TestGetUnknownTaskReturnsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/tasks/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebhookUnknownEndpointRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/webhook/unknown", "application/json", bytes.NewReader([]byte(`{"external_id":"x-1"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationMessagesEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/conversations/conv-1/messages")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Contains(t, out, "messages")
}
