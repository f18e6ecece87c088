package telemetry_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/config"
	"github.com/agentmesh/engine/telemetry"
)

func TestNewLoggerBuildsFromConfig(t *testing.T) {
	logger := telemetry.NewLogger(config.LogConfig{Level: "debug", Format: "console"})
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestNewLoggerFallsBackOnUnknownFormat(t *testing.T) {
	logger := telemetry.NewLogger(config.LogConfig{Level: "not-a-level", Format: "not-a-format"})
	require.NotNil(t, logger)
}

func TestCollectorServesExposition(t *testing.T) {
	c := telemetry.NewCollector()
	c.TaskTransitions.WithLabelValues("agent", "completed").Inc()
	c.CacheHits.WithLabelValues("model").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "agentmesh_task_transitions_total")
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	tp, err := telemetry.InitTracing(config.TelemetryConfig{Enabled: false}, telemetry.NewLogger(config.LogConfig{}))
	require.NoError(t, err)
	require.NoError(t, tp.Shutdown(context.Background()))
}
