package api

import (
	"context"
	"net/http"

	"github.com/agentmesh/engine/config"
	"github.com/agentmesh/engine/engine"
)

// NewRouter builds the full HTTP handler: every route from spec §6
// wired to e, wrapped in the middleware chain described by
// config.APIConfig.
func NewRouter(ctx context.Context, e *engine.Engine, cfg config.APIConfig) http.Handler {
	h := newHandlers(e)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents/{agent_id}", h.submitAgentTask)
	mux.HandleFunc("POST /research", h.submitResearch)
	mux.HandleFunc("POST /multi-agent", h.submitMultiAgent)
	mux.HandleFunc("GET /tasks/{id}", h.getTask)
	mux.HandleFunc("DELETE /tasks/{id}", h.cancelTask)
	mux.HandleFunc("GET /conversations/{id}/messages", h.conversationMessages)
	mux.HandleFunc("POST /webhook/{endpoint}", h.webhook)
	mux.HandleFunc("GET /healthz", h.healthz)

	skipAuth := []string{"/healthz"}
	return Chain(mux,
		Recovery(e.Logger),
		RequestLogger(e.Logger),
		CORS(cfg.AllowedOrigins),
		RateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		APIKeyAuth(cfg.Keys, skipAuth),
	)
}
