package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/agentmesh/engine/engine"
	"github.com/agentmesh/engine/types"
)

// fastPathPollWindow bounds how long POST /agents/{id} and
// POST /multi-agent wait for a task to reach a terminal state before
// falling back to a 202 queued response, per spec §6's "200 on
// completion-by-fast-path, or 202 if queued" contract.
const fastPathPollWindow = 1500 * time.Millisecond
const fastPathPollInterval = 100 * time.Millisecond

type handlers struct {
	engine *engine.Engine
}

func newHandlers(e *engine.Engine) *handlers {
	return &handlers{engine: e}
}

type submitAgentRequest struct {
	RequesterID    string `json:"requester_id"`
	Prompt         string `json:"prompt"`
	Context        struct {
		ConversationID string `json:"conversation_id"`
	} `json:"context"`
	IdempotencyKey string `json:"idempotency_key"`
}

func (h *handlers) submitAgentTask(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")

	var req submitAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, types.NewError(types.ErrBadRequest, "invalid request body").WithCause(err))
		return
	}

	task, err := h.engine.Orchestrator.Submit(r.Context(), req.RequesterID, agentID,
		map[string]any{"prompt": req.Prompt}, req.IdempotencyKey, req.Context.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondFastPathOrQueued(w, r.Context(), task)
}

type submitMultiAgentRequest struct {
	RequesterID string `json:"requester_id"`
	Prompt      string `json:"prompt"`
	Context     struct {
		ConversationID string `json:"conversation_id"`
	} `json:"context"`
}

func (h *handlers) submitMultiAgent(w http.ResponseWriter, r *http.Request) {
	var req submitMultiAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, types.NewError(types.ErrBadRequest, "invalid request body").WithCause(err))
		return
	}

	task, err := h.engine.Orchestrator.SubmitMulti(r.Context(), req.RequesterID, req.Prompt, req.Context.ConversationID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.respondFastPathOrQueued(w, r.Context(), task)
}

type submitResearchRequest struct {
	RequesterID    string `json:"requester_id"`
	Query          string `json:"query"`
	MaxResults     int    `json:"max_results"`
	PreferredAgent string `json:"preferred_agent"`
}

func (h *handlers) submitResearch(w http.ResponseWriter, r *http.Request) {
	var req submitResearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, types.NewError(types.ErrBadRequest, "invalid request body").WithCause(err))
		return
	}

	task, err := h.engine.Orchestrator.Research(r.Context(), req.RequesterID, req.Query, req.MaxResults, req.PreferredAgent)
	if err != nil {
		writeError(w, err)
		return
	}

	final := h.pollForTerminal(r.Context(), task.ID)
	if final == nil {
		final = task
	}
	if !final.State.IsTerminal() {
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": final.ID})
		return
	}
	if final.State == types.TaskFailed {
		writeError(w, types.NewError(final.ErrCode, final.ErrMessage))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":           final.ID,
		"answer":            final.Output,
		"pages_synthesised": 0,
	})
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.engine.Orchestrator.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *handlers) cancelTask(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Orchestrator.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (h *handlers) conversationMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := h.engine.MemoryLog.Recent(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *handlers) webhook(w http.ResponseWriter, r *http.Request) {
	endpoint := types.Endpoint(r.PathValue("endpoint"))
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxRead))
	if err != nil {
		writeError(w, types.NewError(types.ErrBadRequest, "failed to read request body").WithCause(err))
		return
	}

	result, err := h.engine.Ingress.Handle(r.Context(), endpoint, r.Header.Get("x-webhook-signature"), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result.StatusCode, result.Body)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// webhookMaxRead caps the raw body read before webhook.Ingress applies
// its own MaxBodyBytes check, so a misbehaving sender can't hold the
// connection open streaming an unbounded body.
const webhookMaxRead = 4 << 20 // 4 MiB

// respondFastPathOrQueued polls task briefly for a terminal state and
// responds 200 with the result if it completed in time, or 202 with
// just the task id if it is still running.
func (h *handlers) respondFastPathOrQueued(w http.ResponseWriter, ctx context.Context, task *types.Task) {
	final := task
	if !final.State.IsTerminal() {
		if polled := h.pollForTerminal(ctx, task.ID); polled != nil {
			final = polled
		}
	}

	if !final.State.IsTerminal() {
		writeJSON(w, http.StatusAccepted, map[string]any{"task_id": final.ID})
		return
	}
	if final.State == types.TaskFailed {
		writeError(w, types.NewError(final.ErrCode, final.ErrMessage))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":     final.ID,
		"output":      final.Output,
		"used_model":  final.UsedModel,
		"delegations": final.Delegations,
	})
}

// pollForTerminal short-polls the store for up to fastPathPollWindow,
// giving the worker pool a chance to finish a quick task before the
// caller falls back to polling GET /tasks/{id} themselves.
func (h *handlers) pollForTerminal(ctx context.Context, taskID string) *types.Task {
	deadline := time.Now().Add(fastPathPollWindow)
	for {
		task, err := h.engine.Orchestrator.Get(ctx, taskID)
		if err == nil && task.State.IsTerminal() {
			return task
		}
		if time.Now().After(deadline) {
			return task
		}
		select {
		case <-ctx.Done():
			return task
		case <-time.After(fastPathPollInterval):
		}
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := err.(*types.Error); ok {
		status := e.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, e)
		return
	}
	writeJSON(w, http.StatusInternalServerError, types.NewError(types.ErrInternal, err.Error()))
}
