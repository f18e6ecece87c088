package webhook

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

// MailGateway fetches a full message by the mail provider's own id,
// since an inbound webhook payload only carries a thin pointer to it.
type MailGateway interface {
	FetchMessage(ctx context.Context, providerID string) (MailMessage, error)
}

// MailMessage is the full message a MailGateway returns.
type MailMessage struct {
	ProviderID string
	From       string
	Subject    string
	Body       string
}

// Handler performs the substantive per-endpoint work a webhook
// delivery triggers. It is dispatched by the worker pool (C11) from a
// KindWebhook job, never called directly from Ingress.Handle, so its
// latency never threatens the ack deadline.
type Handler struct {
	mail   MailGateway
	store  store.Store
	queue  queue.Queue
	logger *zap.Logger
}

type HandlerConfig struct {
	Mail   MailGateway
	Store  store.Store
	Queue  queue.Queue
	Logger *zap.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		mail:   cfg.Mail,
		store:  cfg.Store,
		queue:  cfg.Queue,
		logger: logger.With(zap.String("component", "webhook_handler")),
	}
}

// Handle dispatches by endpoint to the matching substantive handler.
func (h *Handler) Handle(ctx context.Context, endpoint types.Endpoint, body []byte) error {
	switch endpoint {
	case types.EndpointMail:
		return h.handleMail(ctx, body)
	case types.EndpointScrape:
		return h.handleScrape(ctx, body)
	case types.EndpointBooking:
		return h.handleBooking(ctx, body)
	case types.EndpointAlert:
		return h.handleAlert(ctx, body)
	default:
		return types.NewError(types.ErrBadRequest, "webhook: unknown endpoint "+string(endpoint))
	}
}

type mailPayload struct {
	RequesterID string `json:"requester_id"`
	ProviderID  string `json:"provider_id"`
}

func (h *Handler) handleMail(ctx context.Context, body []byte) error {
	var payload mailPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.NewError(types.ErrBadRequest, "webhook: malformed mail payload").WithCause(err)
	}
	msg, err := h.mail.FetchMessage(ctx, payload.ProviderID)
	if err != nil {
		return err
	}
	return h.store.InsertDomainEntity(ctx, &types.DomainEntity{
		Kind:        "mail_message",
		RequesterID: payload.RequesterID,
		Payload: map[string]any{
			"provider_id": msg.ProviderID,
			"from":        msg.From,
			"subject":     msg.Subject,
			"body":        msg.Body,
		},
	})
}

type scrapePayload struct {
	RequesterID string `json:"requester_id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

// handleScrape inserts the completed scrape as a domain entity. It
// does not also invalidate a research cache entry for URL: the
// research cache partitions by query text and by page content hash,
// neither of which is addressable by URL, so there is nothing to key
// an invalidation on here.
func (h *Handler) handleScrape(ctx context.Context, body []byte) error {
	var payload scrapePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.NewError(types.ErrBadRequest, "webhook: malformed scrape payload").WithCause(err)
	}
	return h.store.InsertDomainEntity(ctx, &types.DomainEntity{
		Kind:        "scrape",
		RequesterID: payload.RequesterID,
		Payload: map[string]any{
			"url":     payload.URL,
			"title":   payload.Title,
			"content": payload.Content,
		},
	})
}

type bookingPayload struct {
	RequesterID string `json:"requester_id"`
	Counterpart string `json:"counterpart"`
	StartsAt    string `json:"starts_at"`
	Notes       string `json:"notes"`
}

func (h *Handler) handleBooking(ctx context.Context, body []byte) error {
	var payload bookingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.NewError(types.ErrBadRequest, "webhook: malformed booking payload").WithCause(err)
	}
	if err := h.store.InsertDomainEntity(ctx, &types.DomainEntity{
		Kind:        "calendar_event",
		RequesterID: payload.RequesterID,
		Payload: map[string]any{
			"counterpart": payload.Counterpart,
			"starts_at":   payload.StartsAt,
			"notes":       payload.Notes,
		},
	}); err != nil {
		return err
	}
	return h.enqueueAgentTask(ctx, payload.RequesterID, types.AgentCallPrep,
		"Prepare briefing notes for the upcoming call with "+payload.Counterpart+". Notes: "+payload.Notes)
}

type alertPayload struct {
	RequesterID string `json:"requester_id"`
	AlertID     string `json:"alert_id"`
	Severity    string `json:"severity"`
	Summary     string `json:"summary"`
}

func (h *Handler) handleAlert(ctx context.Context, body []byte) error {
	var payload alertPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.NewError(types.ErrBadRequest, "webhook: malformed alert payload").WithCause(err)
	}
	if err := h.store.InsertDomainEntity(ctx, &types.DomainEntity{
		Kind:        "alert",
		RequesterID: payload.RequesterID,
		Payload: map[string]any{
			"alert_id": payload.AlertID,
			"severity": payload.Severity,
			"summary":  payload.Summary,
		},
	}); err != nil {
		return err
	}
	return h.enqueueAgentTask(ctx, payload.RequesterID, types.AgentEngineer,
		"Triage this monitoring alert (severity "+payload.Severity+"): "+payload.Summary)
}

func (h *Handler) enqueueAgentTask(ctx context.Context, requesterID, agentID, prompt string) error {
	task := &types.Task{
		RequesterID: requesterID,
		AgentID:     agentID,
		Kind:        types.TaskKindAgent,
		Inputs:      map[string]any{"prompt": prompt},
		State:       types.TaskQueued,
	}
	inserted, err := h.store.InsertTask(ctx, task)
	if err != nil {
		return err
	}
	return h.queue.Enqueue(ctx, &queue.Job{TaskID: inserted.ID, Kind: queue.KindAgent})
}
