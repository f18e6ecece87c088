// Package webhook implements C10 WebhookIngress: signature
// verification, idempotency-by-external-id, size bounding, audit, and
// enqueue-then-ack for the four inbound webhook endpoints. The
// substantive per-endpoint work (handlers.go) runs inside the worker
// pool, never inline here, so Handle can return within its ack
// deadline regardless of what the follow-up work does.
package webhook

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/security"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

// MaxBodyBytes is the largest webhook payload Handle accepts.
const MaxBodyBytes = 2 << 20 // 2 MiB

// AckDeadline is the external contract every Handle call is expected
// to complete within; callers should set a context deadline at or
// below this before invoking Handle.
const AckDeadline = 1 * time.Second

// Result is what the HTTP layer turns directly into a response.
type Result struct {
	StatusCode int
	Body       map[string]any
}

// Config carries Ingress's dependencies. Secrets maps each endpoint to
// its configured HMAC secret; an endpoint with no entry always fails
// signature verification.
type Config struct {
	Secrets map[types.Endpoint]string
	Store   store.Store
	Queue   queue.Queue
	Logger  *zap.Logger
}

type Ingress struct {
	secrets map[types.Endpoint]string
	store   store.Store
	queue   queue.Queue
	logger  *zap.Logger
}

func New(cfg Config) *Ingress {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingress{
		secrets: cfg.Secrets,
		store:   cfg.Store,
		queue:   cfg.Queue,
		logger:  logger.With(zap.String("component", "webhook")),
	}
}

// Handle runs steps 1-6 of §4.10 against one delivery.
func (in *Ingress) Handle(ctx context.Context, endpoint types.Endpoint, signatureHeader string, body []byte) (Result, error) {
	if !security.VerifyWebhookSignature(body, signatureHeader, in.secrets[endpoint]) {
		return Result{StatusCode: 401, Body: map[string]any{"status": "unauthorized"}}, nil
	}

	externalID, err := extractExternalID(body)
	if err != nil || externalID == "" {
		return Result{StatusCode: 400, Body: map[string]any{"status": "missing_external_id"}}, nil
	}

	if _, err := in.store.LookupAuditEntry(ctx, endpoint, externalID); err == nil {
		return Result{StatusCode: 200, Body: map[string]any{"status": "duplicate"}}, nil
	} else if err != store.ErrNotFound {
		return Result{}, err
	}

	if len(body) > MaxBodyBytes {
		return Result{StatusCode: 413, Body: map[string]any{"status": "payload_too_large"}}, nil
	}

	entry := &types.WebhookAuditEntry{Endpoint: endpoint, ExternalID: externalID, Body: body}
	if err := in.store.InsertAuditEntry(ctx, entry); err != nil {
		if err == store.ErrDuplicateAudit {
			return Result{StatusCode: 200, Body: map[string]any{"status": "duplicate"}}, nil
		}
		return Result{}, err
	}

	job := &queue.Job{Kind: queue.KindWebhook, Endpoint: string(endpoint), ExternalID: externalID, BodyRef: entry.ID}
	if err := in.queue.Enqueue(ctx, job); err != nil {
		in.logger.Error("enqueue failed", zap.String("endpoint", string(endpoint)), zap.String("external_id", externalID), zap.Error(err))
		return Result{StatusCode: 503, Body: map[string]any{"status": "enqueue_failed"}}, nil
	}

	return Result{StatusCode: 200, Body: map[string]any{"status": "accepted"}}, nil
}

func extractExternalID(body []byte) (string, error) {
	var payload struct {
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	return payload.ExternalID, nil
}
