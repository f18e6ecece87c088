package webhook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/queue/memqueue"
	"github.com/agentmesh/engine/store/memstore"
	"github.com/agentmesh/engine/types"
	"github.com/agentmesh/engine/webhook"
)

type stubMailGateway struct {
	msg webhook.MailMessage
	err error
}

func (s stubMailGateway) FetchMessage(_ context.Context, providerID string) (webhook.MailMessage, error) {
	if s.err != nil {
		return webhook.MailMessage{}, s.err
	}
	return s.msg, nil
}

func TestHandleMailFetchesAndPersistsDomainEntity(t *testing.T) {
	st := memstore.New()
	gw := stubMailGateway{msg: webhook.MailMessage{ProviderID: "p-1", From: "a@b.com", Subject: "hi", Body: "body"}}
	h := webhook.NewHandler(webhook.HandlerConfig{Mail: gw, Store: st, Queue: memqueue.New()})

	err := h.Handle(context.Background(), types.EndpointMail, []byte(`{"requester_id":"req-1","provider_id":"p-1"}`))
	require.NoError(t, err)
}

func TestHandleMailPropagatesGatewayError(t *testing.T) {
	st := memstore.New()
	gw := stubMailGateway{err: errors.New("provider unavailable")}
	h := webhook.NewHandler(webhook.HandlerConfig{Mail: gw, Store: st, Queue: memqueue.New()})

	err := h.Handle(context.Background(), types.EndpointMail, []byte(`{"requester_id":"req-1","provider_id":"p-1"}`))
	require.Error(t, err)
}

func TestHandleBookingInsertsEntityAndEnqueuesCallPrep(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	h := webhook.NewHandler(webhook.HandlerConfig{Store: st, Queue: q})

	body := []byte(`{"requester_id":"req-1","counterpart":"Acme Corp","starts_at":"2026-08-01T10:00:00Z","notes":"intro call"}`)
	require.NoError(t, h.Handle(context.Background(), types.EndpointBooking, body))

	job, err := q.Claim(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, queue.KindAgent, job.Kind)

	task, err := st.GetTask(context.Background(), job.TaskID)
	require.NoError(t, err)
	require.Equal(t, types.AgentCallPrep, task.AgentID)
}

func TestHandleAlertInsertsEntityAndEnqueuesEngineerTriage(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	h := webhook.NewHandler(webhook.HandlerConfig{Store: st, Queue: q})

	body := []byte(`{"requester_id":"req-1","alert_id":"a-1","severity":"critical","summary":"disk full"}`)
	require.NoError(t, h.Handle(context.Background(), types.EndpointAlert, body))

	job, err := q.Claim(context.Background(), 0)
	require.NoError(t, err)

	task, err := st.GetTask(context.Background(), job.TaskID)
	require.NoError(t, err)
	require.Equal(t, types.AgentEngineer, task.AgentID)
}

func TestHandleScrapeInsertsEntityWithoutEnqueue(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	h := webhook.NewHandler(webhook.HandlerConfig{Store: st, Queue: q})

	body := []byte(`{"requester_id":"req-1","url":"https://example.com","title":"Example","content":"hello"}`)
	require.NoError(t, h.Handle(context.Background(), types.EndpointScrape, body))

	_, err := q.Claim(context.Background(), 0)
	require.Error(t, err)
}

func TestHandleUnknownEndpointFails(t *testing.T) {
	st := memstore.New()
	h := webhook.NewHandler(webhook.HandlerConfig{Store: st, Queue: memqueue.New()})

	err := h.Handle(context.Background(), types.Endpoint("unknown"), []byte(`{}`))
	require.Error(t, err)
	require.Equal(t, types.ErrBadRequest, types.CodeOf(err))
}
