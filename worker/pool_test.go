package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/cache"
	"github.com/agentmesh/engine/limiter"
	"github.com/agentmesh/engine/modelclient"
	"github.com/agentmesh/engine/modelclient/providers/mock"
	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/queue/memqueue"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/memstore"
	"github.com/agentmesh/engine/types"
	"github.com/agentmesh/engine/webhook"
	"github.com/agentmesh/engine/worker"
)

func newTestRunner(provider *mock.Provider, st store.Store) *agents.Runner {
	coalescer := cache.NewCoalescer(cache.NewMemCache(time.Minute))
	gates := limiter.NewGatePool(3, 2)
	bucket := limiter.NewTokenBucket(100, 100)
	client := modelclient.NewClient(provider, coalescer, gates, bucket, nil)
	reg := agents.NewDefaultRegistry("test-model")
	return agents.NewRunner(agents.Config{Registry: reg, Client: client, Store: st})
}

func newTestPool(q queue.Queue, st store.Store, runner *agents.Runner) *worker.Pool {
	return worker.New(worker.Config{
		Queue:        q,
		Store:        st,
		Runner:       runner,
		PoolSize:     1,
		ClaimTimeout: 50 * time.Millisecond,
	})
}

func TestPoolCompletesAgentTask(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	provider := mock.New()
	provider.Reply = "final answer"
	runner := newTestRunner(provider, st)
	pool := newTestPool(q, st, runner)

	task, err := st.InsertTask(context.Background(), &types.Task{
		RequesterID: "req-1",
		AgentID:     types.AgentOutboundMail,
		Kind:        types.TaskKindAgent,
		Inputs:      map[string]any{"prompt": "draft a cold email"},
		State:       types.TaskQueued,
	})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{TaskID: task.ID, Kind: queue.KindAgent}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		got, err := st.GetTask(context.Background(), task.ID)
		return err == nil && got.State.IsTerminal()
	}, time.Second, 5*time.Millisecond)

	got, err := st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.State)
	require.Equal(t, "final answer", got.Output)
	require.Equal(t, "test-model", got.UsedModel)
}

func TestPoolRetriesTransientFailureThenSucceeds(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	provider := mock.New()
	provider.Reply = "recovered"
	provider.Errs = []error{types.NewError(types.ErrProviderError, "boom")}
	runner := newTestRunner(provider, st)
	pool := newTestPool(q, st, runner)

	task, err := st.InsertTask(context.Background(), &types.Task{
		RequesterID: "req-1",
		AgentID:     types.AgentOutboundMail,
		Kind:        types.TaskKindAgent,
		Inputs:      map[string]any{"prompt": "draft a cold email"},
		State:       types.TaskQueued,
	})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{TaskID: task.ID, Kind: queue.KindAgent}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		got, err := st.GetTask(context.Background(), task.ID)
		return err == nil && got.State == types.TaskCompleted
	}, 4*time.Second, 10*time.Millisecond)

	got, err := st.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.State)
	require.Equal(t, "recovered", got.Output)
	require.GreaterOrEqual(t, provider.Calls(), 2)
}

func TestPoolFailsPermanentErrorImmediately(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	provider := mock.New()
	provider.Errs = []error{types.NewError(types.ErrBadResponse, "nope")}
	runner := newTestRunner(provider, st)
	pool := newTestPool(q, st, runner)

	task, err := st.InsertTask(context.Background(), &types.Task{
		RequesterID: "req-1",
		AgentID:     types.AgentOutboundMail,
		Kind:        types.TaskKindAgent,
		Inputs:      map[string]any{"prompt": "draft a cold email"},
		State:       types.TaskQueued,
	})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{TaskID: task.ID, Kind: queue.KindAgent}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	defer pool.Shutdown(context.Background())

	require.Eventually(t, func() bool {
		got, err := st.GetTask(context.Background(), task.ID)
		return err == nil && got.State == types.TaskFailed
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, provider.Calls())
}

func TestCancelRegistryCancelsRegisteredTask(t *testing.T) {
	reg := worker.NewCancelRegistry()
	ctx, release := reg.Register("task-1", context.Background())
	defer release()

	require.True(t, reg.Cancel("task-1"))
	require.Error(t, ctx.Err())
	require.False(t, reg.Cancel("unknown-task"))
}

func TestPoolProcessesWebhookFollowUp(t *testing.T) {
	st := memstore.New()
	q := memqueue.New()
	handler := webhook.NewHandler(webhook.HandlerConfig{Store: st, Queue: q})

	entry := &types.WebhookAuditEntry{
		Endpoint:   types.EndpointScrape,
		ExternalID: "ext-1",
		Body:       []byte(`{"requester_id":"req-1","url":"https://example.com","title":"t","content":"c"}`),
	}
	require.NoError(t, st.InsertAuditEntry(context.Background(), entry))
	require.NoError(t, q.Enqueue(context.Background(), &queue.Job{
		Kind:       queue.KindWebhook,
		Endpoint:   string(types.EndpointScrape),
		ExternalID: "ext-1",
	}))

	pool := worker.New(worker.Config{
		Queue:        q,
		Store:        st,
		Webhook:      handler,
		PoolSize:     1,
		ClaimTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, pool.Shutdown(context.Background()))
	cancel()

	_, err := q.Claim(context.Background(), 0)
	require.Equal(t, queue.ErrNoJob, err)
}
