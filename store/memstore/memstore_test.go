package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/memstore"
	"github.com/agentmesh/engine/types"
)

func TestInsertTaskDeduplicatesByIdempotencyKey(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	first, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		AgentID:        types.AgentEngineer,
		Kind:           types.TaskKindAgent,
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)

	second, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		AgentID:        types.AgentEngineer,
		Kind:           types.TaskKindAgent,
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestInsertTaskAllowsNewIdempotencyKeyAfterTerminal(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	first, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)
	require.NoError(t, s.CASTaskState(ctx, first.ID, types.TaskQueued, types.TaskRunning))
	require.NoError(t, s.SetTaskOutput(ctx, first.ID, types.TaskCompleted, "done", "", "", "", nil))

	second, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestCASTaskStateFailsOnMismatch(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	task, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskQueued})
	require.NoError(t, err)

	require.NoError(t, s.CASTaskState(ctx, task.ID, types.TaskQueued, types.TaskRunning))
	err = s.CASTaskState(ctx, task.ID, types.TaskQueued, types.TaskRunning)
	require.ErrorIs(t, err, store.ErrCASFailed)
}

func TestGetTaskNotFound(t *testing.T) {
	s := memstore.New()
	_, err := s.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddChildTaskMarksParentAwaitingChild(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	parent, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskRunning})
	require.NoError(t, err)

	require.NoError(t, s.AddChildTask(ctx, parent.ID, "child-1"))

	got, err := s.GetTask(ctx, parent.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskAwaitingChild, got.State)
	require.Equal(t, []string{"child-1"}, got.ChildTaskIDs)
}

func TestInsertAuditEntryRejectsDuplicates(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	entry := &types.WebhookAuditEntry{Endpoint: types.EndpointMail, ExternalID: "msg-1"}
	require.NoError(t, s.InsertAuditEntry(ctx, entry))

	err := s.InsertAuditEntry(ctx, &types.WebhookAuditEntry{Endpoint: types.EndpointMail, ExternalID: "msg-1"})
	require.ErrorIs(t, err, store.ErrDuplicateAudit)
}

func TestLookupAuditEntryNotFound(t *testing.T) {
	s := memstore.New()
	_, err := s.LookupAuditEntry(context.Background(), types.EndpointMail, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListTasksByRequesterOrdersNewestFirstAndRespectsLimit(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskQueued})
		require.NoError(t, err)
	}
	_, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-2", State: types.TaskQueued})
	require.NoError(t, err)

	got, err := s.ListTasksByRequester(ctx, "req-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, task := range got {
		require.Equal(t, "req-1", task.RequesterID)
	}
}
