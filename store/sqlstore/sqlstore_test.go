package sqlstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/store/sqlstore"
	"github.com/agentmesh/engine/types"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A private ":memory:" database is only visible to the connection
	// that created it, so the pool is pinned to one connection to keep
	// concurrent callers talking to the same database.
	sqlDB.SetMaxOpenConns(1)

	s, err := sqlstore.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndGetTaskRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := &types.Task{
		RequesterID: "req-1",
		AgentID:     types.AgentEngineer,
		Kind:        types.TaskKindAgent,
		State:       types.TaskQueued,
		Inputs:      map[string]any{"prompt": "hello"},
	}
	inserted, err := s.InsertTask(ctx, task)
	require.NoError(t, err)
	require.NotEmpty(t, inserted.ID)

	got, err := s.GetTask(ctx, inserted.ID)
	require.NoError(t, err)
	require.Equal(t, "req-1", got.RequesterID)
	require.Equal(t, types.TaskQueued, got.State)
	require.Equal(t, "hello", got.Inputs["prompt"])
}

func TestInsertTaskDeduplicatesByIdempotencyKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)

	second, err := s.InsertTask(ctx, &types.Task{
		RequesterID:    "req-1",
		State:          types.TaskQueued,
		IdempotencyKey: "abc",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestCASTaskStateFailsOnMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskQueued})
	require.NoError(t, err)

	require.NoError(t, s.CASTaskState(ctx, task.ID, types.TaskQueued, types.TaskRunning))
	err = s.CASTaskState(ctx, task.ID, types.TaskQueued, types.TaskRunning)
	require.ErrorIs(t, err, store.ErrCASFailed)
}

func TestCASTaskStateNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.CASTaskState(context.Background(), "missing", types.TaskQueued, types.TaskRunning)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetTaskOutputMarksCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskRunning})
	require.NoError(t, err)

	require.NoError(t, s.SetTaskOutput(ctx, task.ID, types.TaskCompleted, "final answer", "", "", "", nil))

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskCompleted, got.State)
	require.Equal(t, "final answer", got.Output)
	require.NotNil(t, got.CompletedAt)
}

func TestAddChildTaskMarksParentAwaitingChild(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskRunning})
	require.NoError(t, err)

	require.NoError(t, s.AddChildTask(ctx, parent.ID, "child-1"))
	require.NoError(t, s.AddChildTask(ctx, parent.ID, "child-2"))

	got, err := s.GetTask(ctx, parent.ID)
	require.NoError(t, err)
	require.Equal(t, types.TaskAwaitingChild, got.State)
	require.Equal(t, []string{"child-1", "child-2"}, got.ChildTaskIDs)
}

func TestInsertAuditEntryRejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAuditEntry(ctx, &types.WebhookAuditEntry{
		Endpoint:   types.EndpointMail,
		ExternalID: "msg-1",
		Body:       []byte("hi"),
	}))

	err := s.InsertAuditEntry(ctx, &types.WebhookAuditEntry{
		Endpoint:   types.EndpointMail,
		ExternalID: "msg-1",
	})
	require.ErrorIs(t, err, store.ErrDuplicateAudit)

	found, err := s.LookupAuditEntry(ctx, types.EndpointMail, "msg-1")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), found.Body)
}

// TestInsertAuditEntryRaceHasExactlyOneWinner drives two concurrent
// deliveries for the same (endpoint, external_id) at once. Exactly one
// must succeed and the other must see ErrDuplicateAudit, never a raw
// unique-constraint error from the driver.
func TestInsertAuditEntryRaceHasExactlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = s.InsertAuditEntry(ctx, &types.WebhookAuditEntry{
				Endpoint:   types.EndpointMail,
				ExternalID: "race-1",
				Body:       []byte("hi"),
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var wins, dupes int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrDuplicateAudit):
			dupes++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, dupes)
}

func TestInsertDomainEntityPersistsPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InsertDomainEntity(ctx, &types.DomainEntity{
		Kind:        "lead",
		RequesterID: "req-1",
		Payload:     map[string]any{"email": "a@b.com"},
	})
	require.NoError(t, err)
}

func TestListTasksByRequesterRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.InsertTask(ctx, &types.Task{RequesterID: "req-1", State: types.TaskQueued})
		require.NoError(t, err)
	}

	got, err := s.ListTasksByRequester(ctx, "req-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}
