// Package store abstracts task, audit, and domain-entity persistence
// behind one interface with three backends: store/postgres and
// store/sqlite for production and local development, store/memstore
// for tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentmesh/engine/types"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// ErrCASFailed is returned by CASTaskState when the task's current
// state does not match the expected From state.
var ErrCASFailed = errors.New("store: compare-and-swap failed, task state changed concurrently")

// ErrDuplicateAudit is returned by InsertAuditEntry when an entry for
// the same (Endpoint, ExternalID) already exists.
var ErrDuplicateAudit = errors.New("store: duplicate webhook audit entry")

// Store is the persistence boundary for tasks, webhook audit entries,
// and opaque domain entities. A task in a terminal state is never
// mutated again; CASTaskState is how every state transition happens so
// concurrent claimers cannot double-process one task.
type Store interface {
	// InsertTask persists a new task. If task.IdempotencyKey is set and
	// a non-terminal task with the same (RequesterID, IdempotencyKey)
	// already exists, InsertTask returns that existing task instead of
	// inserting a duplicate.
	InsertTask(ctx context.Context, task *types.Task) (*types.Task, error)

	// GetTask retrieves a task by id.
	GetTask(ctx context.Context, taskID string) (*types.Task, error)

	// CASTaskState transitions taskID from `from` to `to`, failing with
	// ErrCASFailed if the task's current state is not `from`.
	CASTaskState(ctx context.Context, taskID string, from, to types.TaskState) error

	// SetTaskOutput records a terminal task's output or error, and sets
	// CompletedAt. Exactly one of output/errCode+errMessage is non-empty.
	// usedModel and delegations are best-effort metadata from a
	// successful run; both are empty on a failed or cancelled task.
	SetTaskOutput(ctx context.Context, taskID string, state types.TaskState, output string, errCode types.ErrorCode, errMessage string, usedModel string, delegations []string) error

	// ListTasksByRequester returns the most recent tasks for requesterID,
	// newest first, bounded by limit.
	ListTasksByRequester(ctx context.Context, requesterID string, limit int) ([]*types.Task, error)

	// AddChildTask records childID as a child of parentID, transitioning
	// parentID to AwaitingChild if it is not already terminal.
	AddChildTask(ctx context.Context, parentID, childID string) error

	// InsertAuditEntry persists a webhook audit entry, returning
	// ErrDuplicateAudit if one already exists for (Endpoint, ExternalID).
	InsertAuditEntry(ctx context.Context, entry *types.WebhookAuditEntry) error

	// LookupAuditEntry finds a prior delivery by (endpoint, externalID),
	// returning ErrNotFound if none exists.
	LookupAuditEntry(ctx context.Context, endpoint types.Endpoint, externalID string) (*types.WebhookAuditEntry, error)

	// InsertDomainEntity persists an opaque side-effect record.
	InsertDomainEntity(ctx context.Context, entity *types.DomainEntity) error

	Close() error
	Ping(ctx context.Context) error
}

// DefaultLeaseTTL is how long a worker's claim on a Running task is
// valid before it is considered abandoned and re-claimable.
const DefaultLeaseTTL = 30 * time.Second
