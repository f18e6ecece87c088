// Package memstore is an in-memory store.Store for development and
// tests. Data is lost on restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

type auditKey struct {
	endpoint   types.Endpoint
	externalID string
}

// Store is the in-memory store.Store implementation.
type Store struct {
	mu      sync.RWMutex
	closed  bool
	tasks   map[string]*types.Task
	audits  map[auditKey]*types.WebhookAuditEntry
	domains []*types.DomainEntity
}

func New() *Store {
	return &Store{
		tasks:  make(map[string]*types.Task),
		audits: make(map[auditKey]*types.WebhookAuditEntry),
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertTask(_ context.Context, task *types.Task) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.IdempotencyKey != "" {
		for _, existing := range s.tasks {
			if existing.RequesterID == task.RequesterID &&
				existing.IdempotencyKey == task.IdempotencyKey &&
				!existing.State.IsTerminal() {
				return existing.Clone(), nil
			}
		}
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	stored := task.Clone()
	s.tasks[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *Store) GetTask(_ context.Context, taskID string) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *Store) CASTaskState(_ context.Context, taskID string, from, to types.TaskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if t.State != from {
		return store.ErrCASFailed
	}
	t.State = to
	return nil
}

func (s *Store) SetTaskOutput(_ context.Context, taskID string, state types.TaskState, output string, errCode types.ErrorCode, errMessage string, usedModel string, delegations []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	t.State = state
	t.Output = output
	t.ErrCode = errCode
	t.ErrMessage = errMessage
	t.UsedModel = usedModel
	t.Delegations = delegations
	now := time.Now()
	t.CompletedAt = &now
	return nil
}

func (s *Store) ListTasksByRequester(_ context.Context, requesterID string, limit int) ([]*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*types.Task
	for _, t := range s.tasks {
		if t.RequesterID == requesterID {
			matched = append(matched, t.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) AddChildTask(_ context.Context, parentID, childID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.tasks[parentID]
	if !ok {
		return store.ErrNotFound
	}
	parent.ChildTaskIDs = append(parent.ChildTaskIDs, childID)
	if !parent.State.IsTerminal() {
		parent.State = types.TaskAwaitingChild
	}
	return nil
}

func (s *Store) InsertAuditEntry(_ context.Context, entry *types.WebhookAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := auditKey{endpoint: entry.Endpoint, externalID: entry.ExternalID}
	if _, exists := s.audits[key]; exists {
		return store.ErrDuplicateAudit
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now()
	}
	cp := *entry
	s.audits[key] = &cp
	return nil
}

func (s *Store) LookupAuditEntry(_ context.Context, endpoint types.Endpoint, externalID string) (*types.WebhookAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.audits[auditKey{endpoint: endpoint, externalID: externalID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *entry
	return &cp, nil
}

func (s *Store) InsertDomainEntity(_ context.Context, entity *types.DomainEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	cp := *entity
	s.domains = append(s.domains, &cp)
	return nil
}

var _ store.Store = (*Store)(nil)
