// Package sqlstore is a gorm-backed store.Store implementation shared
// by store/postgres and store/sqlite; only the dialector differs
// between them.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
)

type taskRow struct {
	ID             string `gorm:"primaryKey"`
	RequesterID    string `gorm:"index"`
	AgentID        string
	ConversationID string `gorm:"index"`
	Kind           string
	InputsJSON     []byte
	State          string `gorm:"index"`
	Output         string
	DelegationsCSV string
	ErrMessage     string
	ErrCode        string
	ParentTaskID   string `gorm:"index"`
	ChildTaskIDs   string
	IdempotencyKey string `gorm:"index:idx_requester_idem"`
	Depth          int
	UsedModel      string
	LeaseOwner     string
	LeaseExpiresAt time.Time
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

func (taskRow) TableName() string { return "tasks" }

type auditRow struct {
	ID         string `gorm:"primaryKey"`
	Endpoint   string `gorm:"uniqueIndex:idx_endpoint_external"`
	ExternalID string `gorm:"uniqueIndex:idx_endpoint_external"`
	Body       []byte
	ReceivedAt time.Time
}

func (auditRow) TableName() string { return "webhook_audit_entries" }

type domainEntityRow struct {
	ID          string `gorm:"primaryKey"`
	Kind        string `gorm:"index"`
	RequesterID string `gorm:"index"`
	PayloadJSON []byte
	CreatedAt   time.Time
}

func (domainEntityRow) TableName() string { return "domain_entities" }

// Store is the shared gorm implementation of store.Store.
type Store struct {
	db *gorm.DB
}

// Open wraps an already-connected *gorm.DB (opened with whichever
// dialector the caller chose) and runs AutoMigrate for all tables.
func Open(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&taskRow{}, &auditRow{}, &domainEntityRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func toRow(t *types.Task) (*taskRow, error) {
	inputs, err := json.Marshal(t.Inputs)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: marshal inputs: %w", err)
	}
	return &taskRow{
		ID:             t.ID,
		RequesterID:    t.RequesterID,
		AgentID:        t.AgentID,
		ConversationID: t.ConversationID,
		Kind:           string(t.Kind),
		InputsJSON:     inputs,
		State:          string(t.State),
		Output:         t.Output,
		DelegationsCSV: joinCSV(t.Delegations),
		ErrMessage:     t.ErrMessage,
		ErrCode:        string(t.ErrCode),
		ParentTaskID:   t.ParentTaskID,
		ChildTaskIDs:   joinCSV(t.ChildTaskIDs),
		IdempotencyKey: t.IdempotencyKey,
		Depth:          t.Depth,
		UsedModel:      t.UsedModel,
		LeaseOwner:     t.LeaseOwner,
		LeaseExpiresAt: t.LeaseExpiresAt,
		CreatedAt:      t.CreatedAt,
		CompletedAt:    t.CompletedAt,
	}, nil
}

func fromRow(r *taskRow) (*types.Task, error) {
	var inputs map[string]any
	if len(r.InputsJSON) > 0 {
		if err := json.Unmarshal(r.InputsJSON, &inputs); err != nil {
			return nil, fmt.Errorf("sqlstore: unmarshal inputs: %w", err)
		}
	}
	return &types.Task{
		ID:             r.ID,
		RequesterID:    r.RequesterID,
		AgentID:        r.AgentID,
		ConversationID: r.ConversationID,
		Kind:           types.TaskKind(r.Kind),
		Inputs:         inputs,
		State:          types.TaskState(r.State),
		Output:         r.Output,
		Delegations:    splitCSV(r.DelegationsCSV),
		ErrMessage:     r.ErrMessage,
		ErrCode:        types.ErrorCode(r.ErrCode),
		ParentTaskID:   r.ParentTaskID,
		ChildTaskIDs:   splitCSV(r.ChildTaskIDs),
		IdempotencyKey: r.IdempotencyKey,
		Depth:          r.Depth,
		UsedModel:      r.UsedModel,
		LeaseOwner:     r.LeaseOwner,
		LeaseExpiresAt: r.LeaseExpiresAt,
		CreatedAt:      r.CreatedAt,
		CompletedAt:    r.CompletedAt,
	}, nil
}

func joinCSV(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	out := vals[0]
	for _, v := range vals[1:] {
		out += "," + v
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}

func (s *Store) InsertTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task.IdempotencyKey != "" {
		var existing taskRow
		err := s.db.WithContext(ctx).
			Where("requester_id = ? AND idempotency_key = ? AND state NOT IN ?",
				task.RequesterID, task.IdempotencyKey,
				[]string{string(types.TaskCompleted), string(types.TaskFailed), string(types.TaskCancelled)}).
			First(&existing).Error
		if err == nil {
			return fromRow(&existing)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sqlstore: lookup idempotent task: %w", err)
		}
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	row, err := toRow(task)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: insert task: %w", err)
	}
	return fromRow(row)
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*types.Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).Where("id = ?", taskID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get task: %w", err)
	}
	return fromRow(&row)
}

func (s *Store) CASTaskState(ctx context.Context, taskID string, from, to types.TaskState) error {
	result := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("id = ? AND state = ?", taskID, string(from)).
		Update("state", string(to))
	if result.Error != nil {
		return fmt.Errorf("sqlstore: cas task state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var exists int64
		s.db.WithContext(ctx).Model(&taskRow{}).Where("id = ?", taskID).Count(&exists)
		if exists == 0 {
			return store.ErrNotFound
		}
		return store.ErrCASFailed
	}
	return nil
}

func (s *Store) SetTaskOutput(ctx context.Context, taskID string, state types.TaskState, output string, errCode types.ErrorCode, errMessage string, usedModel string, delegations []string) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"state":           string(state),
			"output":          output,
			"err_code":        string(errCode),
			"err_message":     errMessage,
			"used_model":      usedModel,
			"delegations_csv": joinCSV(delegations),
			"completed_at":    &now,
		})
	if result.Error != nil {
		return fmt.Errorf("sqlstore: set task output: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListTasksByRequester(ctx context.Context, requesterID string, limit int) ([]*types.Task, error) {
	var rows []taskRow
	q := s.db.WithContext(ctx).Where("requester_id = ?", requesterID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list tasks: %w", err)
	}
	tasks := make([]*types.Task, 0, len(rows))
	for i := range rows {
		t, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *Store) AddChildTask(ctx context.Context, parentID, childID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row taskRow
		if err := tx.Where("id = ?", parentID).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return fmt.Errorf("sqlstore: add child task: %w", err)
		}
		children := splitCSV(row.ChildTaskIDs)
		children = append(children, childID)
		updates := map[string]any{"child_task_ids": joinCSV(children)}
		if !types.TaskState(row.State).IsTerminal() {
			updates["state"] = string(types.TaskAwaitingChild)
		}
		return tx.Model(&taskRow{}).Where("id = ?", parentID).Updates(updates).Error
	})
}

func (s *Store) InsertAuditEntry(ctx context.Context, entry *types.WebhookAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now()
	}
	row := auditRow{
		ID:         entry.ID,
		Endpoint:   string(entry.Endpoint),
		ExternalID: entry.ExternalID,
		Body:       entry.Body,
		ReceivedAt: entry.ReceivedAt,
	}
	// ON CONFLICT DO NOTHING (INSERT IGNORE on mysql) makes the duplicate
	// check atomic with the insert: two concurrent deliveries for the same
	// (endpoint, external_id) both reach the database, and the one that
	// loses the race affects zero rows instead of surfacing a raw
	// unique-constraint error from the driver.
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("sqlstore: insert audit entry: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrDuplicateAudit
	}
	return nil
}

func (s *Store) LookupAuditEntry(ctx context.Context, endpoint types.Endpoint, externalID string) (*types.WebhookAuditEntry, error) {
	var row auditRow
	err := s.db.WithContext(ctx).
		Where("endpoint = ? AND external_id = ?", string(endpoint), externalID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: lookup audit entry: %w", err)
	}
	return &types.WebhookAuditEntry{
		ID:         row.ID,
		Endpoint:   types.Endpoint(row.Endpoint),
		ExternalID: row.ExternalID,
		Body:       row.Body,
		ReceivedAt: row.ReceivedAt,
	}, nil
}

func (s *Store) InsertDomainEntity(ctx context.Context, entity *types.DomainEntity) error {
	payload, err := json.Marshal(entity.Payload)
	if err != nil {
		return fmt.Errorf("sqlstore: marshal domain entity payload: %w", err)
	}
	if entity.ID == "" {
		entity.ID = uuid.NewString()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}
	row := domainEntityRow{
		ID:          entity.ID,
		Kind:        entity.Kind,
		RequesterID: entity.RequesterID,
		PayloadJSON: payload,
		CreatedAt:   entity.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: insert domain entity: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
