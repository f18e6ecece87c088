package types

import "time"

// TaskState is the task lifecycle state machine described in the
// data model: Queued -> Running -> (AwaitingChild <-> Running) ->
// Completed | Failed | Cancelled.
type TaskState string

const (
	TaskQueued        TaskState = "queued"
	TaskRunning       TaskState = "running"
	TaskAwaitingChild TaskState = "awaiting_child"
	TaskCompleted     TaskState = "completed"
	TaskFailed        TaskState = "failed"
	TaskCancelled     TaskState = "cancelled"
)

// IsTerminal reports whether s is one of Completed/Failed/Cancelled.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task is the unit of work the orchestrator, runner and worker pool
// operate on. A task is created by the Orchestrator or by a delegating
// AgentRunner; it is destroyed only by retention policy and is never
// mutated once it reaches a terminal state.
type Task struct {
	ID              string         `json:"id"`
	RequesterID     string         `json:"requester_id"`
	AgentID         string         `json:"agent_id"`
	ConversationID  string         `json:"conversation_id,omitempty"`
	Kind            TaskKind       `json:"kind"`
	Inputs          map[string]any `json:"inputs"`
	State           TaskState      `json:"state"`
	Output          string         `json:"output,omitempty"`
	Delegations     []string       `json:"delegations,omitempty"`
	ErrMessage      string         `json:"error,omitempty"`
	ErrCode         ErrorCode      `json:"error_code,omitempty"`
	ParentTaskID    string         `json:"parent_task_id,omitempty"`
	ChildTaskIDs    []string       `json:"child_task_ids,omitempty"`
	IdempotencyKey  string         `json:"idempotency_key,omitempty"`
	Depth           int            `json:"depth"`
	UsedModel       string         `json:"used_model,omitempty"`
	LeaseOwner      string         `json:"lease_owner,omitempty"`
	LeaseExpiresAt  time.Time      `json:"lease_expires_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// TaskKind distinguishes the handler a worker should dispatch the task
// to: an agent run, a research run, or a webhook follow-up.
type TaskKind string

const (
	TaskKindAgent      TaskKind = "agent"
	TaskKindResearch   TaskKind = "research"
	TaskKindWebhook    TaskKind = "webhook_followup"
	TaskKindMultiAgent TaskKind = "multi_agent"
)

// Clone returns a deep-enough copy of t for handing to a caller without
// letting them mutate store-owned state through slice aliasing.
func (t *Task) Clone() *Task {
	c := *t
	if t.Delegations != nil {
		c.Delegations = append([]string(nil), t.Delegations...)
	}
	if t.ChildTaskIDs != nil {
		c.ChildTaskIDs = append([]string(nil), t.ChildTaskIDs...)
	}
	if t.Inputs != nil {
		c.Inputs = make(map[string]any, len(t.Inputs))
		for k, v := range t.Inputs {
			c.Inputs[k] = v
		}
	}
	return &c
}
