package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentmesh/engine/agents"
	"github.com/agentmesh/engine/orchestrator"
	"github.com/agentmesh/engine/queue"
	"github.com/agentmesh/engine/research"
	"github.com/agentmesh/engine/store"
	"github.com/agentmesh/engine/types"
	"github.com/agentmesh/engine/webhook"
)

// Config carries Pool's dependencies and sizing knobs. Zero-valued
// sizing fields fall back to this package's defaults.
type Config struct {
	Queue    queue.Queue
	Store    store.Store
	Runner   *agents.Runner
	Research *research.Researcher
	Webhook  *webhook.Handler
	Cancels  *CancelRegistry

	PoolSize        int
	ClaimTimeout    time.Duration
	LeaseTTL        time.Duration
	HeartbeatFrac   int
	AgentDeadline   time.Duration
	ResearchDeadline time.Duration

	Logger *zap.Logger
}

// Pool is C11: a fixed number of claimer goroutines driving jobs from
// Queue through to a terminal task state (or, for webhook follow-up
// jobs, through to the handler's side effects with no task involved).
type Pool struct {
	queue    queue.Queue
	store    store.Store
	runner   *agents.Runner
	research *research.Researcher
	webhook  *webhook.Handler
	cancels  *CancelRegistry

	poolSize         int
	claimTimeout     time.Duration
	leaseTTL         time.Duration
	heartbeatEvery   time.Duration
	agentDeadline    time.Duration
	researchDeadline time.Duration

	logger *zap.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New builds a Pool. Cancels must be shared with the orchestrator.Config
// that wires this same pool's CancelSignaler, or Cancel on a Running
// task will never reach this process's in-flight goroutine.
func New(cfg Config) *Pool {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	claimTimeout := cfg.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = DefaultClaimTimeout
	}
	leaseTTL := cfg.LeaseTTL
	if leaseTTL <= 0 {
		leaseTTL = DefaultLeaseTTL
	}
	heartbeatFrac := cfg.HeartbeatFrac
	if heartbeatFrac <= 0 {
		heartbeatFrac = 3
	}
	agentDeadline := cfg.AgentDeadline
	if agentDeadline <= 0 {
		agentDeadline = orchestrator.DefaultAgentTaskDeadline
	}
	researchDeadline := cfg.ResearchDeadline
	if researchDeadline <= 0 {
		researchDeadline = orchestrator.DefaultResearchTaskDeadline
	}
	cancels := cfg.Cancels
	if cancels == nil {
		cancels = NewCancelRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool{
		queue:            cfg.Queue,
		store:            cfg.Store,
		runner:           cfg.Runner,
		research:         cfg.Research,
		webhook:          cfg.Webhook,
		cancels:          cancels,
		poolSize:         poolSize,
		claimTimeout:     claimTimeout,
		leaseTTL:         leaseTTL,
		heartbeatEvery:   leaseTTL / time.Duration(heartbeatFrac),
		agentDeadline:    agentDeadline,
		researchDeadline: researchDeadline,
		logger:           logger.With(zap.String("component", "worker")),
	}
}

// Cancels exposes the pool's registry so it can be handed to
// orchestrator.Config as the CancelSignaler before Start.
func (p *Pool) Cancels() *CancelRegistry { return p.cancels }

// Start launches PoolSize claimer goroutines, each independently
// long-polling Claim and dispatching whatever it gets. Start returns
// immediately; the goroutines run until ctx is done or Shutdown is
// called.
func (p *Pool) Start(ctx context.Context) {
	p.stopCh = make(chan struct{})
	for i := 0; i < p.poolSize; i++ {
		p.wg.Add(1)
		go p.claimLoop(ctx)
	}
}

// Shutdown signals every claimer goroutine to stop after its current
// job and waits up to ctx's deadline for them to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	close(p.stopCh)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) claimLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Claim(ctx, p.claimTimeout)
		if err != nil {
			continue
		}
		p.process(ctx, job)
	}
}

func (p *Pool) process(ctx context.Context, job *queue.Job) {
	if job.Kind == queue.KindWebhook {
		p.processWebhook(ctx, job)
		return
	}
	p.processTask(ctx, job)
}

func (p *Pool) processWebhook(ctx context.Context, job *queue.Job) {
	entry, err := p.store.LookupAuditEntry(ctx, types.Endpoint(job.Endpoint), job.ExternalID)
	if err != nil {
		p.logger.Error("webhook follow-up: audit entry missing", zap.String("job_id", job.ID), zap.Error(err))
		_ = p.queue.Ack(ctx, job.ID)
		return
	}

	handleErr := p.webhook.Handle(ctx, types.Endpoint(job.Endpoint), entry.Body)
	if handleErr == nil {
		_ = p.queue.Ack(ctx, job.ID)
		return
	}
	p.finishFailedJob(ctx, job, handleErr)
}

func (p *Pool) processTask(ctx context.Context, job *queue.Job) {
	if err := p.store.CASTaskState(ctx, job.TaskID, types.TaskQueued, types.TaskRunning); err != nil {
		// Already claimed by a racing worker, or cancelled to a terminal
		// state before anyone claimed it. Either way this job is stale.
		_ = p.queue.Ack(ctx, job.ID)
		return
	}

	task, err := p.store.GetTask(ctx, job.TaskID)
	if err != nil {
		p.logger.Error("task vanished after cas", zap.String("task_id", job.TaskID), zap.Error(err))
		_ = p.queue.Ack(ctx, job.ID)
		return
	}

	deadline := p.agentDeadline
	if job.Kind == queue.KindResearch {
		deadline = p.researchDeadline
	}

	runCtx, release := p.cancels.Register(job.TaskID, ctx)
	defer release()
	runCtx, cancelDeadline := context.WithTimeout(runCtx, deadline)
	defer cancelDeadline()

	heartbeatDone := p.startHeartbeat(runCtx, job.ID)
	defer close(heartbeatDone)

	output, usedModel, delegations, runErr := p.dispatch(runCtx, job, task)

	switch {
	case runErr == nil:
		p.finishSuccess(ctx, job, output, usedModel, delegations)
	case runCtx.Err() == context.Canceled:
		p.finishCancelled(ctx, job)
	default:
		p.finishFailedTask(ctx, job, runErr)
	}
}

func (p *Pool) dispatch(ctx context.Context, job *queue.Job, task *types.Task) (output, usedModel string, delegations []string, err error) {
	switch job.Kind {
	case queue.KindAgent:
		out, runErr := p.runner.Run(ctx, agents.RunInput{
			TaskID:         task.ID,
			RequesterID:    task.RequesterID,
			AgentID:        task.AgentID,
			ConversationID: task.ConversationID,
			Inputs:         task.Inputs,
			Depth:          task.Depth,
			CallStack:      []string{task.AgentID},
		})
		if runErr != nil {
			return "", "", nil, runErr
		}
		return out.Text, out.UsedModel, out.Delegations, nil

	case queue.KindMultiAgent:
		agentIDs := stringSliceInput(task.Inputs["agent_ids"])
		prompt, _ := task.Inputs["prompt"].(string)
		out, runErr := p.runner.RunMulti(ctx, agents.MultiRunInput{
			TaskID:         task.ID,
			RequesterID:    task.RequesterID,
			ConversationID: task.ConversationID,
			Prompt:         prompt,
			AgentIDs:       agentIDs,
		})
		if runErr != nil {
			return "", "", nil, runErr
		}
		return out.Text, out.UsedModel, out.Delegations, nil

	case queue.KindResearch:
		query, _ := task.Inputs["query"].(string)
		maxResults := intInput(task.Inputs["max_results"])
		preferredAgent, _ := task.Inputs["preferred_agent"].(string)
		result, runErr := p.research.Research(ctx, task.RequesterID, query, maxResults, preferredAgent)
		if runErr != nil {
			return "", "", nil, runErr
		}
		return result.Answer, result.ModelUsed, nil, nil

	default:
		return "", "", nil, types.NewError(types.ErrInternal, "worker: unknown job kind "+string(job.Kind))
	}
}

func (p *Pool) startHeartbeat(ctx context.Context, jobID string) chan struct{} {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.queue.ExtendLease(ctx, jobID, p.leaseTTL); err != nil {
					p.logger.Warn("lease renewal failed", zap.String("job_id", jobID), zap.Error(err))
				}
			}
		}
	}()
	return done
}

func (p *Pool) finishSuccess(ctx context.Context, job *queue.Job, output, usedModel string, delegations []string) {
	if err := p.store.SetTaskOutput(ctx, job.TaskID, types.TaskCompleted, output, "", "", usedModel, delegations); err != nil {
		p.logger.Error("persist task output failed", zap.String("task_id", job.TaskID), zap.Error(err))
	}
	_ = p.queue.Ack(ctx, job.ID)
}

func (p *Pool) finishCancelled(ctx context.Context, job *queue.Job) {
	if err := p.store.SetTaskOutput(ctx, job.TaskID, types.TaskCancelled, "", types.ErrCancelled, "cancelled while running", "", nil); err != nil {
		p.logger.Error("persist cancellation failed", zap.String("task_id", job.TaskID), zap.Error(err))
	}
	_ = p.queue.Ack(ctx, job.ID)
}

// finishFailedTask CASes the task back to Queued for a retry, or marks
// it Failed once the retry ladder is exhausted or the error is
// permanent. A failed child never consumes the parent task's own
// retry budget since the ladder here is per job, scoped to job.TaskID.
func (p *Pool) finishFailedTask(ctx context.Context, job *queue.Job, runErr error) {
	if !types.IsRetryable(runErr) {
		p.failTask(ctx, job, runErr)
		return
	}
	delay, retry := nextRetryDelay(job.Attempts)
	if !retry {
		p.failTask(ctx, job, runErr)
		return
	}
	if err := p.store.CASTaskState(ctx, job.TaskID, types.TaskRunning, types.TaskQueued); err != nil {
		p.logger.Warn("requeue cas failed", zap.String("task_id", job.TaskID), zap.Error(err))
	}
	if err := p.queue.Nack(ctx, job.ID, delay); err != nil {
		p.logger.Error("nack failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *Pool) failTask(ctx context.Context, job *queue.Job, runErr error) {
	if err := p.store.SetTaskOutput(ctx, job.TaskID, types.TaskFailed, "", types.CodeOf(runErr), runErr.Error(), "", nil); err != nil {
		p.logger.Error("persist task failure failed", zap.String("task_id", job.TaskID), zap.Error(err))
	}
	_ = p.queue.Ack(ctx, job.ID)
}

// finishFailedJob is the webhook follow-up counterpart to
// finishFailedTask: there is no task state machine here, only the
// queue's own retry ladder keyed on job.Attempts.
func (p *Pool) finishFailedJob(ctx context.Context, job *queue.Job, jobErr error) {
	if !types.IsRetryable(jobErr) {
		p.logger.Error("webhook follow-up permanently failed", zap.String("job_id", job.ID), zap.Error(jobErr))
		_ = p.queue.Ack(ctx, job.ID)
		return
	}
	delay, retry := nextRetryDelay(job.Attempts)
	if !retry {
		p.logger.Error("webhook follow-up exhausted retries", zap.String("job_id", job.ID), zap.Error(jobErr))
		_ = p.queue.Ack(ctx, job.ID)
		return
	}
	if err := p.queue.Nack(ctx, job.ID, delay); err != nil {
		p.logger.Error("nack failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// intInput reads an int task input that may have round-tripped through
// a JSON-backed store, where a number decodes as float64 rather than
// int.
func intInput(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// stringSliceInput reads a []string task input that may have
// round-tripped through a JSON-backed store, where an array decodes as
// []any rather than []string.
func stringSliceInput(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

var _ orchestrator.CancelSignaler = (*CancelRegistry)(nil)
