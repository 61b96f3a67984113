package agent

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/auth"
	"github.com/researchmesh/a2a-go/pkg/catalog"
	"github.com/researchmesh/a2a-go/pkg/errors"
	"github.com/researchmesh/a2a-go/pkg/manifest"
	"github.com/researchmesh/a2a-go/pkg/stores/s3"
	"github.com/researchmesh/a2a-go/pkg/tools"
	"github.com/researchmesh/a2a-go/pkg/transport"
)

// Well-known agent names used when no catalog entry overrides them.
const (
	DefaultPlannerAgent  = "planner.agent.v1"
	DefaultExecutorAgent = "executor.agent.v1"
	DefaultDirectorAgent = "director.agent.v1"
)

/*
Executor consumes TASK_REQUEST messages, authorizes them against the
tool registry, runs the tool (or defers to the approval gate) and
reports progress and terminal results back to the requester.

A task moves RECEIVED -> VALIDATING -> {RUNNING | AWAITING_APPROVAL |
terminal}. Validation failures resolve locally into TASK_RESULT{failed}
without contacting the approver or the runner. Execution errors are
always converted into TASK_RESULT{failed}; one failing task must never
take down the subscribe loop.

The parked-approval table is in-process state owned by this instance.
Run a single executor instance per consumer group, or approval
responses may land on an instance that never parked the task.
*/
type Executor struct {
	name      string
	bus       transport.Interface
	registry  *manifest.Registry
	runner    tools.Runner
	catalog   *catalog.Registry
	verifier  a2a.Verifier
	artifacts *s3.ArtifactStore
	director  string

	mu sync.Mutex
	// parked holds tasks awaiting an approval decision, keyed by task_id.
	parked map[string]*parkedTask
	// terminal records the final status per task_id so redelivered
	// requests are acknowledged without re-executing.
	terminal map[string]string
}

type parkedTask struct {
	origin *a2a.Message
	req    *a2a.TaskRequest
	// manifest snapshot taken at acceptance time; an approved task runs
	// against this snapshot even if the registry reloaded meanwhile.
	tool manifest.Tool
}

type ExecutorOption func(*Executor)

// WithCatalog lets the executor resolve the director agent by role.
func WithCatalog(cat *catalog.Registry) ExecutorOption {
	return func(exec *Executor) {
		exec.catalog = cat
	}
}

// WithDirector pins the approver agent, bypassing catalog resolution.
func WithDirector(name string) ExecutorOption {
	return func(exec *Executor) {
		exec.director = name
	}
}

// WithVerifier installs a message authenticity check.
func WithVerifier(verifier a2a.Verifier) ExecutorOption {
	return func(exec *Executor) {
		exec.verifier = verifier
	}
}

// WithArtifactStore uploads completed task outputs to object storage
// and references them in the result's artifact list.
func WithArtifactStore(store *s3.ArtifactStore) ExecutorOption {
	return func(exec *Executor) {
		exec.artifacts = store
	}
}

func NewExecutor(
	name string,
	bus transport.Interface,
	registry *manifest.Registry,
	runner tools.Runner,
	opts ...ExecutorOption,
) *Executor {
	exec := &Executor{
		name:     name,
		bus:      bus,
		registry: registry,
		runner:   runner,
		verifier: a2a.NoopVerifier{},
		parked:   make(map[string]*parkedTask),
		terminal: make(map[string]string),
	}

	for _, opt := range opts {
		opt(exec)
	}

	return exec
}

/*
Start joins the executor's partition and blocks handling messages until
ctx is cancelled or the transport is stopped.
*/
func (exec *Executor) Start(ctx context.Context, opts ...transport.SubscribeOption) error {
	log.Info("executor starting", "agent", exec.name)
	return exec.bus.Subscribe(ctx, exec.name, exec.Handle, opts...)
}

/*
Handle dispatches one delivered message. It is the transport handler:
returning nil acknowledges the entry, returning an error leaves it
pending for redelivery. Only transport publish failures return errors;
everything task-local resolves into a terminal message instead.
*/
func (exec *Executor) Handle(ctx context.Context, msg *a2a.Message) error {
	if err := exec.verifier.Verify(msg); err != nil {
		log.Warn("dropping message that failed verification",
			"message_id", msg.MessageID, "from", msg.FromAgent, "error", err)
		return nil
	}

	switch payload := msg.Payload.(type) {
	case *a2a.TaskRequest:
		return exec.handleTaskRequest(ctx, msg, payload)
	case *a2a.ApprovalResponse:
		return exec.handleApprovalResponse(ctx, payload)
	default:
		log.Debug("ignoring message type", "type", msg.Type, "message_id", msg.MessageID)
		return nil
	}
}

func (exec *Executor) handleTaskRequest(ctx context.Context, msg *a2a.Message, req *a2a.TaskRequest) error {
	exec.mu.Lock()

	if status, done := exec.terminal[req.TaskID]; done {
		exec.mu.Unlock()
		log.Info("task already resolved, acknowledging redelivery",
			"task_id", req.TaskID, "status", status)
		return nil
	}

	if _, waiting := exec.parked[req.TaskID]; waiting {
		exec.mu.Unlock()
		log.Info("task already awaiting approval", "task_id", req.TaskID)
		return nil
	}

	exec.mu.Unlock()

	log.Info("task received", "task_id", req.TaskID, "tool", req.ToolID, "from", msg.FromAgent)

	tool, ok := exec.registry.Get(req.ToolID)

	if !ok {
		return exec.finish(ctx, msg, req.TaskID, a2a.StatusFailed, nil, nil,
			"Tool not found: "+req.ToolID)
	}

	if err := exec.registry.ValidateInputs(req.ToolID, req.Inputs); err != nil {
		return exec.finish(ctx, msg, req.TaskID, a2a.StatusFailed, nil, nil, agentMessage(err))
	}

	if err := exec.registry.CheckConstraints(req.ToolID, req.Inputs); err != nil {
		return exec.finish(ctx, msg, req.TaskID, a2a.StatusFailed, nil, nil, agentMessage(err))
	}

	if roles := metadataRoles(req.Metadata); roles != nil {
		if !auth.CheckToolAccess(roles, tool.Auth.Scope) {
			return exec.finish(ctx, msg, req.TaskID, a2a.StatusFailed, nil, nil,
				errors.ErrUnauthorized.WithMessagef(
					"Not authorized to call %s", req.ToolID).Message)
		}
	}

	if tool.ApprovalRequired {
		return exec.parkForApproval(ctx, msg, req, tool)
	}

	return exec.runTask(ctx, msg, req, tool)
}

func (exec *Executor) parkForApproval(ctx context.Context, msg *a2a.Message, req *a2a.TaskRequest, tool manifest.Tool) error {
	director := exec.resolveDirector()

	approval := a2a.NewApprovalRequest(
		exec.name, director, req.TaskID,
		"Tool "+req.ToolID+" requires approval before execution",
		a2a.RiskHigh, []string{director}, msg.TraceID,
	)

	if err := exec.bus.Publish(ctx, approval); err != nil {
		return err
	}

	exec.mu.Lock()
	exec.parked[req.TaskID] = &parkedTask{origin: msg, req: req, tool: tool}
	exec.mu.Unlock()

	log.Info("task parked awaiting approval",
		"task_id", req.TaskID, "tool", req.ToolID, "director", director)

	status := a2a.NewTaskStatus(exec.name, msg.FromAgent, req.TaskID,
		a2a.StatusPaused, nil, "Awaiting approval", msg.TraceID)

	if err := exec.bus.Publish(ctx, status); err != nil {
		// The approval request is already out; redelivering the task
		// request now would double-park it, so only log.
		log.Error("failed to publish paused status", "task_id", req.TaskID, "error", err)
	}

	return nil
}

func (exec *Executor) handleApprovalResponse(ctx context.Context, resp *a2a.ApprovalResponse) error {
	exec.mu.Lock()
	task, ok := exec.parked[resp.TaskID]

	if !ok {
		exec.mu.Unlock()
		// Expected under at-least-once delivery: the decision was
		// already applied, or the task never existed here.
		log.Warn("approval response for unknown task, dropping",
			"task_id", resp.TaskID, "approver", resp.ApproverID)
		return nil
	}

	delete(exec.parked, resp.TaskID)
	exec.mu.Unlock()

	if !resp.Decision {
		log.Info("task rejected by approver",
			"task_id", resp.TaskID, "approver", resp.ApproverID, "notes", resp.Notes)
		return exec.finish(ctx, task.origin, resp.TaskID, a2a.StatusRejected, nil, nil,
			"Approval denied")
	}

	log.Info("task approved", "task_id", resp.TaskID, "approver", resp.ApproverID)

	// Inputs were validated at acceptance time against the parked
	// manifest snapshot; they are not re-validated here.
	return exec.runTask(ctx, task.origin, task.req, task.tool)
}

func (exec *Executor) runTask(ctx context.Context, origin *a2a.Message, req *a2a.TaskRequest, tool manifest.Tool) error {
	running := a2a.NewTaskStatus(exec.name, origin.FromAgent, req.TaskID,
		a2a.StatusRunning, a2a.Float(0.0), "", origin.TraceID)

	if err := exec.bus.Publish(ctx, running); err != nil {
		return err
	}

	outputs, err := exec.runner.Execute(ctx, req.ToolID, req.Inputs)

	if err != nil {
		log.Error("tool execution failed",
			"task_id", req.TaskID, "tool", req.ToolID, "error", err)
		return exec.finish(ctx, origin, req.TaskID, a2a.StatusFailed, nil, nil, agentMessage(err))
	}

	var artifacts []string

	if exec.artifacts != nil {
		key, err := exec.artifacts.SaveOutputs(ctx, origin.TraceID, req.TaskID, outputs)

		if err != nil {
			log.Error("failed to store task artifact", "task_id", req.TaskID, "error", err)
		} else {
			artifacts = append(artifacts, key)
		}
	}

	return exec.finish(ctx, origin, req.TaskID, a2a.StatusCompleted, outputs, artifacts, "")
}

/*
finish publishes the terminal TASK_RESULT and records the task as
resolved. The terminal mark is only set after a successful publish so a
transport failure redelivers the triggering message and retries.
*/
func (exec *Executor) finish(
	ctx context.Context,
	origin *a2a.Message,
	taskID, status string,
	outputs map[string]any,
	artifacts []string,
	errMsg string,
) error {
	result := a2a.NewTaskResult(exec.name, origin.FromAgent, taskID, status, outputs, errMsg, origin.TraceID)

	if len(artifacts) > 0 {
		result.Payload.(*a2a.TaskResult).Artifacts = artifacts
	}

	if err := exec.bus.Publish(ctx, result); err != nil {
		return err
	}

	exec.mu.Lock()
	exec.terminal[taskID] = status
	exec.mu.Unlock()

	log.Info("task resolved", "task_id", taskID, "status", status)
	return nil
}

func (exec *Executor) resolveDirector() string {
	if exec.director != "" {
		return exec.director
	}

	if exec.catalog != nil {
		if card := exec.catalog.ResolveRole(catalog.RoleDirector); card.Name != "" {
			return card.Name
		}
	}

	return DefaultDirectorAgent
}

/*
agentMessage extracts the human-readable message for a task result. The
requester only ever sees this string, never a raw error chain.
*/
func agentMessage(err error) string {
	if agentErr, ok := err.(*errors.AgentError); ok {
		return agentErr.Message
	}

	return err.Error()
}

/*
metadataRoles pulls the caller's roles out of request metadata, when
the gateway attached them. Nil means no claims travelled with the
request and the access check is skipped.
*/
func metadataRoles(metadata map[string]any) []string {
	raw, ok := metadata["roles"]

	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		roles := make([]string, 0, len(v))

		for _, item := range v {
			if role, ok := item.(string); ok {
				roles = append(roles, role)
			}
		}

		return roles
	default:
		return nil
	}
}
