package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/catalog"
	"github.com/researchmesh/a2a-go/pkg/manifest"
	"github.com/researchmesh/a2a-go/pkg/provider"
	"github.com/researchmesh/a2a-go/pkg/transport"
)

/*
Plan is an ordered set of tool invocations produced for one goal.
DependsOn is informational for the oracle's own reasoning; the planner
does not sequence dependent steps.
*/
type Plan struct {
	PlanID string     `json:"plan_id"`
	Goal   string     `json:"goal,omitempty"`
	Steps  []PlanStep `json:"steps"`
}

type PlanStep struct {
	StepID    string         `json:"step_id"`
	ToolID    string         `json:"tool_id"`
	Inputs    map[string]any `json:"inputs"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

/*
TaskView is the planner's record of one emitted task, folded together
from the status and result messages coming back. Redelivered messages
leave it unchanged: progress only ever moves up and a terminal status
is applied once.
*/
type TaskView struct {
	TaskID    string
	ToolID    string
	Status    string
	Progress  float64
	Outputs   map[string]any
	Error     string
	Artifacts []string
}

/*
Planner turns a natural-language goal into TASK_REQUEST messages and
tracks what came of them. Step generation is delegated to the planning
oracle; when the oracle fails or returns something unparseable the
planner degrades to a deterministic heuristic plan rather than failing
the request outright.
*/
type Planner struct {
	name     string
	bus      transport.Interface
	registry *manifest.Registry
	oracle   provider.Interface
	catalog  *catalog.Registry
	executor string

	mu    sync.Mutex
	tasks map[string]*TaskView
}

type PlannerOption func(*Planner)

// WithPlannerCatalog lets the planner resolve the executor by role.
func WithPlannerCatalog(cat *catalog.Registry) PlannerOption {
	return func(plnr *Planner) {
		plnr.catalog = cat
	}
}

// WithExecutor pins the executor agent, bypassing catalog resolution.
func WithExecutor(name string) PlannerOption {
	return func(plnr *Planner) {
		plnr.executor = name
	}
}

func NewPlanner(
	name string,
	bus transport.Interface,
	registry *manifest.Registry,
	oracle provider.Interface,
	opts ...PlannerOption,
) *Planner {
	plnr := &Planner{
		name:     name,
		bus:      bus,
		registry: registry,
		oracle:   oracle,
		tasks:    make(map[string]*TaskView),
	}

	for _, opt := range opts {
		opt(plnr)
	}

	return plnr
}

/*
Start joins the planner's partition and folds incoming status and
result messages into the task views until ctx is cancelled.
*/
func (plnr *Planner) Start(ctx context.Context, opts ...transport.SubscribeOption) error {
	log.Info("planner starting", "agent", plnr.name)
	return plnr.bus.Subscribe(ctx, plnr.name, plnr.Handle, opts...)
}

/*
CreatePlan asks the oracle for an ordered step list. Oracle replies are
expected to be JSON-shaped but rarely arrive clean, so the first
balanced object span is cut out of the text before parsing. Any oracle
or parse failure falls back to the heuristic plan.
*/
func (plnr *Planner) CreatePlan(ctx context.Context, goal, planContext string) *Plan {
	reply, err := plnr.oracle.Generate(ctx, plnr.buildPrompt(goal, planContext))

	if err != nil {
		log.Warn("planning oracle failed, using heuristic plan", "error", err)
		return plnr.heuristicPlan(goal)
	}

	span, ok := firstBalancedObject(reply)

	if !ok {
		log.Warn("oracle reply carries no JSON object, using heuristic plan")
		return plnr.heuristicPlan(goal)
	}

	var plan Plan

	if err := json.Unmarshal([]byte(span), &plan); err != nil {
		log.Warn("failed to parse oracle plan, using heuristic plan", "error", err)
		return plnr.heuristicPlan(goal)
	}

	if len(plan.Steps) == 0 {
		log.Warn("oracle plan has no steps, using heuristic plan")
		return plnr.heuristicPlan(goal)
	}

	if plan.PlanID == "" {
		plan.PlanID = uuid.NewString()
	}

	plan.Goal = goal
	log.Info("plan created", "plan_id", plan.PlanID, "steps", len(plan.Steps))
	return &plan
}

/*
ExecutePlan emits one TASK_REQUEST per step and returns the synthesized
task ids in step order. Steps are fire-and-forget: cross-step
dependency sequencing lives above this layer, in the requester.
*/
func (plnr *Planner) ExecutePlan(ctx context.Context, plan *Plan, traceID string) ([]string, error) {
	executor := plnr.resolveExecutor()
	taskIDs := make([]string, 0, len(plan.Steps))

	for _, step := range plan.Steps {
		taskID := uuid.NewString()
		msg := a2a.NewTaskRequest(plnr.name, executor, taskID, step.ToolID, step.Inputs, traceID)

		if err := plnr.bus.Publish(ctx, msg); err != nil {
			return taskIDs, err
		}

		plnr.mu.Lock()
		plnr.tasks[taskID] = &TaskView{
			TaskID: taskID,
			ToolID: step.ToolID,
			Status: a2a.StatusQueued,
		}
		plnr.mu.Unlock()

		taskIDs = append(taskIDs, taskID)
		log.Info("task emitted", "task_id", taskID, "tool", step.ToolID, "plan_id", plan.PlanID)
	}

	return taskIDs, nil
}

/*
Handle folds one delivered message into the task views. Status and
result messages for task ids this planner never emitted are logged and
acknowledged.
*/
func (plnr *Planner) Handle(ctx context.Context, msg *a2a.Message) error {
	switch payload := msg.Payload.(type) {
	case *a2a.TaskStatus:
		plnr.applyStatus(payload)
	case *a2a.TaskResult:
		plnr.applyResult(payload)
	default:
		log.Debug("ignoring message type", "type", msg.Type, "message_id", msg.MessageID)
	}

	return nil
}

func (plnr *Planner) applyStatus(status *a2a.TaskStatus) {
	plnr.mu.Lock()
	defer plnr.mu.Unlock()

	task, ok := plnr.tasks[status.TaskID]

	if !ok {
		log.Warn("status for unknown task", "task_id", status.TaskID)
		return
	}

	if terminalStatus(task.Status) {
		// A terminal result already landed; late or redelivered status
		// updates must not reopen the task.
		return
	}

	task.Status = status.Status

	// At-least-once delivery duplicates and reorders status messages;
	// keep only the highest progress seen.
	if status.Progress != nil && *status.Progress > task.Progress {
		task.Progress = *status.Progress
	}
}

func (plnr *Planner) applyResult(result *a2a.TaskResult) {
	plnr.mu.Lock()
	defer plnr.mu.Unlock()

	task, ok := plnr.tasks[result.TaskID]

	if !ok {
		log.Warn("result for unknown task", "task_id", result.TaskID)
		return
	}

	if terminalStatus(task.Status) {
		return
	}

	task.Status = result.Status
	task.Outputs = result.Outputs
	task.Error = result.Error
	task.Artifacts = result.Artifacts

	if result.Status == a2a.StatusCompleted {
		task.Progress = 1.0
	}

	log.Info("task result recorded", "task_id", result.TaskID, "status", result.Status)
}

// Task returns a snapshot of one emitted task's view.
func (plnr *Planner) Task(taskID string) (TaskView, bool) {
	plnr.mu.Lock()
	defer plnr.mu.Unlock()

	task, ok := plnr.tasks[taskID]

	if !ok {
		return TaskView{}, false
	}

	return *task, true
}

// Tasks returns snapshots of every emitted task's view.
func (plnr *Planner) Tasks() []TaskView {
	plnr.mu.Lock()
	defer plnr.mu.Unlock()

	views := make([]TaskView, 0, len(plnr.tasks))

	for _, task := range plnr.tasks {
		views = append(views, *task)
	}

	return views
}

func (plnr *Planner) resolveExecutor() string {
	if plnr.executor != "" {
		return plnr.executor
	}

	if plnr.catalog != nil {
		if card := plnr.catalog.ResolveRole(catalog.RoleExecutor); card.Name != "" {
			return card.Name
		}
	}

	return DefaultExecutorAgent
}

func (plnr *Planner) buildPrompt(goal, planContext string) string {
	var sb strings.Builder

	sb.WriteString("You are a research planning agent. Produce a JSON plan for the goal below.\n\n")
	sb.WriteString("Goal: " + goal + "\n")

	if planContext != "" {
		sb.WriteString("Context: " + planContext + "\n")
	}

	sb.WriteString("\nAvailable tools:\n")

	for _, tool := range plnr.registry.List() {
		sb.WriteString(fmt.Sprintf("- %s: %s (inputs:", tool.ToolID, tool.Description))

		for name, spec := range tool.Inputs {
			sb.WriteString(" " + name + ":" + spec.Type)

			if spec.Required {
				sb.WriteString("!")
			}
		}

		sb.WriteString(")\n")
	}

	sb.WriteString("\nRespond with exactly one JSON object of the form ")
	sb.WriteString(`{"plan_id": "...", "steps": [{"step_id": "...", "tool_id": "...", "inputs": {...}, "depends_on": []}]}`)
	sb.WriteString(" and nothing else.")

	return sb.String()
}

/*
heuristicPlan is the degraded-mode fallback: a dataset mention becomes
a download step, and every goal gets an exploratory analysis step.
*/
func (plnr *Planner) heuristicPlan(goal string) *Plan {
	plan := &Plan{
		PlanID: uuid.NewString(),
		Goal:   goal,
	}

	lowered := strings.ToLower(goal)

	if strings.Contains(lowered, "dataset") || strings.Contains(lowered, "kaggle") {
		plan.Steps = append(plan.Steps, PlanStep{
			StepID: "step-1",
			ToolID: "kaggle.dataset.download",
			Inputs: map[string]any{"dataset_ref": goal},
		})
	}

	step := PlanStep{
		StepID: fmt.Sprintf("step-%d", len(plan.Steps)+1),
		ToolID: "analyzer.eda",
		Inputs: map[string]any{"dataset_path": "/data"},
	}

	if len(plan.Steps) > 0 {
		step.DependsOn = []string{plan.Steps[0].StepID}
	}

	plan.Steps = append(plan.Steps, step)
	return plan
}

func terminalStatus(status string) bool {
	switch status {
	case a2a.StatusCompleted, a2a.StatusFailed, a2a.StatusRejected:
		return true
	default:
		return false
	}
}

/*
firstBalancedObject cuts the first balanced {...} span out of text,
skipping braces inside JSON string literals. Oracle replies routinely
wrap the object in prose or markdown fences.
*/
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')

	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--

			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
