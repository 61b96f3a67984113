package agent

import (
	"context"
	"testing"

	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type oracleFunc func(ctx context.Context, prompt string) (string, error)

func (fn oracleFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return fn(ctx, prompt)
}

func newTestPlanner(oracle oracleFunc) (*Planner, *busRecorder) {
	rec := &busRecorder{}

	plnr := NewPlanner("planner.agent.v1", rec, testRegistry(), oracle,
		WithExecutor("executor.agent.v1"))

	return plnr, rec
}

func TestCreatePlanParsesOracleReply(t *testing.T) {
	reply := "Here is your plan:\n```json\n" +
		`{"plan_id": "plan-1", "steps": [` +
		`{"step_id": "s1", "tool_id": "kaggle.dataset.download", "inputs": {"dataset_ref": "titanic"}},` +
		`{"step_id": "s2", "tool_id": "analyzer.eda", "inputs": {"dataset_path": "/data/titanic"}, "depends_on": ["s1"]}` +
		`]}` + "\n```\nGood luck!"

	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return reply, nil
	})

	plan := plnr.CreatePlan(context.Background(), "analyze titanic", "")

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "plan-1", plan.PlanID)
	assert.Equal(t, "kaggle.dataset.download", plan.Steps[0].ToolID)
	assert.Equal(t, []string{"s1"}, plan.Steps[1].DependsOn)
	assert.Equal(t, "analyze titanic", plan.Goal)
}

func TestCreatePlanFallsBackOnOracleFailure(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.ErrExecution.WithMessagef("oracle offline")
	})

	plan := plnr.CreatePlan(context.Background(), "look at the numbers", "")

	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "analyzer.eda", plan.Steps[0].ToolID)
	assert.NotEmpty(t, plan.PlanID)
}

func TestCreatePlanFallsBackOnGarbageReply(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "I cannot help with that.", nil
	})

	plan := plnr.CreatePlan(context.Background(), "look at the numbers", "")
	require.Len(t, plan.Steps, 1)
}

func TestCreatePlanFallsBackOnEmptySteps(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return `{"plan_id": "empty", "steps": []}`, nil
	})

	plan := plnr.CreatePlan(context.Background(), "look at the numbers", "")
	require.NotEmpty(t, plan.Steps)
	assert.NotEqual(t, "empty", plan.PlanID)
}

func TestHeuristicPlanDetectsDatasetGoal(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.ErrExecution.WithMessagef("oracle offline")
	})

	plan := plnr.CreatePlan(context.Background(), "Analyze the titanic dataset", "")

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "kaggle.dataset.download", plan.Steps[0].ToolID)
	assert.Equal(t, "analyzer.eda", plan.Steps[1].ToolID)
	assert.Equal(t, []string{plan.Steps[0].StepID}, plan.Steps[1].DependsOn)
}

func TestExecutePlanEmitsRequestsInStepOrder(t *testing.T) {
	plnr, rec := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", errors.ErrExecution.WithMessagef("oracle offline")
	})

	plan := &Plan{
		PlanID: "plan-2",
		Steps: []PlanStep{
			{StepID: "s1", ToolID: "kaggle.dataset.download", Inputs: map[string]any{"dataset_ref": "titanic"}},
			{StepID: "s2", ToolID: "analyzer.eda", Inputs: map[string]any{"dataset_path": "/data/titanic"}},
		},
	}

	taskIDs, err := plnr.ExecutePlan(context.Background(), plan, "trace-plan")
	require.NoError(t, err)
	require.Len(t, taskIDs, 2)

	published := rec.published()
	require.Len(t, published, 2)

	for i, msg := range published {
		assert.Equal(t, a2a.TypeTaskRequest, msg.Type)
		assert.Equal(t, "executor.agent.v1", msg.ToAgent)
		assert.Equal(t, "trace-plan", msg.TraceID)

		req := msg.Payload.(*a2a.TaskRequest)
		assert.Equal(t, taskIDs[i], req.TaskID)
		assert.Equal(t, plan.Steps[i].ToolID, req.ToolID)
	}

	task, ok := plnr.Task(taskIDs[0])
	require.True(t, ok)
	assert.Equal(t, a2a.StatusQueued, task.Status)
}

func TestProgressOnlyMovesUp(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", nil
	})

	plan := &Plan{Steps: []PlanStep{{StepID: "s1", ToolID: "analyzer.eda", Inputs: map[string]any{}}}}
	taskIDs, err := plnr.ExecutePlan(context.Background(), plan, "trace-prog")
	require.NoError(t, err)

	taskID := taskIDs[0]
	ctx := context.Background()

	status := func(progress float64) *a2a.Message {
		return a2a.NewTaskStatus("executor.agent.v1", "planner.agent.v1",
			taskID, a2a.StatusRunning, a2a.Float(progress), "", "trace-prog")
	}

	require.NoError(t, plnr.Handle(ctx, status(0.5)))

	// A late, lower progress update must not rewind the view.
	require.NoError(t, plnr.Handle(ctx, status(0.2)))

	task, _ := plnr.Task(taskID)
	assert.Equal(t, 0.5, task.Progress)
	assert.Equal(t, a2a.StatusRunning, task.Status)
}

func TestTerminalResultIsAppliedOnce(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", nil
	})

	plan := &Plan{Steps: []PlanStep{{StepID: "s1", ToolID: "analyzer.eda", Inputs: map[string]any{}}}}
	taskIDs, err := plnr.ExecutePlan(context.Background(), plan, "trace-term")
	require.NoError(t, err)

	taskID := taskIDs[0]
	ctx := context.Background()

	completed := a2a.NewTaskResult("executor.agent.v1", "planner.agent.v1",
		taskID, a2a.StatusCompleted, map[string]any{"rows": 100.0}, "", "trace-term")

	require.NoError(t, plnr.Handle(ctx, completed))
	require.NoError(t, plnr.Handle(ctx, completed))

	task, _ := plnr.Task(taskID)
	assert.Equal(t, a2a.StatusCompleted, task.Status)
	assert.Equal(t, 1.0, task.Progress)

	// A straggling status after the terminal result is ignored.
	late := a2a.NewTaskStatus("executor.agent.v1", "planner.agent.v1",
		taskID, a2a.StatusRunning, a2a.Float(0.4), "", "trace-term")
	require.NoError(t, plnr.Handle(ctx, late))

	task, _ = plnr.Task(taskID)
	assert.Equal(t, a2a.StatusCompleted, task.Status)
	assert.Equal(t, 1.0, task.Progress)
}

func TestResultForUnknownTaskIsDropped(t *testing.T) {
	plnr, _ := newTestPlanner(func(ctx context.Context, prompt string) (string, error) {
		return "", nil
	})

	stray := a2a.NewTaskResult("executor.agent.v1", "planner.agent.v1",
		"never-emitted", a2a.StatusCompleted, nil, "", "trace-stray")

	require.NoError(t, plnr.Handle(context.Background(), stray))
	assert.Empty(t, plnr.Tasks())
}

func TestFirstBalancedObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, true},
		{"wrapped in prose", `sure: {"a": {"b": 2}} done`, `{"a": {"b": 2}}`, true},
		{"brace inside string", `{"a": "}{"}`, `{"a": "}{"}`, true},
		{"escaped quote", `{"a": "say \"hi\""}`, `{"a": "say \"hi\""}`, true},
		{"no object", "nothing here", "", false},
		{"unbalanced", `{"a": 1`, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := firstBalancedObject(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
