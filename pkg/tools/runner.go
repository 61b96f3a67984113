package tools

import "context"

/*
Runner is the executor's external computation collaborator. The actual
EDA, AutoML and sandboxed code execution live behind this contract:
success returns the tool outputs, anything else is an error the
orchestrator converts into a failed task result.
*/
type Runner interface {
	Execute(ctx context.Context, toolID string, inputs map[string]any) (map[string]any, error)
}

/*
RunnerFunc adapts a plain function into a Runner.
*/
type RunnerFunc func(ctx context.Context, toolID string, inputs map[string]any) (map[string]any, error)

func (fn RunnerFunc) Execute(ctx context.Context, toolID string, inputs map[string]any) (map[string]any, error) {
	return fn(ctx, toolID, inputs)
}
