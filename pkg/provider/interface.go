package provider

import "context"

/*
Interface abstracts the planning oracle: a single-shot text generation
the planner feeds a prompt describing the goal and the available tools.
Replies are expected to be JSON-shaped but the caller must tolerate
anything.
*/
type Interface interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
