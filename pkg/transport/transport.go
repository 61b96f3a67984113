package transport

import (
	"context"

	"github.com/researchmesh/a2a-go/pkg/a2a"
)

/*
Handler processes one delivered message. Returning an error leaves the
entry unacknowledged so the log redelivers it, which is what gives the
mesh at-least-once delivery; handlers must therefore be idempotent.
*/
type Handler func(ctx context.Context, msg *a2a.Message) error

/*
Interface is the durable, per-recipient ordered log every agent
communicates over. Each recipient has its own partition, named by the
to_agent field, with consumer-group fan-out on reads.
*/
type Interface interface {
	// Publish appends the message to the recipient's partition.
	// Failures are retriable by the caller.
	Publish(ctx context.Context, msg *a2a.Message) error

	// Subscribe loops reading unclaimed entries for the agent and
	// invoking handler, acknowledging only after it returns nil.
	// It blocks until ctx is cancelled or Stop is called, surviving
	// transient read errors.
	Subscribe(ctx context.Context, agentID string, handler Handler, opts ...SubscribeOption) error

	// PendingCount reports delivered-but-unacknowledged entries.
	PendingCount(ctx context.Context, agentID, group string) (int64, error)

	// Stop cooperatively shuts down all subscribe loops.
	Stop()
}

// DefaultGroup is the consumer group agents join unless told otherwise.
const DefaultGroup = "default"

type subscribeConfig struct {
	group    string
	consumer string
}

// SubscribeOption adjusts consumer-group membership for one Subscribe call.
type SubscribeOption func(*subscribeConfig)

// WithGroup joins the subscriber to a named consumer group.
func WithGroup(group string) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.group = group
	}
}

// WithConsumer names this consumer inside its group.
func WithConsumer(consumer string) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.consumer = consumer
	}
}

func newSubscribeConfig(agentID string, opts []SubscribeOption) subscribeConfig {
	cfg := subscribeConfig{
		group:    DefaultGroup,
		consumer: agentID + "-consumer",
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// StreamName returns the log partition an agent receives on.
func StreamName(agentID string) string {
	return "agents:" + agentID
}

// DeadLetterStream returns the partition that parks poisoned entries.
func DeadLetterStream(agentID string) string {
	return StreamName(agentID) + ":dead"
}
