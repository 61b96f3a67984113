package transport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/errors"
	"github.com/researchmesh/a2a-go/pkg/metrics"
)

const (
	readBatchSize = 10
	readBlock     = time.Second
	reclaimIdle   = 30 * time.Second
)

/*
RedisTransport carries mesh messages over Redis Streams. One stream per
recipient agent, consumer groups for fan-out, explicit acknowledgment
after the handler succeeds. Entries whose handler keeps failing are
parked on a dead-letter stream once they exceed the delivery budget,
so a poisoned message cannot be redelivered forever.
*/
type RedisTransport struct {
	client        *redis.Client
	maxDeliveries int64
	retry         *errors.RetryConfig
	metrics       *metrics.DeliveryMetrics

	stopOnce sync.Once
	stop     chan struct{}
}

// RedisOption adjusts transport behavior.
type RedisOption func(*RedisTransport)

// WithMaxDeliveries sets the delivery budget before dead-lettering.
func WithMaxDeliveries(n int64) RedisOption {
	return func(t *RedisTransport) {
		t.maxDeliveries = n
	}
}

// WithMetrics records delivery counters into m.
func WithMetrics(m *metrics.DeliveryMetrics) RedisOption {
	return func(t *RedisTransport) {
		t.metrics = m
	}
}

// NewRedisTransport connects to the Redis instance at addr.
func NewRedisTransport(addr string, opts ...RedisOption) *RedisTransport {
	transport := &RedisTransport{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		maxDeliveries: 5,
		retry: &errors.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      time.Second,
			BackoffFactor: 2.0,
		},
		stop: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(transport)
	}

	return transport
}

/*
Publish appends the serialized message to the recipient's stream,
retrying transient connectivity failures with backoff.
*/
func (t *RedisTransport) Publish(ctx context.Context, msg *a2a.Message) error {
	data, err := msg.Marshal()

	if err != nil {
		return err
	}

	stream := StreamName(msg.ToAgent)

	err = errors.RetryWithBackoff(t.retry, func() error {
		return t.client.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			Values: map[string]any{"message": string(data)},
		}).Err()
	})

	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordPublish(false)
		}

		log.Error("failed to publish message", "stream", stream, "type", msg.Type, "error", err)
		return errors.ErrTransport.WithMessagef("failed to publish to %s: %v", stream, err)
	}

	if t.metrics != nil {
		t.metrics.RecordPublish(true)
	}

	log.Info("published message", "stream", stream, "type", msg.Type, "trace", msg.TraceID)
	return nil
}

/*
Subscribe joins the agent's consumer group and loops reading batches.
Acknowledgment happens only after the handler returns nil; a handler
error leaves the entry pending so it is redelivered to this or another
group member. Transient read errors are logged and the loop continues.
*/
func (t *RedisTransport) Subscribe(ctx context.Context, agentID string, handler Handler, opts ...SubscribeOption) error {
	cfg := newSubscribeConfig(agentID, opts)
	stream := StreamName(agentID)

	if err := t.ensureGroup(ctx, stream, cfg.group); err != nil {
		return err
	}

	log.Info("subscribed", "stream", stream, "group", cfg.group, "consumer", cfg.consumer)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		default:
		}

		t.reclaim(ctx, stream, cfg, handler)

		streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    cfg.group,
			Consumer: cfg.consumer,
			Streams:  []string{stream, ">"},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()

		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}

			log.Error("error reading from stream", "stream", stream, "error", err)

			select {
			case <-time.After(readBlock):
			case <-ctx.Done():
				return nil
			case <-t.stop:
				return nil
			}
			continue
		}

		for _, result := range streams {
			for _, entry := range result.Messages {
				t.handleEntry(ctx, stream, cfg, entry, handler, false)
			}
		}
	}
}

/*
reclaim takes over entries another consumer left pending for too long
and dead-letters those that have exhausted their delivery budget.
*/
func (t *RedisTransport) reclaim(ctx context.Context, stream string, cfg subscribeConfig, handler Handler) {
	claimed, _, err := t.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    cfg.group,
		Consumer: cfg.consumer,
		MinIdle:  reclaimIdle,
		Start:    "0-0",
		Count:    readBatchSize,
	}).Result()

	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			log.Error("failed to reclaim pending entries", "stream", stream, "error", err)
		}
		return
	}

	for _, entry := range claimed {
		if t.deliveries(ctx, stream, cfg.group, entry.ID) > t.maxDeliveries {
			t.deadLetter(ctx, stream, cfg.group, entry)
			continue
		}

		t.handleEntry(ctx, stream, cfg, entry, handler, true)
	}
}

func (t *RedisTransport) deliveries(ctx context.Context, stream, group, id string) int64 {
	pending, err := t.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()

	if err != nil || len(pending) == 0 {
		return 0
	}

	return pending[0].RetryCount
}

func (t *RedisTransport) deadLetter(ctx context.Context, stream, group string, entry redis.XMessage) {
	if t.metrics != nil {
		t.metrics.RecordDeadLetter()
	}

	log.Warn("parking entry on dead-letter stream", "stream", stream, "entry", entry.ID)

	if err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream + ":dead",
		Values: entry.Values,
	}).Err(); err != nil {
		log.Error("failed to dead-letter entry", "stream", stream, "entry", entry.ID, "error", err)
		return
	}

	t.ack(ctx, stream, group, entry.ID)
}

func (t *RedisTransport) handleEntry(ctx context.Context, stream string, cfg subscribeConfig, entry redis.XMessage, handler Handler, redelivered bool) {
	if t.metrics != nil {
		t.metrics.RecordDelivery(redelivered)
	}

	raw, ok := entry.Values["message"].(string)

	if !ok {
		// Not even the right shape: no amount of redelivery will fix it.
		t.deadLetter(ctx, stream, cfg.group, entry)
		return
	}

	msg, err := a2a.Unmarshal([]byte(raw))

	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordHandlerFailure()
		}

		log.Error("malformed message left pending", "stream", stream, "entry", entry.ID, "error", err)
		return
	}

	start := time.Now()

	if err := handler(ctx, msg); err != nil {
		if t.metrics != nil {
			t.metrics.RecordHandlerFailure()
		}

		log.Error("handler failed, entry left pending", "stream", stream, "entry", entry.ID, "error", err)
		return
	}

	if t.metrics != nil {
		t.metrics.RecordAck(time.Since(start))
	}

	t.ack(ctx, stream, cfg.group, entry.ID)
}

func (t *RedisTransport) ack(ctx context.Context, stream, group, id string) {
	if err := t.client.XAck(ctx, stream, group, id).Err(); err != nil {
		log.Error("failed to ack entry", "stream", stream, "entry", id, "error", err)
	}
}

func (t *RedisTransport) ensureGroup(ctx context.Context, stream, group string) error {
	err := t.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()

	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.ErrTransport.WithMessagef("failed to create consumer group %s on %s: %v", group, stream, err)
	}

	return nil
}

/*
PendingCount reports delivered-but-unacknowledged entries for a group.
*/
func (t *RedisTransport) PendingCount(ctx context.Context, agentID, group string) (int64, error) {
	pending, err := t.client.XPending(ctx, StreamName(agentID), group).Result()

	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errors.ErrTransport.WithMessagef("failed to query pending entries: %v", err)
	}

	return pending.Count, nil
}

// Stop shuts down all subscribe loops.
func (t *RedisTransport) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}
