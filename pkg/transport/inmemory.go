package transport

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/a2a"
	"github.com/researchmesh/a2a-go/pkg/metrics"
)

/*
InMemoryTransport implements the same per-recipient log with
consumer-group semantics as the Redis transport, inside one process.
Used by tests and by single-node deployments that run all agents in
one binary. Delivery is still at-least-once: a handler error leaves
the entry pending and it is redelivered on the next loop pass.
*/
type InMemoryTransport struct {
	mu            sync.Mutex
	streams       map[string]*memStream
	maxDeliveries int
	metrics       *metrics.DeliveryMetrics

	notify chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
}

// MemoryOption adjusts in-memory transport behavior.
type MemoryOption func(*InMemoryTransport)

// WithMemoryMetrics records delivery counters into m.
func WithMemoryMetrics(m *metrics.DeliveryMetrics) MemoryOption {
	return func(t *InMemoryTransport) {
		t.metrics = m
	}
}

type memStream struct {
	entries     []*memEntry
	groups      map[string]*memGroup
	deadLetters [][]byte
}

type memEntry struct {
	seq  int
	data []byte
}

type memGroup struct {
	cursor  int
	pending map[int]*memPending
}

type memPending struct {
	entry      *memEntry
	deliveries int
}

// NewInMemoryTransport creates an empty in-process log.
func NewInMemoryTransport(opts ...MemoryOption) *InMemoryTransport {
	transport := &InMemoryTransport{
		streams:       make(map[string]*memStream),
		maxDeliveries: 5,
		notify:        make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(transport)
	}

	return transport
}

func (t *InMemoryTransport) stream(name string) *memStream {
	stream, ok := t.streams[name]

	if !ok {
		stream = &memStream{groups: make(map[string]*memGroup)}
		t.streams[name] = stream
	}

	return stream
}

func (s *memStream) group(name string) *memGroup {
	group, ok := s.groups[name]

	if !ok {
		group = &memGroup{pending: make(map[int]*memPending)}
		s.groups[name] = group
	}

	return group
}

/*
Publish appends the serialized message to the recipient's stream.
*/
func (t *InMemoryTransport) Publish(ctx context.Context, msg *a2a.Message) error {
	data, err := msg.Marshal()

	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordPublish(false)
		}

		return err
	}

	if t.metrics != nil {
		t.metrics.RecordPublish(true)
	}

	t.mu.Lock()
	stream := t.stream(StreamName(msg.ToAgent))
	stream.entries = append(stream.entries, &memEntry{
		seq:  len(stream.entries),
		data: data,
	})
	t.mu.Unlock()

	select {
	case t.notify <- struct{}{}:
	default:
	}

	return nil
}

/*
Subscribe loops over the agent's stream, redelivering pending entries
before pulling new ones so per-recipient order is preserved.
*/
func (t *InMemoryTransport) Subscribe(ctx context.Context, agentID string, handler Handler, opts ...SubscribeOption) error {
	cfg := newSubscribeConfig(agentID, opts)
	streamName := StreamName(agentID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.stop:
			return nil
		default:
		}

		batch := t.claimBatch(streamName, cfg.group)

		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-t.stop:
				return nil
			case <-t.notify:
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		for _, pending := range batch {
			t.handleEntry(ctx, streamName, cfg.group, pending, handler)
		}
	}
}

/*
claimBatch returns pending entries due for redelivery followed by new
entries, dead-lettering anything past the delivery budget.
*/
func (t *InMemoryTransport) claimBatch(streamName, groupName string) []*memPending {
	t.mu.Lock()
	defer t.mu.Unlock()

	stream := t.stream(streamName)
	group := stream.group(groupName)

	batch := make([]*memPending, 0, readBatchSize)

	for seq := 0; seq < len(stream.entries) && len(batch) < readBatchSize; seq++ {
		pending, ok := group.pending[seq]

		if !ok {
			continue
		}

		if pending.deliveries >= t.maxDeliveries {
			stream.deadLetters = append(stream.deadLetters, pending.entry.data)
			delete(group.pending, seq)

			if t.metrics != nil {
				t.metrics.RecordDeadLetter()
			}

			log.Warn("parked entry on dead-letter queue", "stream", streamName, "seq", seq)
			continue
		}

		pending.deliveries++

		if t.metrics != nil {
			t.metrics.RecordDelivery(true)
		}

		batch = append(batch, pending)
	}

	for group.cursor < len(stream.entries) && len(batch) < readBatchSize {
		entry := stream.entries[group.cursor]
		group.cursor++

		pending := &memPending{entry: entry, deliveries: 1}
		group.pending[entry.seq] = pending

		if t.metrics != nil {
			t.metrics.RecordDelivery(false)
		}

		batch = append(batch, pending)
	}

	return batch
}

func (t *InMemoryTransport) handleEntry(ctx context.Context, streamName, groupName string, pending *memPending, handler Handler) {
	msg, err := a2a.Unmarshal(pending.entry.data)

	if err != nil {
		if t.metrics != nil {
			t.metrics.RecordHandlerFailure()
		}

		log.Error("malformed message left pending", "stream", streamName, "error", err)
		return
	}

	start := time.Now()

	if err := handler(ctx, msg); err != nil {
		if t.metrics != nil {
			t.metrics.RecordHandlerFailure()
		}

		log.Error("handler failed, entry left pending", "stream", streamName, "error", err)
		return
	}

	if t.metrics != nil {
		t.metrics.RecordAck(time.Since(start))
	}

	t.mu.Lock()
	delete(t.stream(streamName).group(groupName).pending, pending.entry.seq)
	t.mu.Unlock()
}

/*
PendingCount reports delivered-but-unacknowledged entries for a group.
*/
func (t *InMemoryTransport) PendingCount(ctx context.Context, agentID, group string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stream, ok := t.streams[StreamName(agentID)]

	if !ok {
		return 0, nil
	}

	return int64(len(stream.group(group).pending)), nil
}

/*
DeadLetters returns the messages parked for an agent after exhausting
their delivery budget. Observability hook, mainly for tests.
*/
func (t *InMemoryTransport) DeadLetters(agentID string) []*a2a.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	stream, ok := t.streams[StreamName(agentID)]

	if !ok {
		return nil
	}

	messages := make([]*a2a.Message, 0, len(stream.deadLetters))

	for _, data := range stream.deadLetters {
		if msg, err := a2a.Unmarshal(data); err == nil {
			messages = append(messages, msg)
		}
	}

	return messages
}

// Stop shuts down all subscribe loops.
func (t *InMemoryTransport) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}

var _ Interface = (*InMemoryTransport)(nil)
var _ Interface = (*RedisTransport)(nil)
