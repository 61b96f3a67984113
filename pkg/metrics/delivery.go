package metrics

import (
	"sync"
	"time"
)

// DeliveryMetrics tracks transport performance counters. One instance
// is shared between the publish and subscribe sides of a transport.
type DeliveryMetrics struct {
	mu sync.RWMutex

	// Publish side
	Published       int64
	PublishFailures int64

	// Delivery side
	Delivered       int64
	Redelivered     int64
	Acked           int64
	HandlerFailures int64
	DeadLettered    int64
	HandlerTime     time.Duration
}

// NewDeliveryMetrics creates a zeroed metrics instance.
func NewDeliveryMetrics() *DeliveryMetrics {
	return &DeliveryMetrics{}
}

// RecordPublish records one publish attempt.
func (m *DeliveryMetrics) RecordPublish(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.Published++
	} else {
		m.PublishFailures++
	}
}

// RecordDelivery records one handler invocation.
func (m *DeliveryMetrics) RecordDelivery(redelivery bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Delivered++

	if redelivery {
		m.Redelivered++
	}
}

// RecordAck records a successful handler run and its duration.
func (m *DeliveryMetrics) RecordAck(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Acked++
	m.HandlerTime += duration
}

// RecordHandlerFailure records a handler error that left the entry pending.
func (m *DeliveryMetrics) RecordHandlerFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HandlerFailures++
}

// RecordDeadLetter records an entry parked after exhausting its
// delivery budget.
func (m *DeliveryMetrics) RecordDeadLetter() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeadLettered++
}

// Snapshot returns a copy safe to read without holding the lock.
func (m *DeliveryMetrics) Snapshot() DeliveryMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return DeliveryMetrics{
		Published:       m.Published,
		PublishFailures: m.PublishFailures,
		Delivered:       m.Delivered,
		Redelivered:     m.Redelivered,
		Acked:           m.Acked,
		HandlerFailures: m.HandlerFailures,
		DeadLettered:    m.DeadLettered,
		HandlerTime:     m.HandlerTime,
	}
}

// AverageHandlerTime returns the mean handler duration across acked
// deliveries.
func (m *DeliveryMetrics) AverageHandlerTime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Acked == 0 {
		return 0
	}

	return m.HandlerTime / time.Duration(m.Acked)
}
