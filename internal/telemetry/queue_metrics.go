package telemetry

import (
	"time"

	"github.com/uber-go/tally/v4"
)

// QueueMetrics tracks the state of one delay queue.
type QueueMetrics struct {
	length        tally.Gauge   // elements currently stored
	popDelay      tally.Timer   // how late an element left after its ready time
	added         tally.Counter // successful insertions
	removed       tally.Counter // successful removals
	offerTimeouts tally.Counter
	pollTimeouts  tally.Counter
	cancelled     tally.Counter // waits abandoned because the context ended
	cleared       tally.Counter // elements discarded by Clear
	poisoned      tally.Counter
	producerWait  tally.Timer // time producers spent blocked on a full queue
	consumerWait  tally.Timer // time consumers spent blocked before receiving
}

// NewQueueMetrics returns metrics registered under scope's "delay_queue"
// sub-scope. A nil scope falls back to tally.NoopScope.
func NewQueueMetrics(scope tally.Scope) *QueueMetrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	queueScope := scope.SubScope("delay_queue")
	return &QueueMetrics{
		length:        queueScope.Gauge("length"),
		popDelay:      queueScope.Timer("pop_delay"),
		added:         queueScope.Counter("added"),
		removed:       queueScope.Counter("removed"),
		offerTimeouts: queueScope.Counter("offer_timeouts"),
		pollTimeouts:  queueScope.Counter("poll_timeouts"),
		cancelled:     queueScope.Counter("cancelled"),
		cleared:       queueScope.Counter("cleared"),
		poisoned:      queueScope.Counter("poisoned"),
		producerWait:  queueScope.Timer("producer_wait"),
		consumerWait:  queueScope.Timer("consumer_wait"),
	}
}

// Added records an insertion that left the queue at length.
func (m *QueueMetrics) Added(length int) {
	m.added.Inc(1)
	m.length.Update(float64(length))
}

// Removed records a removal that left the queue at length. lateness is the
// time between the element's ready time and its removal.
func (m *QueueMetrics) Removed(length int, lateness time.Duration) {
	m.removed.Inc(1)
	m.popDelay.Record(lateness)
	m.length.Update(float64(length))
}

// Cleared records n elements dropped by a clear.
func (m *QueueMetrics) Cleared(n int) {
	m.cleared.Inc(int64(n))
	m.length.Update(0)
}

func (m *QueueMetrics) OfferTimedOut() { m.offerTimeouts.Inc(1) }

func (m *QueueMetrics) PollTimedOut() { m.pollTimeouts.Inc(1) }

func (m *QueueMetrics) Cancelled() { m.cancelled.Inc(1) }

func (m *QueueMetrics) Poisoned() { m.poisoned.Inc(1) }

// TraceProducerWait starts timing a blocked producer and returns the
// function that stops the clock.
func (m *QueueMetrics) TraceProducerWait() func() {
	sw := m.producerWait.Start()
	return sw.Stop
}

// TraceConsumerWait starts timing a blocked consumer and returns the
// function that stops the clock.
func (m *QueueMetrics) TraceConsumerWait() func() {
	sw := m.consumerWait.Start()
	return sw.Stop
}
