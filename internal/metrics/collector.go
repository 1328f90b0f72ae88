package metrics

import (
	"context"
	"log/slog"
	"sync"
)

type EventType string

const (
	EventCompletion EventType = "completion"
	EventOutcome    EventType = "outcome"
	EventLatency    EventType = "latency"
	EventResult     EventType = "result"
)

type MetricEvent struct {
	Type       EventType
	StatusCode int
	Seconds    float64
	Result     Result
}

// Result is the full outcome of one connection. It travels as a single
// event, so its counters are applied together or dropped together.
type Result struct {
	Code      int
	Completed bool
	Latency   float64
	Observed  bool
}

// Collector receives metric events from relays over a buffered channel and
// applies them to Metrics on a single goroutine. Sends never block: when the
// buffer is full the event is dropped and counted in dropped_events.
// Connection open and close bypass the channel and update the gauge
// directly, so the gauge never loses one half of a pair.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
	done    chan struct{}
	once    sync.Once
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. It stops, after draining, when ctx
// is cancelled. Calling Start more than once has no effect.
func (c *Collector) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.run(ctx)
	})
}

// Done is closed once the consumer has drained and exited.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")
	defer close(c.done)

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCompletion:
		c.metrics.IncrementRequests()

	case EventOutcome:
		c.metrics.RecordStatus(event.StatusCode)

	case EventLatency:
		c.metrics.ObserveLatency(event.Seconds)

	case EventResult:
		if event.Result.Completed {
			c.metrics.IncrementRequests()
		}
		c.metrics.RecordStatus(event.Result.Code)
		if event.Result.Observed {
			c.metrics.ObserveLatency(event.Result.Latency)
		}
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) emit(event MetricEvent) {
	select {
	case c.eventCh <- event:
	default:
		c.metrics.IncrementDroppedEvents()
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) RecordCompletion() {
	c.emit(MetricEvent{Type: EventCompletion})
}

func (c *Collector) RecordOutcome(code int) {
	c.emit(MetricEvent{Type: EventOutcome, StatusCode: code})
}

func (c *Collector) RecordLatency(seconds float64) {
	c.emit(MetricEvent{Type: EventLatency, Seconds: seconds})
}

// RecordResult reports a connection's completion, outcome and latency as one
// event.
func (c *Collector) RecordResult(r Result) {
	c.emit(MetricEvent{Type: EventResult, Result: r})
}

func (c *Collector) ConnectionOpened() {
	c.metrics.AddBackendConnections(1)
}

func (c *Collector) ConnectionClosed() {
	c.metrics.AddBackendConnections(-1)
}

// Metrics returns the collectors events are applied to.
func (c *Collector) Metrics() *Metrics {
	return c.metrics
}
