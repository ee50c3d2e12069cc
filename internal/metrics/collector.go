package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventNodeSelected     EventType = "node_selected"
	EventAttemptCompleted EventType = "attempt_completed"
	EventRetryScheduled   EventType = "retry_scheduled"
	EventHealthChanged    EventType = "health_changed"
)

// MetricEvent describes one thing the dispatcher observed. StatusCode is 0
// for attempts that never got a response.
type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Node       string
	Duration   time.Duration
	StatusCode int
	Healthy    bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	prom    *promMetrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		prom:    newPromMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. Events are dropped when the buffer
// is full so a slow collector never delays a request.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.logger.Debug("Metrics buffer full, dropping event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

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
	case EventNodeSelected:
		c.metrics.RecordSelection(event.Node)
		c.prom.selections.WithLabelValues(event.Node).Inc()

	case EventAttemptCompleted:
		c.metrics.RecordAttempt(event.Node, event.Duration, event.StatusCode)
		c.prom.attempts.WithLabelValues(event.Node, statusClass(event.StatusCode)).Inc()
		c.prom.attemptDuration.WithLabelValues(event.Node).Observe(event.Duration.Seconds())

	case EventRetryScheduled:
		c.metrics.RecordRetry(event.Node)
		c.prom.retries.WithLabelValues(event.Node).Inc()

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Node, event.Healthy)
		c.prom.nodeHealthy.WithLabelValues(event.Node).Set(boolToFloat(event.Healthy))
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

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
