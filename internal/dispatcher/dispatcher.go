package dispatcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/metrics"
	"github.com/angeloszaimis/typesense-client/internal/node"
	"github.com/angeloszaimis/typesense-client/internal/pool"
	"github.com/angeloszaimis/typesense-client/pkg/apierror"
	"github.com/angeloszaimis/typesense-client/pkg/logger"
)

// APIKeyHeader carries the API key on every request.
const APIKeyHeader = "X-TYPESENSE-API-KEY"

const (
	tracerName = "github.com/angeloszaimis/typesense-client/internal/dispatcher"
	userAgent  = "typesense-client-go/1.0"
)

// Dispatcher sends requests to the cluster, retrying transient failures on
// other nodes. Each call runs its attempts sequentially on the caller's
// goroutine; the dispatcher starts no goroutines of its own.
//
// There is no deadline spanning a whole call besides ctx. Without one, a call
// takes at most (connection timeout + retry interval) * (retries + 1).
type Dispatcher struct {
	pool          *pool.Pool
	client        *resty.Client
	retries       int
	retryInterval time.Duration

	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
	collector *metrics.Collector

	closeOnce sync.Once
	closed    atomic.Bool
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer overrides the tracer taken from the global OpenTelemetry
// provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithCollector reports selections, attempts, retries and health changes to
// the collector. The caller owns the collector and starts it.
func WithCollector(collector *metrics.Collector) Option {
	return func(d *Dispatcher) {
		d.collector = collector
	}
}

// WithClock replaces time.Now for health bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New validates cfg and builds the node pool and the shared HTTP client.
// Close must be called to release the client's connections.
func New(cfg *config.Config, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Dispatcher{
		retries:       cfg.Retry.Count,
		retryInterval: cfg.RetryInterval(),
		now:           time.Now,
		logger:        logger.Discard(),
		tracer:        otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(d)
	}

	p, err := pool.FromConfig(cfg,
		pool.WithClock(d.now),
		pool.WithLogger(d.logger),
		pool.WithHealthObserver(d.observeHealth),
	)
	if err != nil {
		return nil, err
	}
	d.pool = p

	d.client = resty.New().
		SetTimeout(cfg.ConnectionTimeoutDuration()).
		SetHeader(APIKeyHeader, cfg.APIKey).
		SetHeader("User-Agent", userAgent).
		SetLogger(restyLogger{logger: d.logger})

	if !cfg.VerifyTLS() {
		d.client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) // disabled by configuration
	}

	return d, nil
}

// Request runs the attempt loop and returns the body of the first 2xx
// response. Transport failures, 500 and 503 mark the node unhealthy and are
// retried on a freshly selected node up to the retry budget; any other error
// status is returned immediately.
func (d *Dispatcher) Request(ctx context.Context, method, endpoint string, params Params, body any) ([]byte, error) {
	if d.closed.Load() {
		return nil, apierror.ErrClosed
	}

	query, err := NormalizeParams(params)
	if err != nil {
		return nil, err
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	ctx, span := d.tracer.Start(ctx, "typesense "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("typesense.endpoint", endpoint),
		),
	)
	defer span.End()

	d.logger.Debug("Making request",
		slog.String("method", method),
		slog.String("endpoint", endpoint))

	budget := d.retries + 1
	var lastErr error

	for attempt := 1; attempt <= budget; attempt++ {
		n := d.pool.Select()
		d.collector.Emit(metrics.MetricEvent{Type: metrics.EventNodeSelected, Node: n.String()})

		d.logger.Debug("Sending attempt",
			slog.Int("attempt", attempt),
			slog.String("node", n.String()),
			slog.Bool("healthy", n.IsHealthy()))

		raw, status, err := d.attempt(ctx, n, method, endpoint, query, payload, contentType)
		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("node", n.String()),
			attribute.Int("http.status_code", status),
		))

		if err == nil {
			span.SetAttributes(attribute.Int("typesense.attempts", attempt))
			return raw, nil
		}

		if !apierror.Retryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		d.pool.MarkHealth(n, false)
		lastErr = err

		d.logger.Debug("Request to node failed",
			slog.String("node", n.String()),
			slog.Any("err", err))

		if attempt == budget {
			break
		}

		d.collector.Emit(metrics.MetricEvent{Type: metrics.EventRetryScheduled, Node: n.String()})
		d.logger.Debug("Sleeping before retry", slog.Duration("interval", d.retryInterval))

		if err := d.wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	d.logger.Debug("No retries left, returning last error", slog.Any("err", lastErr))
	span.SetAttributes(attribute.Int("typesense.attempts", budget))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())

	return nil, lastErr
}

// attempt sends one request to n and reports the status it answered with,
// 0 when it did not answer.
func (d *Dispatcher) attempt(ctx context.Context, n *node.Node, method, endpoint string, query map[string]string, payload []byte, contentType string) ([]byte, int, error) {
	req := d.client.R().
		SetContext(ctx).
		SetQueryParams(query)

	if payload != nil {
		req.SetHeader("Content-Type", contentType).SetBody(payload)
	}

	start := time.Now()
	resp, err := req.Execute(method, n.URL()+endpoint)
	duration := time.Since(start)

	if err != nil {
		// The caller gave up; that says nothing about the node.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apierror.StatusNone, ctxErr
		}

		d.recordAttempt(n, duration, apierror.StatusNone)
		return nil, apierror.StatusNone, apierror.Transport(err)
	}

	status := resp.StatusCode()
	d.recordAttempt(n, duration, status)

	// Some transports report 0 on failure, so only real statuses below 500
	// count as evidence the node is alive.
	if status > 0 && status < http.StatusInternalServerError {
		d.pool.MarkHealth(n, true)
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, status, apierror.New(status, errorMessage(resp))
	}

	return resp.Body(), status, nil
}

// Probe sends GET endpoint to n directly, bypassing selection and retries.
// It does not record health; callers decide what the status means.
func (d *Dispatcher) Probe(ctx context.Context, n *node.Node, endpoint string) (int, []byte, error) {
	if d.closed.Load() {
		return apierror.StatusNone, nil, apierror.ErrClosed
	}

	resp, err := d.client.R().SetContext(ctx).Get(n.URL() + endpoint)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apierror.StatusNone, nil, ctxErr
		}
		return apierror.StatusNone, nil, apierror.Transport(err)
	}

	return resp.StatusCode(), resp.Body(), nil
}

// wait pauses for the retry interval, returning early when ctx ends.
func (d *Dispatcher) wait(ctx context.Context) error {
	if d.retryInterval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d.retryInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (d *Dispatcher) recordAttempt(n *node.Node, duration time.Duration, status int) {
	d.collector.Emit(metrics.MetricEvent{
		Type:       metrics.EventAttemptCompleted,
		Node:       n.String(),
		Duration:   duration,
		StatusCode: status,
	})
}

func (d *Dispatcher) observeHealth(n *node.Node, healthy, changed bool) {
	if !changed {
		return
	}

	d.collector.Emit(metrics.MetricEvent{
		Type:    metrics.EventHealthChanged,
		Node:    n.String(),
		Healthy: healthy,
	})
}

// Pool exposes the node pool, e.g. for active health checks.
func (d *Dispatcher) Pool() *pool.Pool {
	return d.pool
}

// Close releases idle connections of the shared client. It is safe to call
// more than once; requests issued afterwards fail with apierror.ErrClosed.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.client.GetClient().CloseIdleConnections()
		d.logger.Debug("Dispatcher closed")
	})

	return nil
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}
