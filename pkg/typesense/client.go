package typesense

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/dispatcher"
	"github.com/angeloszaimis/typesense-client/internal/metrics"
)

// Params are query parameters. Booleans are sent as "true" and "false".
type Params = dispatcher.Params

// Client is the entry point to a cluster. It is safe for concurrent use.
type Client struct {
	dispatcher *dispatcher.Dispatcher
	collector  *metrics.Collector

	collections    *Collections
	aliases        *Aliases
	keys           *Keys
	analyticsRules *AnalyticsRules
	multiSearch    *MultiSearch
	debug          *Debug
}

type clientOptions struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	collector *metrics.Collector
}

type Option func(*clientOptions)

func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *clientOptions) {
		o.tracer = tracer
	}
}

// WithCollector reports request metrics to collector. The caller starts it.
func WithCollector(collector *metrics.Collector) Option {
	return func(o *clientOptions) {
		o.collector = collector
	}
}

// NewClient validates cfg and connects the resource handles to one
// dispatcher. Close releases its connections.
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	var dopts []dispatcher.Option
	if o.logger != nil {
		dopts = append(dopts, dispatcher.WithLogger(o.logger))
	}
	if o.tracer != nil {
		dopts = append(dopts, dispatcher.WithTracer(o.tracer))
	}
	if o.collector != nil {
		dopts = append(dopts, dispatcher.WithCollector(o.collector))
	}

	d, err := dispatcher.New(cfg, dopts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		dispatcher:     d,
		collector:      o.collector,
		collections:    newCollections(d),
		aliases:        newAliases(d),
		keys:           newKeys(d),
		analyticsRules: newAnalyticsRules(d),
		multiSearch:    &MultiSearch{dispatcher: d},
		debug:          &Debug{dispatcher: d},
	}, nil
}

// Close releases the shared transport. Calls made afterwards fail with
// apierror.ErrClosed.
func (c *Client) Close() error {
	return c.dispatcher.Close()
}

func (c *Client) Collections() *Collections {
	return c.collections
}

// Collection returns the cached handle for the named collection.
func (c *Client) Collection(name string) *Collection {
	return c.collections.Get(name)
}

func (c *Client) Aliases() *Aliases {
	return c.aliases
}

func (c *Client) Alias(name string) *Alias {
	return c.aliases.Get(name)
}

func (c *Client) Keys() *Keys {
	return c.keys
}

func (c *Client) Key(id string) *Key {
	return c.keys.Get(id)
}

func (c *Client) AnalyticsRules() *AnalyticsRules {
	return c.analyticsRules
}

func (c *Client) AnalyticsRule(id string) *AnalyticsRule {
	return c.analyticsRules.Get(id)
}

func (c *Client) MultiSearch() *MultiSearch {
	return c.multiSearch
}

func (c *Client) Debug() *Debug {
	return c.debug
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	OK            bool   `json:"ok"`
	ResourceError string `json:"resource_error,omitempty"`
}

// Health asks the cluster whether it can serve requests.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var status HealthStatus
	err := c.dispatcher.Get(ctx, healthPath, nil, &status)
	return status, err
}

// Metrics returns the collector passed with WithCollector, or nil.
func (c *Client) Metrics() *metrics.Collector {
	return c.collector
}

// Dispatcher exposes the underlying dispatcher, e.g. for active health
// checks against its node pool.
func (c *Client) Dispatcher() *dispatcher.Dispatcher {
	return c.dispatcher
}
