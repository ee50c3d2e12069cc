package pool

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/angeloszaimis/typesense-client/config"
	"github.com/angeloszaimis/typesense-client/internal/node"
	"github.com/angeloszaimis/typesense-client/pkg/logger"
)

var ErrNoNodes = errors.New("node pool needs at least one node")

// HealthObserver is told about every recorded health state. changed is false
// when an existing state was only re-confirmed.
type HealthObserver func(n *node.Node, healthy, changed bool)

// Pool hands out nodes round robin, preferring the nearest node when one is
// configured. Unhealthy nodes are skipped until their health-check interval
// has elapsed, at which point they are offered traffic again.
type Pool struct {
	mutex    sync.Mutex
	nodes    []*node.Node
	nearest  *node.Node
	cursor   int
	interval time.Duration

	now      func() time.Time
	logger   *slog.Logger
	observer HealthObserver
}

type Option func(*Pool)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		p.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

func WithHealthObserver(observer HealthObserver) Option {
	return func(p *Pool) {
		p.observer = observer
	}
}

// New builds a pool and marks every node, the nearest one included, healthy.
func New(nodes []*node.Node, nearest *node.Node, interval time.Duration, opts ...Option) (*Pool, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	p := &Pool{
		nodes:    append([]*node.Node(nil), nodes...),
		nearest:  nearest,
		interval: interval,
		now:      time.Now,
		logger:   logger.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.nearest != nil {
		p.MarkHealth(p.nearest, true)
	}
	for _, n := range p.nodes {
		p.MarkHealth(n, true)
	}

	return p, nil
}

// FromConfig builds the pool described by cfg.
func FromConfig(cfg *config.Config, opts ...Option) (*Pool, error) {
	nodes := make([]*node.Node, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		nodes = append(nodes, node.FromConfig(nc))
	}

	var nearest *node.Node
	if cfg.NearestNode != nil {
		nearest = node.FromConfig(*cfg.NearestNode)
	}

	return New(nodes, nearest, cfg.HealthCheckInterval(), opts...)
}

// Select returns the node the next attempt should go to. It never fails:
// when no node is healthy or due for a re-check, the node at the cursor is
// returned anyway since it may have recovered in the meantime.
func (p *Pool) Select() *node.Node {
	now := p.now()

	if p.nearest != nil {
		if p.nearest.IsHealthy() || p.dueForHealthCheck(p.nearest, now) {
			p.logger.Debug("Using nearest node", slog.String("node", p.nearest.String()))
			return p.nearest
		}
		p.logger.Debug("Nearest node is unhealthy and not due for health check, falling back to round robin",
			slog.String("node", p.nearest.String()))
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i := 0; i < len(p.nodes); i++ {
		candidate := p.nodes[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.nodes)

		if candidate.IsHealthy() || p.dueForHealthCheck(candidate, now) {
			return candidate
		}
	}

	fallback := p.nodes[p.cursor]
	p.logger.Debug("No healthy nodes were found, returning the next node",
		slog.String("node", fallback.String()))

	return fallback
}

// MarkHealth records the outcome of an attempt against n.
func (p *Pool) MarkHealth(n *node.Node, healthy bool) {
	changed := n.SetHealthy(healthy, p.now())

	if changed {
		if healthy {
			p.logger.Info("Node is back up", slog.String("node", n.String()))
		} else {
			p.logger.Warn("Node is down", slog.String("node", n.String()))
		}
	}

	if p.observer != nil {
		p.observer(n, healthy, changed)
	}
}

// Nodes returns every node of the pool, the nearest node first when set.
func (p *Pool) Nodes() []*node.Node {
	all := make([]*node.Node, 0, len(p.nodes)+1)
	if p.nearest != nil {
		all = append(all, p.nearest)
	}
	return append(all, p.nodes...)
}

// Nearest returns the nearest node, or nil.
func (p *Pool) Nearest() *node.Node {
	return p.nearest
}

func (p *Pool) Interval() time.Duration {
	return p.interval
}

func (p *Pool) dueForHealthCheck(n *node.Node, now time.Time) bool {
	due := n.DueForHealthCheck(now, p.interval)
	if due {
		p.logger.Debug("Node is due for health check", slog.String("node", n.String()))
	}
	return due
}
