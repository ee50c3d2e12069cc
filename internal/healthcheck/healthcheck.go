package healthcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/typesense-client/internal/node"
	"github.com/angeloszaimis/typesense-client/internal/pool"
)

// Endpoint is the path every node answers health probes on.
const Endpoint = "/health"

// Prober sends a single request to one node, without retries.
type Prober interface {
	Probe(ctx context.Context, n *node.Node, endpoint string) (int, []byte, error)
}

// NodeStatus is the outcome of probing one node.
type NodeStatus struct {
	Node      string        `json:"node"`
	Nearest   bool          `json:"nearest"`
	Healthy   bool          `json:"healthy"`
	Status    int           `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CheckedAt time.Time     `json:"checked_at"`
}

type Checker struct {
	prober  Prober
	pool    *pool.Pool
	timeout time.Duration
	logger  *slog.Logger

	mutex sync.RWMutex
	last  []NodeStatus
}

// NewChecker probes the nodes of p through prober. Each probe is bounded
// by timeout when it is positive.
func NewChecker(prober Prober, p *pool.Pool, timeout time.Duration, logger *slog.Logger) *Checker {
	return &Checker{
		prober:  prober,
		pool:    p,
		timeout: timeout,
		logger:  logger,
	}
}

// CheckAll probes every node concurrently, records each result in the pool
// and returns the results in pool order.
func (c *Checker) CheckAll(ctx context.Context) []NodeStatus {
	nodes := c.pool.Nodes()
	nearest := c.pool.Nearest()
	report := make([]NodeStatus, len(nodes))

	var eg errgroup.Group
	for i, n := range nodes {
		eg.Go(func() error {
			report[i] = c.check(ctx, n)
			report[i].Nearest = n == nearest
			return nil
		})
	}
	_ = eg.Wait()

	// A cancelled pass says nothing about the nodes.
	if ctx.Err() != nil {
		return report
	}

	for i, n := range nodes {
		c.pool.MarkHealth(n, report[i].Healthy)
	}

	c.mutex.Lock()
	c.last = report
	c.mutex.Unlock()

	return report
}

func (c *Checker) check(ctx context.Context, n *node.Node) NodeStatus {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	status, body, err := c.prober.Probe(ctx, n, Endpoint)

	result := NodeStatus{
		Node:      n.String(),
		Status:    status,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Healthy = isHealthy(status, body)
	return result
}

// isHealthy accepts a 200 unless the body explicitly reports ok=false.
func isHealthy(status int, body []byte) bool {
	if status != http.StatusOK {
		return false
	}

	var health struct {
		OK *bool `json:"ok"`
	}
	if err := json.Unmarshal(body, &health); err != nil || health.OK == nil {
		return true
	}

	return *health.OK
}

// Run checks all nodes right away and then on every tick until ctx ends.
// A non-positive interval means a single pass.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.CheckAll(ctx)

	if interval <= 0 {
		c.logger.Warn("Health check interval is not positive, not repeating",
			slog.Duration("interval", interval))
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Health check stopped")
			return

		case <-ticker.C:
			report := c.CheckAll(ctx)
			c.logger.Debug("Health check pass finished",
				slog.Int("nodes", len(report)),
				slog.Int("healthy", countHealthy(report)))
		}
	}
}

// Last returns the results of the latest completed pass, or nil.
func (c *Checker) Last() []NodeStatus {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return append([]NodeStatus(nil), c.last...)
}

// Handler serves the latest results as JSON, running a pass first when
// none has completed yet.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Last()
		if report == nil {
			report = c.CheckAll(r.Context())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			c.logger.Error("Failed to encode node report", slog.Any("err", err))
		}
	}
}

func countHealthy(report []NodeStatus) int {
	healthy := 0
	for _, status := range report {
		if status.Healthy {
			healthy++
		}
	}
	return healthy
}
