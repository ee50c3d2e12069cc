// Package metrics collects per-node dispatch statistics.
//
// The dispatcher emits events without blocking; a single goroutine started
// with Collector.Start folds them into an in-memory snapshot (attempts,
// retries, health, latency percentiles, status codes) and into Prometheus
// vectors on a private registry. Both views are exposed over HTTP.
package metrics
