// Package healthcheck actively probes the nodes of a pool.
//
// The dispatcher only learns about node health from real requests. A Checker
// sends GET /health to every node, nearest node included, and records the
// outcome in the pool so that selection skips nodes that went down between
// requests.
package healthcheck
