// Package pool implements node selection for the request dispatcher.
//
// Selection order:
//
//   - the nearest node, when configured and healthy or due for a re-check
//   - round robin over the remaining nodes, skipping nodes that are unhealthy
//     and were checked less than the health-check interval ago
//   - the node at the cursor, when nothing else qualifies
//
// A node that failed is therefore never excluded for good: once its last
// recorded health is older than the interval it receives traffic again, and
// the outcome of that attempt decides its new state.
package pool
