// Package dispatcher sends requests to a cluster of interchangeable nodes.
//
// Every verb goes through one attempt loop:
//
//   - select a node from the pool
//   - send the request with the API key header and the configured timeout
//   - mark the node healthy for any status in [1, 500)
//   - return the body on 2xx
//   - on a transport failure, 500 or 503 mark the node unhealthy, wait the
//     retry interval and try again on a freshly selected node
//   - return any other error status immediately
//
// After retries+1 attempts the last transient error is returned. Errors are
// *apierror.Error values; context cancellation is returned as the context's
// error and leaves node health untouched.
package dispatcher
