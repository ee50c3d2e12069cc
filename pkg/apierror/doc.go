// Package apierror classifies request outcomes into a closed set of error kinds.
//
// Every failure surfaced by the client is an *Error carrying its kind, the HTTP
// status that produced it (or StatusNone when the node never answered) and the
// best-effort message taken from the server's JSON body. Match kinds with
// errors.Is against the package sentinels:
//
//	if errors.Is(err, apierror.ErrNotFound) {
//	    // ...
//	}
//
// Transport failures, 500 and 503 are transient and retried against other
// nodes; everything else describes a request the server will keep rejecting.
package apierror
