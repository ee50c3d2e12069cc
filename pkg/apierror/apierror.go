package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindClientError          Kind = iota // Unmapped status, or a client-side failure
	KindTransportUnavailable             // No response at all
	KindMalformed
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnprocessable
	KindServerError
	KindServiceUnavailable
	KindInvalidResponse // Body could not be decoded
)

// StatusNone is carried by errors that never received an HTTP response.
const StatusNone = 0

// DefaultMessage is used when the response body has no usable message.
const DefaultMessage = "API error."

var (
	ErrClientError          = &Error{Kind: KindClientError}
	ErrTransportUnavailable = &Error{Kind: KindTransportUnavailable}
	ErrMalformed            = &Error{Kind: KindMalformed}
	ErrUnauthorized         = &Error{Kind: KindUnauthorized}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrUnprocessable        = &Error{Kind: KindUnprocessable}
	ErrServerError          = &Error{Kind: KindServerError}
	ErrServiceUnavailable   = &Error{Kind: KindServiceUnavailable}
	ErrInvalidResponse      = &Error{Kind: KindInvalidResponse}

	// ErrClosed is returned for calls issued after the client was closed.
	ErrClosed = errors.New("client is closed")
)

// Error is a classified failure of a single request. Status is the HTTP
// status of the response, or StatusNone when the node never answered.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

// Classify maps an HTTP status to its error kind.
func Classify(status int) Kind {
	switch status {
	case StatusNone:
		return KindTransportUnavailable
	case http.StatusBadRequest:
		return KindMalformed
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnprocessableEntity:
		return KindUnprocessable
	case http.StatusInternalServerError:
		return KindServerError
	case http.StatusServiceUnavailable:
		return KindServiceUnavailable
	default:
		return KindClientError
	}
}

// New builds the classified error for a response status.
func New(status int, message string) *Error {
	if message == "" {
		message = DefaultMessage
	}

	return &Error{
		Kind:    Classify(status),
		Status:  status,
		Message: message,
	}
}

// Transport wraps a connection-level failure (refused, reset, timed out).
func Transport(cause error) *Error {
	return &Error{
		Kind:    KindTransportUnavailable,
		Status:  StatusNone,
		Message: cause.Error(),
		cause:   cause,
	}
}

// InvalidResponse reports a body that could not be decoded.
func InvalidResponse(body string, cause error) *Error {
	return &Error{
		Kind:    KindInvalidResponse,
		Status:  StatusNone,
		Message: fmt.Sprintf("Invalid response - %s", body),
		cause:   cause,
	}
}

// Client reports a request rejected before it reached the network.
func Client(message string) *Error {
	return &Error{
		Kind:    KindClientError,
		Status:  StatusNone,
		Message: message,
	}
}

func (e *Error) Error() string {
	if e.Status == StatusNone {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error of the same kind, so callers can test against the
// package sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// Retryable reports whether the failure is transient and another node
// might serve the request.
func Retryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.Kind {
	case KindTransportUnavailable, KindServerError, KindServiceUnavailable:
		return true
	default:
		return false
	}
}

// StatusOf returns the HTTP status carried by err, or StatusNone.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}

	return StatusNone
}

func (k Kind) String() string {
	switch k {
	case KindClientError:
		return "CLIENT_ERROR"
	case KindTransportUnavailable:
		return "TRANSPORT_UNAVAILABLE"
	case KindMalformed:
		return "REQUEST_MALFORMED"
	case KindUnauthorized:
		return "REQUEST_UNAUTHORIZED"
	case KindForbidden:
		return "REQUEST_FORBIDDEN"
	case KindNotFound:
		return "OBJECT_NOT_FOUND"
	case KindConflict:
		return "OBJECT_ALREADY_EXISTS"
	case KindUnprocessable:
		return "OBJECT_UNPROCESSABLE"
	case KindServerError:
		return "SERVER_ERROR"
	case KindServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case KindInvalidResponse:
		return "INVALID_RESPONSE"
	default:
		return "UNKNOWN"
	}
}
