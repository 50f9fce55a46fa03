// internal/apierr/apierr.go
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an API error so callers can decide how to react
// (retry, re-authenticate, surface a message, stay silent).
type Kind string

const (
	// KindNetworkUnavailable means no response was received at all:
	// connection refused, DNS failure, broken pipe.
	KindNetworkUnavailable Kind = "network_unavailable"

	// KindTimeout means the client aborted the request after its own budget.
	KindTimeout Kind = "timeout"

	// KindUnauthenticated means the credential was missing or invalid
	// before the request was even sent.
	KindUnauthenticated Kind = "unauthenticated"

	// KindInvalidInput means the caller supplied something unusable
	// (empty file, unknown MIME type) — no request was sent.
	KindInvalidInput Kind = "invalid_input"

	// KindRemoteRejected means the server answered with a non-2xx status
	// and (usually) a message of its own.
	KindRemoteRejected Kind = "remote_rejected"

	// KindMalformedResponse means the body was not valid JSON when JSON
	// was expected.
	KindMalformedResponse Kind = "malformed_response"

	// KindNotReadyYet is a 404 while polling a job result. It is a valid
	// "keep waiting" signal, never a failure on its own.
	KindNotReadyYet Kind = "not_ready_yet"

	// KindCancelled means the user (or a supervising context) aborted the
	// operation. Never surfaced to the user as a failure.
	KindCancelled Kind = "cancelled"

	// KindSessionActive means an upload was started while another one was
	// already in flight on the same service instance.
	KindSessionActive Kind = "session_active"
)

// GenericMessage is shown when an error carries no usable server message,
// so raw transport details never leak to the user.
const GenericMessage = "Something went wrong. Please try again."

// Error is the single error shape crossing package boundaries in this
// client. Message is always safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status for RemoteRejected; 0 otherwise
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// New creates an Error with the given kind and user-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error carrying an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: err}
}

// Remote creates a RemoteRejected error for a non-2xx response. An empty
// server message falls back to the generic one.
func Remote(status int, serverMessage string) *Error {
	msg := serverMessage
	if msg == "" {
		msg = GenericMessage
	}
	return &Error{Kind: KindRemoteRejected, Message: msg, Status: status}
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf extracts the HTTP status from err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// UserMessage returns a message safe to display for any error. Unclassified
// errors get the generic fallback rather than leaking internals.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return GenericMessage
}
