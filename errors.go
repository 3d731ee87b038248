package verdict

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Tier says where in the stack a failure originated.
type Tier int

const (
	// TierTransport failures mean the backend was never reached, or the
	// wait for it was abandoned (connection, timeout, abort).
	TierTransport Tier = iota + 1

	// TierProtocol failures mean the backend was reached and explicitly
	// reported an error.
	TierProtocol
)

// String returns the tier label.
func (t Tier) String() string {
	switch t {
	case TierTransport:
		return "transport"
	case TierProtocol:
		return "protocol"
	default:
		return "unspecified"
	}
}

// Kind discriminates error values within a tier. Consumers must switch
// on the Kind value, never on concrete error types: kind values survive
// serialization and process boundaries, type identities do not.
type Kind string

// Transport-tier kinds, shared by every backend.
const (
	KindConnection Kind = "connection"
	KindTimeout    Kind = "timeout"
	KindAbort      Kind = "abort"
)

// KindUnknown is the fallback protocol-tier kind for signals a backend
// taxonomy does not recognize.
const KindUnknown Kind = "unknown"

// Error is the single failure value used across all backends. It is a
// tagged union: Tier and Kind carry the classification, Message and
// Cause preserve the native signal for diagnosis.
type Error struct {
	Kind    Kind
	Tier    Tier
	Message string

	// Timeout is the configured deadline, set only for Kind == KindTimeout.
	Timeout time.Duration

	// Cause is the underlying native error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s/%s: %s", e.Tier, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s/%s", e.Tier, e.Kind)
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Transport reports whether the failure is transport-tier.
func (e *Error) Transport() bool {
	return e.Tier == TierTransport
}

// Interrupted reports whether the failure is an interruption imposed on
// the waiting caller (timeout or abort) rather than a backend-reported
// condition. Interruptions are always surfaced as errors, regardless of
// the ThrowOnError option.
func (e *Error) Interrupted() bool {
	return e.Kind == KindTimeout || e.Kind == KindAbort
}

// NewTimeout builds the transport-tier timeout failure for an attempt
// that outlived its configured deadline.
func NewTimeout(d time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Tier:    TierTransport,
		Message: fmt.Sprintf("attempt exceeded %s deadline", d),
		Timeout: d,
	}
}

// NewAbort builds the transport-tier abort failure for an attempt whose
// external cancellation trigger fired.
func NewAbort() *Error {
	return &Error{
		Kind:    KindAbort,
		Tier:    TierTransport,
		Message: "attempt aborted by caller",
	}
}

// NewConnection builds the transport-tier connection failure for an
// attempt that never reached the backend.
func NewConnection(msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Tier: TierTransport, Message: msg, Cause: cause}
}

// NewProtocol builds a backend-reported failure of the given kind.
func NewProtocol(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Tier: TierProtocol, Message: msg, Cause: cause}
}

// NewUnknown builds the protocol-tier fallback for an unrecognized
// signal, preserving the original message and cause.
func NewUnknown(cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindUnknown, Tier: TierProtocol, Message: msg, Cause: cause}
}

// Taxonomy maps one backend's native failure signal to a classified
// Error. Implementations must call TransportError first so that
// transport-tier signals win over protocol-tier classification, and so
// that timeout/abort values pass through unchanged.
type Taxonomy func(err error) *Error

// TransportError recognizes failure signals that originate above or
// below the backend boundary and therefore preempt protocol-tier
// classification. It returns nil when the error should fall through to
// the backend taxonomy.
//
// Already-classified *Error values are returned as-is: in particular
// timeout and abort failures are never reclassified into a
// backend-specific kind, since they originate above the backend.
func TransportError(err error) *Error {
	if err == nil {
		return nil
	}

	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindTimeout,
			Tier:    TierTransport,
			Message: err.Error(),
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindAbort, Tier: TierTransport, Message: err.Error(), Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{
				Kind:    KindTimeout,
				Tier:    TierTransport,
				Message: err.Error(),
				Cause:   err,
			}
		}
		return NewConnection(err.Error(), err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewConnection(err.Error(), err)
	}

	return nil
}

// Resolve classifies err through the taxonomy, enforcing transport
// precedence and the unknown fallback. The returned value is never nil
// for a non-nil err.
func Resolve(err error, tax Taxonomy) *Error {
	if err == nil {
		return nil
	}
	if verr := TransportError(err); verr != nil {
		return verr
	}
	if tax != nil {
		if verr := tax(err); verr != nil {
			return verr
		}
	}
	return NewUnknown(err)
}
