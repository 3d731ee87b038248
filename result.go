package verdict

import "time"

// Result is the immutable settlement of one attempt against one
// backend. Exactly one of three states holds:
//
//   - Processed=true, OK=true, Err=nil: the backend accepted the
//     operation; Payload carries the outcome.
//   - Processed=true, OK=false, Err!=nil (protocol tier): the backend
//     was reached and reported a failure; Payload is the zero value.
//   - Processed=false, OK=false, Err!=nil (transport tier): the backend
//     was never reached, or the wait was abandoned; Payload is the zero
//     value.
//
// Results are constructed exactly once, at settlement, and must not be
// mutated afterwards.
type Result[T any] struct {
	// Kind names the operation, e.g. "http", "sql:query", "queue:send".
	Kind string

	// Processed reports whether the backend received the operation.
	Processed bool

	// OK reports whether the operation succeeded.
	OK bool

	// Err carries the classified failure; nil iff OK.
	Err *Error

	// Duration is the wall-clock time of the whole attempt.
	Duration time.Duration

	// Payload is the operation outcome; the zero value in both failure
	// states.
	Payload T
}

// Success builds the processed-and-ok state.
func Success[T any](kind string, payload T, elapsed time.Duration) *Result[T] {
	return &Result[T]{
		Kind:      kind,
		Processed: true,
		OK:        true,
		Duration:  elapsed,
		Payload:   payload,
	}
}

// Failure builds the processed-but-failed state from a protocol-tier
// error reported by the backend.
func Failure[T any](kind string, err *Error, elapsed time.Duration) *Result[T] {
	return &Result[T]{
		Kind:      kind,
		Processed: true,
		OK:        false,
		Err:       err,
		Duration:  elapsed,
	}
}

// Unreached builds the never-processed state from a transport-tier
// failure.
func Unreached[T any](kind string, err *Error, elapsed time.Duration) *Result[T] {
	return &Result[T]{
		Kind:     kind,
		Duration: elapsed,
		Err:      err,
	}
}

// Settle constructs the Result for one settled attempt and applies the
// throw/return policy from opts.
//
// When err is nil the attempt succeeded and the error return is nil.
// Otherwise err is classified through tax (transport precedence,
// timeout/abort pass-through, unknown fallback) and placed on the
// Result. The error return is non-nil when opts.ThrowOnError is set —
// and always, regardless of the switch, when the failure is a timeout
// or abort, since those interrupt the caller rather than report a
// backend condition.
func Settle[T any](
	kind string,
	payload T,
	err error,
	elapsed time.Duration,
	opts Options,
	tax Taxonomy,
) (*Result[T], error) {
	if err == nil {
		return Success(kind, payload, elapsed), nil
	}

	verr := Resolve(err, tax)

	var res *Result[T]
	if verr.Transport() {
		res = Unreached[T](kind, verr, elapsed)
	} else {
		res = Failure[T](kind, verr, elapsed)
	}

	if verr.Interrupted() || opts.ThrowOnError {
		return res, verr
	}
	return res, nil
}
