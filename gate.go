package verdict

import (
	"context"
	"time"
)

// Options is the per-call configuration recognized by every client.
// The zero value means: no deadline, no abort trigger, failures
// surfaced on the Result only.
type Options struct {
	// Timeout is the deadline for one attempt. Zero means no deadline.
	Timeout time.Duration

	// Signal is an external cancellation trigger for this attempt.
	Signal *Signal

	// ThrowOnError, when set, additionally returns classified failures
	// as the error value of the client method. Timeout and abort
	// failures are returned as errors regardless of this switch.
	ThrowOnError bool

	// Retry is a caller-supplied retry policy. It is carried opaquely
	// for collaborators layered above this package and never
	// interpreted here: the gate runs exactly one attempt.
	Retry any
}

// Await races op against the timeout and abort trigger in opts and
// returns whichever settles first: op's own outcome, a timeout failure
// (*Error, KindTimeout), or an abort failure (*Error, KindAbort). The
// elapsed wall-clock duration of the attempt is always returned.
//
// If the signal has already fired on entry, Await fails with an abort
// error without dispatching op at all.
//
// Losing waiters are released deterministically on every exit path:
// the timer is stopped and the derived context is cancelled before
// Await returns, so neither outlives the call. Cancellation is
// cooperative for the waiting caller only — it stops the caller from
// waiting further, and it cancels the context handed to op so a
// well-behaved driver can stop early, but it cannot guarantee the
// remote backend stops processing a request that was already
// dispatched.
func Await[T any](
	ctx context.Context,
	opts Options,
	op func(ctx context.Context) (T, error),
) (T, time.Duration, error) {
	var zero T

	if opts.Signal != nil && opts.Signal.Aborted() {
		return zero, 0, NewAbort()
	}

	start := time.Now()

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type settlement struct {
		payload T
		err     error
	}

	// Buffered so the op goroutine never blocks on a lost race.
	settled := make(chan settlement, 1)
	go func() {
		payload, err := op(opCtx)
		settled <- settlement{payload, err}
	}()

	var timeoutC <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var abortC <-chan struct{}
	if opts.Signal != nil {
		abortC = opts.Signal.Done()
	}

	select {
	case s := <-settled:
		return s.payload, time.Since(start), s.err
	case <-timeoutC:
		return zero, time.Since(start), NewTimeout(opts.Timeout)
	case <-abortC:
		return zero, time.Since(start), NewAbort()
	case <-ctx.Done():
		elapsed := time.Since(start)
		if ctx.Err() == context.DeadlineExceeded {
			return zero, elapsed, &Error{
				Kind:    KindTimeout,
				Tier:    TierTransport,
				Message: ctx.Err().Error(),
				Cause:   ctx.Err(),
			}
		}
		return zero, elapsed, NewAbort()
	}
}
