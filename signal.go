package verdict

import "sync"

// Signal is an externally triggerable abort flag for one attempt.
// Create one per attempt and never reuse it: a fired Signal stays
// fired, so a reused one would abort every later attempt immediately.
type Signal struct {
	mu      sync.Mutex
	done    chan struct{}
	aborted bool
}

// NewSignal creates an untriggered Signal.
func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Abort fires the signal. Safe to call from any goroutine and
// idempotent: calls after the first are no-ops.
func (s *Signal) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return
	}
	s.aborted = true
	close(s.done)
}

// Aborted reports whether the signal has fired.
func (s *Signal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Done returns a channel closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}
