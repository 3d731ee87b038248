// Package verdict is the result classification and cancellation core
// shared by a family of backend clients (HTTP, relational database,
// message queue, document store, key-value cache).
//
// Every client operation settles into an immutable tri-state
// [Result]: processed and ok, processed but failed (the backend
// reported the error), or never processed (the backend was not
// reached, or the wait was abandoned). Failures are classified into a
// two-tier taxonomy: transport-tier kinds (connection, timeout, abort)
// are backend-agnostic and always win; protocol-tier kinds form a
// closed per-backend set defined by each client package.
//
// The package performs no logging and no retries. Retry policies are
// consumed by collaborators layered above (see the Retry field of
// [Options]), and logging is the caller's responsibility at the point
// an error crosses a context boundary.
package verdict
