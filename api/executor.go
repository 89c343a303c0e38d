// Package api
// Author: momentics
//
// Dispatch contracts: the item run on a worker, the non-blocking ring
// dispatcher, and the submit-or-fallback executor façade seen by callers.

package api

// Item is a unit of work handed to the dispatcher. Run executes on a
// dispatcher worker goroutine, never on an I/O goroutine. Any error
// returned is routed to the dispatcher's exception handler and swallowed;
// it never escapes to the caller of Execute.
type Item interface {
	Run() error
}

// Dispatcher is the non-blocking producer side of the ring-backed work
// queue (C2). Dispatch never blocks and never allocates on the hot path.
type Dispatcher interface {
	// Dispatch claims the next sequence if capacity permits and publishes
	// item into it. It returns Rejected, never an error, when the ring is
	// momentarily full.
	Dispatch(item Item) Outcome

	// Shutdown stops accepting new work, drains in-flight items already
	// claimed, and joins worker goroutines. Idempotent.
	Shutdown()
}

// Executor is the sole entry point user code and the I/O handler see: it
// combines the ring dispatcher with an optional overflow reserve pool.
type Executor interface {
	// Execute submits item for execution, falling back to the reserve pool
	// on ring overflow, or failing with ErrRejected if there is no reserve.
	Execute(item Item) error
}
