// Package bus implements the in-process publish/subscribe router that
// connects the sampler, the escalation policy and the responders.
//
// # Routing
//
// Publish appends to a FIFO queue and returns without running any handler.
// A single routing goroutine, started by Start, takes events off the queue
// in publish order, snapshots the subscribers registered for the event's
// type, and hands the event to each of them:
//
//	Publish ──▶ queue ──▶ route loop ──┬──▶ goroutine ──▶ handler A
//	                                   ├──▶ goroutine ──▶ handler B
//	                                   └──▶ mailbox   ──▶ handler C (serialized)
//
// Plain subscriptions get one goroutine per delivery, so handlers never block
// each other or the router and no ordering holds between them. A subscription
// made with Serialized() has its own mailbox drained by at most one goroutine
// at a time, so it sees events one by one in publish order. The escalation
// policy relies on that to keep its state single-writer.
//
// # Failures
//
// A handler that returns an error or panics is isolated: the failure is
// logged, counted on the Observer, and passed to the ErrorHandler, and
// routing carries on. There are no retries.
//
// # Shutdown
//
// Stop ends the route loop and abandons whatever is still queued. It then
// waits for in-flight handlers until its context is done, at which point the
// context handed to handlers is cancelled.
package bus
