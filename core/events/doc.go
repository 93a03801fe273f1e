// Package events provides the in-process event bus.
//
// Event types form a closed set. Each type has at most one handler, registered at startup before
// Start freezes the registry; dispatch never searches for handlers.
//
// # Delivery Modes
//
//   - Sync: the handler runs on the publisher's goroutine and its error is returned to the
//     publisher. Used when downstream effects must be visible before the triggering call returns.
//   - Async: the event is published to a watermill GoChannel topic and handled on a bounded worker
//     pool. Failures are logged and dropped (at-most-once); the publisher never sees them.
//
// Close stops accepting async events and drains handlers already in flight.
package events
