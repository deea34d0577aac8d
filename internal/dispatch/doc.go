// Package dispatch routes inbound calls to the installed generation logic.
//
// A Dispatcher owns the only goroutine that touches the store. Callers hand
// it a Call through Submit from any goroutine; the Run loop executes calls
// one at a time in FIFO order, each as a single store transaction, stamps
// deposits with a timestamp that never goes backwards, and delivers the
// committed events to subscribers.
//
// Upgrading is itself a call: "upgrade" installs new logic through the
// owner-gated ledger.AuthorizeUpgrade, and "upgrade_and_call" also runs that
// logic's initializer in the same transaction.
package dispatch
