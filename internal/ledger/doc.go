// Package ledger implements the custody ledger domain: the store operations,
// the owner gate, the per-generation logic and the upgrade controller.
//
// # Shape
//
// The ledger never holds persisted fields itself. Every operation receives a
// Tx, a handle onto the single long-lived store, and reads or writes through
// it. The store package provides the durable implementation; tests may supply
// their own.
//
// Generation logic is a tagged variant. LogicFor returns the stateless policy
// for a generation number; V1 and V2 implement the same Logic contract and
// differ only in pause enforcement and total tracking. Swapping logic never
// copies or rewrites stored data.
//
// # Initialization
//
// InitGeneration in State is a monotonic counter. Initialize moves 0 -> 1 and
// records the owner. Reinitialize moves N-1 -> N for the generation of the
// installed logic and is rejected for any other starting point, so each
// generation's one-time body runs at most once.
//
// # Atomicity
//
// Operations return a *Error on any rule violation before or after mutating
// the Tx. Callers run each operation inside one store transaction and roll it
// back on error, so a failed operation leaves no state change and no event.
package ledger
