// Package store provides SQLite-backed durable storage for the savings ledger.
//
// The store holds:
//   - ledger_state: the single row of scalar fields, laid out per generation
//   - donations: the append-only donation log
//   - events: the append-only outbound notification log
//   - implementation: the generation whose logic is installed
//
// # Layout Evolution
//
// The ledger_state columns are declared per generation in internal/layout.
// Open creates the table with the generation 1 layout and then applies each
// generation's appended columns in order. PRAGMA user_version records the
// layout generation the file is at. After migrating, Open checks the physical
// column order against the layout and refuses files that disagree.
//
// # Append-Only Logs
//
// Triggers abort any UPDATE or DELETE on donations and events. Each donation
// carries a receipt and each event a hash, both computed with internal/canon.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Every mutating call runs inside Update, one transaction per call.
package store
