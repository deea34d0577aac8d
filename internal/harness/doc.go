// Package harness runs scripted call scenarios against a fresh ledger and
// compares the resulting event trace with golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario checks"
//	start: "2025-01-02T03:04:05Z"   # optional
//	step: 1s                        # optional
//	setup:
//	  - call: initialize
//	    caller: alice
//	flow:
//	  - call: deposit
//	    caller: bob
//	    value: 100
//	    expect:
//	      result: { index: 0, sender: bob }
//	  - call: withdraw
//	    caller: alice
//	    fail_transfer: true
//	    expect:
//	      error: TRANSFER_FAILED
//	assertions:
//	  - type: event_count
//	    kind: Deposited
//	    count: 1
//	  - type: final_state
//	    fields: { balance: 100 }
//
// # Assertion Types
//
//   - event_order: the listed kinds appear in order, possibly with others between
//   - event_count: exactly N events of a kind were committed
//   - event_contains: some event of a kind has all the listed fields
//   - final_state: the ledger state after the flow has the listed fields
//   - audit: the store passes its receipt and hash audit
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite store, a testutil.DeterministicClock,
// call IDs "step-1", "step-2", ... in submission order, and a
// testutil.ScriptedTransferer. The golden trace is canonical JSON without
// event hashes.
package harness
