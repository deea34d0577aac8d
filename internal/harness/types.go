package harness

import (
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
)

// OutcomeOK marks a step that succeeded.
const OutcomeOK = dispatch.OutcomeOK

// TraceEntry records one executed call, setup included.
type TraceEntry struct {
	// Step is the 1-based position across setup and flow.
	Step   int    `json:"step"`
	Call   string `json:"call"`
	Caller string `json:"caller"`

	// Outcome is OutcomeOK or the error code of the failure.
	Outcome string `json:"outcome"`

	// Events are the events committed by the call, in seq order.
	Events []ledger.Event `json:"events"`

	Result dispatch.Result `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEntry `json:"trace"`

	// Errors lists failed expectations and assertions. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the ledger state after the flow.
	State ledger.State `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns every committed event of the trace in seq order.
func (r *Result) Events() []ledger.Event {
	var events []ledger.Event
	for _, entry := range r.Trace {
		events = append(events, entry.Events...)
	}
	return events
}
