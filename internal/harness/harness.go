package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/store"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/testutil"
)

// CallIDPrefix prefixes the sequential call IDs of a scenario run, so the
// call of step N is "step-N".
const CallIDPrefix = "step"

// Run executes a scenario against a fresh in-memory ledger.
//
// Execution:
//  1. Open an in-memory store and start a dispatcher with a deterministic
//     clock, sequential call IDs and a scripted transferer
//  2. Run the setup steps; any failure aborts the run
//  3. Run the flow steps, checking each against its expectation
//  4. Evaluate the assertions against the committed events and final state
//
// A returned error means the scenario could not run. Failed expectations
// and assertions are reported in Result.Errors instead.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	start, step, err := scenario.clock()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	transfer := &testutil.ScriptedTransferer{}
	d := dispatch.New(st, transfer,
		dispatch.WithClock(testutil.NewDeterministicClock(start, step)),
		dispatch.WithIDGenerator(testutil.NewSequentialIDGenerator(CallIDPrefix)),
		dispatch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx) }()
	defer func() {
		d.Stop()
		<-done
		cancel()
	}()

	result := NewResult()
	n := 0

	for i, s := range scenario.Setup {
		n++
		entry, err := execute(ctx, d, transfer, n, s)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, s.Call, err)
		}
		result.Trace = append(result.Trace, entry)
	}

	for i, s := range scenario.Flow {
		n++
		entry, err := execute(ctx, d, transfer, n, s)
		if err != nil && ledger.CodeOf(err) == "" {
			return nil, fmt.Errorf("flow[%d] %s: %w", i, s.Call, err)
		}
		result.Trace = append(result.Trace, entry)
		checkExpect(result, i, s, entry)
	}

	state, err := st.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.State = state

	for i, a := range scenario.Assertions {
		if err := evaluateAssertion(ctx, st, result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return result, nil
}

// execute submits one step. Ledger errors are reported through the entry
// outcome and returned; any other error means the call never ran.
func execute(ctx context.Context, d *dispatch.Dispatcher, transfer *testutil.ScriptedTransferer, n int, s Step) (TraceEntry, error) {
	call, err := toCall(s)
	if err != nil {
		return TraceEntry{}, err
	}
	if s.FailTransfer {
		transfer.FailNext(1)
	}

	entry := TraceEntry{
		Step:    n,
		Call:    s.Call,
		Caller:  string(call.Caller),
		Outcome: OutcomeOK,
		Events:  []ledger.Event{},
	}

	res, err := d.Submit(ctx, call)
	if s.FailTransfer {
		// An unused failure must not carry over to later steps.
		transfer.FailNext(0)
	}
	if err != nil {
		var lerr *ledger.Error
		if !errors.As(err, &lerr) {
			return entry, err
		}
		entry.Outcome = string(lerr.Code)
		return entry, err
	}

	entry.Result = res
	if res.Events != nil {
		entry.Events = res.Events
	}
	return entry, nil
}

func toCall(s Step) (dispatch.Call, error) {
	call := dispatch.Call{
		Op:     dispatch.Op(s.Call),
		Value:  ledger.Amount(s.Value),
		Index:  s.Index,
		Target: ledger.Generation(s.Target),
	}
	if s.Caller != "" {
		id, err := ledger.ParseIdentity(s.Caller)
		if err != nil {
			return dispatch.Call{}, err
		}
		call.Caller = id
	}
	return call, nil
}

func checkExpect(result *Result, i int, s Step, entry TraceEntry) {
	wantCode := ""
	if s.Expect != nil {
		wantCode = s.Expect.Error
	}

	switch {
	case wantCode == "" && entry.Outcome != OutcomeOK:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected success, got %s", i, s.Call, entry.Outcome))
		return
	case wantCode != "" && entry.Outcome != wantCode:
		result.AddError(fmt.Sprintf("flow[%d] %s: expected error %s, got %s", i, s.Call, wantCode, entry.Outcome))
		return
	}

	if s.Expect == nil {
		return
	}
	got := resultFields(entry.Result)
	for _, key := range sortedKeys(s.Expect.Result) {
		want := fmt.Sprint(s.Expect.Result[key])
		if got[key] != want {
			result.AddError(fmt.Sprintf("flow[%d] %s: result %s: expected %s, got %s", i, s.Call, key, want, got[key]))
		}
	}
}

// resultFields renders the comparable fields of res.
func resultFields(res dispatch.Result) map[string]string {
	return map[string]string{
		"amount":     fmt.Sprint(int64(res.Amount)),
		"count":      fmt.Sprint(res.Count),
		"paused":     fmt.Sprint(res.Paused),
		"version":    res.Version,
		"generation": fmt.Sprint(uint64(res.Generation)),
		"index":      fmt.Sprint(res.Donation.Index),
		"sender":     string(res.Donation.Sender),
	}
}
