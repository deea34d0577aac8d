package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/ledger"
	"github.com/MariiaFi/UpgradeableSavingsBank/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Events   []ledger.Event
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", ev.Seq, ev.Kind, eventFields(ev))
		}
	}
	return buf.String()
}

func evaluateAssertion(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	events := result.Events()
	switch a.Type {
	case AssertEventOrder:
		return assertEventOrder(events, a)
	case AssertEventCount:
		return assertEventCount(events, a)
	case AssertEventContains:
		return assertEventContains(events, a)
	case AssertFinalState:
		return assertFinalState(result.State, a)
	case AssertAudit:
		if err := st.Audit(ctx); err != nil {
			return &AssertionError{Type: AssertAudit, Expected: "consistent ledger", Actual: err.Error()}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertEventOrder checks that the kinds appear in order. Other events may
// appear in between.
func assertEventOrder(events []ledger.Event, a Assertion) error {
	next := 0
	for _, ev := range events {
		if next < len(a.Kinds) && string(ev.Kind) == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}

	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: strings.Join(a.Kinds, " -> "),
		Actual:   fmt.Sprintf("%s not found after the first %d kinds", a.Kinds[next], next),
		Events:   events,
	}
}

func assertEventCount(events []ledger.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count == a.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
		Actual:   fmt.Sprintf("%d %s events", count, a.Kind),
		Events:   events,
	}
}

// assertEventContains checks that some event of the kind has every listed
// field (subset match).
func assertEventContains(events []ledger.Event, a Assertion) error {
	for _, ev := range events {
		if string(ev.Kind) != a.Kind {
			continue
		}
		if matchFields(eventFields(ev), a.Fields) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("%s event with %v", a.Kind, a.Fields),
		Actual:   "not found",
		Events:   events,
	}
}

func assertFinalState(state ledger.State, a Assertion) error {
	got := stateFields(state)
	var mismatches []string
	for _, key := range sortedKeys(a.Fields) {
		actual, ok := got[key]
		if !ok {
			return fmt.Errorf("final_state: unknown field %q", key)
		}
		want := fmt.Sprint(a.Fields[key])
		if actual != want {
			mismatches = append(mismatches, fmt.Sprintf("%s=%s (want %s)", key, actual, want))
		}
	}
	if len(mismatches) == 0 {
		return nil
	}

	return &AssertionError{
		Type:     AssertFinalState,
		Expected: fmt.Sprintf("%v", a.Fields),
		Actual:   strings.Join(mismatches, ", "),
	}
}

func matchFields(got map[string]string, want map[string]any) bool {
	for key, value := range want {
		actual, ok := got[key]
		if !ok || actual != fmt.Sprint(value) {
			return false
		}
	}
	return true
}

// eventFields renders the kind-specific fields of ev.
func eventFields(ev ledger.Event) map[string]string {
	switch ev.Kind {
	case ledger.EventDeposited:
		return map[string]string{"sender": string(ev.Account), "amount": fmt.Sprint(int64(ev.Amount))}
	case ledger.EventWithdrawn:
		return map[string]string{"receiver": string(ev.Account), "amount": fmt.Sprint(int64(ev.Amount))}
	case ledger.EventPausedStatusChanged:
		return map[string]string{"paused": fmt.Sprint(ev.Paused)}
	case ledger.EventInitialized:
		return map[string]string{"version": fmt.Sprint(uint64(ev.Version))}
	case ledger.EventUpgraded:
		return map[string]string{"implementation": ev.Implementation}
	}
	return map[string]string{}
}

func stateFields(st ledger.State) map[string]string {
	return map[string]string{
		"owner":           string(st.Owner),
		"deposit_count":   fmt.Sprint(st.DepositCount),
		"balance":         fmt.Sprint(int64(st.Balance)),
		"init_generation": fmt.Sprint(uint64(st.InitGeneration)),
		"total_donated":   fmt.Sprint(int64(st.TotalDonated)),
		"paused":          fmt.Sprint(st.Paused),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
