package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/canon"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEntry `json:"trace"`
}

// toCanonicalMap converts the snapshot for canon.Marshal. Event hashes are
// left out; the call ID and seq already pin each event.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, entry := range s.Trace {
		events := make([]any, len(entry.Events))
		for j, ev := range entry.Events {
			events[j] = map[string]any{
				"seq":     ev.Seq,
				"call_id": ev.CallID,
				"kind":    string(ev.Kind),
				"payload": canon.EventPayload(ev),
			}
		}
		trace[i] = map[string]any{
			"step":    entry.Step,
			"call":    entry.Call,
			"caller":  entry.Caller,
			"outcome": entry.Outcome,
			"events":  events,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the trace of an existing result against the golden
// file named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	traceJSON, err := canon.Marshal(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
