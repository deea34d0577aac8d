package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MariiaFi/UpgradeableSavingsBank/internal/dispatch"
)

// DefaultStart is the clock reading of the first write call when a scenario
// does not set one.
var DefaultStart = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

// Scenario is a scripted sequence of calls against a fresh ledger, with
// expectations on each call and assertions on the final events and state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Start is the RFC 3339 time of the first write. Defaults to DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Step is how far the clock advances per write, as a Go duration.
	// Defaults to one second.
	Step string `yaml:"step,omitempty"`

	// Setup calls run first and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence. Each step may state its expected outcome.
	Flow []Step `yaml:"flow"`

	// Assertions run after the flow.
	// Supported types: event_order, event_count, event_contains, final_state, audit
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one call.
type Step struct {
	Call   string `yaml:"call"`
	Caller string `yaml:"caller,omitempty"`
	Value  int64  `yaml:"value,omitempty"`
	Index  int64  `yaml:"index,omitempty"`
	Target uint64 `yaml:"target,omitempty"`

	// FailTransfer makes the value transfer of this call fail.
	FailTransfer bool `yaml:"fail_transfer,omitempty"`

	// Expect is optional. Without it the call must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect states the outcome of a step.
type Expect struct {
	// Error is the expected error code. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Result holds expected result fields, compared by their printed form.
	// Keys: amount, count, paused, version, generation, index, sender.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion checks the outcome of the whole scenario.
type Assertion struct {
	// Type is one of event_order, event_count, event_contains, final_state, audit.
	Type string `yaml:"type"`

	// Kinds is the expected subsequence of event kinds (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind selects events (event_count, event_contains).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of events of Kind (event_count).
	Count int `yaml:"count,omitempty"`

	// Fields must all match one event of Kind (event_contains), or the final
	// ledger state (final_state).
	Fields map[string]any `yaml:"fields,omitempty"`
}

var resultKeys = map[string]bool{
	"amount": true, "count": true, "paused": true, "version": true,
	"generation": true, "index": true, "sender": true,
}

// Assertion types.
const (
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertEventContains = "event_contains"
	AssertFinalState    = "final_state"
	AssertAudit         = "audit"
)

var assertionTypes = map[string]bool{
	AssertEventOrder: true, AssertEventCount: true, AssertEventContains: true,
	AssertFinalState: true, AssertAudit: true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must contain at least one step")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions must contain at least one assertion")
	}
	if _, _, err := s.clock(); err != nil {
		return err
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if !assertionTypes[a.Type] {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
		switch a.Type {
		case AssertEventOrder:
			if len(a.Kinds) == 0 {
				return fmt.Errorf("assertions[%d]: kinds is required", i)
			}
		case AssertEventCount, AssertEventContains:
			if a.Kind == "" {
				return fmt.Errorf("assertions[%d]: kind is required", i)
			}
		case AssertFinalState:
			if len(a.Fields) == 0 {
				return fmt.Errorf("assertions[%d]: fields is required", i)
			}
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Call == "" {
		return fmt.Errorf("call is required")
	}
	if !dispatch.Op(step.Call).Valid() {
		return fmt.Errorf("unknown call %q", step.Call)
	}
	if step.Expect != nil {
		for key := range step.Expect.Result {
			if !resultKeys[key] {
				return fmt.Errorf("unknown result field %q", key)
			}
		}
		if step.Expect.Error != "" && len(step.Expect.Result) > 0 {
			return fmt.Errorf("expect cannot set both error and result")
		}
	}
	return nil
}

// clock returns the start time and step of the scenario's clock.
func (s *Scenario) clock() (time.Time, time.Duration, error) {
	start := DefaultStart
	if s.Start != "" {
		var err error
		start, err = time.Parse(time.RFC3339Nano, s.Start)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("start: %w", err)
		}
	}

	step := time.Second
	if s.Step != "" {
		var err error
		step, err = time.ParseDuration(s.Step)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("step: %w", err)
		}
		if step < 0 {
			return time.Time{}, 0, fmt.Errorf("step must not be negative")
		}
	}
	return start.UTC(), step, nil
}
