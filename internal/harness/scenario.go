package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance test: a scripted operation sequence
// and the assertions that must hold over the resulting session state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the session id every op runs under. Scenarios model a
	// single agent invocation, so one session is enough.
	Session string `yaml:"session"`

	// Contracts declares step dependency contracts inline, keyed by
	// procedure then step. The harness materializes them as step
	// definition files before any gate op runs.
	Contracts ContractSet `yaml:"contracts,omitempty"`

	// Ops is the operation sequence, executed in order.
	Ops []Op `yaml:"ops"`

	// Assertions validate the final spans, events, and notes.
	// Supported types: span_status, span_steps, span_parent,
	// span_count, event_order, event_count, note_contains.
	Assertions []Assertion `yaml:"assertions"`
}

// ContractSet maps procedure -> step -> contract declaration.
type ContractSet map[string]map[string]StepDecl

// StepDecl is the frontmatter written into a materialized step
// definition file.
type StepDecl struct {
	Produces []string `yaml:"produces,omitempty"`
	Consumes []string `yaml:"consumes,omitempty"`
	Optional bool     `yaml:"optional,omitempty"`
}

// Op is a single scripted operation.
type Op struct {
	// Op selects the operation kind: enter, delegate, suspend, end,
	// gate, or emit.
	Op string `yaml:"op"`

	// Procedure is the target procedure (enter, delegate, suspend,
	// gate, emit).
	Procedure string `yaml:"procedure,omitempty"`

	// Step is the target step. Optional for enter (an empty step means
	// the whole procedure), required for delegate without a prompt and
	// for gate.
	Step string `yaml:"step,omitempty"`

	// Prompt is delegation prompt text to scan for step file
	// references. When set, a delegate op records every reference
	// found instead of a single procedure/step pair.
	Prompt string `yaml:"prompt,omitempty"`

	// Type is the event type for emit ops.
	Type string `yaml:"type,omitempty"`

	// Payload is an optional structured payload for emit ops.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Expect validates a gate op's decision inline. Only valid on gate
	// ops.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected gate decision.
type ExpectClause struct {
	// Allowed is the expected verdict. Required; a pointer so that an
	// explicit false is distinguishable from an omitted field.
	Allowed *bool `yaml:"allowed"`

	// Reason, when set, must be a substring of the decision's reason.
	Reason string `yaml:"reason,omitempty"`
}

// Assertion validates the final session state after all ops ran.
type Assertion struct {
	// Type selects the assertion:
	//   - "span_status":   the procedure's newest span has this status
	//   - "span_steps":    the procedure's newest span has exactly these steps
	//   - "span_parent":   the procedure's newest span is parented under parent's span
	//   - "span_count":    the session recorded exactly count spans
	//   - "event_order":   event types appear in this order (subsequence match)
	//   - "event_count":   event_type occurs exactly count times
	//   - "note_contains": some entry note contains text
	Type string `yaml:"type"`

	// Procedure scopes span assertions.
	Procedure string `yaml:"procedure,omitempty"`

	// Status is the expected span status (span_status).
	Status string `yaml:"status,omitempty"`

	// Steps is the expected step history, exact match (span_steps).
	Steps []string `yaml:"steps,omitempty"`

	// Parent is the expected parent procedure (span_parent).
	Parent string `yaml:"parent,omitempty"`

	// Types is the expected event type sequence (event_order).
	Types []string `yaml:"types,omitempty"`

	// EventType is the counted event type (event_count).
	EventType string `yaml:"event_type,omitempty"`

	// Count is the expected occurrence count (span_count, event_count).
	Count int `yaml:"count,omitempty"`

	// Text is the expected note substring (note_contains).
	Text string `yaml:"text,omitempty"`
}

// Op kind constants.
const (
	OpEnter    = "enter"
	OpDelegate = "delegate"
	OpSuspend  = "suspend"
	OpEnd      = "end"
	OpGate     = "gate"
	OpEmit     = "emit"
)

// Assertion type constants.
const (
	AssertSpanStatus   = "span_status"
	AssertSpanSteps    = "span_steps"
	AssertSpanParent   = "span_parent"
	AssertSpanCount    = "span_count"
	AssertEventOrder   = "event_order"
	AssertEventCount   = "event_count"
	AssertNoteContains = "note_contains"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Session == "" {
		return fmt.Errorf("session is required")
	}

	if len(s.Ops) == 0 {
		return fmt.Errorf("ops list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, op := range s.Ops {
		if err := validateOp(i, &op); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateOp validates a single op based on its kind.
func validateOp(index int, op *Op) error {
	if op.Op == "" {
		return fmt.Errorf("ops[%d]: op is required", index)
	}

	if op.Expect != nil && op.Op != OpGate {
		return fmt.Errorf("ops[%d]: expect is only valid on gate ops", index)
	}

	switch op.Op {
	case OpEnter:
		if op.Procedure == "" {
			return fmt.Errorf("ops[%d]: procedure is required for enter", index)
		}
	case OpDelegate:
		if op.Prompt == "" && (op.Procedure == "" || op.Step == "") {
			return fmt.Errorf("ops[%d]: delegate requires a prompt or a procedure and step", index)
		}
	case OpSuspend:
		if op.Procedure == "" {
			return fmt.Errorf("ops[%d]: procedure is required for suspend", index)
		}
	case OpEnd:
		// No fields; the op closes the scenario session.
	case OpGate:
		if op.Procedure == "" || op.Step == "" {
			return fmt.Errorf("ops[%d]: procedure and step are required for gate", index)
		}
		if op.Expect != nil && op.Expect.Allowed == nil {
			return fmt.Errorf("ops[%d].expect: allowed is required", index)
		}
	case OpEmit:
		if op.Procedure == "" {
			return fmt.Errorf("ops[%d]: procedure is required for emit", index)
		}
		if op.Type == "" {
			return fmt.Errorf("ops[%d]: type is required for emit", index)
		}
	default:
		return fmt.Errorf("ops[%d]: unknown op %q", index, op.Op)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSpanStatus:
		if a.Procedure == "" {
			return fmt.Errorf("assertions[%d]: procedure is required for span_status", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for span_status", index)
		}
	case AssertSpanSteps:
		if a.Procedure == "" {
			return fmt.Errorf("assertions[%d]: procedure is required for span_steps", index)
		}
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for span_steps", index)
		}
	case AssertSpanParent:
		if a.Procedure == "" {
			return fmt.Errorf("assertions[%d]: procedure is required for span_parent", index)
		}
		if a.Parent == "" {
			return fmt.Errorf("assertions[%d]: parent is required for span_parent", index)
		}
	case AssertSpanCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for span_count", index)
		}
	case AssertEventOrder:
		if len(a.Types) == 0 {
			return fmt.Errorf("assertions[%d]: types list is required for event_order", index)
		}
	case AssertEventCount:
		if a.EventType == "" {
			return fmt.Errorf("assertions[%d]: event_type is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertNoteContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for note_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
