package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/engine"
	"github.com/roach88/waymark/internal/gate"
	"github.com/roach88/waymark/internal/store"
	"github.com/roach88/waymark/internal/testutil"
)

// Harness executes one scenario against a real engine, store, and gate.
// Deterministic clock and identifier sources make every run reproduce
// the same spans, events, and timestamps.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	gate   *gate.Gate
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// contracts materialized into a temporary directory. The ops drive the
// real engine and gate; nothing is stubbed.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Materialize inline contracts as step definition files
//  3. Execute ops in order, collecting notes and gate decisions
//  4. Snapshot the session's final spans and events
//  5. Evaluate assertions against the result
//
// Run returns an error only for harness-level failures (storage setup,
// contract materialization). Expect and assertion failures land in the
// result's Errors with Pass set to false.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	contractsDir, err := os.MkdirTemp("", "harness-contracts-")
	if err != nil {
		return nil, fmt.Errorf("failed to create contracts dir: %w", err)
	}
	defer os.RemoveAll(contractsDir)
	if err := writeContracts(contractsDir, scenario.Contracts); err != nil {
		return nil, fmt.Errorf("failed to materialize contracts: %w", err)
	}

	// Suppress logs in tests.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := engine.New(st,
		engine.WithClock(testutil.NewSecondClock()),
		engine.WithIDSource(testutil.NewSeqIDs()),
		engine.WithLogger(logger),
	)

	h := &Harness{
		store:  st,
		engine: eng,
		gate:   gate.New(st, contract.NewCache(contractsDir), logger),
		logger: logger,
	}

	ctx := context.Background()

	result := NewResult()
	if err := h.executeOps(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute ops: %w", err)
	}

	spans, err := st.SpansBySession(ctx, scenario.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot spans: %w", err)
	}
	events, err := st.EventsBySession(ctx, scenario.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot events: %w", err)
	}
	result.Spans = spans
	result.Events = events

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeOps runs all ops in order under the scenario session.
func (h *Harness) executeOps(ctx context.Context, scenario *Scenario, result *Result) error {
	session := scenario.Session

	for i, op := range scenario.Ops {
		switch op.Op {
		case OpEnter:
			res := h.engine.EnterStep(ctx, op.Procedure, op.Step, session)
			result.AddNotes(res.Notes)

		case OpDelegate:
			if op.Prompt != "" {
				h.engine.RecordDelegations(ctx, op.Prompt, session)
			} else {
				h.engine.RecordDelegatedStep(ctx, op.Procedure, op.Step, session)
			}

		case OpSuspend:
			h.engine.Suspend(ctx, op.Procedure, session)

		case OpEnd:
			h.engine.CloseSession(ctx, session)

		case OpGate:
			decision := h.gate.MayAccess(ctx, op.Procedure, op.Step, session)
			result.AddDecision(decision)
			checkExpect(i, &op, decision, result)

		case OpEmit:
			var payload any
			if len(op.Payload) > 0 {
				payload = op.Payload
			}
			h.engine.EmitEvent(ctx, op.Procedure, op.Step, op.Type, session, payload)

		default:
			return fmt.Errorf("ops[%d]: unknown op %q", i, op.Op)
		}

		h.logger.Info("op executed", "index", i, "op", op.Op, "procedure", op.Procedure, "step", op.Step)
	}

	return nil
}

// checkExpect validates a gate decision against the op's expect clause,
// if any.
func checkExpect(index int, op *Op, d gate.Decision, result *Result) {
	if op.Expect == nil {
		return
	}
	if op.Expect.Allowed != nil && d.Allowed != *op.Expect.Allowed {
		result.AddError(fmt.Sprintf(
			"ops[%d]: gate %s/%s: expected allowed=%t, got allowed=%t (reason: %q)",
			index, op.Procedure, op.Step, *op.Expect.Allowed, d.Allowed, d.Reason,
		))
	}
	if op.Expect.Reason != "" && !strings.Contains(d.Reason, op.Expect.Reason) {
		result.AddError(fmt.Sprintf(
			"ops[%d]: gate %s/%s: reason %q does not contain %q",
			index, op.Procedure, op.Step, d.Reason, op.Expect.Reason,
		))
	}
}

// writeContracts materializes the scenario's inline contracts as step
// definition files, one per step, under the procedure's steps
// directory. The files carry real YAML frontmatter so gate ops exercise
// the same parsing path as production contracts.
func writeContracts(dir string, contracts ContractSet) error {
	for procedure, steps := range contracts {
		stepsDir := contract.StepsDir(dir, procedure)
		if err := os.MkdirAll(stepsDir, 0o755); err != nil {
			return fmt.Errorf("create steps dir for %s: %w", procedure, err)
		}
		for step, decl := range steps {
			doc, err := stepDoc(step, decl)
			if err != nil {
				return fmt.Errorf("render step %s/%s: %w", procedure, step, err)
			}
			path := filepath.Join(stepsDir, step+".md")
			if err := os.WriteFile(path, doc, 0o644); err != nil {
				return fmt.Errorf("write step %s/%s: %w", procedure, step, err)
			}
		}
	}
	return nil
}

// stepDoc renders one step definition file: YAML frontmatter followed
// by a minimal body.
func stepDoc(step string, decl StepDecl) ([]byte, error) {
	meta, err := yaml.Marshal(decl)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n\n# ")
	buf.WriteString(step)
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
