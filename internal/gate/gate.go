// Package gate decides whether a procedure step's declared dependencies
// are satisfied before the step is accessed.
//
// The gate is advisory. It blocks only steps of an in-flight procedure
// session whose consumed artifacts have unvisited producers; casual
// inspection outside an active invocation always passes, and so does
// any storage failure.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/waymark/internal/contract"
	"github.com/roach88/waymark/internal/failopen"
	"github.com/roach88/waymark/internal/store"
)

// Requirement is one unsatisfied dependency of a gated step.
type Requirement struct {
	Artifact string `json:"artifact"`
	Producer string `json:"producer"`
}

// Decision is the gate's answer for one step access. A block is a valid
// answer, not an error.
type Decision struct {
	Allowed bool          `json:"allowed"`
	Reason  string        `json:"reason,omitempty"`
	Missing []Requirement `json:"missing,omitempty"`
}

// Gate evaluates step dependencies against the visited-step history of
// the scope's active span.
type Gate struct {
	store     *store.Store
	contracts *contract.Cache
	logger    *slog.Logger
}

// New creates a gate reading span state from s and contracts from
// contracts. A nil logger falls back to slog.Default().
func New(s *store.Store, contracts *contract.Cache, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: s, contracts: contracts, logger: logger}
}

// MayAccess reports whether step of procedure may be accessed within the
// session. The decision sequence, first match wins:
//
//  1. Procedures beginning with "_" are internal helpers, never gated.
//  2. No consumes declared for the step: allow.
//  3. Every consumed artifact is a root input: allow.
//  4. No active span for (procedure, session), or the lookup fails:
//     allow. The gate restrains in-flight sessions only.
//  5. Each consumed non-root artifact must have its producer visited or
//     flagged optional. An artifact nothing produces is let through;
//     blocking would name no step to complete. Any unsatisfied artifact
//     blocks, the rest is allowed.
//
// Gate reads run outside the exclusive transaction. A concurrent writer
// may make the visited list momentarily stale, which is acceptable for
// an advisory decision.
func (g *Gate) MayAccess(ctx context.Context, procedure, step, sessionID string) Decision {
	procedure = contract.Normalize(procedure)
	step = contract.Normalize(step)

	if strings.HasPrefix(procedure, "_") {
		return allow()
	}

	c := g.contracts.Get(procedure)
	consumes := c.ConsumesOf(step)
	if len(consumes) == 0 {
		return allow()
	}

	rootOnly := true
	for _, artifact := range consumes {
		if !contract.IsRootInput(artifact) {
			rootOnly = false
			break
		}
	}
	if rootOnly {
		return allow()
	}

	span := failopen.Value(g.logger, "gate: load active span", (*store.Span)(nil), func() (*store.Span, error) {
		return g.store.ActiveSpan(ctx, procedure, sessionID)
	})
	if span == nil {
		return allow()
	}

	return Evaluate(c, step, span.Steps)
}

// Evaluate applies contract c to one access of step given the steps the
// active span has already visited. It is the decision kernel of
// MayAccess, split out from the span lookup so it can be exercised
// without a store. Callers own span resolution and the fail-open paths.
func Evaluate(c *contract.Contract, step string, visitedSteps []string) Decision {
	step = contract.Normalize(step)

	visited := make(map[string]bool, len(visitedSteps))
	for _, visitedStep := range visitedSteps {
		visited[contract.Normalize(visitedStep)] = true
	}

	var missing []Requirement
	for _, artifact := range c.ConsumesOf(step) {
		if contract.IsRootInput(artifact) {
			continue
		}
		producer, ok := c.ProducerOf(artifact)
		if !ok {
			continue
		}
		if visited[producer] || c.IsOptional(producer) {
			continue
		}
		missing = append(missing, Requirement{Artifact: artifact, Producer: producer})
	}

	if len(missing) == 0 {
		return allow()
	}
	return Decision{
		Allowed: false,
		Reason:  blockReason(step, missing),
		Missing: missing,
	}
}

func allow() Decision {
	return Decision{Allowed: true}
}

// blockReason names every missing artifact and the step that produces it:
//
//	Step 'decide' requires 'facts' (produced by 'gather'). Complete those steps first.
func blockReason(step string, missing []Requirement) string {
	parts := make([]string, len(missing))
	for i, req := range missing {
		parts[i] = fmt.Sprintf("'%s' (produced by '%s')", req.Artifact, req.Producer)
	}
	return fmt.Sprintf("Step '%s' requires %s. Complete those steps first.", step, strings.Join(parts, ", "))
}
