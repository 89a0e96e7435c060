package engine

import (
	"context"
	"fmt"

	"github.com/roach88/waymark/internal/store"
)

// resolveParent picks the parent for a span being created: the most
// recently started open span in the same session belonging to a
// different procedure. No such span means no parent.
//
// This is a temporal heuristic, not caller-supplied nesting. "B started
// while A was still open" is read as "A invoked B", which is the signal
// composition leaves behind, but two unrelated procedures overlapping in
// one session will be misattributed. Accepted: ancestry is a debugging
// aid, not a correctness input, and the trigger layer has no way to pass
// a real call stack between processes.
func resolveParent(ctx context.Context, tx *store.Tx, procedure, sessionID string) (string, error) {
	parent, err := tx.LatestOpenSpanExcept(ctx, procedure, sessionID)
	if err != nil {
		return "", fmt.Errorf("resolve parent: %w", err)
	}
	if parent == nil {
		return "", nil
	}
	return parent.SpanID, nil
}
