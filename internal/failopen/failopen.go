// Package failopen implements the degradation policy for tracking
// operations: when bookkeeping fails, log and keep going rather than
// block the caller's real work.
//
// Span tracking is an observer. A full disk, a locked database, or a
// malformed contract file must never abort the step the agent is
// executing. Callers wrap fallible bookkeeping in Value or Do and
// receive a usable result either way.
//
// The one deliberate exception is a gate denial: refusing access
// because prerequisites are missing is a correct answer, not a
// failure, and is returned as an ordinary value by the gate package.
package failopen

import "log/slog"

// Value runs fn and returns its result. If fn fails, Value logs the
// error at WARN with the operation name and returns fallback instead.
//
// The fallback should be the value that lets the caller proceed as if
// tracking were disabled: an empty slice, a nil span, an allow
// decision.
func Value[T any](logger *slog.Logger, op string, fallback T, fn func() (T, error)) T {
	v, err := fn()
	if err != nil {
		logger.Warn("tracking operation failed open", "op", op, "error", err)
		return fallback
	}
	return v
}

// Do runs fn and swallows any error after logging it at WARN.
// Used for fire-and-forget bookkeeping such as event emission.
func Do(logger *slog.Logger, op string, fn func() error) {
	if err := fn(); err != nil {
		logger.Warn("tracking operation failed open", "op", op, "error", err)
	}
}
