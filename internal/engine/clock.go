package engine

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the wall-clock timestamps stamped on spans and events.
//
// Implemented by SystemClock (production) and testutil.FixedClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// IDSource mints span and event identifiers.
//
// Implemented by RandomIDs (production) and testutil.SeqIDs (tests).
type IDSource interface {
	// SpanID returns a fresh 12-character span identifier.
	SpanID() string
	// EventID returns a fresh 8-character event identifier.
	EventID() string
}

// RandomIDs truncates random UUIDs to the identifier widths the schema
// was built around. Stateless and safe for concurrent use.
//
// Uses github.com/google/uuid for RFC 4122 compliant UUIDs.
type RandomIDs struct{}

// SpanID returns the first 12 characters of a random UUID.
func (RandomIDs) SpanID() string { return uuid.NewString()[:12] }

// EventID returns the first 8 characters of a random UUID.
func (RandomIDs) EventID() string { return uuid.NewString()[:8] }
