// Package store owns the single-file SQLite database behind waymark: two
// tables (spans, events), connection lifecycle, pragmas, and additive
// user_version migrations.
//
// Every persisted row crosses this boundary as a typed record (Span, Event);
// nothing outside the package touches SQL. Span mutations run through
// Store.ExclusiveTx so that independent OS processes performing
// read-decide-write sequences against the same database cannot lose
// updates: each transaction begins EXCLUSIVE and contenders block up to the
// configured busy timeout. Plain reads (gate checks, reporting) query the
// pool directly and tolerate slightly stale snapshots.
//
// The store is mechanical by design: timestamps, identifiers, and dedup
// policy are supplied by callers (see internal/engine).
package store
