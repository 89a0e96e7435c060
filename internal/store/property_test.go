package store

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEventFilterSQL_Properties compiles random filters and checks the
// structural invariants of the generated SQL. The vocabularies include
// the empty string so every subset of constraints comes up.
func TestEventFilterSQL_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genFilter := gopter.CombineGens(
		gen.OneConstOf("", "2024-01-01", "2024-02-15"),
		gen.OneConstOf("", "research", "writing"),
		gen.OneConstOf("", "s1", "s2"),
		gen.OneConstOf("", "phase_enter", "session_end"),
		gen.IntRange(-1, 5),
	).Map(func(vals []interface{}) EventFilter {
		return EventFilter{
			Date:      vals[0].(string),
			Procedure: vals[1].(string),
			SessionID: vals[2].(string),
			EventType: vals[3].(string),
			Limit:     vals[4].(int),
		}
	})

	properties.Property("placeholder count matches the argument count", prop.ForAll(
		func(f EventFilter) bool {
			query, args := f.SQL()
			return strings.Count(query, "?") == len(args)
		},
		genFilter,
	))

	properties.Property("every query selects the same columns and keeps the rowid tiebreaker", prop.ForAll(
		func(f EventFilter) bool {
			query, _ := f.SQL()
			return strings.HasPrefix(query, "SELECT id, timestamp, procedure, phase, event_type, session_id, payload FROM events") &&
				strings.Contains(query, " ORDER BY timestamp ASC, rowid ASC")
		},
		genFilter,
	))

	properties.Property("each set field contributes exactly its clause", prop.ForAll(
		func(f EventFilter) bool {
			query, _ := f.SQL()
			clauses := map[string]bool{
				"timestamp LIKE ?": f.Date != "",
				"procedure = ?":    f.Procedure != "",
				"session_id = ?":   f.SessionID != "",
				"event_type = ?":   f.EventType != "",
			}
			want := 0
			for clause, set := range clauses {
				if strings.Contains(query, clause) != set {
					return false
				}
				if set {
					want++
				}
			}
			if strings.Contains(query, " WHERE ") != (want > 0) {
				return false
			}
			if want > 0 && strings.Count(query, " AND ") != want-1 {
				return false
			}
			return strings.HasSuffix(query, " LIMIT ?") == (f.Limit > 0)
		},
		genFilter,
	))

	properties.Property("arguments follow clause order with the date wildcarded", prop.ForAll(
		func(f EventFilter) bool {
			_, args := f.SQL()
			var want []any
			if f.Date != "" {
				want = append(want, f.Date+"%")
			}
			if f.Procedure != "" {
				want = append(want, f.Procedure)
			}
			if f.SessionID != "" {
				want = append(want, f.SessionID)
			}
			if f.EventType != "" {
				want = append(want, f.EventType)
			}
			if f.Limit > 0 {
				want = append(want, f.Limit)
			}
			if len(args) != len(want) {
				return false
			}
			for i := range want {
				if args[i] != want[i] {
					return false
				}
			}
			return true
		},
		genFilter,
	))

	properties.TestingRun(t)
}
