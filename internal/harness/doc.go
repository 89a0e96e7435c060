// Package harness provides scenario-based conformance testing for the
// span tracking engine.
//
// A scenario scripts a sequence of tracking operations against a fresh
// in-memory database and asserts on the spans, events, notes, and gate
// decisions that come out. Runs are deterministic: the engine gets a
// fixed clock that ticks one second per timestamp and sequential span
// and event identifiers, so a scenario's outcome can be compared
// byte-for-byte against a golden snapshot.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	session: s1
//	contracts:
//	  research:
//	    gather:
//	      produces: [sources]
//	    decide:
//	      consumes: [sources]
//	ops:
//	  - op: enter
//	    procedure: research
//	    step: gather
//	  - op: gate
//	    procedure: research
//	    step: decide
//	    expect:
//	      allowed: false
//	  - op: end
//	assertions:
//	  - type: span_status
//	    procedure: research
//	    status: completed
//	  - type: event_order
//	    types: [phase_enter, session_end]
//
// The contracts block is optional. When present, the harness writes the
// declared step definition files into a temporary contracts directory
// so gate ops evaluate against real frontmatter, parsed by the same
// code the CLI uses.
//
// Op kinds mirror the engine surface: enter, delegate, suspend, end,
// gate, and emit. A gate op may carry an expect clause; every other
// expectation is written as an assertion over the final state.
package harness
