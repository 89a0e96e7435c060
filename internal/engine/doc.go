// Package engine owns the span lifecycle: the get-or-create state
// machine, procedure switch handling, delegation tracking, session
// close, and the event breadcrumbs each of those leaves behind.
//
// SPAN STATE MACHINE:
//
//	(none) --create--> active
//	active --append_step--> active
//	active --suspend--> suspended
//	suspended --resume--> active
//	active|suspended --complete--> completed   (terminal)
//
// Every mutation runs read-decide-write inside one exclusive store
// transaction, because the contending parties are separate short-lived
// OS processes, not goroutines. See the store package for the locking
// discipline.
//
// FAIL-OPEN BOUNDARY:
//
// Public Engine operations never return storage errors. Tracking is an
// observer of the caller's real work; a locked or broken database logs
// a warning and degrades to "untracked", it does not block. The
// failopen package implements the policy. The one read that tolerates
// staleness instead of failure, the dependency gate, lives in the gate
// package and reads outside the exclusive lock.
package engine
