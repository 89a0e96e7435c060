// Package contract parses step dependency declarations from procedure
// step files.
//
// A procedure's steps live at <contractsDir>/<procedure>/steps/<step>.md.
// Each file may open with a YAML frontmatter fence declaring what the
// step produces, what it consumes, and whether it is optional:
//
//	---
//	produces: [facts]
//	consumes: [user-request]
//	optional: false
//	---
//
// Two parsing paths with opposite error postures:
//
//   - Parse (and Cache) is the runtime path. It never fails: anything
//     missing or malformed contributes nothing, because a broken
//     declaration must degrade to "no contract", not block the caller.
//   - Vet is the lint path. It checks the same files strictly against
//     an embedded CUE schema and reports everything Parse tolerated.
//
// All identifiers are NFC normalized so file-derived and caller-supplied
// names compare equal.
package contract
