package contract

import "regexp"

// stepRefPattern matches a whole path ending ".../<procedure>/steps/<step>.md".
var stepRefPattern = regexp.MustCompile(`(?:^|/)([^/]+)/steps/([^/]+)\.md$`)

// stepRefScanPattern finds step file references embedded in free text,
// such as a delegation prompt. Whitespace is excluded from the name
// segments so surrounding prose is not swallowed.
var stepRefScanPattern = regexp.MustCompile(`/([^/\s]+)/steps/([^/\s]+)\.md`)

// StepRef names one procedure step by its definition file.
type StepRef struct {
	Procedure string
	Step      string
}

// ParseStepRef extracts the procedure and step named by a step
// definition file path. ok is false when the path does not point into a
// steps directory, which lets callers ignore unrelated file references.
func ParseStepRef(path string) (procedure, step string, ok bool) {
	m := stepRefPattern.FindStringSubmatch(path)
	if m == nil {
		return "", "", false
	}
	return Normalize(m[1]), Normalize(m[2]), true
}

// FindStepRefs extracts every step file reference embedded in text, in
// order of appearance. Used to scan delegation prompts, which may name
// several steps.
func FindStepRefs(text string) []StepRef {
	var refs []StepRef
	for _, m := range stepRefScanPattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, StepRef{
			Procedure: Normalize(m[1]),
			Step:      Normalize(m[2]),
		})
	}
	return refs
}
