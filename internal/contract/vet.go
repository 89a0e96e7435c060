package contract

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Contract lint codes (E200-E299)
const (
	ErrNoStepFiles        = "E200" // steps directory has no step files
	ErrFileUnreadable     = "E201" // step file could not be read
	ErrMissingFrontmatter = "E202" // step file has no frontmatter fence
	ErrInvalidYAML        = "E203" // frontmatter is not valid YAML
	ErrSchemaViolation    = "E204" // frontmatter violates the step schema
	ErrDuplicateProduces  = "E205" // two steps produce the same artifact
	ErrNoProducer         = "E206" // consumed artifact has no producer
)

//go:embed schema.cue
var stepSchema string

// Finding is one lint result from Vet.
type Finding struct {
	Procedure string `json:"procedure"`
	File      string `json:"file,omitempty"`
	Message   string `json:"message"`
	Code      string `json:"code"`
}

// Error implements the error interface.
func (f Finding) Error() string {
	if f.File != "" {
		return fmt.Sprintf("[%s] %s/%s: %s", f.Code, f.Procedure, f.File, f.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", f.Code, f.Procedure, f.Message)
}

// Vet checks every step declaration of a procedure against the step
// schema and reports what the lenient runtime parser deliberately
// tolerates: unreadable or fence-less files, YAML errors, schema
// violations, duplicate produces declarations, and consumed artifacts
// that nothing produces.
//
// The returned error covers an unreadable steps directory or a broken
// schema only; lint results are findings, not errors.
func Vet(contractsDir, procedure string) ([]Finding, error) {
	dir := StepsDir(contractsDir, procedure)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read steps dir: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(stepSchema).LookupPath(cue.ParsePath("#Step"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile step schema: %w", err)
	}

	var findings []Finding
	fail := func(file, code, message string) {
		findings = append(findings, Finding{
			Procedure: procedure,
			File:      file,
			Message:   message,
			Code:      code,
		})
	}

	type consumption struct {
		file     string
		step     string
		artifact string
	}
	producers := make(map[string][]string) // artifact -> declaring steps, file order
	var consumed []consumption
	steps := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		steps++
		step := strings.TrimSuffix(entry.Name(), ".md")

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			fail(entry.Name(), ErrFileUnreadable, err.Error())
			continue
		}
		meta, ok := Frontmatter(data)
		if !ok {
			fail(entry.Name(), ErrMissingFrontmatter, "no frontmatter fence; step declares no contract")
			continue
		}

		var raw map[string]any
		if err := yaml.Unmarshal(meta, &raw); err != nil {
			fail(entry.Name(), ErrInvalidYAML, err.Error())
			continue
		}
		if raw == nil {
			raw = map[string]any{}
		}

		merged := schema.Unify(ctx.Encode(raw))
		if err := merged.Validate(cue.Concrete(true)); err != nil {
			fail(entry.Name(), ErrSchemaViolation, strings.TrimSpace(err.Error()))
			continue
		}

		var decl stepDecl
		if err := yaml.Unmarshal(meta, &decl); err != nil {
			fail(entry.Name(), ErrInvalidYAML, err.Error())
			continue
		}
		for _, artifact := range decl.Produces {
			a := Normalize(artifact)
			producers[a] = append(producers[a], step)
		}
		for _, artifact := range decl.Consumes {
			consumed = append(consumed, consumption{
				file:     entry.Name(),
				step:     step,
				artifact: Normalize(artifact),
			})
		}
	}

	if steps == 0 {
		fail("", ErrNoStepFiles, "no step definition files found")
		return findings, nil
	}

	duplicates := make([]string, 0, len(producers))
	for artifact, declaring := range producers {
		if len(declaring) > 1 {
			duplicates = append(duplicates, artifact)
		}
	}
	sort.Strings(duplicates)
	for _, artifact := range duplicates {
		declaring := producers[artifact]
		fail("", ErrDuplicateProduces, fmt.Sprintf(
			"artifact %q produced by steps %s; the gate resolves it to %q (last file wins)",
			artifact, quoteJoin(declaring), declaring[len(declaring)-1]))
	}

	for _, c := range consumed {
		if IsRootInput(c.artifact) {
			continue
		}
		if len(producers[c.artifact]) == 0 {
			fail(c.file, ErrNoProducer, fmt.Sprintf(
				"step %q consumes %q which no step produces; the gate will not block on it", c.step, c.artifact))
		}
	}

	return findings, nil
}

// VetAll vets every procedure under contractsDir that has a steps
// directory. Procedures beginning with "_" are internal helpers and are
// skipped, matching the gate and the delegation tracker.
func VetAll(contractsDir string) ([]Finding, error) {
	entries, err := os.ReadDir(contractsDir)
	if err != nil {
		return nil, fmt.Errorf("read contracts dir: %w", err)
	}

	var findings []Finding
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		if _, err := os.Stat(StepsDir(contractsDir, entry.Name())); err != nil {
			continue
		}
		fs, err := Vet(contractsDir, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("vet %s: %w", entry.Name(), err)
		}
		findings = append(findings, fs...)
	}
	return findings, nil
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}
