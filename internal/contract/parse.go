package contract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// stepDecl is the frontmatter shape of one step definition file.
type stepDecl struct {
	Produces []string `yaml:"produces"`
	Consumes []string `yaml:"consumes"`
	Optional bool     `yaml:"optional"`
}

// StepsDir returns the step definition directory for a procedure.
func StepsDir(contractsDir, procedure string) string {
	return filepath.Join(contractsDir, procedure, "steps")
}

// Parse scans a procedure's step definition files and builds its
// Contract. It never fails: a missing directory, an unreadable file, or
// missing or malformed frontmatter makes that step contribute nothing.
// A procedure with no parseable declarations gets an empty contract,
// which the gate treats as "allow everything".
func Parse(contractsDir, procedure string) *Contract {
	c := newContract()

	entries, err := os.ReadDir(StepsDir(contractsDir, procedure))
	if err != nil {
		return c
	}

	// os.ReadDir sorts by filename, which fixes the last-write-wins
	// order for duplicate produces declarations.
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		step := Normalize(strings.TrimSuffix(entry.Name(), ".md"))

		data, err := os.ReadFile(filepath.Join(StepsDir(contractsDir, procedure), entry.Name()))
		if err != nil {
			continue
		}
		meta, ok := Frontmatter(data)
		if !ok {
			continue
		}
		var decl stepDecl
		if err := yaml.Unmarshal(meta, &decl); err != nil {
			continue
		}

		for _, artifact := range decl.Produces {
			c.Produces[Normalize(artifact)] = step
		}
		consumes := make([]string, 0, len(decl.Consumes))
		for _, artifact := range decl.Consumes {
			consumes = append(consumes, Normalize(artifact))
		}
		c.Consumes[step] = consumes
		if decl.Optional {
			c.Optional[step] = true
		}
	}

	return c
}

// Frontmatter extracts the YAML block from a document that opens with a
// `---` fence. Returns false when the document does not start with a
// fence or the closing fence is missing.
func Frontmatter(content []byte) ([]byte, bool) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return nil, false
	}
	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, false
	}
	return rest[:end], true
}
