package contract

import "golang.org/x/text/unicode/norm"

// RootInputs are artifacts considered satisfied before any step runs.
// They are never looked up in the produces map.
var RootInputs = map[string]bool{
	"user-request": true,
}

// IsRootInput reports whether artifact is satisfied without a producer.
func IsRootInput(artifact string) bool {
	return RootInputs[Normalize(artifact)]
}

// Normalize returns the NFC form of an identifier so that file-derived
// and caller-supplied names compare equal regardless of Unicode encoding.
func Normalize(s string) string {
	return norm.NFC.String(s)
}

// Contract holds one procedure's dependency declarations, built from the
// frontmatter of its step definition files.
type Contract struct {
	// Produces maps artifact name to the step that creates it. When two
	// steps declare the same artifact the later file wins (lexical file
	// order). Runtime accepts this; vet reports it.
	Produces map[string]string

	// Consumes maps step name to the artifacts it requires.
	Consumes map[string][]string

	// Optional marks steps whose absence never blocks a consumer.
	Optional map[string]bool
}

func newContract() *Contract {
	return &Contract{
		Produces: make(map[string]string),
		Consumes: make(map[string][]string),
		Optional: make(map[string]bool),
	}
}

// ConsumesOf returns the artifacts step requires. Nil when the step has
// no contract entry.
func (c *Contract) ConsumesOf(step string) []string {
	return c.Consumes[Normalize(step)]
}

// ProducerOf returns the step that produces artifact, if any step does.
func (c *Contract) ProducerOf(artifact string) (string, bool) {
	step, ok := c.Produces[Normalize(artifact)]
	return step, ok
}

// IsOptional reports whether step is flagged optional.
func (c *Contract) IsOptional(step string) bool {
	return c.Optional[Normalize(step)]
}
