package contract

import "sync"

// Cache parses each procedure's contract at most once per process and
// serves the parsed result thereafter. Step definition files are not
// expected to change within a process lifetime, so the cache never
// invalidates.
//
// Safe for concurrent use.
type Cache struct {
	dir string

	mu        sync.Mutex
	contracts map[string]*Contract
}

// NewCache returns a cache reading step definitions under contractsDir.
func NewCache(contractsDir string) *Cache {
	return &Cache{
		dir:       contractsDir,
		contracts: make(map[string]*Contract),
	}
}

// Get returns the contract for procedure, parsing it on first use.
func (c *Cache) Get(procedure string) *Contract {
	key := Normalize(procedure)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.contracts[key]; ok {
		return ct
	}
	ct := Parse(c.dir, key)
	c.contracts[key] = ct
	return ct
}
