// Package cache is the durable mapping from check identity to its most
// recently compiled artifact set. It is advisory and rebuildable: a
// corrupt cache file degrades to an empty cache, never an aborted run.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/roach88/recheck/internal/atomicfile"
	"github.com/roach88/recheck/internal/registry"
)

// Provenance records the exact state an artifact was compiled against.
// It is reproducible evidence, never edited in place: a recompilation
// replaces the whole entry.
type Provenance struct {
	RegistryHash string              `json:"registry_hash"`
	SchemaCols   map[string][]string `json:"schema_cols"`
}

// Artifact is one compiled output of the oracle for a check. Payload is
// opaque: the oracle is non-deterministic and the cache stores whatever
// was last produced.
type Artifact struct {
	Kind            string          `json:"type"`
	Payload         json.RawMessage `json:"artifact"`
	CompiledAt      time.Time       `json:"compiled_at"`
	CompiledAgainst Provenance      `json:"compiled_against"`
}

// Artifact kinds, in entry order.
const (
	KindPlan      = "plan"
	KindExecution = "execution"
)

// Entry holds the ordered artifact list for one check identity.
type Entry struct {
	RunID     string     `json:"run_id"`
	Artifacts []Artifact `json:"artifacts"`
}

// PersistError indicates the cache could not be flushed to durable
// storage after retries were exhausted. Losing freshly computed
// artifacts is costly, so this is a run-level failure.
type PersistError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist workflow cache %s after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Cache is an in-memory view of the workflow cache file. Mutations are
// serialized per cache (and therefore per key); Flush persists the full
// mapping atomically.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[registry.Identity]Entry
	dirty   bool
	loadErr error
}

// Open loads the cache file at path. A missing file yields an empty
// cache; a corrupt file also yields an empty cache with the parse
// failure retained for logging (see LoadWarning).
func Open(path string) *Cache {
	c := &Cache{path: path, entries: map[registry.Identity]Entry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.loadErr = err
		}
		return c
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = map[registry.Identity]Entry{}
		c.loadErr = fmt.Errorf("corrupt cache file, rebuilding: %w", err)
	}
	return c
}

// LoadWarning reports a non-fatal problem encountered while loading,
// or nil.
func (c *Cache) LoadWarning() error { return c.loadErr }

// Get returns a deep copy of the entry for the given identity.
func (c *Cache) Get(id registry.Identity) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return copyEntry(e), true
}

// Put fully replaces the entry for the given identity. Partial merges
// are never performed.
func (c *Cache) Put(id registry.Identity, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = copyEntry(e)
	c.dirty = true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Identities returns the cached check identities in sorted order.
func (c *Cache) Identities() []registry.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]registry.Identity, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Flush persists the full cache atomically (write-to-temp-then-rename),
// retrying with doubling backoff. It is a no-op when nothing was Put
// since load, so a run with no recompilation leaves the cache file
// untouched.
func (c *Cache) Flush(attempts int, backoff time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}

	// Compact marshal: indenting would re-format the opaque artifact
	// payloads and break byte-for-byte round trips across a reload.
	data, err := json.Marshal(c.entries)
	if err != nil {
		return &PersistError{Path: c.path, Attempts: 0, Err: err}
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if lastErr = atomicfile.WriteFile(c.path, data, 0o644); lastErr == nil {
			c.dirty = false
			return nil
		}
	}
	return &PersistError{Path: c.path, Attempts: attempts, Err: lastErr}
}

func copyEntry(e Entry) Entry {
	out := Entry{RunID: e.RunID, Artifacts: make([]Artifact, len(e.Artifacts))}
	for i, a := range e.Artifacts {
		cp := a
		cp.Payload = append(json.RawMessage(nil), a.Payload...)
		if a.CompiledAgainst.SchemaCols != nil {
			cols := make(map[string][]string, len(a.CompiledAgainst.SchemaCols))
			for t, cs := range a.CompiledAgainst.SchemaCols {
				cols[t] = append([]string(nil), cs...)
			}
			cp.CompiledAgainst.SchemaCols = cols
		}
		out.Artifacts[i] = cp
	}
	return out
}
