package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/recheck/internal/atomicfile"
	"github.com/roach88/recheck/internal/canonical"
)

// Snapshot is the persisted canonical form of the registry plus its
// content hash. Exactly one snapshot exists at a time; it is replaced
// wholesale when a change is confirmed.
type Snapshot struct {
	Hash      string          `json:"hash"`
	Canonical json.RawMessage `json:"canonical"`
}

// Detection is the result of one registry change check.
type Detection struct {
	Changed bool
	Checks  []CheckDefinition
	Hash    string
}

// Detector compares the live registry against its persisted snapshot.
type Detector struct {
	RegistryPath string
	SnapshotPath string
}

// Detect loads the registry, canonicalizes it, and compares hashes with
// the persisted snapshot. The snapshot is only written when a change is
// confirmed (or on first run), so repeated invocation without an
// underlying change performs zero writes.
func (d *Detector) Detect() (Detection, error) {
	checks, err := Load(d.RegistryPath)
	if err != nil {
		return Detection{}, err
	}
	return d.DetectChecks(checks)
}

// DetectChecks runs change detection over an already loaded registry.
// Split out so the caller can load once and run this concurrently with
// schema detection.
func (d *Detector) DetectChecks(checks []CheckDefinition) (Detection, error) {
	rows := make([]canonical.Row, len(checks))
	for i, c := range checks {
		rows[i] = c.Row()
	}
	canon, err := canonical.MarshalTable(rows)
	if err != nil {
		return Detection{}, fmt.Errorf("canonicalize registry: %w", err)
	}
	hash := canonical.Hash(canonical.DomainRegistry, canon)

	det := Detection{Checks: checks, Hash: hash}

	prev, ok := d.loadSnapshot()
	if ok && prev.Hash == hash {
		return det, nil
	}

	// Bootstrap, hash mismatch, or unreadable snapshot: persist the new
	// canonical form and report changed.
	if err := d.writeSnapshot(Snapshot{Hash: hash, Canonical: canon}); err != nil {
		return Detection{}, fmt.Errorf("persist registry snapshot: %w", err)
	}
	det.Changed = true
	return det, nil
}

// loadSnapshot returns the persisted snapshot, or ok=false on a missing
// or corrupt file. A corrupt snapshot degrades to the bootstrap path,
// which is the conservative outcome.
func (d *Detector) loadSnapshot() (Snapshot, bool) {
	data, err := os.ReadFile(d.SnapshotPath)
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.Hash == "" {
		return Snapshot{}, false
	}
	return snap, true
}

func (d *Detector) writeSnapshot(snap Snapshot) error {
	// Compact marshal keeps the embedded canonical form byte-exact.
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(d.SnapshotPath, data, 0o644)
}
