package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"

	"github.com/roach88/recheck/internal/atomicfile"
)

// Detection is the result of one schema change check.
type Detection struct {
	Changed bool

	// Current maps each table in the union of interest to its observed
	// column list. Immutable for the remainder of the run.
	Current map[string][]string

	// ChangedTables is the exact, sorted set of tables whose column
	// list differs from the snapshot, including tables that appeared or
	// disappeared from the union of interest.
	ChangedTables []string

	// Warnings holds per-table read failures. Each affected table was
	// treated as having no columns.
	Warnings []error
}

// Detector compares observed schemas against the persisted snapshot.
type Detector struct {
	Source       Source
	SnapshotPath string
}

// Detect observes the column list of every table in the union of
// interest and compares the resulting mapping, table by table, against
// the persisted snapshot. Structural equality is used rather than
// hashing because the scheduler needs exact table-level attribution.
//
// The snapshot is only written when a change is confirmed (or on first
// run); a no-change detection performs zero writes.
func (d *Detector) Detect(ctx context.Context, tables []string) (Detection, error) {
	det := Detection{Current: make(map[string][]string, len(tables))}

	for _, t := range tables {
		cols, err := d.Source.Columns(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return Detection{}, ctx.Err()
			}
			// Non-fatal: record and fall through with an empty column
			// list, which surfaces as a changed table if it previously
			// had columns.
			det.Warnings = append(det.Warnings, err)
			cols = nil
		}
		if cols == nil {
			cols = []string{}
		}
		det.Current[t] = cols
	}

	prev, ok := d.loadSnapshot()
	if !ok {
		// Bootstrap (or unreadable snapshot): everything counts as
		// changed.
		for t := range det.Current {
			det.ChangedTables = append(det.ChangedTables, t)
		}
		sort.Strings(det.ChangedTables)
		det.Changed = true
		if err := d.writeSnapshot(det.Current); err != nil {
			return Detection{}, fmt.Errorf("persist schema snapshot: %w", err)
		}
		return det, nil
	}

	det.ChangedTables = diffTables(prev, det.Current)
	if len(det.ChangedTables) == 0 {
		return det, nil
	}

	det.Changed = true
	if err := d.writeSnapshot(det.Current); err != nil {
		return Detection{}, fmt.Errorf("persist schema snapshot: %w", err)
	}
	return det, nil
}

// diffTables returns the sorted set of tables whose column list differs
// between the two mappings, including tables present in only one.
func diffTables(prev, current map[string][]string) []string {
	seen := map[string]bool{}
	var changed []string

	for t, cols := range current {
		seen[t] = true
		// A newly referenced table is a change even when both column
		// lists are empty, so presence is checked explicitly.
		pcols, ok := prev[t]
		if !ok || !slices.Equal(pcols, cols) {
			changed = append(changed, t)
		}
	}
	for t := range prev {
		if !seen[t] {
			changed = append(changed, t)
		}
	}
	sort.Strings(changed)
	return changed
}

func (d *Detector) loadSnapshot() (map[string][]string, bool) {
	data, err := os.ReadFile(d.SnapshotPath)
	if err != nil {
		return nil, false
	}
	var snap map[string][]string
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false
	}
	// Normalize so a table persisted as null compares equal to an
	// observed empty column list.
	for t, cols := range snap {
		if cols == nil {
			snap[t] = []string{}
		}
	}
	return snap, true
}

func (d *Detector) writeSnapshot(current map[string][]string) error {
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(d.SnapshotPath, data, 0o644)
}
