// Package scheduler decides which checks require recompilation given
// the registry and schema change signals.
package scheduler

import "github.com/roach88/recheck/internal/registry"

// ChangeSet is the combined output of the two change detectors for one
// run.
type ChangeSet struct {
	RegistryChanged bool
	ChangedTables   map[string]bool
}

// NewChangeSet builds a ChangeSet from a changed-tables list.
func NewChangeSet(registryChanged bool, changedTables []string) ChangeSet {
	cs := ChangeSet{
		RegistryChanged: registryChanged,
		ChangedTables:   make(map[string]bool, len(changedTables)),
	}
	for _, t := range changedTables {
		cs.ChangedTables[t] = true
	}
	return cs
}

// Schedule computes the subset of checks requiring recompilation,
// preserving registry order.
//
// Policy:
//  1. Registry changed: every check. Any registry mutation may have
//     altered wording, hints, or ownership of any check; field-level
//     diffing is not attempted.
//  2. Otherwise, schema changed: every check whose normalized target
//     table set intersects the changed tables. A check with no
//     resolvable target table is never selected here.
//  3. Otherwise: nothing; the workflow cache is reused verbatim.
//
// The policy is monotonic: a superset of the strictly necessary set is
// only a cost, never a correctness bug. Rule 1 is the conservative
// safety net against the one real failure mode, a stale artifact
// silently reused.
func Schedule(cs ChangeSet, checks []registry.CheckDefinition) []registry.CheckDefinition {
	if cs.RegistryChanged {
		out := make([]registry.CheckDefinition, len(checks))
		copy(out, checks)
		return out
	}

	if len(cs.ChangedTables) == 0 {
		return nil
	}

	var out []registry.CheckDefinition
	for _, c := range checks {
		for _, t := range c.Targets() {
			if cs.ChangedTables[t] {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
