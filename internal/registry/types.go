// Package registry loads the data-quality check registry and detects
// whether it differs from the last known-good snapshot.
package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/recheck/internal/canonical"
)

// Identity is the caching key for a check: "<check_id>::<check_name>".
// Two definitions with the same identity are the same logical check,
// revised.
type Identity string

// CheckDefinition is one row of the check registry. CheckID and
// CheckName form the identity; everything else (description,
// calculation hint, severity, owner, tags, ...) is descriptive and
// survives round trips via the raw row.
type CheckDefinition struct {
	CheckID   string
	CheckName string

	// raw is the full source row, including fields this package does
	// not interpret. Canonicalization and hashing operate on raw so
	// unknown fields still count toward registry identity.
	raw canonical.Row
}

// NewCheck builds a CheckDefinition from a raw registry row. The row
// must carry a non-empty check_id.
func NewCheck(row canonical.Row) (CheckDefinition, error) {
	id := asString(row["check_id"])
	if id == "" {
		return CheckDefinition{}, fmt.Errorf("missing check_id")
	}
	return CheckDefinition{
		CheckID:   id,
		CheckName: asString(row["check_name"]),
		raw:       row,
	}, nil
}

// Identity returns the cache key for this check.
func (c CheckDefinition) Identity() Identity {
	return Identity(c.CheckID + "::" + c.CheckName)
}

// Row returns the full source row for canonicalization.
func (c CheckDefinition) Row() canonical.Row {
	return c.raw
}

// Attr returns a descriptive field by name.
func (c CheckDefinition) Attr(key string) (any, bool) {
	v, ok := c.raw[key]
	return v, ok
}

// Targets returns the normalized target table set: the target_table
// field split on commas (or taken element-wise from a list), trimmed,
// lowercased, with empties dropped. A check with no resolvable target
// table returns nil.
func (c CheckDefinition) Targets() []string {
	raw, ok := c.raw["target_table"]
	if !ok || raw == nil {
		return nil
	}

	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []any:
		for _, elem := range v {
			parts = append(parts, asString(elem))
		}
	default:
		parts = []string{asString(v)}
	}

	var targets []string
	seen := map[string]bool{}
	for _, p := range parts {
		t := strings.ToLower(strings.TrimSpace(p))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		targets = append(targets, t)
	}
	return targets
}

// asString renders a scalar cell value. Registry producers are loose
// about types, so numeric IDs are accepted and stringified.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
