package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recheck/internal/canonical"
)

// LoadError indicates the registry source is missing or malformed.
// This is fatal: no recompilation decision can be made without the
// registry.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load registry %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads the check registry from a JSON or YAML file. The format is
// a flat list of check rows; each row must carry a non-empty check_id.
func Load(path string) ([]CheckDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var rows []canonical.Row
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		rows, err = decodeYAML(data)
	default:
		rows, err = decodeJSON(data)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	checks := make([]CheckDefinition, 0, len(rows))
	for i, row := range rows {
		check, err := NewCheck(row)
		if err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("row %d: %w", i, err)}
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// decodeJSON decodes with json.Number so integer literals survive
// canonicalization without float64 precision loss.
func decodeJSON(data []byte) ([]canonical.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows []canonical.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return rows, nil
}

func decodeYAML(data []byte) ([]canonical.Row, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	rows := make([]canonical.Row, len(raw))
	for i, m := range raw {
		norm, err := normalizeYAML(m)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i] = norm.(map[string]any)
	}
	return rows, nil
}

// normalizeYAML converts yaml.v3 decode output into the value shapes
// the canonicalizer accepts (string-keyed maps, json.Number for ints).
func normalizeYAML(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			norm, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[k] = norm
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.New("non-string mapping key")
			}
			norm, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[ks] = norm
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			norm, err := normalizeYAML(elem)
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case int:
		return json.Number(fmt.Sprintf("%d", val)), nil
	case int64:
		return json.Number(fmt.Sprintf("%d", val)), nil
	default:
		return val, nil
	}
}
