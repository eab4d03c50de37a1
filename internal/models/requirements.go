// ABOUTME: Requirements is the structured form of a free-text middleware request
// ABOUTME: Encodes as exactly five lowercase keys, or as {} when empty
package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Requirements is produced by parsing a natural-language request
type Requirements struct {
	Intent       string         `json:"intent"`
	Entities     []string       `json:"entities"`
	Requirements []string       `json:"requirements"`
	Constraints  []string       `json:"constraints"`
	Parameters   map[string]any `json:"parameters"`
}

// UnknownRequirements is the fallback used when enhanced parsing cannot be structured
func UnknownRequirements() Requirements {
	return Requirements{Intent: "unknown"}.Normalize()
}

// IsEmpty reports whether nothing was parsed
func (r Requirements) IsEmpty() bool {
	return r.Intent == "" &&
		len(r.Entities) == 0 &&
		len(r.Requirements) == 0 &&
		len(r.Constraints) == 0 &&
		len(r.Parameters) == 0
}

// Normalize replaces nil sequences and maps with empty ones
func (r Requirements) Normalize() Requirements {
	if r.Entities == nil {
		r.Entities = []string{}
	}
	if r.Requirements == nil {
		r.Requirements = []string{}
	}
	if r.Constraints == nil {
		r.Constraints = []string{}
	}
	if r.Parameters == nil {
		r.Parameters = map[string]any{}
	}
	return r
}

// MarshalJSON encodes the empty value as {} and everything else with all five keys
func (r Requirements) MarshalJSON() ([]byte, error) {
	if r.IsEmpty() {
		return []byte("{}"), nil
	}
	type plain Requirements
	return json.Marshal(plain(r.Normalize()))
}

// Summary renders a one-line description for listings
func (r Requirements) Summary() string {
	if r.IsEmpty() {
		return "(unparsed)"
	}
	parts := []string{r.Intent}
	if len(r.Constraints) > 0 {
		parts = append(parts, strings.Join(r.Constraints, "; "))
	}
	return strings.Join(parts, " | ")
}

// ParameterKeys returns the parameter names in sorted order
func (r Requirements) ParameterKeys() []string {
	keys := make([]string, 0, len(r.Parameters))
	for k := range r.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
