// ABOUTME: Tests for Requirements JSON shape and helpers
// ABOUTME: Verifies {} for empty values and exactly five keys otherwise
package models

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

func TestRequirements_EmptyEncodesAsObject(t *testing.T) {
	data, err := json.Marshal(Requirements{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Marshal(empty) = %s, want {}", data)
	}
}

func TestRequirements_EmptyDecodesFromObject(t *testing.T) {
	var r Requirements
	if err := json.Unmarshal([]byte("{}"), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !r.IsEmpty() {
		t.Errorf("IsEmpty() = false for decoded {}")
	}
}

func TestRequirements_FiveKeys(t *testing.T) {
	tests := []struct {
		name string
		req  Requirements
	}{
		{"intent only", Requirements{Intent: "limit body size"}},
		{"parameters only", Requirements{Parameters: map[string]any{"max_bytes": 5242880}}},
		{"full", Requirements{
			Intent:       "validate body",
			Entities:     []string{"request body"},
			Requirements: []string{"reject bodies over 5MB"},
			Constraints:  []string{"5MB limit"},
			Parameters:   map[string]any{"limit": "5MB"},
		}},
	}

	want := []string{"constraints", "entities", "intent", "parameters", "requirements"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.req)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var raw map[string]any
			if err := json.Unmarshal(data, &raw); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			keys := make([]string, 0, len(raw))
			for k := range raw {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if !reflect.DeepEqual(keys, want) {
				t.Errorf("keys = %v, want %v", keys, want)
			}

			for _, k := range []string{"entities", "requirements", "constraints"} {
				if _, ok := raw[k].([]any); !ok {
					t.Errorf("%s = %T, want array", k, raw[k])
				}
			}
		})
	}
}

func TestRequirements_RoundTrip(t *testing.T) {
	in := Requirements{
		Intent:       "요청 본문 크기 제한",
		Entities:     []string{"request body"},
		Requirements: []string{"reject > 5MB"},
		Constraints:  []string{"5MB"},
		Parameters:   map[string]any{"max_size": "5MB", "strict": true},
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out Requirements
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestUnknownRequirements(t *testing.T) {
	r := UnknownRequirements()
	if r.Intent != "unknown" {
		t.Errorf("Intent = %q, want unknown", r.Intent)
	}
	if r.IsEmpty() {
		t.Error("UnknownRequirements() should not be empty")
	}
	if r.Entities == nil || r.Requirements == nil || r.Constraints == nil || r.Parameters == nil {
		t.Error("UnknownRequirements() should have non-nil collections")
	}
}

func TestRequirements_Summary(t *testing.T) {
	if got := (Requirements{}).Summary(); got != "(unparsed)" {
		t.Errorf("Summary(empty) = %q", got)
	}
	r := Requirements{Intent: "cors", Constraints: []string{"a", "b"}}
	if got := r.Summary(); got != "cors | a; b" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestRequirements_ParameterKeys(t *testing.T) {
	r := Requirements{Parameters: map[string]any{"b": 1, "a": 2}}
	if got := r.ParameterKeys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ParameterKeys() = %v", got)
	}
}
