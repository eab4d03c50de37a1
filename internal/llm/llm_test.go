// ABOUTME: Tests for response normalization and the first-part read rule
// ABOUTME: Covers every supported backend response shape
package llm

import (
	"context"
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"string", "hello", []string{"hello"}},
		{"blank string", "  \n", nil},
		{"string slice", []string{"a", "", "b"}, []string{"a", "b"}},
		{"single block", ContentBlock{Type: "text", Text: "x"}, []string{"x"}},
		{"blocks", []ContentBlock{
			{Type: "text", Text: "first"},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "second"},
		}, []string{"first", "second"}},
		{"response", Response{Parts: []string{"p", " "}}, []string{"p"}},
		{"unknown", 42, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if !reflect.DeepEqual(got.Parts, tt.want) {
				t.Errorf("Normalize() = %#v, want %#v", got.Parts, tt.want)
			}
		})
	}
}

func TestResponse_First(t *testing.T) {
	if got := (Response{}).First("fallback"); got != "fallback" {
		t.Errorf("First() = %q, want fallback", got)
	}
	r := Response{Parts: []string{"one", "two"}}
	if got := r.First("fallback"); got != "one" {
		t.Errorf("First() = %q, want one", got)
	}
	if got := r.Text(); got != "onetwo" {
		t.Errorf("Text() = %q, want onetwo", got)
	}
}

func TestCompleterFunc(t *testing.T) {
	var seen Request
	c := CompleterFunc(func(ctx context.Context, req Request) (Response, error) {
		seen = req
		return Normalize("ok"), nil
	})

	resp, err := c.Complete(context.Background(), Request{Prompt: "hi", MaxTokens: 10})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.First("") != "ok" || seen.Prompt != "hi" {
		t.Errorf("unexpected result %+v / %+v", resp, seen)
	}
}
