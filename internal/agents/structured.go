// ABOUTME: Strict-JSON-or-default decoding shared by every structured-output operation
// ABOUTME: Malformed output yields the caller's default plus a Diagnostic that keeps the raw text
package agents

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyResponse marks a structured operation that got no text at all
var ErrEmptyResponse = errors.New("empty response")

// ErrKeyCase marks an object key that is not lowercase
var ErrKeyCase = errors.New("object key must be lowercase")

// Diagnostic preserves why structuring failed
type Diagnostic struct {
	Operation string `json:"operation"`
	Raw       string `json:"raw"`
	Err       error  `json:"-"`
}

// Error renders the diagnostic as text
func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %v", d.Operation, d.Err)
}

// Unwrap exposes the underlying decode error
func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// MarshalJSON includes the error text
func (d *Diagnostic) MarshalJSON() ([]byte, error) {
	msg := ""
	if d.Err != nil {
		msg = d.Err.Error()
	}
	return json.Marshal(struct {
		Operation string `json:"operation"`
		Raw       string `json:"raw"`
		Error     string `json:"error"`
	}{d.Operation, d.Raw, msg})
}

// DecodeOrDefault decodes raw as exactly one JSON value of type T.
// Only surrounding whitespace and a fence wrapping the whole reply are tolerated.
// Object keys must be lowercase and known to T; field matching is exact, not case-folded.
// On any failure it returns def() and a non-nil Diagnostic; it never returns an error.
func DecodeOrDefault[T any](operation, raw string, def func() T) (T, *Diagnostic) {
	body := strings.TrimSpace(StripCodeFence(raw))
	if body == "" {
		return def(), &Diagnostic{Operation: operation, Raw: raw, Err: ErrEmptyResponse}
	}

	if err := checkObjectKeys(body); err != nil {
		return def(), &Diagnostic{Operation: operation, Raw: raw, Err: err}
	}

	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return def(), &Diagnostic{Operation: operation, Raw: raw, Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return def(), &Diagnostic{Operation: operation, Raw: raw, Err: errors.New("unexpected text after JSON value")}
	}

	return out, nil
}

// checkObjectKeys rejects a top-level object with any key that is not lowercase
func checkObjectKeys(body string) error {
	if !strings.HasPrefix(body, "{") {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		// Decode reports the syntax error with better context
		return nil
	}
	for key := range fields {
		if key != strings.ToLower(key) {
			return fmt.Errorf("%w: %q", ErrKeyCase, key)
		}
	}
	return nil
}

// StripCodeFence removes a Markdown code fence that wraps the entire text.
// Text that is not fully fenced is returned trimmed but otherwise unchanged.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || len(t) < 6 || !strings.HasSuffix(t, "```") {
		return t
	}

	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return t
	}
	body := t[nl+1 : len(t)-3]
	if strings.Contains(body, "\n```") {
		// More than one fenced block; leave it for the reader
		return t
	}
	return strings.Trim(body, "\r\n")
}
