// ABOUTME: Test doubles for the language-model capability
// ABOUTME: Scripted replays queued replies; Embedder is a deterministic letter-frequency embedder
package llmtest

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/harper/mwgen/internal/llm"
)

// ErrNoReply is returned when a Scripted completer runs out of replies
var ErrNoReply = errors.New("llmtest: no scripted reply left")

// Reply is one canned completion outcome
type Reply struct {
	Parts []string
	Err   error
}

// Text is a reply with a single part
func Text(s string) Reply {
	return Reply{Parts: []string{s}}
}

// Fail is a reply that fails with err
func Fail(err error) Reply {
	return Reply{Err: err}
}

// Scripted returns its replies in order and records every request
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	calls   []llm.Request
}

// NewScripted creates a completer that plays back replies in order
func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

// Push appends more replies
func (s *Scripted) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// Complete pops the next reply
func (s *Scripted) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if len(s.replies) == 0 {
		return llm.Response{}, ErrNoReply
	}

	r := s.replies[0]
	s.replies = s.replies[1:]
	if r.Err != nil {
		return llm.Response{}, r.Err
	}
	return llm.Normalize(r.Parts), nil
}

// Calls returns a copy of every request seen so far
func (s *Scripted) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Remaining reports how many replies are still queued
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

// Dim is the dimension of vectors produced by Embedder
const Dim = 26

// Embedder maps text to normalized a-z letter frequencies
type Embedder struct {
	Err error
}

// Embed returns a unit vector of letter counts, or Err when set
func (e Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float64, Dim)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}

	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}
