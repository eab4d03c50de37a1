// ABOUTME: Tests for the request inbox watcher
// ABOUTME: Uses a fake generator and a temp directory

package watch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/models"
)

type fakeGenerator struct {
	mu       sync.Mutex
	inputs   []string
	runErr   error
	saveErrs []error
	nextID   int64
}

func (f *fakeGenerator) Run(ctx context.Context, input string) (*core.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.runErr != nil {
		return &core.Result{Input: input, FailedStage: core.StageGenerate}, f.runErr
	}
	return &core.Result{Input: input, Code: "code", Documentation: "docs", Validation: "ok"}, nil
}

func (f *fakeGenerator) Save(ctx context.Context, r *core.Result) (models.Case, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return models.Case{}, err
		}
	}
	f.nextID++
	return models.Case{ID: f.nextID, InputText: r.Input}, nil
}

func (f *fakeGenerator) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

func readOutcome(t *testing.T, path string) Outcome {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return o
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := map[string]string{
		"/in/cors.txt":     "/in/cors.case.json",
		"/in/jwt.check.md": "/in/jwt.check.case.json",
	}
	for in, want := range tests {
		if got := OutputPath(in); got != want {
			t.Errorf("OutputPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{}
	in := NewInbox(gen, Config{})

	path := filepath.Join(dir, "cors.txt")
	writeFile(t, path, "  Add CORS headers for example.com\n")

	if err := in.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	o := readOutcome(t, OutputPath(path))
	if o.CaseID != 1 || o.Error != "" || o.Source != "cors.txt" {
		t.Errorf("outcome = %+v", o)
	}
	if got := gen.Inputs(); len(got) != 1 || got[0] != "Add CORS headers for example.com" {
		t.Errorf("inputs = %v", got)
	}

	// A second pass sees the outcome file and does nothing
	if err := in.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if len(gen.Inputs()) != 1 {
		t.Error("file processed twice")
	}
}

func TestProcessFile_PipelineFailure(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{runErr: errors.New("generate stage failed: timeout")}
	in := NewInbox(gen, Config{})

	path := filepath.Join(dir, "jwt.md")
	writeFile(t, path, "check jwt")

	if err := in.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}

	o := readOutcome(t, OutputPath(path))
	if o.Error == "" || o.CaseID != 0 {
		t.Errorf("outcome = %+v", o)
	}
	if o.Result == nil || o.Result.FailedStage != core.StageGenerate {
		t.Errorf("partial result not recorded: %+v", o.Result)
	}
}

func TestProcessFile_SaveRetries(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{saveErrs: []error{errors.New("database is locked"), nil}}
	in := NewInbox(gen, Config{SaveRetries: 3, RetryDelay: time.Millisecond})

	path := filepath.Join(dir, "limit.txt")
	writeFile(t, path, "limit body size")

	if err := in.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile() error = %v", err)
	}
	if o := readOutcome(t, OutputPath(path)); o.CaseID != 1 {
		t.Errorf("outcome = %+v", o)
	}
}

func TestProcessFile_EmptyAndUnwanted(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{}
	in := NewInbox(gen, Config{})

	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n")
	writeFile(t, filepath.Join(dir, "image.png"), "binary")
	writeFile(t, filepath.Join(dir, "done.case.json"), "{}")

	n, err := in.ProcessExisting(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessExisting() error = %v", err)
	}
	if n != 1 {
		t.Errorf("ProcessExisting() = %d, want 1 (the empty txt)", n)
	}
	if len(gen.Inputs()) != 0 {
		t.Errorf("inputs = %v, want none", gen.Inputs())
	}
	if _, err := os.Stat(filepath.Join(dir, "empty.case.json")); !os.IsNotExist(err) {
		t.Error("empty request should not produce an outcome")
	}
}

func TestRun_PicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	gen := &fakeGenerator{}
	in := NewInbox(gen, Config{Settle: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx, dir) }()

	// Give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "rate.txt")
	writeFile(t, path, "rate limit to 10 rps")

	out := OutputPath(path)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("outcome file never appeared")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	if got := gen.Inputs(); len(got) != 1 || got[0] != "rate limit to 10 rps" {
		t.Errorf("inputs = %v", got)
	}
}
