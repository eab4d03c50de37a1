// ABOUTME: Tests for the base and RAG pipelines over scripted agents and an in-memory store
// ABOUTME: Covers stage failure retention, save semantics, advisory verify and the RAG empty-store guard

package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/harper/mwgen/internal/agents"
	"github.com/harper/mwgen/internal/llm/llmtest"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/storage/sqlite"
	"github.com/harper/mwgen/internal/telemetry"
)

const bodyLimitRequirements = `{"intent":"request body size validation","entities":["request body","JSON"],"requirements":["reject bodies over the limit"],"constraints":["maximum 5MB"],"parameters":{"max_bytes":5242880}}`

const bodyLimitCode = "```python\ndef limit_body(request):\n    if len(request.body) > 5 * 1024 * 1024:\n        return 413\n    return None\n```"

type pipelineFixture struct {
	pipeline *Pipeline
	client   *llmtest.Scripted
	store    *sqlite.Store
	metrics  *telemetry.Collector
}

type fixedRetriever struct {
	cases []models.Case
	err   error
}

func (f fixedRetriever) Name() string { return "fixed" }

func (f fixedRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error) {
	return f.cases, f.err
}

type countingIndexer struct {
	ids []int64
	err error
}

func (c *countingIndexer) IndexCase(ctx context.Context, cs models.Case) (int, error) {
	c.ids = append(c.ids, cs.ID)
	return 1, c.err
}

func newFixture(t *testing.T, retriever Retriever, indexer CaseIndexer, replies ...llmtest.Reply) *pipelineFixture {
	t.Helper()
	store, err := sqlite.NewStoreInMemory()
	if err != nil {
		t.Fatalf("NewStoreInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	client := llmtest.NewScripted(replies...)
	metrics := telemetry.NewCollector()
	p := NewPipeline(PipelineConfig{
		Agents:    agents.NewSet(client, agents.Config{}),
		Store:     store,
		Retriever: retriever,
		Indexer:   indexer,
		Metrics:   metrics,
	})
	return &pipelineFixture{pipeline: p, client: client, store: store, metrics: metrics}
}

func baseReplies() []llmtest.Reply {
	return []llmtest.Reply{
		llmtest.Text(bodyLimitRequirements),
		llmtest.Text(bodyLimitCode),
		llmtest.Text("Limits request bodies to 5MB."),
		llmtest.Text("The size check is correct; consider streaming large bodies."),
	}
}

func TestPipeline_RunEndToEnd(t *testing.T) {
	f := newFixture(t, nil, nil, baseReplies()...)
	ctx := context.Background()

	// An older case so the new one has something to sort ahead of
	if _, err := f.store.Insert(ctx, models.Case{
		InputText: "older", Code: "c", Documentation: "d", Validation: "v",
	}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	r, err := f.pipeline.Run(ctx, "Validate that incoming JSON bodies are under 5MB")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !r.Complete() {
		t.Fatalf("Run() result incomplete: %+v", r)
	}
	if !strings.Contains(r.Requirements.Intent, "size") {
		t.Errorf("Intent = %q", r.Requirements.Intent)
	}
	if !containsEntry(r.Requirements.Entities, "request body") {
		t.Errorf("Entities = %v", r.Requirements.Entities)
	}
	if !containsEntry(r.Requirements.Constraints, "5MB") {
		t.Errorf("Constraints = %v", r.Requirements.Constraints)
	}
	if !strings.Contains(r.Code, "len(request.body)") || strings.Contains(r.Code, "```") {
		t.Errorf("Code = %q", r.Code)
	}
	if r.Validation == "" {
		t.Error("Validation is empty")
	}

	saved, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.ID == 0 || r.CaseID != saved.ID {
		t.Errorf("saved id = %d, result id = %d", saved.ID, r.CaseID)
	}

	all, err := f.store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != saved.ID {
		t.Fatalf("ListAll()[0] = %+v, want the new case first", all[0])
	}
	if all[0].Requirements.Constraints[0] != "maximum 5MB" {
		t.Errorf("stored requirements = %+v", all[0].Requirements)
	}

	if got := testutil.ToFloat64(f.metrics.CasesSaved.WithLabelValues("insert")); got != 1 {
		t.Errorf("cases saved metric = %v", got)
	}
}

func containsEntry(items []string, sub string) bool {
	for _, it := range items {
		if strings.Contains(it, sub) {
			return true
		}
	}
	return false
}

func TestPipeline_RunParseDegrades(t *testing.T) {
	f := newFixture(t, nil, nil,
		llmtest.Text("Sorry, I cannot produce JSON"),
		llmtest.Text("def mw(request): pass"),
		llmtest.Text("docs"),
		llmtest.Text("feedback"),
	)

	r, err := f.pipeline.Run(context.Background(), "something vague")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !r.Requirements.IsEmpty() {
		t.Errorf("Requirements = %+v, want empty", r.Requirements)
	}
	if r.ParseDiagnostic == nil || r.ParseDiagnostic.Raw != "Sorry, I cannot produce JSON" {
		t.Errorf("ParseDiagnostic = %+v", r.ParseDiagnostic)
	}
	if !r.Complete() {
		t.Error("a degraded parse must not stop the pipeline")
	}
}

func TestPipeline_RunStageFailure(t *testing.T) {
	boom := errors.New("model timeout")

	tests := []struct {
		name      string
		replies   []llmtest.Reply
		wantStage string
		check     func(t *testing.T, r *Result)
	}{
		{
			name:      "parse",
			replies:   []llmtest.Reply{llmtest.Fail(boom)},
			wantStage: StageParse,
			check: func(t *testing.T, r *Result) {
				if r.Code != "" {
					t.Error("no code expected after parse failure")
				}
			},
		},
		{
			name:      "generate",
			replies:   []llmtest.Reply{llmtest.Text(bodyLimitRequirements), llmtest.Fail(boom)},
			wantStage: StageGenerate,
			check: func(t *testing.T, r *Result) {
				if r.Requirements.Intent == "" {
					t.Error("parse output must be retained")
				}
			},
		},
		{
			name: "validate",
			replies: []llmtest.Reply{
				llmtest.Text(bodyLimitRequirements),
				llmtest.Text("code"),
				llmtest.Text("docs"),
				llmtest.Fail(boom),
			},
			wantStage: StageValidate,
			check: func(t *testing.T, r *Result) {
				if r.Code != "code" || r.Documentation != "docs" {
					t.Errorf("earlier outputs lost: %+v", r)
				}
				if r.Validation != "" {
					t.Error("validation must be empty")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil, tt.replies...)

			r, err := f.pipeline.Run(context.Background(), "limit bodies")
			if !errors.Is(err, boom) {
				t.Fatalf("Run() error = %v, want %v", err, boom)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.wantStage {
				t.Fatalf("stage error = %v, want stage %s", err, tt.wantStage)
			}
			if r == nil || r.FailedStage != tt.wantStage {
				t.Fatalf("FailedStage = %v", r)
			}
			if r.Complete() {
				t.Error("failed result reported complete")
			}
			tt.check(t, r)

			if _, err := f.pipeline.Save(context.Background(), r); !errors.Is(err, ErrIncompleteResult) {
				t.Errorf("Save() error = %v, want ErrIncompleteResult", err)
			}
			if got := testutil.ToFloat64(f.metrics.StageFailures.WithLabelValues(tt.wantStage)); got != 1 {
				t.Errorf("failure metric = %v", got)
			}
		})
	}
}

func TestPipeline_RunEmptyInput(t *testing.T) {
	f := newFixture(t, nil, nil)
	if _, err := f.pipeline.Run(context.Background(), "  "); !errors.Is(err, agents.ErrEmptyInput) {
		t.Fatalf("Run() error = %v", err)
	}
}

func improveReplies(verify string) []llmtest.Reply {
	return []llmtest.Reply{
		llmtest.Text(`{"security_issues":[],"performance_issues":["buffers whole body"],"error_handling":[],"code_structure":[],"functionality_issues":[]}`),
		llmtest.Text("def limit_body_streaming(request): pass"),
		llmtest.Text("Now streams the body."),
		llmtest.Text(verify),
	}
}

func TestPipeline_ImproveAfterSave(t *testing.T) {
	f := newFixture(t, nil, nil, append(baseReplies(), improveReplies("True")...)...)
	ctx := context.Background()

	r, err := f.pipeline.Run(ctx, "limit bodies")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	first, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	im, err := f.pipeline.Improve(ctx, r)
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if im.Code == "" || im.Documentation == "" {
		t.Fatalf("Improvement = %+v", im)
	}
	if !im.Verified {
		t.Error("Verified = false, want true")
	}
	if len(im.Analysis.PerformanceIssues) != 1 {
		t.Errorf("Analysis = %+v", im.Analysis)
	}

	second, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() after Improve error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("improvement created a new case: %d vs %d", second.ID, first.ID)
	}
	if second.ImprovedCode != im.Code {
		t.Errorf("ImprovedCode = %q", second.ImprovedCode)
	}
	if n, _ := f.store.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	// Nothing new to write
	third, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("repeat Save() error = %v", err)
	}
	if third.ID != first.ID || !third.HasImprovement() {
		t.Errorf("repeat Save() = %+v", third)
	}
}

func TestPipeline_ImproveBeforeSaveMerges(t *testing.T) {
	f := newFixture(t, nil, nil, append(baseReplies(), improveReplies("False")...)...)
	ctx := context.Background()

	r, err := f.pipeline.Run(ctx, "limit bodies")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	im, err := f.pipeline.Improve(ctx, r)
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if im.Verified {
		t.Error("Verified = true, want false")
	}

	// Verify is advisory; the improvement is still saved
	saved, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !saved.HasImprovement() {
		t.Error("improvement not merged into the insert")
	}
}

func TestPipeline_ImproveVerifyFailureIsAdvisory(t *testing.T) {
	replies := append(baseReplies(), improveReplies("")...)
	replies[len(replies)-1] = llmtest.Fail(errors.New("verify timeout"))
	f := newFixture(t, nil, nil, replies...)
	ctx := context.Background()

	r, _ := f.pipeline.Run(ctx, "limit bodies")
	im, err := f.pipeline.Improve(ctx, r)
	if err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if im.VerifyError == "" || im.Verified {
		t.Errorf("Improvement = %+v", im)
	}
	if _, err := f.pipeline.Save(ctx, r); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
}

func TestPipeline_ImproveFailure(t *testing.T) {
	f := newFixture(t, nil, nil, append(baseReplies(),
		llmtest.Text(`{}`),
		llmtest.Fail(errors.New("rate limited")),
	)...)
	ctx := context.Background()

	r, _ := f.pipeline.Run(ctx, "limit bodies")
	im, err := f.pipeline.Improve(ctx, r)
	if err == nil {
		t.Fatal("Improve() expected error")
	}
	if im.FailedStage != StageImprove {
		t.Errorf("FailedStage = %q", im.FailedStage)
	}
	if r.Improvement != nil {
		t.Error("a failed improvement must not be attached to the result")
	}

	saved, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved.HasImprovement() {
		t.Error("no improvement expected")
	}
}

func TestPipeline_ImproveSavedCaseOnce(t *testing.T) {
	f := newFixture(t, nil, nil, improveReplies("yes")...)
	ctx := context.Background()

	c, err := f.store.Insert(ctx, models.Case{
		InputText: "x", Code: "c", Documentation: "d", Validation: "v",
		ImprovedCode: "ic", ImprovedDocumentation: "id",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	r := ResultFromCase(c)
	if _, err := f.pipeline.Improve(ctx, r); err != nil {
		t.Fatalf("Improve() error = %v", err)
	}
	if _, err := f.pipeline.Save(ctx, r); !errors.Is(err, sqlite.ErrAlreadyImproved) {
		t.Fatalf("Save() error = %v, want ErrAlreadyImproved", err)
	}
}

func TestPipeline_ImproveIncomplete(t *testing.T) {
	f := newFixture(t, nil, nil)
	if _, err := f.pipeline.Improve(context.Background(), &Result{Input: "x"}); !errors.Is(err, ErrIncompleteResult) {
		t.Fatalf("Improve() error = %v", err)
	}
}

func TestPipeline_SaveIndexes(t *testing.T) {
	indexer := &countingIndexer{err: errors.New("no embeddings")}
	f := newFixture(t, nil, indexer, baseReplies()...)
	ctx := context.Background()

	r, _ := f.pipeline.Run(ctx, "limit bodies")
	saved, err := f.pipeline.Save(ctx, r)
	if err != nil {
		t.Fatalf("Save() must not fail on an index error: %v", err)
	}
	if len(indexer.ids) != 1 || indexer.ids[0] != saved.ID {
		t.Errorf("indexed ids = %v", indexer.ids)
	}
}

func TestPipeline_RunRAG(t *testing.T) {
	prior := []models.Case{{
		ID:           1,
		InputText:    "JWT auth check",
		Requirements: models.Requirements{Intent: "jwt-verification"},
		Code:         "PRIOR_JWT_CODE",
	}}
	f := newFixture(t, fixedRetriever{cases: prior}, nil,
		llmtest.Text(`{"intent":"jwt refresh","entities":["token"],"requirements":[],"constraints":[],"parameters":{}}`),
		llmtest.Text("```python\ndef refresh(request): pass\n```"),
	)
	ctx := context.Background()

	if _, err := f.store.Insert(ctx, models.Case{InputText: "JWT auth check", Code: "c", Documentation: "d", Validation: "v"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	r, err := f.pipeline.RunRAG(ctx, "refresh jwt tokens", 2)
	if err != nil {
		t.Fatalf("RunRAG() error = %v", err)
	}
	if len(r.Similar) != 1 || r.Strategy != "fixed" {
		t.Errorf("RAGResult = %+v", r)
	}
	if r.Requirements.Intent != "jwt refresh" || r.Code != "def refresh(request): pass" {
		t.Errorf("RAGResult = %+v", r)
	}

	calls := f.client.Calls()
	if !strings.Contains(calls[0].Prompt, "jwt-verification") || !strings.Contains(calls[1].Prompt, "PRIOR_JWT_CODE") {
		t.Error("prior cases were not used as examples")
	}

	if n, _ := f.store.Count(ctx); n != 1 {
		t.Errorf("RunRAG persisted a case: Count() = %d", n)
	}
	if got := testutil.ToFloat64(f.metrics.Retrievals.WithLabelValues("fixed", "ok")); got != 1 {
		t.Errorf("retrieval metric = %v", got)
	}
}

func TestPipeline_RunRAGEmptyStore(t *testing.T) {
	f := newFixture(t, fixedRetriever{}, nil)

	if _, err := f.pipeline.RunRAG(context.Background(), "jwt", 3); !errors.Is(err, ErrEmptyStore) {
		t.Fatalf("RunRAG() error = %v, want ErrEmptyStore", err)
	}
	if len(f.client.Calls()) != 0 {
		t.Error("no model calls expected on an empty store")
	}
}

func TestPipeline_RunRAGRetrieveFailure(t *testing.T) {
	boom := errors.New("index unavailable")
	f := newFixture(t, fixedRetriever{err: boom}, nil)
	ctx := context.Background()

	if _, err := f.store.Insert(ctx, models.Case{InputText: "x", Code: "c", Documentation: "d", Validation: "v"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	r, err := f.pipeline.RunRAG(ctx, "jwt", 3)
	if !errors.Is(err, boom) {
		t.Fatalf("RunRAG() error = %v", err)
	}
	if r.FailedStage != StageRetrieve {
		t.Errorf("FailedStage = %q", r.FailedStage)
	}
}
