// ABOUTME: Pipeline orchestrates the base and RAG generation flows over the agents
// ABOUTME: Computing a result and persisting it are separate calls; a failed stage keeps earlier outputs
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/agents"
	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/telemetry"
)

// Stage names
const (
	StageParse            = "parse"
	StageGenerate         = "generate"
	StageDocument         = "document"
	StageValidate         = "validate"
	StageImprove          = "improve"
	StageDocumentRevision = "document_revision"
	StageVerify           = "verify"
	StageRetrieve         = "retrieve"
	StageParseEnhanced    = "parse_enhanced"
	StageGenerateEnhanced = "generate_enhanced"
	StageSave             = "save"
	StageIndex            = "index"
)

var (
	// ErrIncompleteResult is returned when saving a result that did not reach its terminal state
	ErrIncompleteResult = errors.New("pipeline result is incomplete")
	// ErrEmptyStore is returned by RunRAG when there are no prior cases to learn from
	ErrEmptyStore = errors.New("no stored cases to retrieve from")
)

// StageError reports which stage failed
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// CaseStore is the persistence the pipeline needs
type CaseStore interface {
	Insert(ctx context.Context, c models.Case) (models.Case, error)
	SaveImprovement(ctx context.Context, id int64, code, documentation string) error
	Get(ctx context.Context, id int64) (*models.Case, error)
	Count(ctx context.Context) (int, error)
}

// Retriever finds prior cases for the RAG flow
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.Case, error)
	Name() string
}

// CaseIndexer adds a saved case to the embedding index
type CaseIndexer interface {
	IndexCase(ctx context.Context, c models.Case) (int, error)
}

// Result is the output of the base flow. Fields after FailedStage are empty.
type Result struct {
	Input           string              `json:"input"`
	Requirements    models.Requirements `json:"requirements"`
	ParseDiagnostic *agents.Diagnostic  `json:"parse_diagnostic,omitempty"`
	Code            string              `json:"code,omitempty"`
	Documentation   string              `json:"documentation,omitempty"`
	Validation      string              `json:"validation,omitempty"`
	FailedStage     string              `json:"failed_stage,omitempty"`
	Improvement     *Improvement        `json:"improvement,omitempty"`

	// CaseID is set once the result has been saved
	CaseID int64 `json:"case_id,omitempty"`

	improvementSaved bool
}

// Complete reports whether every base stage produced output
func (r *Result) Complete() bool {
	return r.FailedStage == "" && r.Code != "" && r.Documentation != "" && r.Validation != ""
}

// Case assembles the record to persist, merging the improvement when present
func (r *Result) Case() models.Case {
	c := models.Case{
		ID:            r.CaseID,
		InputText:     r.Input,
		Requirements:  r.Requirements,
		Code:          r.Code,
		Documentation: r.Documentation,
		Validation:    r.Validation,
	}
	if r.Improvement != nil {
		c.ImprovedCode = r.Improvement.Code
		c.ImprovedDocumentation = r.Improvement.Documentation
	}
	return c
}

// ResultFromCase rebuilds a saved result so it can be improved
func ResultFromCase(c models.Case) *Result {
	r := &Result{
		Input:         c.InputText,
		Requirements:  c.Requirements,
		Code:          c.Code,
		Documentation: c.Documentation,
		Validation:    c.Validation,
		CaseID:        c.ID,
	}
	if c.HasImprovement() {
		r.Improvement = &Improvement{Code: c.ImprovedCode, Documentation: c.ImprovedDocumentation}
		r.improvementSaved = true
	}
	return r
}

// Improvement is the optional fifth step's output
type Improvement struct {
	Code          string                     `json:"code"`
	Documentation string                     `json:"documentation,omitempty"`
	Analysis      models.ImprovementAnalysis `json:"analysis"`
	Diagnostic    *agents.Diagnostic         `json:"diagnostic,omitempty"`
	// Verified is the advisory verify answer; it never gates saving
	Verified    bool   `json:"verified"`
	VerifyError string `json:"verify_error,omitempty"`
	FailedStage string `json:"failed_stage,omitempty"`
}

// RAGResult is the output of the retrieval-augmented flow. It is never persisted by the pipeline.
type RAGResult struct {
	Input        string              `json:"input"`
	Strategy     string              `json:"strategy"`
	Similar      []models.Case       `json:"similar"`
	Requirements models.Requirements `json:"requirements"`
	Diagnostic   *agents.Diagnostic  `json:"diagnostic,omitempty"`
	Code         string              `json:"code,omitempty"`
	FailedStage  string              `json:"failed_stage,omitempty"`
}

// PipelineConfig wires a Pipeline
type PipelineConfig struct {
	Agents    *agents.Set
	Store     CaseStore
	Retriever Retriever
	// Indexer, when set, indexes each newly inserted case
	Indexer CaseIndexer
	Metrics *telemetry.Collector
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Pipeline runs the generation flows
type Pipeline struct {
	agents    *agents.Set
	store     CaseStore
	retriever Retriever
	indexer   CaseIndexer
	metrics   *telemetry.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// NewPipeline creates a Pipeline
func NewPipeline(cfg PipelineConfig) *Pipeline {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	return &Pipeline{
		agents:    cfg.Agents,
		store:     cfg.Store,
		retriever: cfg.Retriever,
		indexer:   cfg.Indexer,
		metrics:   cfg.Metrics,
		tracer:    tracer,
		logger:    logging.OrNop(cfg.Logger),
	}
}

// Agents exposes the agent set for operations outside the flows
func (p *Pipeline) Agents() *agents.Set {
	return p.agents
}

// Run executes Parse, Generate, Document, Validate. On failure the partial
// result is returned together with a *StageError.
func (p *Pipeline) Run(ctx context.Context, input string) (*Result, error) {
	if strings.TrimSpace(input) == "" {
		return nil, agents.ErrEmptyInput
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	r := &Result{Input: input}

	err := p.stage(ctx, StageParse, func(ctx context.Context) error {
		req, diag, err := p.agents.Parser.Parse(ctx, input)
		r.Requirements, r.ParseDiagnostic = req, diag
		return err
	})
	if err != nil {
		return p.fail(span, r, err)
	}

	err = p.stage(ctx, StageGenerate, func(ctx context.Context) error {
		code, err := p.agents.Generator.Generate(ctx, r.Requirements)
		r.Code = code
		return err
	})
	if err != nil {
		return p.fail(span, r, err)
	}

	err = p.stage(ctx, StageDocument, func(ctx context.Context) error {
		doc, err := p.agents.Docs.Document(ctx, r.Code)
		r.Documentation = doc
		return err
	})
	if err != nil {
		return p.fail(span, r, err)
	}

	err = p.stage(ctx, StageValidate, func(ctx context.Context) error {
		feedback, err := p.agents.Validator.Validate(ctx, r.Code, r.Requirements)
		r.Validation = feedback
		return err
	})
	if err != nil {
		return p.fail(span, r, err)
	}

	p.logger.Info("pipeline complete",
		zap.String("intent", r.Requirements.Intent),
		zap.Bool("parse_degraded", r.ParseDiagnostic != nil))
	return r, nil
}

// Improve runs the improvement step on a complete result and stores the outcome on it.
// Verify is advisory: its failure is recorded, not returned.
func (p *Pipeline) Improve(ctx context.Context, r *Result) (*Improvement, error) {
	if r == nil || !r.Complete() {
		return nil, ErrIncompleteResult
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.improve",
		trace.WithAttributes(attribute.Int64("case.id", r.CaseID)))
	defer span.End()

	im := &Improvement{}

	err := p.stage(ctx, StageImprove, func(ctx context.Context) error {
		res, err := p.agents.Improver.Improve(ctx, r.Code, r.Validation)
		im.Code, im.Analysis, im.Diagnostic = res.Code, res.Analysis, res.Diagnostic
		return err
	})
	if err != nil {
		im.FailedStage = StageImprove
		span.SetStatus(codes.Error, err.Error())
		return im, err
	}

	err = p.stage(ctx, StageDocumentRevision, func(ctx context.Context) error {
		doc, err := p.agents.Docs.DocumentRevision(ctx, im.Code, r.Code)
		im.Documentation = doc
		return err
	})
	if err != nil {
		im.FailedStage = StageDocumentRevision
		span.SetStatus(codes.Error, err.Error())
		return im, err
	}

	if err := p.stage(ctx, StageVerify, func(ctx context.Context) error {
		ok, err := p.agents.Improver.Verify(ctx, r.Code, im.Code, r.Requirements)
		im.Verified = ok
		return err
	}); err != nil {
		im.VerifyError = err.Error()
	}

	r.Improvement = im
	r.improvementSaved = false
	return im, nil
}

// Save persists a complete result. The first call inserts the case, including
// any improvement already present; a later call after Improve writes the
// improved fields onto the same case. With nothing new to write it returns the stored case.
// A failed write leaves r untouched so the save can be retried.
func (p *Pipeline) Save(ctx context.Context, r *Result) (models.Case, error) {
	if r == nil || !r.Complete() {
		return models.Case{}, ErrIncompleteResult
	}
	if r.Improvement != nil && (r.Improvement.FailedStage != "" || r.Improvement.Code == "" || r.Improvement.Documentation == "") {
		return models.Case{}, fmt.Errorf("%w: improvement did not finish", ErrIncompleteResult)
	}

	var saved models.Case
	err := p.stage(ctx, StageSave, func(ctx context.Context) error {
		switch {
		case r.CaseID == 0:
			c, err := p.store.Insert(ctx, r.Case())
			if err != nil {
				return err
			}
			r.CaseID = c.ID
			r.improvementSaved = r.Improvement != nil
			p.metrics.CaseSaved("insert")
			saved = c
			p.index(ctx, c)
			return nil

		case r.Improvement != nil && !r.improvementSaved:
			if err := p.store.SaveImprovement(ctx, r.CaseID, r.Improvement.Code, r.Improvement.Documentation); err != nil {
				return err
			}
			r.improvementSaved = true
			p.metrics.CaseSaved("improvement")
			fallthrough

		default:
			c, err := p.store.Get(ctx, r.CaseID)
			if err != nil {
				return err
			}
			saved = *c
			return nil
		}
	})
	if err != nil {
		return models.Case{}, err
	}

	p.logger.Info("case saved", zap.Int64("case_id", saved.ID), zap.Bool("improved", saved.HasImprovement()))
	return saved, nil
}

// IndexesOnSave reports whether Save indexes newly inserted cases itself
func (p *Pipeline) IndexesOnSave() bool {
	return p.indexer != nil
}

// index adds a new case to the embedding index when an indexer is wired. Failures are logged only.
func (p *Pipeline) index(ctx context.Context, c models.Case) {
	if p.indexer == nil {
		return
	}
	if err := p.stage(ctx, StageIndex, func(ctx context.Context) error {
		_, err := p.indexer.IndexCase(ctx, c)
		return err
	}); err != nil {
		p.logger.Warn("case saved but not indexed", zap.Int64("case_id", c.ID), zap.Error(err))
	}
}

// RunRAG executes Retrieve, enhanced Parse, enhanced Generate. It never persists.
func (p *Pipeline) RunRAG(ctx context.Context, input string, topK int) (*RAGResult, error) {
	if strings.TrimSpace(input) == "" {
		return nil, agents.ErrEmptyInput
	}
	if p.retriever == nil {
		return nil, errors.New("no retriever configured")
	}

	n, err := p.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyStore
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.rag",
		trace.WithAttributes(
			attribute.String("retrieval.strategy", p.retriever.Name()),
			attribute.Int("retrieval.top_k", topK),
		))
	defer span.End()

	r := &RAGResult{Input: input, Strategy: p.retriever.Name(), Similar: []models.Case{}}

	err = p.stage(ctx, StageRetrieve, func(ctx context.Context) error {
		similar, err := p.retriever.Retrieve(ctx, input, topK)
		p.metrics.Retrieved(p.retriever.Name(), err)
		if similar != nil {
			r.Similar = similar
		}
		return err
	})
	if err != nil {
		return p.failRAG(span, r, err)
	}

	err = p.stage(ctx, StageParseEnhanced, func(ctx context.Context) error {
		req, diag, err := p.agents.Parser.ParseEnhanced(ctx, input, r.Similar)
		r.Requirements, r.Diagnostic = req, diag
		return err
	})
	if err != nil {
		return p.failRAG(span, r, err)
	}

	err = p.stage(ctx, StageGenerateEnhanced, func(ctx context.Context) error {
		code, err := p.agents.Generator.GenerateEnhanced(ctx, r.Requirements, r.Similar)
		r.Code = code
		return err
	})
	if err != nil {
		return p.failRAG(span, r, err)
	}

	p.logger.Info("rag pipeline complete",
		zap.String("strategy", r.Strategy),
		zap.Int("similar", len(r.Similar)))
	return r, nil
}

// stage runs fn inside a span and records its duration and outcome
func (p *Pipeline) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "stage."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	took := time.Since(start)
	p.metrics.ObserveStage(name, took, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Warn("stage failed", zap.String("stage", name), zap.Duration("took", took), zap.Error(err))
		return &StageError{Stage: name, Err: err}
	}

	p.logger.Debug("stage complete", zap.String("stage", name), zap.Duration("took", took))
	return nil
}

func (p *Pipeline) fail(span trace.Span, r *Result, err error) (*Result, error) {
	var se *StageError
	if errors.As(err, &se) {
		r.FailedStage = se.Stage
	}
	span.SetStatus(codes.Error, err.Error())
	return r, err
}

func (p *Pipeline) failRAG(span trace.Span, r *RAGResult, err error) (*RAGResult, error) {
	var se *StageError
	if errors.As(err, &se) {
		r.FailedStage = se.Stage
	}
	span.SetStatus(codes.Error, err.Error())
	return r, err
}
