// ABOUTME: Inbox watches a directory and runs the base pipeline for each new request file
// ABOUTME: Each *.txt or *.md request gets a <name>.case.json written next to it
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/harper/mwgen/internal/core"
	"github.com/harper/mwgen/internal/logging"
	"github.com/harper/mwgen/internal/models"
	"github.com/harper/mwgen/internal/util"
)

// OutputSuffix is appended to a request file's base name for its result
const OutputSuffix = ".case.json"

// DefaultSettle is how long a file must be quiet before it is processed
const DefaultSettle = 500 * time.Millisecond

// Generator runs and saves the base pipeline
type Generator interface {
	Run(ctx context.Context, input string) (*core.Result, error)
	Save(ctx context.Context, r *core.Result) (models.Case, error)
}

// Config configures an Inbox
type Config struct {
	// Extensions are the request file types to pick up
	Extensions  []string
	Settle      time.Duration
	SaveRetries int
	RetryDelay  time.Duration
	Logger      *zap.Logger
}

// Outcome is what gets written to <name>.case.json
type Outcome struct {
	Source      string       `json:"source"`
	ProcessedAt time.Time    `json:"processed_at"`
	CaseID      int64        `json:"case_id,omitempty"`
	Result      *core.Result `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Inbox turns request files into cases
type Inbox struct {
	gen         Generator
	extensions  []string
	settle      time.Duration
	saveRetries int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// NewInbox creates an Inbox
func NewInbox(gen Generator, cfg Config) *Inbox {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = []string{".txt", ".md"}
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	retries := cfg.SaveRetries
	if retries <= 0 {
		retries = 1
	}
	return &Inbox{
		gen:         gen,
		extensions:  exts,
		settle:      settle,
		saveRetries: retries,
		retryDelay:  cfg.RetryDelay,
		logger:      logging.OrNop(cfg.Logger),
	}
}

// OutputPath returns the result path for a request file
func OutputPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + OutputSuffix
}

// ProcessExisting handles request files already in dir that have no result yet.
// It returns how many files were processed.
func (in *Inbox) ProcessExisting(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read inbox: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !in.wanted(path) {
			continue
		}
		if err := in.ProcessFile(ctx, path); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Run watches dir until ctx is cancelled. Files are processed one at a time.
func (in *Inbox) Run(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	in.logger.Info("watching inbox", zap.String("dir", dir), zap.Strings("extensions", in.extensions))

	pending := make(map[string]*time.Timer)
	ready := make(chan string, 16)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !in.wanted(event.Name) {
				continue
			}
			path := event.Name
			if t, ok := pending[path]; ok {
				t.Reset(in.settle)
				continue
			}
			pending[path] = time.AfterFunc(in.settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})

		case path := <-ready:
			delete(pending, path)
			if err := in.ProcessFile(ctx, path); err != nil {
				in.logger.Error("failed to process request file", zap.String("path", path), zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// ProcessFile runs the pipeline for one request file and writes its outcome.
// Pipeline failures are recorded in the outcome file; only I/O failures are returned.
func (in *Inbox) ProcessFile(ctx context.Context, path string) error {
	out := OutputPath(path)
	if _, err := os.Stat(out); err == nil {
		in.logger.Debug("already processed", zap.String("path", path))
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		in.logger.Debug("skipping empty request file", zap.String("path", path))
		return nil
	}

	outcome := Outcome{Source: filepath.Base(path), ProcessedAt: time.Now().UTC()}

	result, err := in.gen.Run(ctx, text)
	outcome.Result = result
	if err != nil {
		outcome.Error = err.Error()
		return in.write(out, outcome)
	}

	saved, err := in.save(ctx, result)
	if err != nil {
		outcome.Error = err.Error()
		return in.write(out, outcome)
	}
	outcome.CaseID = saved.ID

	in.logger.Info("request processed", zap.String("path", path), zap.Int64("case_id", saved.ID))
	return in.write(out, outcome)
}

// save retries transient store failures; a result that can never be saved is not retried
func (in *Inbox) save(ctx context.Context, r *core.Result) (models.Case, error) {
	var saved models.Case
	err := util.Retry(ctx, in.saveRetries, in.retryDelay, func() error {
		c, err := in.gen.Save(ctx, r)
		if errors.Is(err, core.ErrIncompleteResult) {
			return &util.Permanent{Err: err}
		}
		saved = c
		return err
	})
	return saved, err
}

func (in *Inbox) write(path string, outcome Outcome) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (in *Inbox) wanted(path string) bool {
	if strings.HasSuffix(path, OutputSuffix) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range in.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
