// Package pipeline provides the high-level orchestration of the outreach run:
// scrape, categorize, email and report, each stage resumable from its checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/speaker-outreach/internal/checkpoint"
	"github.com/jonathan/speaker-outreach/internal/classify"
	"github.com/jonathan/speaker-outreach/internal/db"
	"github.com/jonathan/speaker-outreach/internal/emailing"
	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/observability"
	"github.com/jonathan/speaker-outreach/internal/pipeline/steps"
	"github.com/jonathan/speaker-outreach/internal/report"
	"github.com/jonathan/speaker-outreach/internal/scraping"
	"github.com/jonathan/speaker-outreach/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	URL     string `json:"url,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// ProgressCallback is called when pipeline progress occurs. Calls are serialized.
type ProgressCallback func(event ProgressEvent)

// Ledger records runs and stage counters. *db.DB satisfies it.
type Ledger interface {
	CreateRun(ctx context.Context, runID uuid.UUID, input db.RunInput) error
	RecordStage(ctx context.Context, stats db.StageStats) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string) error
}

// Deps are the collaborators a run uses. Fetcher is required when the scrape stage
// runs; Client may be nil, in which case unmatched speakers fall back to Other and
// drafting fails per record.
type Deps struct {
	Fetcher  scraping.Fetcher
	Client   llm.Client
	Policy   *classify.Policy
	Product  string
	Drafting emailing.Options
	Ledger   Ledger
	Logger   *zap.Logger
}

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	IndexURL        string
	Stage           string
	Limit           int
	Targets         []types.Category
	TargetsRaw      string
	DryRun          bool
	HTTPConcurrency int
	LLMConcurrency  int
	DataDir         string
	OutPath         string
	RunID           uuid.UUID
	Now             func() time.Time
	OnProgress      ProgressCallback
}

// StageStats counts what happened to the items of one stage. Failed items hit an
// error; for categorize they were still stored with the fail-closed category.
type StageStats struct {
	Stage       string
	Processed   int
	Skipped     int
	Failed      int
	NotTargeted int
	Duration    time.Duration
}

// Result is the outcome of a run.
type Result struct {
	RunID       uuid.UUID
	Stages      []StageStats
	Drafted     []types.EmailRecord // drafts made in this run, in input order
	ReportRows  int                 // rows materialized from the email checkpoint
	RowsWritten int                 // rows newly appended to the report
	ReportPath  string
	DryRun      bool
}

// Summary converts the result for printing.
func (r *Result) Summary() observability.RunSummary {
	s := observability.RunSummary{
		RunID:       r.RunID.String(),
		RowsWritten: r.RowsWritten,
		ReportPath:  r.ReportPath,
		DryRun:      r.DryRun,
	}
	for _, st := range r.Stages {
		s.Stages = append(s.Stages, observability.StageSummary{
			Stage:       st.Stage,
			Processed:   st.Processed,
			Skipped:     st.Skipped,
			Failed:      st.Failed,
			NotTargeted: st.NotTargeted,
		})
	}
	return s
}

// DefaultTargets is used when the requested target set is empty after removing
// Competitor.
var DefaultTargets = []types.Category{types.CategoryBuilder, types.CategoryOwner}

// EffectiveTargets removes Competitor from requested and falls back to
// DefaultTargets when nothing is left.
func EffectiveTargets(requested []types.Category) map[types.Category]bool {
	set := make(map[types.Category]bool, len(requested))
	for _, c := range requested {
		if c == types.CategoryCompetitor {
			continue
		}
		set[c] = true
	}
	if len(set) == 0 {
		for _, c := range DefaultTargets {
			set[c] = true
		}
	}
	return set
}

// runner holds the state of one invocation.
type runner struct {
	opts   RunOptions
	deps   Deps
	logger *zap.Logger
	runID  uuid.UUID

	scraper    *scraping.Scraper
	classifier *classify.Classifier
	drafter    *emailing.Drafter

	progressMu sync.Mutex
}

// Run executes the stages selected by opts.Stage. Per-item failures are counted
// and logged; the returned error is reserved for configuration, index and report
// failures and for cancellation.
func Run(ctx context.Context, deps Deps, opts RunOptions) (*Result, error) {
	plan, err := steps.Plan(opts.Stage)
	if err != nil {
		return nil, err
	}

	logger := logging.OrNop(deps.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	runID := opts.RunID
	if runID == uuid.Nil {
		runID = uuid.New()
	}
	logger = logger.With(zap.String("run_id", runID.String()))

	r := &runner{opts: opts, deps: deps, logger: logger, runID: runID}
	r.wire(plan)

	res := &Result{RunID: runID, DryRun: opts.DryRun}
	r.ledgerCreate(ctx, opts)

	err = r.execute(ctx, plan, res)

	status := db.RunStatusCompleted
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = db.RunStatusCancelled
	case err != nil:
		status = db.RunStatusFailed
	}
	r.ledgerComplete(ctx, status)

	return res, err
}

// wire builds the stage components behind the two concurrency limits. Only the
// resources the planned stages use are wired.
func (r *runner) wire(plan []string) {
	network, model := steps.Resources(plan)

	if network && r.deps.Fetcher != nil {
		sem := semaphore.NewWeighted(int64(atLeastOne(r.opts.HTTPConcurrency)))
		r.scraper = scraping.NewScraper(&limitedFetcher{inner: r.deps.Fetcher, sem: sem}, r.logger)
	}

	var client llm.Client
	if model && r.deps.Client != nil {
		sem := semaphore.NewWeighted(int64(atLeastOne(r.opts.LLMConcurrency)))
		client = &limitedClient{Client: r.deps.Client, sem: sem}
	}
	r.classifier = classify.NewClassifier(r.deps.Policy, client, r.deps.Product, r.logger)

	drafting := r.deps.Drafting
	if drafting.MaxAttempts == 0 {
		booth := drafting.Booth
		drafting = emailing.DefaultOptions()
		if booth != "" {
			drafting.Booth = booth
		}
	}
	if client != nil {
		r.drafter = emailing.NewDrafter(client, drafting, r.logger)
	}
}

func (r *runner) execute(ctx context.Context, plan []string, res *Result) error {
	scrapePath, err := steps.CheckpointPath(r.opts.DataDir, steps.Scrape)
	if err != nil {
		return err
	}

	var (
		scrapedURLs []string
		scrapeRan   bool
		categorized []types.CategorizedRecord
		emailStore  *checkpoint.Store[types.EmailRecord]
	)

	if steps.Includes(plan, steps.Scrape) {
		store, err := checkpoint.Open(scrapePath, speakerKey)
		if err != nil {
			return err
		}
		urls, stats, err := r.scrape(ctx, store)
		r.finishStage(ctx, res, stats)
		if err != nil {
			return err
		}
		scrapedURLs, scrapeRan = urls, true
	}

	if steps.Includes(plan, steps.Categorize) {
		input, err := r.categorizeInput(scrapePath, scrapedURLs, scrapeRan)
		if err != nil {
			return err
		}
		path, err := steps.CheckpointPath(r.opts.DataDir, steps.Categorize)
		if err != nil {
			return err
		}
		store, err := checkpoint.Open(path, categorizedKey)
		if err != nil {
			return err
		}
		var stats StageStats
		categorized, stats = r.categorize(ctx, store, input)
		r.finishStage(ctx, res, stats)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if steps.Includes(plan, steps.Email) {
		path, err := steps.CheckpointPath(r.opts.DataDir, steps.Email)
		if err != nil {
			return err
		}
		emailStore, err = checkpoint.Open(path, emailKey)
		if err != nil {
			return err
		}
		drafted, stats := r.email(ctx, emailStore, categorized)
		res.Drafted = drafted
		r.finishStage(ctx, res, stats)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if steps.Includes(plan, steps.Report) && emailStore != nil {
		start := time.Now()
		stats := StageStats{Stage: steps.Report}
		if r.opts.DryRun {
			r.logger.Info("dry run: report not written", zap.Int("drafted", len(res.Drafted)))
		} else {
			rows := report.Materialize(emailStore.Records())
			written, err := report.Write(r.opts.OutPath, rows)
			res.ReportRows = len(rows)
			res.RowsWritten = written
			res.ReportPath = r.opts.OutPath
			stats.Processed = written
			stats.Skipped = len(rows) - written
			if err != nil {
				stats.Duration = time.Since(start)
				r.finishStage(ctx, res, stats)
				return err
			}
			r.logger.Info("report written",
				zap.String("path", r.opts.OutPath),
				zap.Int("rows", len(rows)),
				zap.Int("new_rows", written))
		}
		stats.Duration = time.Since(start)
		r.finishStage(ctx, res, stats)
	}

	return nil
}

func speakerKey(sp types.Speaker) string               { return sp.URL }
func categorizedKey(rec types.CategorizedRecord) string { return rec.URL }
func emailKey(rec types.EmailRecord) string             { return rec.URL }

// counters are shared by the tasks of one stage.
type counters struct {
	mu sync.Mutex
	StageStats
	done int
}

// add applies fn for one finished item and returns how many items are finished.
func (c *counters) add(fn func(s *StageStats)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.StageStats)
	c.done++
	return c.done
}

func (c *counters) snapshot(start time.Time) StageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.StageStats
	s.Duration = time.Since(start)
	return s
}

func (r *runner) emit(stage, message, url string, done, total int) {
	if r.opts.OnProgress == nil {
		return
	}
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.opts.OnProgress(ProgressEvent{
		Stage:   stage,
		Message: message,
		RunID:   r.runID.String(),
		URL:     url,
		Done:    done,
		Total:   total,
	})
}

func (r *runner) finishStage(ctx context.Context, res *Result, stats StageStats) {
	res.Stages = append(res.Stages, stats)
	r.logger.Info("stage finished",
		zap.String("stage", stats.Stage),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("not_targeted", stats.NotTargeted),
		zap.Duration("duration", stats.Duration))

	if r.deps.Ledger == nil {
		return
	}
	err := r.deps.Ledger.RecordStage(context.WithoutCancel(ctx), db.StageStats{
		RunID:       r.runID,
		Stage:       stats.Stage,
		Processed:   stats.Processed,
		Skipped:     stats.Skipped,
		Failed:      stats.Failed,
		NotTargeted: stats.NotTargeted,
		DurationMs:  stats.Duration.Milliseconds(),
	})
	if err != nil {
		r.logger.Warn("failed to record stage in ledger", zap.String("stage", stats.Stage), zap.Error(err))
	}
}

func (r *runner) ledgerCreate(ctx context.Context, opts RunOptions) {
	if r.deps.Ledger == nil {
		return
	}
	err := r.deps.Ledger.CreateRun(ctx, r.runID, db.RunInput{
		Stage:       opts.Stage,
		Targets:     opts.TargetsRaw,
		RecordLimit: opts.Limit,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		r.logger.Warn("failed to create ledger run, continuing without it", zap.Error(err))
		r.deps.Ledger = nil
	}
}

func (r *runner) ledgerComplete(ctx context.Context, status string) {
	if r.deps.Ledger == nil {
		return
	}
	if err := r.deps.Ledger.CompleteRun(context.WithoutCancel(ctx), r.runID, status); err != nil {
		r.logger.Warn("failed to complete ledger run", zap.Error(err))
	}
}

func errStage(stage string, err error) error {
	return fmt.Errorf("%s stage: %w", stage, err)
}
