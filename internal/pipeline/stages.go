package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/speaker-outreach/internal/checkpoint"
	"github.com/jonathan/speaker-outreach/internal/pipeline/steps"
	"github.com/jonathan/speaker-outreach/internal/types"
)

// scrape fetches the index, then every seed not yet in the checkpoint. It returns
// the URLs of this run's seeds, whether scraped now or earlier.
func (r *runner) scrape(ctx context.Context, store *checkpoint.Store[types.Speaker]) ([]string, StageStats, error) {
	start := time.Now()
	c := &counters{StageStats: StageStats{Stage: steps.Scrape}}

	if r.scraper == nil {
		return nil, c.snapshot(start), errStage(steps.Scrape, errors.New("no fetcher configured"))
	}

	seeds, err := r.scraper.Index(ctx, r.opts.IndexURL)
	if err != nil {
		return nil, c.snapshot(start), errStage(steps.Scrape, err)
	}
	if r.opts.Limit > 0 && len(seeds) > r.opts.Limit {
		seeds = seeds[:r.opts.Limit]
	}
	r.logger.Info("speaker index parsed", zap.Int("seeds", len(seeds)))

	urls := make([]string, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(atLeastOne(r.opts.HTTPConcurrency))

	for i, seed := range seeds {
		urls[i] = seed.URL
		if store.AlreadySeen(seed.URL) {
			done := c.add(func(s *StageStats) { s.Skipped++ })
			r.emit(steps.Scrape, "already scraped", seed.URL, done, len(seeds))
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			sp, err := r.scraper.Speaker(gctx, seed)
			if err != nil {
				done := c.add(func(s *StageStats) { s.Failed++ })
				r.logger.Warn("speaker dropped", zap.String("url", seed.URL), zap.Error(err))
				r.emit(steps.Scrape, "failed", seed.URL, done, len(seeds))
				return nil
			}
			if err := store.Append(sp); err != nil {
				done := c.add(func(s *StageStats) { s.Failed++ })
				r.logger.Error("checkpoint append failed", zap.String("url", seed.URL), zap.Error(err))
				r.emit(steps.Scrape, "failed", seed.URL, done, len(seeds))
				return nil
			}
			done := c.add(func(s *StageStats) { s.Processed++ })
			r.logger.Debug("speaker scraped", zap.String("url", seed.URL), zap.Int("done", done))
			r.emit(steps.Scrape, "scraped", seed.URL, done, len(seeds))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return urls, c.snapshot(start), err
	}
	return urls, c.snapshot(start), nil
}

// categorizeInput returns the speakers to categorize. After a scrape in the same
// invocation that is this run's seeds, in seed order; otherwise the scrape
// checkpoint with the limit applied. Duplicate URLs keep their first line.
func (r *runner) categorizeInput(scrapePath string, scrapedURLs []string, scrapeRan bool) ([]types.Speaker, error) {
	records, skipped, err := checkpoint.Load[types.Speaker](scrapePath)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		r.logger.Warn("malformed checkpoint lines skipped", zap.String("path", scrapePath), zap.Int("lines", skipped))
	}

	byURL := make(map[string]types.Speaker, len(records))
	unique := make([]types.Speaker, 0, len(records))
	for _, sp := range records {
		if sp.URL == "" {
			continue
		}
		if _, ok := byURL[sp.URL]; ok {
			continue
		}
		byURL[sp.URL] = sp
		unique = append(unique, sp)
	}

	if scrapeRan {
		out := make([]types.Speaker, 0, len(scrapedURLs))
		for _, u := range scrapedURLs {
			if sp, ok := byURL[u]; ok {
				out = append(out, sp)
			}
		}
		return out, nil
	}

	if len(unique) == 0 {
		r.logger.Warn("scrape checkpoint is empty; run the scrape stage first", zap.String("path", scrapePath))
	}
	if r.opts.Limit > 0 && len(unique) > r.opts.Limit {
		unique = unique[:r.opts.Limit]
	}
	return unique, nil
}

// categorize carries forward records already in the categorized checkpoint and
// classifies the rest. The output follows input order.
func (r *runner) categorize(ctx context.Context, store *checkpoint.Store[types.CategorizedRecord], input []types.Speaker) ([]types.CategorizedRecord, StageStats) {
	start := time.Now()
	c := &counters{StageStats: StageStats{Stage: steps.Categorize}}

	previous := make(map[string]types.CategorizedRecord)
	for _, rec := range store.Records() {
		if _, ok := previous[rec.URL]; !ok {
			previous[rec.URL] = rec
		}
	}

	out := make([]types.CategorizedRecord, len(input))
	ok := make([]bool, len(input))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(atLeastOne(r.opts.LLMConcurrency))

	for i, sp := range input {
		if prev, seen := previous[sp.URL]; seen {
			out[i], ok[i] = prev, true
			done := c.add(func(s *StageStats) { s.Skipped++ })
			r.emit(steps.Categorize, "already categorized", sp.URL, done, len(input))
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, classifyErr := r.classifier.Classify(gctx, sp)
			if classifyErr != nil && gctx.Err() != nil {
				// cancelled mid-call; leave the speaker for the next run
				return nil
			}

			rec := types.NewCategorizedRecord(sp, res.Category, res.Source, res.Reason, r.runID, r.opts.Now())
			if err := store.Append(rec); err != nil {
				done := c.add(func(s *StageStats) { s.Failed++ })
				r.logger.Error("checkpoint append failed", zap.String("url", sp.URL), zap.Error(err))
				r.emit(steps.Categorize, "failed", sp.URL, done, len(input))
				return nil
			}
			out[i], ok[i] = rec, true

			done := c.add(func(s *StageStats) {
				s.Processed++
				if classifyErr != nil {
					s.Failed++
				}
			})
			r.logger.Debug("speaker categorized",
				zap.String("url", sp.URL),
				zap.String("category", string(rec.CompanyCategory)),
				zap.String("source", string(rec.DecisionSource)))
			r.emit(steps.Categorize, "categorized as "+string(rec.CompanyCategory), sp.URL, done, len(input))
			return nil
		})
	}
	_ = g.Wait()

	compact := make([]types.CategorizedRecord, 0, len(out))
	for i := range out {
		if ok[i] {
			compact = append(compact, out[i])
		}
	}
	return compact, c.snapshot(start)
}

// email drafts every targeted record not yet in the email checkpoint. Competitor
// is never targeted. Dry runs draft without appending.
func (r *runner) email(ctx context.Context, store *checkpoint.Store[types.EmailRecord], records []types.CategorizedRecord) ([]types.EmailRecord, StageStats) {
	start := time.Now()
	c := &counters{StageStats: StageStats{Stage: steps.Email}}
	targets := EffectiveTargets(r.opts.Targets)

	out := make([]types.EmailRecord, len(records))
	ok := make([]bool, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(atLeastOne(r.opts.LLMConcurrency))

	for i, rec := range records {
		if rec.CompanyCategory == types.CategoryCompetitor || !targets[rec.CompanyCategory] {
			c.add(func(s *StageStats) { s.NotTargeted++ })
			continue
		}
		if store.AlreadySeen(rec.URL) {
			done := c.add(func(s *StageStats) { s.Skipped++ })
			r.emit(steps.Email, "already drafted", rec.URL, done, len(records))
			continue
		}
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if r.drafter == nil {
				done := c.add(func(s *StageStats) { s.Failed++ })
				r.logger.Warn("email dropped: no model configured", zap.String("url", rec.URL))
				r.emit(steps.Email, "failed", rec.URL, done, len(records))
				return nil
			}

			draft, detail, err := r.drafter.Draft(gctx, rec)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				done := c.add(func(s *StageStats) { s.Failed++ })
				r.logger.Warn("email dropped", zap.String("url", rec.URL), zap.Error(err))
				r.emit(steps.Email, "failed", rec.URL, done, len(records))
				return nil
			}

			emailRec := types.NewEmailRecord(rec, draft, detail, r.opts.Now())
			if !r.opts.DryRun {
				if err := store.Append(emailRec); err != nil {
					done := c.add(func(s *StageStats) { s.Failed++ })
					r.logger.Error("checkpoint append failed", zap.String("url", rec.URL), zap.Error(err))
					r.emit(steps.Email, "failed", rec.URL, done, len(records))
					return nil
				}
			}
			out[i], ok[i] = emailRec, true

			done := c.add(func(s *StageStats) { s.Processed++ })
			r.logger.Debug("email drafted", zap.String("url", rec.URL), zap.Int("done", done))
			r.emit(steps.Email, "drafted", rec.URL, done, len(records))
			return nil
		})
	}
	_ = g.Wait()

	drafted := make([]types.EmailRecord, 0, len(out))
	for i := range out {
		if ok[i] {
			drafted = append(drafted, out[i])
		}
	}
	return drafted, c.snapshot(start)
}
