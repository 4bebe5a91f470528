// Copyright MMU Library, 2026. All rights reserved.

package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/MMU-Library/OER-Phoenix/internal/dedup"
	"github.com/MMU-Library/OER-Phoenix/internal/normalize"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// sampleRecords is how many normalized records per run are logged in
// full for operator triage of source mappings.
const sampleRecords = 3

// resolver is the slice of the dedup index the runner needs.
type resolver interface {
	Resolve(ctx context.Context, candidate *types.Resource) (dedup.Decision, error)
}

// Embedder backfills missing embeddings after a run commits.
type Embedder interface {
	Run(ctx context.Context) (int, error)
}

// Runner drives one harvester through normalize, dedup and the store,
// producing a finalized HarvestRun. Pages are fetched sequentially;
// records within a page are processed by a bounded worker group.
type Runner struct {
	resolver resolver
	embedder Embedder // optional
	cfg      types.HarvestConfig
	logger   *zap.Logger
}

func NewRunner(r resolver, e Embedder, cfg types.HarvestConfig, logger *zap.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{resolver: r, embedder: e, cfg: cfg, logger: logger}
}

// Run executes one harvest of one source. The returned run is always
// finalized: succeeded, partial (per-record errors, a mid-run fetch
// failure, or cancellation) or failed (the source never yielded a
// page). Re-running the same source is idempotent through dedup.
func (rn *Runner) Run(ctx context.Context, h Harvester, src types.SourceConfig) *types.HarvestRun {
	run := &types.HarvestRun{
		ID:        uuid.NewString(),
		Source:    src.Name,
		Status:    types.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := rn.logger.With(zap.String("run_id", run.ID), zap.String("source", src.Name))
	logger.Info("harvest started")

	var limiter *rate.Limiter
	if src.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(src.RateLimit), 1)
	}

	var (
		mu         sync.Mutex
		sampled    int
		dispatched int
		cursor     string
	)

	record := func(raw types.RawRecord) func() error {
		return func() error {
			candidate, err := normalize.Normalize(raw, src)
			if err != nil {
				mu.Lock()
				run.AddRecordError(raw.Get("title", "url", "identifier"), err)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			if sampled < sampleRecords {
				sampled++
				logger.Debug("sample record",
					zap.String("title", candidate.Title),
					zap.String("type", string(candidate.Type)),
					zap.String("url", candidate.URL))
			}
			mu.Unlock()

			decision, err := rn.resolver.Resolve(ctx, candidate)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Records failing only because the run was cancelled are
				// not source defects; Errored counts genuine failures.
				if ctx.Err() == nil {
					run.AddRecordError(candidate.Title, err)
				}
				return nil
			}
			switch decision.Action {
			case dedup.ActionCreate:
				run.Created++
			case dedup.ActionUpdate:
				run.Updated++
			case dedup.ActionSkip:
				run.Skipped++
			}
			for _, conflict := range decision.Conflicts {
				logger.Warn("merge conflict",
					zap.Int64("resource_id", conflict.ResourceID),
					zap.String("field", conflict.Field),
					zap.String("incoming_source", conflict.Source))
			}
			return nil
		}
	}

	fetchFailed := false
pages:
	for run.Pages < rn.cfg.MaxPages {
		if ctx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		page, err := h.Fetch(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fetchFailed = true
			run.LastError = err.Error()
			logger.Error("page fetch failed", zap.Int("page", run.Pages+1), zap.Error(err))
			break
		}
		run.Pages++
		run.Fetched += len(page.Records)
		for _, re := range page.RecordErrors {
			run.FoldRecordError(re)
		}

		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(rn.cfg.Workers)
		for _, raw := range page.Records {
			if gctx.Err() != nil {
				break
			}
			if src.MaxRecords > 0 && dispatched >= src.MaxRecords {
				group.Wait()
				break pages
			}
			dispatched++
			group.Go(record(raw))
		}
		group.Wait()

		cursor = page.NextCursor
		if page.Done {
			break
		}
	}

	if ctx.Err() != nil {
		run.FinalizeInterrupted()
	} else {
		run.Finalize(fetchFailed)
	}

	if rn.embedder != nil && rn.cfg.EmbedAfterIngest && run.Status != types.RunFailed && ctx.Err() == nil {
		if n, err := rn.embedder.Run(ctx); err != nil {
			// Embeddings are recomputable; their failure never taints
			// the committed harvest.
			logger.Warn("embedding backfill incomplete", zap.Int("embedded", n), zap.Error(err))
		} else if n > 0 {
			logger.Info("embedding backfill complete", zap.Int("embedded", n))
		}
	}

	logger.Info("harvest finished",
		zap.String("status", string(run.Status)),
		zap.Int("fetched", run.Fetched),
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("errored", run.Errored),
		zap.Int("pages", run.Pages))
	return run
}
