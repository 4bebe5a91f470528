// Copyright MMU Library, 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MMU-Library/OER-Phoenix/internal/dedup"
	"github.com/MMU-Library/OER-Phoenix/internal/embed"
	"github.com/MMU-Library/OER-Phoenix/internal/harvest"
	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest configured sources into the local catalog",
	Long: `Harvest pulls metadata from one configured source (--source NAME) or
all of them (--all), normalizes and deduplicates the records, and
commits them to the catalog. Re-running a harvest is idempotent:
unchanged records are skipped, changed ones merged.

Ctrl-C finishes the in-flight records and finalizes the run as
partial; committed records are kept.`,
	RunE: runHarvest,
}

func runHarvest(cmd *cobra.Command, args []string) error {
	sourceName, _ := cmd.Flags().GetString("source")
	all, _ := cmd.Flags().GetBool("all")
	sourcesFile, _ := cmd.Flags().GetString("sources")
	limit, _ := cmd.Flags().GetInt("limit")

	if sourceName == "" && !all {
		return fmt.Errorf("either --source NAME or --all is required")
	}

	sources, err := types.LoadSources(sourcesFile)
	if err != nil {
		return err
	}
	selected, err := selectSources(sources, sourceName, all)
	if err != nil {
		return err
	}

	cfg := pipelineConfig()
	logger := newLogger(cmd)
	defer logger.Sync()

	if err := ensureStoreDir(cfg.Store); err != nil {
		return err
	}
	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	priorities := make(map[string]int, len(sources))
	for _, src := range sources {
		priorities[src.Name] = src.Priority
	}
	resolver := dedup.NewResolver(s, cfg.Dedup, priorities, logger)

	var embedder *embed.Backfiller
	if cfg.Harvest.EmbedAfterIngest {
		provider := embed.NewOpenAIProvider(cfg.Embedding)
		embedder = embed.NewBackfiller(s, provider, cfg.Embedding.BatchSize, logger)
	}
	runner := harvest.NewRunner(resolver, noNilEmbedder(embedder), cfg.Harvest, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu   sync.Mutex
		runs []*types.HarvestRun
	)
	group, gctx := errgroup.WithContext(ctx)
	for _, src := range selected {
		if limit > 0 {
			src.MaxRecords = limit
		}
		src.APIKey = secretDefault(src.Name+"-api-key", src.APIKey)
		group.Go(func() error {
			h, err := harvest.New(src, cfg.Harvest)
			if err != nil {
				return err
			}
			run := runner.Run(gctx, h, src)
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, run := range runs {
		printRun(run)
		if run.Status == types.RunFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d source(s) failed", failed)
	}
	return nil
}

func selectSources(sources []types.SourceConfig, name string, all bool) ([]types.SourceConfig, error) {
	if all {
		if len(sources) == 0 {
			return nil, fmt.Errorf("no sources configured")
		}
		return sources, nil
	}
	for _, src := range sources {
		if src.Name == name {
			return []types.SourceConfig{src}, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

func printRun(run *types.HarvestRun) {
	fmt.Printf("%s: %s (run %s, %s)\n", run.Source, run.Status, run.ID,
		runDuration(run.StartedAt, run.CompletedAt))
	fmt.Printf("  pages %d  fetched %d  created %d  updated %d  skipped %d  errored %d\n",
		run.Pages, run.Fetched, run.Created, run.Updated, run.Skipped, run.Errored)
	if run.LastError != "" {
		fmt.Printf("  last error: %s\n", run.LastError)
	}
}

// noNilEmbedder avoids handing the runner a typed nil interface.
func noNilEmbedder(b *embed.Backfiller) harvest.Embedder {
	if b == nil {
		return nil
	}
	return b
}

func init() {
	harvestCmd.Flags().String("source", "", "name of the source to harvest")
	harvestCmd.Flags().Bool("all", false, "harvest every configured source")
	harvestCmd.Flags().String("sources", "sources.yaml", "sources configuration file")
	harvestCmd.Flags().Int("limit", 0, "maximum records per source (0 = source default)")

	rootCmd.AddCommand(harvestCmd)
}
