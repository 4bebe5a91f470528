// Copyright MMU Library, 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// vectorStore is the slice of the resource store the backfill needs.
type vectorStore interface {
	MissingEmbeddings(ctx context.Context, limit int) ([]*types.Resource, error)
	SetEmbedding(ctx context.Context, id int64, vec []float32, contentHash string) error
}

// Backfiller computes embeddings for resources whose vector is absent
// or was computed from stale descriptive text.
type Backfiller struct {
	store     vectorStore
	provider  Provider
	batchSize int
	logger    *zap.Logger
}

func NewBackfiller(store vectorStore, provider Provider, batchSize int, logger *zap.Logger) *Backfiller {
	if batchSize <= 0 {
		batchSize = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{store: store, provider: provider, batchSize: batchSize, logger: logger}
}

// Run embeds pending resources in batches until none remain or ctx is
// cancelled. Returns the number of resources embedded. A provider
// failure stops the run but keeps everything embedded so far.
func (b *Backfiller) Run(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		pending, err := b.store.MissingEmbeddings(ctx, b.batchSize)
		if err != nil {
			return total, fmt.Errorf("listing pending resources: %w", err)
		}
		if len(pending) == 0 {
			return total, nil
		}

		inputs := make([]string, len(pending))
		for i, r := range pending {
			inputs[i] = r.EmbeddingText()
		}
		vecs, err := b.provider.Embed(ctx, inputs)
		if err != nil {
			return total, err
		}

		for i, r := range pending {
			if err := b.store.SetEmbedding(ctx, r.ID, vecs[i], r.ContentHash); err != nil {
				return total, fmt.Errorf("storing embedding for resource %d: %w", r.ID, err)
			}
			total++
		}
		b.logger.Debug("embedded batch",
			zap.Int("batch", len(pending)),
			zap.Int("total", total))
	}
}
