// Copyright MMU Library, 2026. All rights reserved.

package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// FakeProvider returns deterministic vectors, or fails after a set
// number of calls.
type FakeProvider struct {
	Dims      int
	Calls     int
	FailAfter int // fail on call N (1-based); 0 never fails
}

func (f *FakeProvider) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.Calls++
	if f.FailAfter > 0 && f.Calls >= f.FailAfter {
		return nil, &types.EmbeddingUnavailableError{Err: errors.New("provider down")}
	}
	vecs := make([][]float32, len(inputs))
	for i, in := range inputs {
		v := make([]float32, f.Dims)
		for j := range v {
			v[j] = float32(len(in)%7) + float32(j)
		}
		vecs[i] = v
	}
	return vecs, nil
}

func (f *FakeProvider) Dimensions() int { return f.Dims }

type memStore struct {
	pending  []*types.Resource
	embedded map[int64][]float32
}

func (m *memStore) MissingEmbeddings(_ context.Context, limit int) ([]*types.Resource, error) {
	if len(m.pending) == 0 {
		return nil, nil
	}
	n := limit
	if n > len(m.pending) {
		n = len(m.pending)
	}
	return m.pending[:n], nil
}

func (m *memStore) SetEmbedding(_ context.Context, id int64, vec []float32, _ string) error {
	if m.embedded == nil {
		m.embedded = make(map[int64][]float32)
	}
	m.embedded[id] = vec
	remaining := m.pending[:0]
	for _, r := range m.pending {
		if r.ID != id {
			remaining = append(remaining, r)
		}
	}
	m.pending = remaining
	return nil
}

func pendingResources(n int) []*types.Resource {
	out := make([]*types.Resource, n)
	for i := range out {
		out[i] = &types.Resource{
			ID:          int64(i + 1),
			Title:       "Resource",
			ContentHash: "h",
		}
	}
	return out
}

func TestBackfillerEmbedsAllPending(t *testing.T) {
	store := &memStore{pending: pendingResources(5)}
	provider := &FakeProvider{Dims: 3}
	b := NewBackfiller(store, provider, 2, nil)

	n, err := b.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("embedded %d, want 5", n)
	}
	if len(store.embedded) != 5 {
		t.Errorf("stored %d vectors, want 5", len(store.embedded))
	}
	if provider.Calls != 3 {
		t.Errorf("provider calls = %d, want 3 batches of <=2", provider.Calls)
	}
}

func TestBackfillerStopsOnProviderFailure(t *testing.T) {
	store := &memStore{pending: pendingResources(5)}
	provider := &FakeProvider{Dims: 3, FailAfter: 2}
	b := NewBackfiller(store, provider, 2, nil)

	n, err := b.Run(context.Background())
	var unavailable *types.EmbeddingUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("want EmbeddingUnavailableError, got %v", err)
	}
	// First batch of 2 was persisted before the failure.
	if n != 2 {
		t.Errorf("embedded %d before failure, want 2", n)
	}
}

func TestBackfillerRespectsCancellation(t *testing.T) {
	store := &memStore{pending: pendingResources(3)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBackfiller(store, &FakeProvider{Dims: 2}, 2, nil)
	_, err := b.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
