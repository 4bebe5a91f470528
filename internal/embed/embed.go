// Copyright MMU Library, 2026. All rights reserved.

// Package embed computes dense vectors for resource descriptive text
// through an OpenAI-compatible embeddings endpoint. Search and coverage
// treat the provider as optional: when it is down they degrade to
// lexical-only ranking rather than failing.
package embed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// Provider computes embedding vectors for text.
type Provider interface {
	// Embed returns one vector per input, in input order.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// Dimensions is the width of vectors this provider produces.
	Dimensions() int
}

// OpenAIProvider calls an OpenAI-compatible /v1/embeddings endpoint.
// Any local server speaking that protocol (llama.cpp, Ollama, LM
// Studio) works by setting BaseURL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIProvider builds a provider from config. APIKey may be empty
// for local servers that do not check it.
func NewOpenAIProvider(cfg types.EmbeddingConfig) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	} else {
		oc.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		dims:   cfg.Dimensions,
	}
}

// Embed requests vectors for all inputs in one call. Failures are
// wrapped in EmbeddingUnavailableError so callers can choose to
// degrade instead of abort.
func (p *OpenAIProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(p.model),
		Input:      inputs,
		Dimensions: p.dims,
	})
	if err != nil {
		return nil, &types.EmbeddingUnavailableError{Err: err}
	}
	if len(resp.Data) != len(inputs) {
		return nil, &types.EmbeddingUnavailableError{
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(inputs)),
		}
	}
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (p *OpenAIProvider) Dimensions() int { return p.dims }
