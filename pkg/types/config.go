// Copyright MMU Library, 2026. All rights reserved.

package types

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"
)

// HTTPConfig holds shared HTTP settings used by stages that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "oer-phoenix/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SourceProtocol selects the harvester strategy for a source.
type SourceProtocol string

const (
	ProtocolAPI     SourceProtocol = "api"
	ProtocolOAIPMH  SourceProtocol = "oaipmh"
	ProtocolMARCXML SourceProtocol = "marcxml"
	ProtocolCSV     SourceProtocol = "csv"
)

// PaginationType selects how the API harvester advances through pages.
type PaginationType string

const (
	PaginationPage   PaginationType = "page"
	PaginationOffset PaginationType = "offset"
	PaginationCursor PaginationType = "cursor"
)

// SourceConfig describes one external catalog. Source configurations
// are enumerated and validated at load time rather than interpreted as
// free-form dictionaries at call time.
type SourceConfig struct {
	// Name identifies the source; stored on every Resource it yields.
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Protocol    SourceProtocol `json:"protocol" yaml:"protocol"`

	// Endpoint is the API base URL, OAI-PMH request URL, dump URL, or
	// CSV URL/path depending on Protocol.
	Endpoint string            `json:"endpoint" yaml:"endpoint"`
	APIKey   string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Params   map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// FieldMappings maps canonical field names (title, url, author,
	// description, license, publisher, language, resource_type,
	// subject, isbn, issn, oclc_number, doi, format, level) to the
	// source's field names. Unmapped fields fall back to built-in
	// aliases.
	FieldMappings map[string]string `json:"field_mappings,omitempty" yaml:"field_mappings,omitempty"`

	// ResultsPath names the key holding the record array in API
	// responses (e.g. "results", "items"). Empty tries common keys.
	ResultsPath string `json:"results_path,omitempty" yaml:"results_path,omitempty"`

	Pagination PaginationType `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	PageSize   int            `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// Set is the OAI-PMH selective-harvesting set, mapped from the
	// source's collection filter.
	Set            string `json:"set,omitempty" yaml:"set,omitempty"`
	MetadataPrefix string `json:"metadata_prefix,omitempty" yaml:"metadata_prefix,omitempty"`

	// Delimiter overrides CSV field separation; "\t" for KBART files.
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`

	// DefaultType is assumed when a record carries no type hint at all
	// (MARC dumps are book catalogs, for example).
	DefaultType ResourceType `json:"default_type,omitempty" yaml:"default_type,omitempty"`

	// Priority orders sources for merge-conflict resolution: a value
	// from a higher-priority (larger) source wins over a conflicting
	// value from a lower one.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// MaxRecords bounds one harvest run; 0 means no extra bound.
	MaxRecords int `json:"max_records,omitempty" yaml:"max_records,omitempty"`

	// RateLimit is the maximum requests per second against the source;
	// 0 disables limiting.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
}

// Validate checks the structural requirements shared by all protocols.
func (c SourceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("source config: name is required")
	}
	switch c.Protocol {
	case ProtocolAPI, ProtocolOAIPMH, ProtocolMARCXML, ProtocolCSV:
	default:
		return fmt.Errorf("source %s: unknown protocol %q", c.Name, c.Protocol)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("source %s: endpoint is required", c.Name)
	}
	if c.Pagination != "" {
		switch c.Pagination {
		case PaginationPage, PaginationOffset, PaginationCursor:
		default:
			return fmt.Errorf("source %s: unknown pagination %q", c.Name, c.Pagination)
		}
	}
	if c.DefaultType != "" && !ValidResourceType(c.DefaultType) {
		return fmt.Errorf("source %s: invalid default_type %q", c.Name, c.DefaultType)
	}
	return nil
}

// SourcesFile is the on-disk shape of the sources YAML file.
type SourcesFile struct {
	Sources []SourceConfig `json:"sources" yaml:"sources"`
}

// LoadSources reads and validates the source configuration file. Every
// source is validated up front; a bad entry fails the whole load so
// misconfiguration surfaces before any harvest starts.
func LoadSources(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing sources file %s: %w", path, err)
	}
	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate source name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return f.Sources, nil
}

// HarvestConfig holds settings for the harvest pipeline.
type HarvestConfig struct {
	HTTPConfig `yaml:",inline"`

	// Workers bounds concurrent record processing within one run
	// (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// MaxRetries bounds retry attempts for retryable fetch failures
	// (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxPages bounds pagination within one run (default 1000).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// EmbedAfterIngest computes missing/stale embeddings once the
	// run's records are committed.
	EmbedAfterIngest bool `json:"embed_after_ingest" yaml:"embed_after_ingest"`
}

// DedupConfig holds settings for the deduplication index.
type DedupConfig struct {
	// TitleSimilarityThreshold is the fuzzy title match floor in
	// (0, 1]; candidates at or above it with compatible authors merge
	// into the existing resource (default 0.85). A tunable business
	// parameter, never hard-coded by callers.
	TitleSimilarityThreshold float64 `json:"title_similarity_threshold" yaml:"title_similarity_threshold"`
}

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	// BaseURL points at an OpenAI-compatible embeddings endpoint; the
	// default client base is used when empty.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the embedding model identifier.
	Model string `json:"model" yaml:"model"`

	// Dimensions is the fixed vector length (default 384).
	Dimensions int `json:"dimensions" yaml:"dimensions"`

	// Timeout bounds a single embed call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// BatchSize bounds texts per embeddings request (default 32).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// SearchConfig holds ranking weights and limits for the hybrid engine.
type SearchConfig struct {
	// SemanticWeight and LexicalWeight combine the two channels
	// (defaults 0.6 / 0.4).
	SemanticWeight float64 `json:"semantic_weight" yaml:"semantic_weight"`
	LexicalWeight  float64 `json:"lexical_weight" yaml:"lexical_weight"`

	// QualityWeight scales the additive quality boost (default 0.3).
	// The boost is bounded so quality alone cannot invert a strong
	// semantic mismatch.
	QualityWeight float64 `json:"quality_weight" yaml:"quality_weight"`

	// MaxResults is the default result cap (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// CandidateMultiplier oversizes per-channel candidate pulls before
	// merging (default 2).
	CandidateMultiplier int `json:"candidate_multiplier" yaml:"candidate_multiplier"`
}

// CoverageConfig holds settings for the coverage analyzer.
type CoverageConfig struct {
	// ConfidenceThreshold is the minimum final score for an item to
	// count as matched (default 0.5). Tunable, like the dedup
	// threshold.
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// GoodThreshold grades strong matches for the per-item label
	// (default 0.8).
	GoodThreshold float64 `json:"good_threshold" yaml:"good_threshold"`
}

// StoreConfig holds settings for the resource store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Store     StoreConfig     `json:"store" yaml:"store"`
	Harvest   HarvestConfig   `json:"harvest" yaml:"harvest"`
	Dedup     DedupConfig     `json:"dedup" yaml:"dedup"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Search    SearchConfig    `json:"search" yaml:"search"`
	Coverage  CoverageConfig  `json:"coverage" yaml:"coverage"`
}
