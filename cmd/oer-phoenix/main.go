// Copyright MMU Library, 2026. All rights reserved.

// Package main is the entry point for the oer-phoenix CLI: harvesting
// open educational resources into a local catalog, searching it, and
// measuring reading-list coverage.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MMU-Library/OER-Phoenix/internal/secrets"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the oer-phoenix CLI.
var rootCmd = &cobra.Command{
	Use:   "oer-phoenix",
	Short: "Aggregate and search open educational resources",
	Long: `oer-phoenix harvests open educational resource metadata from external
catalogs (REST APIs, OAI-PMH repositories, MARCXML dumps, CSV/KBART
exports) into a local SQLite catalog, deduplicates it, and serves
hybrid semantic + keyword search over the result.

Each stage is a subcommand: harvest pulls sources, search queries the
catalog, coverage checks a reading list against it, and sources lists
and probes the configured endpoints.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./oer-phoenix.yaml or ~/.config/oer-phoenix/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("oer-phoenix")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "oer-phoenix"))
		}
	}

	viper.SetEnvPrefix("OER_PHOENIX")
	viper.AutomaticEnv()

	viper.SetDefault("store.path", "data/oer.db")
	viper.SetDefault("harvest.workers", 4)
	viper.SetDefault("harvest.max_retries", 3)
	viper.SetDefault("harvest.max_pages", 1000)
	viper.SetDefault("harvest.timeout", "30s")
	viper.SetDefault("harvest.user_agent", "oer-phoenix/"+version)
	viper.SetDefault("harvest.embed_after_ingest", false)
	viper.SetDefault("dedup.title_similarity_threshold", 0.85)
	viper.SetDefault("embedding.model", "all-minilm-l6-v2")
	viper.SetDefault("embedding.dimensions", 384)
	viper.SetDefault("embedding.batch_size", 32)
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("search.semantic_weight", 0.6)
	viper.SetDefault("search.lexical_weight", 0.4)
	viper.SetDefault("search.quality_weight", 0.3)
	viper.SetDefault("search.max_results", 20)
	viper.SetDefault("search.candidate_multiplier", 2)
	viper.SetDefault("coverage.confidence_threshold", 0.5)
	viper.SetDefault("coverage.good_threshold", 0.8)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig assembles the stage configuration from viper, with
// the embedding API key falling back to the loaded secrets.
func pipelineConfig() types.PipelineConfig {
	return types.PipelineConfig{
		Store: types.StoreConfig{Path: viper.GetString("store.path")},
		Harvest: types.HarvestConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("harvest.timeout"),
				UserAgent: viper.GetString("harvest.user_agent"),
			},
			Workers:          viper.GetInt("harvest.workers"),
			MaxRetries:       viper.GetInt("harvest.max_retries"),
			MaxPages:         viper.GetInt("harvest.max_pages"),
			EmbedAfterIngest: viper.GetBool("harvest.embed_after_ingest"),
		},
		Dedup: types.DedupConfig{
			TitleSimilarityThreshold: viper.GetFloat64("dedup.title_similarity_threshold"),
		},
		Embedding: types.EmbeddingConfig{
			BaseURL:    viper.GetString("embedding.base_url"),
			APIKey:     secretDefault("embedding-api-key", viper.GetString("embedding.api_key")),
			Model:      viper.GetString("embedding.model"),
			Dimensions: viper.GetInt("embedding.dimensions"),
			Timeout:    viper.GetDuration("embedding.timeout"),
			BatchSize:  viper.GetInt("embedding.batch_size"),
		},
		Search: types.SearchConfig{
			SemanticWeight:      viper.GetFloat64("search.semantic_weight"),
			LexicalWeight:       viper.GetFloat64("search.lexical_weight"),
			QualityWeight:       viper.GetFloat64("search.quality_weight"),
			MaxResults:          viper.GetInt("search.max_results"),
			CandidateMultiplier: viper.GetInt("search.candidate_multiplier"),
		},
		Coverage: types.CoverageConfig{
			ConfidenceThreshold: viper.GetFloat64("coverage.confidence_threshold"),
			GoodThreshold:       viper.GetFloat64("coverage.good_threshold"),
		},
	}
}

// newLogger builds the process logger. Commands log to stderr so
// stdout stays parseable.
func newLogger(cmd *cobra.Command) *zap.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core)
}

// ensureStoreDir creates the parent directory of the database path.
func ensureStoreDir(cfg types.StoreConfig) error {
	dir := filepath.Dir(cfg.Path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func runDuration(start, end time.Time) time.Duration {
	return end.Sub(start).Round(time.Millisecond)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
