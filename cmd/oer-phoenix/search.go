// Copyright MMU Library, 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MMU-Library/OER-Phoenix/internal/embed"
	"github.com/MMU-Library/OER-Phoenix/internal/search"
	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog with hybrid semantic + keyword ranking",
	Long: `Search ranks the catalog against a free-text query by combining
embedding similarity with keyword (FTS5) relevance, plus a small
quality boost. Facet flags narrow the candidate set before ranking;
an identifier flag (--isbn, --issn, --oclc, --doi) looks up exact
matches directly.

When the embedding endpoint is unreachable the search degrades to
keyword ranking and says so on stderr.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	filter := filterFromFlags(cmd)

	cfg := pipelineConfig()
	logger := newLogger(cmd)
	defer logger.Sync()

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := search.NewEngine(s, searchProvider(cfg.Embedding), cfg.Search, logger)
	out, err := engine.Search(context.Background(), query, filter, limit)
	if err != nil {
		return err
	}
	if out.Degraded {
		fmt.Fprintln(os.Stderr, "note: embeddings unavailable, results are keyword-ranked only")
	}
	return formatSearchOutput(out, jsonOutput)
}

// searchProvider builds the embedding provider, or nil when no
// endpoint is configured so the engine runs lexical-only.
func searchProvider(cfg types.EmbeddingConfig) embed.Provider {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil
	}
	return embed.NewOpenAIProvider(cfg)
}

func filterFromFlags(cmd *cobra.Command) store.Filter {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return store.Filter{
		Source:       get("source"),
		Language:     get("language"),
		ResourceType: types.ResourceType(get("type")),
		Subject:      get("subject"),
		License:      get("license"),
		ISBN:         get("isbn"),
		ISSN:         get("issn"),
		OCLCNumber:   get("oclc"),
		DOI:          get("doi"),
	}
}

func formatSearchOutput(out search.Output, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out.Results)
	}

	if len(out.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-6s  %-50s  %-8s  %-10s  %s\n",
		"Rank", "Score", "Title", "Type", "Source", "Match")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for i, r := range out.Results {
		title := r.Resource.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-6.3f  %-50s  %-8s  %-10s  %s\n",
			i+1, r.FinalScore, title, r.Resource.Type, r.Resource.Source, r.Reason)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(out.Results))
	return nil
}

func init() {
	searchCmd.Flags().String("source", "", "filter by source name")
	searchCmd.Flags().String("language", "", "filter by language code")
	searchCmd.Flags().String("type", "", "filter by resource type: book, chapter, article, video, course, other")
	searchCmd.Flags().String("subject", "", "filter by subject substring")
	searchCmd.Flags().String("license", "", "filter by license")
	searchCmd.Flags().String("isbn", "", "exact ISBN lookup")
	searchCmd.Flags().String("issn", "", "exact ISSN lookup")
	searchCmd.Flags().String("oclc", "", "exact OCLC number lookup")
	searchCmd.Flags().String("doi", "", "exact DOI lookup")
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = configured default)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}
