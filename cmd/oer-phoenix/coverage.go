// Copyright MMU Library, 2026. All rights reserved.

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MMU-Library/OER-Phoenix/internal/coverage"
	"github.com/MMU-Library/OER-Phoenix/internal/search"
	"github.com/MMU-Library/OER-Phoenix/internal/store"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Check a reading list against the catalog",
	Long: `Coverage reads a reading-list CSV (columns: title, author, isbn,
issn, oclc_number, doi, note; only title is required) and reports how
many items the catalog covers, matched by identifier first and by
hybrid search otherwise.`,
	RunE: runCoverage,
}

func runCoverage(cmd *cobra.Command, args []string) error {
	listPath, _ := cmd.Flags().GetString("list")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	if listPath == "" {
		return fmt.Errorf("--list FILE is required")
	}

	items, err := readReadingList(listPath)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("reading list %s has no items", listPath)
	}

	cfg := pipelineConfig()
	logger := newLogger(cmd)
	defer logger.Sync()

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	engine := search.NewEngine(s, searchProvider(cfg.Embedding), cfg.Search, logger)
	analyzer := coverage.NewAnalyzer(engine, cfg.Coverage, logger)
	report := analyzer.Analyze(context.Background(), items)

	return formatCoverageReport(report, jsonOutput)
}

// readReadingList parses the collaborator-facing CSV. The header names
// the columns; order does not matter and unknown columns are ignored.
func readReadingList(path string) ([]types.ReadingListItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reading list: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading list header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, fmt.Errorf("reading list %s: no title column", path)
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var items []types.ReadingListItem
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading list row: %w", err)
		}
		item := types.ReadingListItem{
			Title:  cell(row, "title"),
			Author: cell(row, "author"),
			Note:   cell(row, "note"),
			Identifiers: types.Identifiers{
				ISBN:       cell(row, "isbn"),
				ISSN:       cell(row, "issn"),
				OCLCNumber: cell(row, "oclc_number"),
				DOI:        cell(row, "doi"),
			},
		}
		if item.Title == "" && item.Identifiers.Empty() {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func formatCoverageReport(report types.CoverageReport, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(os.Stdout, "%-50s  %-7s  %-10s  %-8s  %s\n",
		"Item", "Label", "Method", "Score", "Matched")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, o := range report.Outcomes {
		title := o.Item.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		matched := "-"
		if o.Matched != nil {
			matched = o.Matched.Title
			if len(matched) > 30 {
				matched = matched[:27] + "..."
			}
		}
		if o.Err != "" {
			matched = "error: " + o.Err
		}
		fmt.Fprintf(os.Stdout, "%-50s  %-7s  %-10s  %-8.3f  %s\n",
			title, o.Label, o.Method, o.Score, matched)
	}

	fmt.Fprintf(os.Stdout, "\n%d of %d items covered (%.1f%%)\n",
		report.Matched, report.Total, report.CoveragePercent)
	if len(report.ByResourceType) > 0 {
		fmt.Fprint(os.Stdout, "by type:")
		for t, n := range report.ByResourceType {
			fmt.Fprintf(os.Stdout, " %s=%d", t, n)
		}
		fmt.Fprintln(os.Stdout)
	}
	return nil
}

func init() {
	coverageCmd.Flags().String("list", "", "reading-list CSV file")
	coverageCmd.Flags().Bool("json", false, "output the full report as JSON")

	rootCmd.AddCommand(coverageCmd)
}
