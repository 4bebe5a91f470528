// Copyright MMU Library, 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// CSVHarvester reads a delimited export (plain CSV or tab-separated
// KBART) from a URL or local file. The whole file is one page. The
// first row is the header; its lowercased names become the raw record
// keys, so KBART columns (publication_title, title_url,
// print_identifier, first_author, publisher_name) flow straight into
// the normalizer's alias table.
type CSVHarvester struct {
	cfg    types.SourceConfig
	client *http.Client
}

func NewCSVHarvester(cfg types.SourceConfig, client *http.Client) *CSVHarvester {
	return &CSVHarvester{cfg: cfg, client: client}
}

func (h *CSVHarvester) Name() string { return h.cfg.Name }

func (h *CSVHarvester) Fetch(ctx context.Context, _ string) (Page, error) {
	body, err := openEndpoint(ctx, h.client, h.cfg)
	if err != nil {
		return Page{}, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.Comma = h.delimiter()
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return Page{}, &types.SourceFetchError{
			Source: h.cfg.Name,
			Err:    fmt.Errorf("reading header row: %w", err),
		}
	}
	for i, col := range header {
		header[i] = strings.ToLower(strings.TrimSpace(col))
	}

	page := Page{Done: true}
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return page, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			page.RecordErrors = append(page.RecordErrors, types.RecordError{
				Record: fmt.Sprintf("line %d", line),
				Err:    err.Error(),
			})
			continue
		}
		if blankRow(row) {
			page.RecordErrors = append(page.RecordErrors, types.RecordError{
				Record: fmt.Sprintf("line %d", line),
				Err:    "blank row",
			})
			continue
		}
		rec := make(types.RawRecord, len(header))
		for i, col := range header {
			if i >= len(row) {
				break
			}
			if v := strings.TrimSpace(row[i]); v != "" && col != "" {
				rec[col] = v
			}
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

func (h *CSVHarvester) delimiter() rune {
	if h.cfg.Delimiter == "\t" || strings.EqualFold(h.cfg.Delimiter, "tab") {
		return '\t'
	}
	if h.cfg.Delimiter != "" {
		return rune(h.cfg.Delimiter[0])
	}
	// KBART exports are tab-separated by convention.
	lower := strings.ToLower(h.cfg.Endpoint)
	if strings.HasSuffix(lower, ".tsv") || strings.Contains(lower, "kbart") {
		return '\t'
	}
	return ','
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
