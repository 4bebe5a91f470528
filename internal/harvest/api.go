// Copyright MMU Library, 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MMU-Library/OER-Phoenix/internal/httputil"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// defaultResultKeys are tried in order when the source config does not
// name the record array explicitly.
var defaultResultKeys = []string{"results", "items", "records", "data"}

// APIHarvester pages through a JSON REST catalog. The cursor encodes
// the position per the configured pagination style: a page number, a
// record offset, or an opaque token from the previous response.
type APIHarvester struct {
	cfg        types.SourceConfig
	client     *http.Client
	maxRetries int
}

func NewAPIHarvester(cfg types.SourceConfig, client *http.Client, maxRetries int) *APIHarvester {
	return &APIHarvester{cfg: cfg, client: client, maxRetries: maxRetries}
}

func (h *APIHarvester) Name() string { return h.cfg.Name }

func (h *APIHarvester) Fetch(ctx context.Context, cursor string) (Page, error) {
	reqURL, err := h.pageURL(cursor)
	if err != nil {
		return Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request for %s: %w", h.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range h.cfg.Headers {
		req.Header.Set(k, v)
	}
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, h.client, req, h.maxRetries)
	if err != nil {
		return Page{}, &types.SourceFetchError{Source: h.cfg.Name, Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, &types.SourceFetchError{
			Source:     h.cfg.Name,
			StatusCode: resp.StatusCode,
			Retryable:  httputil.Retryable(resp.StatusCode),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, &types.SourceFetchError{Source: h.cfg.Name, Retryable: true, Err: err}
	}
	return h.parsePage(body, cursor)
}

// pageURL builds the request URL for one page. Static params from the
// source config are always applied; the pagination params depend on
// the configured style.
func (h *APIHarvester) pageURL(cursor string) (string, error) {
	u, err := url.Parse(h.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("source %s: bad endpoint: %w", h.cfg.Name, err)
	}
	q := u.Query()
	for k, v := range h.cfg.Params {
		q.Set(k, v)
	}

	size := h.cfg.PageSize
	if size <= 0 {
		size = 50
	}
	switch h.cfg.Pagination {
	case types.PaginationOffset:
		offset := 0
		if cursor != "" {
			offset, err = strconv.Atoi(cursor)
			if err != nil {
				return "", fmt.Errorf("source %s: bad offset cursor %q", h.cfg.Name, cursor)
			}
		}
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(size))
	case types.PaginationCursor:
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		q.Set("limit", strconv.Itoa(size))
	default: // page-numbered
		page := 1
		if cursor != "" {
			page, err = strconv.Atoi(cursor)
			if err != nil {
				return "", fmt.Errorf("source %s: bad page cursor %q", h.cfg.Name, cursor)
			}
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(size))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (h *APIHarvester) parsePage(body []byte, cursor string) (Page, error) {
	items, next, err := h.decodeBody(body)
	if err != nil {
		return Page{}, &types.SourceFetchError{Source: h.cfg.Name, Err: err}
	}

	page := Page{}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			page.RecordErrors = append(page.RecordErrors, types.RecordError{
				Record: fmt.Sprintf("%.60v", item),
				Err:    "record is not a JSON object",
			})
			continue
		}
		page.Records = append(page.Records, FlattenRecord(obj))
	}

	size := h.cfg.PageSize
	if size <= 0 {
		size = 50
	}
	switch h.cfg.Pagination {
	case types.PaginationOffset:
		offset := 0
		if cursor != "" {
			offset, _ = strconv.Atoi(cursor)
		}
		page.NextCursor = strconv.Itoa(offset + len(items))
		page.Done = len(items) < size
	case types.PaginationCursor:
		page.NextCursor = next
		page.Done = next == "" || len(items) == 0
	default:
		pageNum := 1
		if cursor != "" {
			pageNum, _ = strconv.Atoi(cursor)
		}
		page.NextCursor = strconv.Itoa(pageNum + 1)
		page.Done = len(items) < size
	}
	if len(items) == 0 {
		page.Done = true
	}
	return page, nil
}

// decodeBody extracts the record array and, for cursor pagination, the
// next token. The body may be a bare array or an envelope object.
func (h *APIHarvester) decodeBody(body []byte) (items []any, next string, err error) {
	var bare []any
	if json.Unmarshal(body, &bare) == nil {
		return bare, "", nil
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("decoding response: %w", err)
	}

	keys := defaultResultKeys
	if h.cfg.ResultsPath != "" {
		keys = []string{h.cfg.ResultsPath}
	}
	for _, key := range keys {
		if arr, ok := envelope[key].([]any); ok {
			return arr, cursorToken(envelope), nil
		}
	}
	return nil, "", fmt.Errorf("no record array under %s", strings.Join(keys, "/"))
}

func cursorToken(envelope map[string]any) string {
	for _, key := range []string{"next_cursor", "nextCursor", "next", "continuation"} {
		if s, ok := envelope[key].(string); ok {
			return s
		}
	}
	return ""
}

// FlattenRecord converts a decoded JSON object into the flat string map
// the normalizer consumes. Nested objects contribute dotted keys one
// level deep; arrays of scalars are joined with "; ".
func FlattenRecord(obj map[string]any) types.RawRecord {
	rec := make(types.RawRecord, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case map[string]any:
			for nk, nv := range val {
				if s := scalarString(nv); s != "" {
					rec[k+"."+nk] = s
				}
			}
		default:
			if s := scalarString(v); s != "" {
				rec[k] = s
			}
		}
	}
	return rec
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		var parts []string
		for _, item := range val {
			if _, nested := item.(map[string]any); nested {
				continue
			}
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
