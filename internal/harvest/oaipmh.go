// Copyright MMU Library, 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MMU-Library/OER-Phoenix/internal/httputil"
	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// OAIPMHHarvester walks an OAI-PMH repository with ListRecords. The
// cursor is the resumptionToken; an empty token in the response (or an
// expired-token error) ends the harvest cleanly.
type OAIPMHHarvester struct {
	cfg        types.SourceConfig
	client     *http.Client
	maxRetries int
}

func NewOAIPMHHarvester(cfg types.SourceConfig, client *http.Client, maxRetries int) *OAIPMHHarvester {
	return &OAIPMHHarvester{cfg: cfg, client: client, maxRetries: maxRetries}
}

func (h *OAIPMHHarvester) Name() string { return h.cfg.Name }

func (h *OAIPMHHarvester) Fetch(ctx context.Context, cursor string) (Page, error) {
	u, err := url.Parse(h.cfg.Endpoint)
	if err != nil {
		return Page{}, fmt.Errorf("source %s: bad endpoint: %w", h.cfg.Name, err)
	}
	q := u.Query()
	q.Set("verb", "ListRecords")
	if cursor != "" {
		// A resumption request carries the token and nothing else.
		q.Set("resumptionToken", cursor)
	} else {
		prefix := h.cfg.MetadataPrefix
		if prefix == "" {
			prefix = "oai_dc"
		}
		q.Set("metadataPrefix", prefix)
		if h.cfg.Set != "" {
			q.Set("set", h.cfg.Set)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request for %s: %w", h.cfg.Name, err)
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

	var envelope oaiResponse
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return Page{}, &types.SourceFetchError{
			Source: h.cfg.Name,
			Err:    fmt.Errorf("decoding OAI-PMH response: %w", err),
		}
	}
	if envelope.Error != nil {
		switch envelope.Error.Code {
		case "badResumptionToken", "noRecordsMatch":
			// Expired token or an empty set: a clean end, not a failure.
			return Page{Done: true}, nil
		default:
			return Page{}, &types.SourceFetchError{
				Source: h.cfg.Name,
				Err:    fmt.Errorf("OAI-PMH error %s: %s", envelope.Error.Code, envelope.Error.Message),
			}
		}
	}

	page := Page{
		NextCursor: strings.TrimSpace(envelope.ListRecords.ResumptionToken),
	}
	page.Done = page.NextCursor == ""
	for _, rec := range envelope.ListRecords.Records {
		if rec.Header.Status == "deleted" {
			continue
		}
		page.Records = append(page.Records, rec.Metadata.DC.rawRecord())
	}
	return page, nil
}

type oaiResponse struct {
	XMLName     xml.Name  `xml:"OAI-PMH"`
	Error       *oaiError `xml:"error"`
	ListRecords struct {
		Records         []oaiRecord `xml:"record"`
		ResumptionToken string      `xml:"resumptionToken"`
	} `xml:"ListRecords"`
}

type oaiError struct {
	Code    string `xml:"code,attr"`
	Message string `xml:",chardata"`
}

type oaiRecord struct {
	Header struct {
		Status     string `xml:"status,attr"`
		Identifier string `xml:"identifier"`
	} `xml:"header"`
	Metadata struct {
		DC dublinCore `xml:"dc"`
	} `xml:"metadata"`
}

// dublinCore holds the repeatable oai_dc elements.
type dublinCore struct {
	Titles       []string `xml:"title"`
	Creators     []string `xml:"creator"`
	Subjects     []string `xml:"subject"`
	Descriptions []string `xml:"description"`
	Publishers   []string `xml:"publisher"`
	Types        []string `xml:"type"`
	Formats      []string `xml:"format"`
	Identifiers  []string `xml:"identifier"`
	Languages    []string `xml:"language"`
	Rights       []string `xml:"rights"`
}

// rawRecord maps oai_dc fields onto the normalizer's canonical keys.
// dc:identifier is split: the first http(s) value becomes the link,
// the rest stay identifiers for ISBN/DOI extraction downstream.
func (dc dublinCore) rawRecord() types.RawRecord {
	rec := types.RawRecord{
		"title":       first(dc.Titles),
		"creator":     strings.Join(compact(dc.Creators), "; "),
		"subject":     strings.Join(compact(dc.Subjects), "; "),
		"description": first(dc.Descriptions),
		"publisher":   first(dc.Publishers),
		"type":        first(dc.Types),
		"format":      first(dc.Formats),
		"language":    first(dc.Languages),
		"rights":      first(dc.Rights),
	}
	var others []string
	for _, id := range compact(dc.Identifiers) {
		lower := strings.ToLower(id)
		if rec["url"] == "" && (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) {
			rec["url"] = id
			continue
		}
		others = append(others, id)
	}
	if len(others) > 0 {
		rec["identifier"] = others[0]
	}
	for k, v := range rec {
		if v == "" {
			delete(rec, k)
		}
	}
	return rec
}

func first(vals []string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func compact(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
