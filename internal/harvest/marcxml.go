// Copyright MMU Library, 2026. All rights reserved.

package harvest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// MARCXMLHarvester streams a MARCXML dump from a URL or local file.
// The whole dump is one page: records are decoded one element at a
// time so a large file never loads into memory, and a record that
// fails to decode is reported without aborting the rest of the stream.
type MARCXMLHarvester struct {
	cfg    types.SourceConfig
	client *http.Client
}

func NewMARCXMLHarvester(cfg types.SourceConfig, client *http.Client) *MARCXMLHarvester {
	return &MARCXMLHarvester{cfg: cfg, client: client}
}

func (h *MARCXMLHarvester) Name() string { return h.cfg.Name }

func (h *MARCXMLHarvester) Fetch(ctx context.Context, _ string) (Page, error) {
	body, err := openEndpoint(ctx, h.client, h.cfg)
	if err != nil {
		return Page{}, err
	}
	defer body.Close()

	page := Page{Done: true}
	decoder := xml.NewDecoder(body)
	for {
		if err := ctx.Err(); err != nil {
			return page, err
		}
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The stream itself is broken; keep what we decoded.
			page.RecordErrors = append(page.RecordErrors, types.RecordError{
				Record: "marcxml stream",
				Err:    err.Error(),
			})
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}
		var rec marcRecord
		if err := decoder.DecodeElement(&rec, &start); err != nil {
			page.RecordErrors = append(page.RecordErrors, types.RecordError{
				Record: "marcxml record",
				Err:    err.Error(),
			})
			continue
		}
		page.Records = append(page.Records, rec.rawRecord())
	}
	return page, nil
}

// openEndpoint opens the dump behind a source endpoint: an http(s) URL
// is fetched, anything else is treated as a local file path.
func openEndpoint(ctx context.Context, client *http.Client, cfg types.SourceConfig) (io.ReadCloser, error) {
	lower := strings.ToLower(cfg.Endpoint)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		f, err := os.Open(cfg.Endpoint)
		if err != nil {
			return nil, &types.SourceFetchError{Source: cfg.Name, Err: err}
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", cfg.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &types.SourceFetchError{Source: cfg.Name, Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &types.SourceFetchError{
			Source:     cfg.Name,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return resp.Body, nil
}

type marcRecord struct {
	Leader        string `xml:"leader"`
	ControlFields []struct {
		Tag   string `xml:"tag,attr"`
		Value string `xml:",chardata"`
	} `xml:"controlfield"`
	DataFields []struct {
		Tag       string `xml:"tag,attr"`
		Subfields []struct {
			Code  string `xml:"code,attr"`
			Value string `xml:",chardata"`
		} `xml:"subfield"`
	} `xml:"datafield"`
}

// rawRecord maps the MARC fields we care about onto canonical keys:
// 245 a/b title, 100/700 a authors, 260/264 b publisher, 856 u link,
// 020 a ISBN, 022 a ISSN, 035 a control number, 520 a summary, and
// the 008 fixed-field language code.
func (m marcRecord) rawRecord() types.RawRecord {
	rec := types.RawRecord{}

	titleParts := append(m.subfields("245", "a"), m.subfields("245", "b")...)
	if title := strings.Join(titleParts, " "); title != "" {
		rec["title"] = trimMARC(title)
	}
	authors := append(m.subfields("100", "a"), m.subfields("700", "a")...)
	if len(authors) > 0 {
		for i, a := range authors {
			authors[i] = trimMARC(a)
		}
		rec["author"] = strings.Join(authors, "; ")
	}
	publisher := m.subfields("260", "b")
	if len(publisher) == 0 {
		publisher = m.subfields("264", "b")
	}
	if len(publisher) > 0 {
		rec["publisher"] = trimMARC(publisher[0])
	}
	if u := m.subfields("856", "u"); len(u) > 0 {
		rec["url"] = strings.TrimSpace(u[0])
	}
	if v := m.subfields("020", "a"); len(v) > 0 {
		rec["isbn"] = strings.TrimSpace(v[0])
	}
	if v := m.subfields("022", "a"); len(v) > 0 {
		rec["issn"] = strings.TrimSpace(v[0])
	}
	if v := m.subfields("035", "a"); len(v) > 0 {
		rec["oclc_number"] = strings.TrimSpace(v[0])
	}
	if v := m.subfields("520", "a"); len(v) > 0 {
		rec["description"] = trimMARC(v[0])
	}
	for _, cf := range m.ControlFields {
		// 008 positions 35-37 hold the MARC language code.
		if cf.Tag == "008" && len(cf.Value) >= 38 {
			if lang := strings.TrimSpace(cf.Value[35:38]); lang != "" {
				rec["language"] = lang
			}
		}
	}
	return rec
}

func (m marcRecord) subfields(tag, code string) []string {
	var out []string
	for _, df := range m.DataFields {
		if df.Tag != tag {
			continue
		}
		for _, sf := range df.Subfields {
			if sf.Code == code && strings.TrimSpace(sf.Value) != "" {
				out = append(out, strings.TrimSpace(sf.Value))
			}
		}
	}
	return out
}

// trimMARC strips the trailing ISBD punctuation MARC fields carry.
func trimMARC(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " /:;,.")
}
