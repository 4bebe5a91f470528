// Copyright MMU Library, 2026. All rights reserved.

// Package harvest pulls raw records from external catalogs (REST APIs,
// OAI-PMH repositories, MARCXML dumps, CSV/KBART exports) and drives
// them through normalize, dedup and the store.
package harvest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MMU-Library/OER-Phoenix/pkg/types"
)

// Page is one fetched batch of raw records. NextCursor is the opaque
// position of the following page; Done means no further pages exist.
// RecordErrors carries records the harvester itself could not decode;
// they count against the run without aborting it.
type Page struct {
	Records      []types.RawRecord
	NextCursor   string
	Done         bool
	RecordErrors []types.RecordError
}

// Harvester fetches pages of raw records from one source. Fetch is
// called with the empty cursor first and then with each NextCursor
// until Done.
type Harvester interface {
	Name() string
	Fetch(ctx context.Context, cursor string) (Page, error)
}

// New builds the harvester for a source based on its protocol.
func New(cfg types.SourceConfig, hcfg types.HarvestConfig) (Harvester, error) {
	client := newClient(hcfg)
	switch cfg.Protocol {
	case types.ProtocolAPI:
		return NewAPIHarvester(cfg, client, hcfg.MaxRetries), nil
	case types.ProtocolOAIPMH:
		return NewOAIPMHHarvester(cfg, client, hcfg.MaxRetries), nil
	case types.ProtocolMARCXML:
		return NewMARCXMLHarvester(cfg, client), nil
	case types.ProtocolCSV:
		return NewCSVHarvester(cfg, client), nil
	default:
		return nil, fmt.Errorf("source %s: no harvester for protocol %q", cfg.Name, cfg.Protocol)
	}
}

func newClient(hcfg types.HarvestConfig) *http.Client {
	timeout := hcfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
