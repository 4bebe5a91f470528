// Copyright MMU Library, 2026. All rights reserved.

package types

import "fmt"

// NormalizationError reports a raw record that could not be mapped into
// a valid Resource (missing mandatory fields). It is per-record and
// non-fatal to a harvest run.
type NormalizationError struct {
	Source string
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s record: %s: %s", e.Source, e.Field, e.Reason)
}

// SourceFetchError reports a network or protocol failure talking to an
// external source. Retryable indicates the caller may retry with
// backoff; a run escalates to failed only after retries are exhausted
// on the initial fetch.
type SourceFetchError struct {
	Source     string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *SourceFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch from %s: HTTP %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("fetch from %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// DedupConflictError records a field-level merge conflict between two
// non-empty values from different sources. It is observability data,
// not a failure: the merge policy resolves the value.
type DedupConflictError struct {
	ResourceID int64
	Field      string
	Existing   string
	Incoming   string
	Source     string
}

func (e *DedupConflictError) Error() string {
	return fmt.Sprintf("merge conflict on resource %d field %s: kept %q, rejected %q from %s",
		e.ResourceID, e.Field, e.Existing, e.Incoming, e.Source)
}

// EmbeddingUnavailableError means the embedding provider failed or
// timed out. Search degrades to lexical-only scoring instead of
// failing the call.
type EmbeddingUnavailableError struct {
	Err error
}

func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding provider unavailable: %v", e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() error { return e.Err }

// InvalidQueryError rejects a malformed search or coverage request
// (negative limit, empty query with no filters) before any work runs.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}
