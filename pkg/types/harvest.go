// Copyright MMU Library, 2026. All rights reserved.

package types

import "time"

// RunStatus is the lifecycle state of a HarvestRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunPartial
}

// RecordError captures one per-record failure during a harvest. Record
// errors never abort the run; they are counted and retained here.
type RecordError struct {
	// Record is a short description of the failing record (title or
	// raw identifier) for operator triage.
	Record string `json:"record" yaml:"record"`
	Err    string `json:"error" yaml:"error"`
}

// maxRecordErrors bounds the per-run error list so a pathological dump
// cannot grow the run record without limit. The Errored count is exact
// regardless.
const maxRecordErrors = 100

// HarvestRun tracks one execution of one harvester against one source.
// It is created when the harvest starts and finalized exactly once.
type HarvestRun struct {
	// ID is a UUID assigned at creation.
	ID     string    `json:"id" yaml:"id"`
	Source string    `json:"source" yaml:"source"`
	Status RunStatus `json:"status" yaml:"status"`

	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	Fetched int `json:"fetched" yaml:"fetched"`
	Created int `json:"created" yaml:"created"`
	Updated int `json:"updated" yaml:"updated"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Errored int `json:"errored" yaml:"errored"`
	Pages   int `json:"pages" yaml:"pages"`

	LastError    string        `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	RecordErrors []RecordError `json:"record_errors,omitempty" yaml:"record_errors,omitempty"`
}

// AddRecordError counts a per-record failure and retains its detail up
// to the retention bound.
func (r *HarvestRun) AddRecordError(record string, err error) {
	r.Errored++
	r.LastError = err.Error()
	if len(r.RecordErrors) < maxRecordErrors {
		r.RecordErrors = append(r.RecordErrors, RecordError{Record: record, Err: err.Error()})
	}
}

// FoldRecordError counts a failure already captured as a RecordError,
// such as a harvester-level decode failure.
func (r *HarvestRun) FoldRecordError(re RecordError) {
	r.Errored++
	r.LastError = re.Err
	if len(r.RecordErrors) < maxRecordErrors {
		r.RecordErrors = append(r.RecordErrors, re)
	}
}

// FinalizeInterrupted closes a run that was cancelled mid-flight. The
// committed counts stand; the status is partial.
func (r *HarvestRun) FinalizeInterrupted() {
	if r.Status.Terminal() {
		return
	}
	r.CompletedAt = time.Now().UTC()
	r.Status = RunPartial
}

// Finalize sets the terminal status exactly once. A run with any
// per-record errors that otherwise completed is partial; failed is
// reserved for a source that never yielded a page.
func (r *HarvestRun) Finalize(fetchFailed bool) {
	if r.Status.Terminal() {
		return
	}
	r.CompletedAt = time.Now().UTC()
	switch {
	case fetchFailed && r.Pages == 0:
		r.Status = RunFailed
	case fetchFailed || r.Errored > 0:
		r.Status = RunPartial
	default:
		r.Status = RunSucceeded
	}
}
