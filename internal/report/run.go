package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/netlabgo/netmeter/internal/probe"
)

// Run is one measurement run: the page that seeded it, the probe
// results, and any data drained from the exchange service.
type Run struct {
	// RunID uniquely identifies the run across reports and mails.
	RunID string `json:"run_id"`

	// Page is the URL the target list was scraped from, when the run
	// started from a page.
	Page string `json:"page,omitempty"`

	// Workers is the probe pool concurrency used.
	Workers int `json:"workers"`

	// StartedAt and FinishedAt bound the run in wall-clock time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Results are the timed targets, in completion order.
	Results []probe.Result `json:"results"`

	// Exchange carries results drained from the data exchange service,
	// when the run used one.
	Exchange map[string]any `json:"exchange,omitempty"`
}

// NewRun creates a Run stamped with a fresh ID and start time.
func NewRun(page string, workers int) *Run {
	return &Run{
		RunID:     uuid.NewString(),
		Page:      page,
		Workers:   workers,
		StartedAt: time.Now().UTC(),
	}
}

// Finish records the results and the end time.
func (r *Run) Finish(results []probe.Result) {
	r.Results = results
	r.FinishedAt = time.Now().UTC()
}

// Duration is the wall-clock span of the run.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// TotalBytes sums the bytes downloaded across all results.
func (r *Run) TotalBytes() int64 {
	var total int64
	for _, result := range r.Results {
		if result.Size > 0 {
			total += result.Size
		}
	}
	return total
}

// MeanResponseTime averages the wall-clock response times. Zero when
// the run produced no results.
func (r *Run) MeanResponseTime() time.Duration {
	if len(r.Results) == 0 {
		return 0
	}
	var total time.Duration
	for _, result := range r.Results {
		total += result.ResponseTime
	}
	return total / time.Duration(len(r.Results))
}

// MeanOverhead averages the CPU-time error terms. Zero when the run
// produced no results.
func (r *Run) MeanOverhead() time.Duration {
	if len(r.Results) == 0 {
		return 0
	}
	var total time.Duration
	for _, result := range r.Results {
		total += result.Overhead
	}
	return total / time.Duration(len(r.Results))
}

// Slowest returns the result with the largest response time, or absent
// when the run produced none.
func (r *Run) Slowest() (probe.Result, bool) {
	if len(r.Results) == 0 {
		return probe.Result{}, false
	}
	slowest := r.Results[0]
	for _, result := range r.Results[1:] {
		if result.ResponseTime > slowest.ResponseTime {
			slowest = result
		}
	}
	return slowest, true
}
