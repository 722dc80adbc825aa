package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanResult a symbol that produced at least one signal during a scan pass.
type ScanResult struct {
	Symbol     string
	Rules      []RuleName
	Series     Series
	Indicators *IndicatorSet
}

// Summary returns the last-bar summary for presentation.
func (r ScanResult) Summary() Summary {
	return NewSummary(r.Series, r.Indicators)
}

// UnavailableReason why a symbol could not be evaluated.
type UnavailableReason string

const (
	UnavailableInsufficientData UnavailableReason = "insufficient_data"
	UnavailableFetchFailure     UnavailableReason = "fetch_failure"
)

// Unavailable a symbol skipped during a scan pass.
type Unavailable struct {
	Symbol string
	Reason UnavailableReason
	Detail string
}

// Report outcome of one scan pass.
type Report struct {
	ID          uuid.UUID
	StartedAt   time.Time
	FinishedAt  time.Time
	Interval    string
	Rules       []RuleName
	Scanned     int
	Results     []ScanResult
	Unavailable []Unavailable
}

// NewReport starts a report for a pass over the given rules.
func NewReport(interval string, rules []RuleName) *Report {
	return &Report{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Interval:  interval,
		Rules:     rules,
	}
}

// Matched returns the number of symbols with at least one signal.
func (r *Report) Matched() int {
	if r == nil {
		return 0
	}
	return len(r.Results)
}

// ScanRequest what to scan in one pass. Empty Tickers means the constituents of Index.
type ScanRequest struct {
	Index   string
	Tickers []string
	Rules   []RuleName
}
