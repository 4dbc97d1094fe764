package model

import "time"

// CacheEntry is a cached, validated result set for one query fingerprint.
type CacheEntry struct {
	Fingerprint string            `json:"fingerprint"`
	Kind        RecordKind        `json:"kind"`
	Records     []ValidatedRecord `json:"records"`
	CachedAt    time.Time         `json:"cached_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Expired reports whether the entry must be treated as absent at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// OutcomeStatus classifies how one adapter call ended.
type OutcomeStatus string

const (
	OutcomeOK          OutcomeStatus = "ok"
	OutcomeError       OutcomeStatus = "error"
	OutcomeTimeout     OutcomeStatus = "timeout"
	OutcomeRateLimited OutcomeStatus = "rate_limited"
	OutcomeCircuitOpen OutcomeStatus = "circuit_open"
	OutcomeSkipped     OutcomeStatus = "skipped"
)

// Outcome records one adapter invocation.
type Outcome struct {
	Adapter  string        `json:"adapter"`
	Tier     Source        `json:"tier"`
	Status   OutcomeStatus `json:"status"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Stats summarizes the work done for one request.
type Stats struct {
	Candidates int            `json:"candidates"`
	Validated  int            `json:"validated"`
	Rejected   int            `json:"rejected"`
	Duplicates int            `json:"duplicates"`
	Rejections map[string]int `json:"rejections,omitempty"`
	Outcomes   []Outcome      `json:"outcomes,omitempty"`
	AICostUSD  float64        `json:"ai_cost_usd,omitempty"`
}

// Response is the result of one aggregation.
type Response struct {
	Records     []ValidatedRecord `json:"records"`
	Source      Source            `json:"source"`
	Cached      bool              `json:"cached"`
	FetchedAt   time.Time         `json:"fetched_at"`
	Fingerprint string            `json:"fingerprint"`
	Stats       Stats             `json:"stats"`
}
