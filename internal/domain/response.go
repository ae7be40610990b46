package domain

import "time"

// TypeMetrics reports one vector type's contribution to a search.
// Error is non-empty when the type failed or timed out and contributed
// zero results.
type TypeMetrics struct {
	Count    int
	Latency  time.Duration
	AvgScore float64
	Error    string
}

// Response is the final ranked result of one search.
type Response struct {
	Items     []MergedItem
	PerType   map[string]TypeMetrics
	TotalTime time.Duration
	Cached    bool
}
