package types

import "time"

// MetricPoint represents one point of a metric series
type MetricPoint struct {
	Timestamp time.Time `json:"t"`
	Value     float64   `json:"v"`
}

// MetricsSeries represents the synthesized 24h trend for core metrics
type MetricsSeries struct {
	Timestamp time.Time     `json:"timestamp"`
	Range     string        `json:"range"`
	Synthetic bool          `json:"synthetic_trend"`
	CPU       []MetricPoint `json:"cpu"`
	Memory    []MetricPoint `json:"memory"`
}
