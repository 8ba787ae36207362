package models

import "time"

// SystemMetrics is a lightweight runtime summary exposed next to the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64    `json:"cacheHitRatio"`
	CacheHits                uint64     `json:"cacheHits"`
	CacheMisses              uint64     `json:"cacheMisses"`
	RequestsTotal            uint64     `json:"requestsTotal"`
	AverageRequestDurationMs float64    `json:"averageRequestDurationMs"`
	SyncRuns                 uint64     `json:"syncRuns"`
	LastSyncAt               *time.Time `json:"lastSyncAt,omitempty"`
	Goroutines               int        `json:"goroutines"`
	GeneratedAt              time.Time  `json:"generatedAt"`
}
