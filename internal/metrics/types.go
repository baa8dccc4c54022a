// internal/metrics/types.go
package metrics

import "time"

// Stats is the top-level document for the application's run statistics.
type Stats struct {
	LastUpdatedUTC time.Time   `json:"last_updated_utc"`
	Ingest         IngestStats `json:"ingest"`
	Query          QueryStats  `json:"query"`
}

// IngestStats aggregates document processing runs.
type IngestStats struct {
	TotalDocuments int64 `json:"total_documents"`
	TotalChunks    int64 `json:"total_chunks"`

	ChunksPerDocument RunningStat `json:"chunks_per_document"`
	DurationMillis    RunningStat `json:"duration_ms"`
}

// QueryStats aggregates answered questions.
type QueryStats struct {
	TotalQueries int64 `json:"total_queries"`

	Subqueries      RunningStat `json:"subqueries"`
	RetrievedChunks RunningStat `json:"retrieved_chunks"`
	ContextChars    RunningStat `json:"context_chars"`
	DurationMillis  RunningStat `json:"duration_ms"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
// It uses Welford's online algorithm so values never need to be kept.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"-"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}
