// internal/metrics/aggregator.go
// Package metrics keeps running statistics about ingest and query activity
// and persists them to a JSON file.
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/acmecorp/hrdesk/internal/fault"
	"github.com/acmecorp/hrdesk/internal/logging"
)

// Aggregator collects run statistics. A disabled aggregator accepts records
// and snapshots but never touches the filesystem.
type Aggregator struct {
	mutex    sync.Mutex
	stats    Stats
	filePath string
	enabled  bool
	ticker   *time.Ticker
	done     chan struct{}
}

// NewAggregator creates an aggregator backed by the given file. When enabled,
// previously saved statistics are loaded and a background flush runs once a
// minute until Close.
func NewAggregator(filePath string, enabled bool) *Aggregator {
	agg := &Aggregator{
		filePath: filePath,
		enabled:  enabled && filePath != "",
	}
	if !agg.enabled {
		return agg
	}

	agg.load()

	agg.ticker = time.NewTicker(1 * time.Minute)
	agg.done = make(chan struct{})
	go func() {
		for {
			select {
			case <-agg.ticker.C:
				agg.save()
			case <-agg.done:
				return
			}
		}
	}()

	return agg
}

// load reads statistics from the JSON file into memory.
func (a *Aggregator) load() {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	data, err := os.ReadFile(a.filePath)
	if err != nil {
		return
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return
	}
	a.stats = stats
}

// save writes the current statistics from memory to the JSON file.
func (a *Aggregator) save() {
	logging.LogEvent("[METRICS] Saving run statistics to %s", a.filePath)
	a.mutex.Lock()
	defer a.mutex.Unlock()

	data, err := json.MarshalIndent(a.stats, "", "  ")
	if err != nil {
		return
	}

	if dir := filepath.Dir(a.filePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	os.WriteFile(a.filePath, data, 0644)
}

// RecordIngest updates the ingest statistics with one processed document.
func (a *Aggregator) RecordIngest(chunks int, durationMillis float64) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.stats.LastUpdatedUTC = time.Now().UTC()
	a.stats.Ingest.TotalDocuments++
	a.stats.Ingest.TotalChunks += int64(chunks)
	updateRunningStat(&a.stats.Ingest.ChunksPerDocument, float64(chunks))
	updateRunningStat(&a.stats.Ingest.DurationMillis, durationMillis)
}

// RecordQuery updates the query statistics with one answered question.
func (a *Aggregator) RecordQuery(subqueries, retrievedChunks, contextChars int, durationMillis float64) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.stats.LastUpdatedUTC = time.Now().UTC()
	a.stats.Query.TotalQueries++
	updateRunningStat(&a.stats.Query.Subqueries, float64(subqueries))
	updateRunningStat(&a.stats.Query.RetrievedChunks, float64(retrievedChunks))
	updateRunningStat(&a.stats.Query.ContextChars, float64(contextChars))
	updateRunningStat(&a.stats.Query.DurationMillis, durationMillis)
}

// Snapshot returns a copy of the current statistics.
func (a *Aggregator) Snapshot() Stats {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.stats
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// Close stops the background flush and saves the statistics.
func (a *Aggregator) Close() {
	if !a.enabled {
		return
	}
	a.ticker.Stop()
	close(a.done)
	a.save()
}

// LoadStats reads previously saved statistics from filePath without
// creating an aggregator. A missing file yields zero stats.
func LoadStats(filePath string) (Stats, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, fault.Errorf(fault.KindIO, "reading stats file %s: %w", filePath, err)
	}
	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return Stats{}, fault.Errorf(fault.KindIO, "parsing stats file %s: %w", filePath, err)
	}
	return stats, nil
}
