// internal/cli/stats_entry.go
package hrdesk

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/acmecorp/hrdesk/internal/metrics"
)

// runStats loads and renders the persisted run statistics.
func runStats() error {
	cfg := GetConfig()

	stats, err := metrics.LoadStats(cfg.Paths.StatsFile)
	if err != nil {
		return err
	}
	if stats.Ingest.TotalDocuments == 0 && stats.Query.TotalQueries == 0 {
		fmt.Println("No run statistics recorded yet. Enable metrics and run 'hrdesk process' or 'hrdesk serve'.")
		return nil
	}

	section := color.New(color.FgCyan, color.Bold).SprintFunc()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "%s\t\t\t\t\n", section("INGEST"))
	fmt.Fprintf(w, "documents\t%d\t\t\t\n", stats.Ingest.TotalDocuments)
	fmt.Fprintf(w, "chunks\t%d\t\t\t\n", stats.Ingest.TotalChunks)
	writeRunningStat(w, "chunks/document", stats.Ingest.ChunksPerDocument, "%.1f")
	writeRunningStat(w, "duration (ms)", stats.Ingest.DurationMillis, "%.0f")

	fmt.Fprintf(w, "\t\t\t\t\n")
	fmt.Fprintf(w, "%s\t\t\t\t\n", section("QUERY"))
	fmt.Fprintf(w, "queries\t%d\t\t\t\n", stats.Query.TotalQueries)
	writeRunningStat(w, "subqueries", stats.Query.Subqueries, "%.1f")
	writeRunningStat(w, "retrieved chunks", stats.Query.RetrievedChunks, "%.1f")
	writeRunningStat(w, "context chars", stats.Query.ContextChars, "%.0f")
	writeRunningStat(w, "duration (ms)", stats.Query.DurationMillis, "%.0f")

	if err := w.Flush(); err != nil {
		return err
	}
	if !stats.LastUpdatedUTC.IsZero() {
		fmt.Printf("\nLast updated: %s\n", stats.LastUpdatedUTC.Format("2006-01-02 15:04:05 UTC"))
	}
	return nil
}

// writeRunningStat prints one mean/min/max row; stats with no samples are
// skipped.
func writeRunningStat(w *tabwriter.Writer, label string, rs metrics.RunningStat, valueFormat string) {
	if rs.Count == 0 {
		return
	}
	format := fmt.Sprintf("%%s\tmean %s\tmin %s\tmax %s\t\n", valueFormat, valueFormat, valueFormat)
	fmt.Fprintf(w, format, label, rs.Mean, rs.Min, rs.Max)
}
