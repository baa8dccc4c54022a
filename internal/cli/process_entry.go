// internal/cli/process_entry.go
package hrdesk

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/acmecorp/hrdesk/internal/embedding"
	"github.com/acmecorp/hrdesk/internal/ingest"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/store"
)

// runProcess runs one ingest batch and prints its summary.
func runProcess(ctx context.Context) error {
	cfg := GetConfig()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer st.Close()

	embedder, err := embedding.New(*cfg)
	if err != nil {
		return err
	}

	stats := metrics.NewAggregator(cfg.Paths.StatsFile, cfg.Metrics.Enabled)
	defer stats.Close()

	summary, err := ingest.NewProcessor(st, embedder, stats, *cfg).Run(ctx)
	if err != nil {
		return err
	}

	good := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Printf("Discovered: %d\n", summary.Discovered)
	fmt.Printf("Processed:  %s\n", good(summary.Processed))
	fmt.Printf("Skipped:    %d\n", summary.Skipped)
	if summary.Failed > 0 {
		fmt.Printf("Failed:     %s\n", bad(summary.Failed))
	} else {
		fmt.Printf("Failed:     %d\n", summary.Failed)
	}
	fmt.Printf("Chunks:     %d\n", summary.Chunks)
	fmt.Printf("Duration:   %s\n", summary.Duration.Truncate(time.Millisecond))

	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed; see the log for details", summary.Failed)
	}
	return nil
}
