// internal/cli/serve_entry.go
package hrdesk

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/acmecorp/hrdesk/internal/attrition"
	"github.com/acmecorp/hrdesk/internal/embedding"
	"github.com/acmecorp/hrdesk/internal/history"
	"github.com/acmecorp/hrdesk/internal/llm"
	"github.com/acmecorp/hrdesk/internal/metrics"
	"github.com/acmecorp/hrdesk/internal/rag"
	"github.com/acmecorp/hrdesk/internal/server"
	"github.com/acmecorp/hrdesk/internal/store"
)

// runServe wires every component from the loaded configuration and serves
// until SIGINT or SIGTERM.
func runServe(ctx context.Context) error {
	cfg := GetConfig()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer st.Close()

	embedder, err := embedding.New(*cfg)
	if err != nil {
		return err
	}
	completer, err := llm.New(*cfg)
	if err != nil {
		return err
	}

	hist, err := history.NewStore(cfg.Paths.SessionsDir)
	if err != nil {
		return err
	}

	dataset, err := attrition.Load(cfg.Paths.AttritionCSV)
	if err != nil {
		return fmt.Errorf("loading attrition dataset: %w", err)
	}

	stats := metrics.NewAggregator(cfg.Paths.StatsFile, cfg.Metrics.Enabled)
	defer stats.Close()

	queries := rag.NewService(st, embedder, completer, hist, stats, *cfg)

	srv, err := server.New(queries, hist, dataset, st, stats, *cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
