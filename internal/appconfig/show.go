package appconfig

import (
	"fmt"
	"io"
)

// ShowConfig prints the current configuration summary. The API key is
// reported only as present or absent.
func ShowConfig(out io.Writer, file string, cfg *Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	if cfg == nil {
		fmt.Fprintln(out, "No configuration available.")
		return
	}

	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintf(out, "  Listen Address:     %s\n", cfg.Addr())
	fmt.Fprintf(out, "  Docs Dir:           %s\n", cfg.Paths.DocsDir)
	fmt.Fprintf(out, "  Archive Dir:        %s\n", cfg.Paths.ArchiveDir)
	fmt.Fprintf(out, "  Sessions Dir:       %s\n", cfg.Paths.SessionsDir)
	fmt.Fprintf(out, "  Attrition CSV:      %s\n", cfg.Paths.AttritionCSV)
	fmt.Fprintf(out, "  Stats File:         %s\n", cfg.Paths.StatsFile)
	fmt.Fprintf(out, "  Log File:           %s\n", cfg.LogFilePath())
	fmt.Fprintf(out, "  Azure Endpoint:     %s\n", cfg.Azure.Endpoint)
	fmt.Fprintf(out, "  API Version:        %s\n", cfg.Azure.APIVersion)
	fmt.Fprintf(out, "  Chat Deployment:    %s\n", cfg.Azure.ChatDeployment)
	fmt.Fprintf(out, "  Embedding Deployment: %s\n", cfg.Azure.EmbeddingDeployment)
	fmt.Fprintf(out, "  API Key:            %s\n", keyStatus(cfg.Azure.APIKey))
	fmt.Fprintf(out, "  Store Backend:      %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "  Store Dimension:    %d\n", cfg.Store.Dimension)
	switch cfg.Store.Backend {
	case BackendSQLite:
		fmt.Fprintf(out, "  SQLite Path:        %s\n", cfg.Store.SQLitePath)
	case BackendMilvus:
		fmt.Fprintf(out, "  Milvus Address:     %s\n", cfg.Store.MilvusAddress)
		fmt.Fprintf(out, "  Milvus Collection:  %s\n", cfg.Store.MilvusCollection)
	}
	fmt.Fprintf(out, "  Chunk Size:         %d chars\n", cfg.RAG.ChunkSize)
	fmt.Fprintf(out, "  Chunk Overlap:      %d chars\n", cfg.RAG.ChunkOverlap)
	fmt.Fprintf(out, "  Retrieval K:        %d\n", cfg.RAG.RetrievalK)
	fmt.Fprintf(out, "  Max Context Chars:  %d\n", cfg.RAG.MaxContextChars)
	fmt.Fprintf(out, "  History Turns:      %d\n", cfg.RAG.HistoryTurns)
	fmt.Fprintf(out, "  Max Subqueries:     %d\n", cfg.RAG.MaxSubqueries)
	fmt.Fprintf(out, "  Rewrite Enabled:    %v\n", cfg.RAG.RewriteEnabled)
	fmt.Fprintf(out, "  Temperature:        %.2f\n", cfg.Generation.Temperature)
	fmt.Fprintf(out, "  Max Tokens:         %d\n", cfg.Generation.MaxTokens)
	fmt.Fprintf(out, "  Top P:              %.2f\n", cfg.Generation.TopP)
	fmt.Fprintf(out, "  Request Timeout:    %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Max Retries:        %d\n", cfg.Client.MaxRetries)
	fmt.Fprintf(out, "  Metrics Enabled:    %v\n", cfg.Metrics.Enabled)
}

// Redacted returns a copy of the config safe for verbose dumps.
func Redacted(cfg Config) Config {
	if cfg.Azure.APIKey != "" {
		cfg.Azure.APIKey = "********"
	}
	return cfg
}

func keyStatus(key string) string {
	if key == "" {
		return "(not set)"
	}
	return "(set)"
}
