// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.yaml"
	// legacyConfigPath is the path the configuration file lived at before it moved under config/.
	legacyConfigPath = "config.yaml"
	// defaultRequestTimeout is the default timeout for calls to the hosted deployments.
	defaultRequestTimeout = 60 * time.Second
	// defaultShutdownTimeout bounds how long the HTTP server drains on shutdown.
	defaultShutdownTimeout = 10 * time.Second
	// apiKeyEnv is the environment variable carrying the Azure OpenAI key.
	apiKeyEnv = "HRDESK_AZURE_API_KEY"
	// apiKeyEnvFallback is accepted for compatibility with existing deployments.
	apiKeyEnvFallback = "AZURE_OPENAI_API_KEY"
)

// StoreBackend names for Store.Backend.
const (
	BackendSQLite = "sqlite"
	BackendMilvus = "milvus"
	BackendMemory = "memory"
)

// Config represents the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Azure      AzureConfig      `yaml:"azure" mapstructure:"azure"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	RAG        RAGConfig        `yaml:"rag" mapstructure:"rag"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Client     ClientConfig     `yaml:"client" mapstructure:"client"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`

	ConfigPath string `yaml:"-" mapstructure:"-"`
}

// ServerConfig controls the HTTP service listener.
type ServerConfig struct {
	Host                   string `yaml:"host" mapstructure:"host"`
	Port                   int    `yaml:"port" mapstructure:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// PathsConfig locates the filesystem surfaces the application reads and writes.
type PathsConfig struct {
	DocsDir      string `yaml:"docs_dir" mapstructure:"docs_dir"`
	ArchiveDir   string `yaml:"archive_dir" mapstructure:"archive_dir"`
	SessionsDir  string `yaml:"sessions_dir" mapstructure:"sessions_dir"`
	DataDir      string `yaml:"data_dir" mapstructure:"data_dir"`
	AttritionCSV string `yaml:"attrition_csv" mapstructure:"attrition_csv"`
	StatsFile    string `yaml:"stats_file" mapstructure:"stats_file"`
	LogFile      string `yaml:"log_file" mapstructure:"log_file"`
}

// AzureConfig identifies the hosted deployments. The API key is taken from
// the environment, never from the file.
type AzureConfig struct {
	Endpoint            string `yaml:"endpoint" mapstructure:"endpoint"`
	APIVersion          string `yaml:"api_version" mapstructure:"api_version"`
	ChatDeployment      string `yaml:"chat_deployment" mapstructure:"chat_deployment"`
	EmbeddingDeployment string `yaml:"embedding_deployment" mapstructure:"embedding_deployment"`

	APIKey string `yaml:"-" mapstructure:"-"`
}

// StoreConfig selects and parameterizes the vector store backend.
type StoreConfig struct {
	Backend          string `yaml:"backend" mapstructure:"backend"`
	Dimension        int    `yaml:"dimension" mapstructure:"dimension"`
	SQLitePath       string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MilvusAddress    string `yaml:"milvus_address" mapstructure:"milvus_address"`
	MilvusCollection string `yaml:"milvus_collection" mapstructure:"milvus_collection"`
}

// RAGConfig tunes chunking, retrieval, and prompt assembly.
type RAGConfig struct {
	ChunkSize       int  `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	RetrievalK      int  `yaml:"retrieval_k" mapstructure:"retrieval_k"`
	MaxContextChars int  `yaml:"max_context_chars" mapstructure:"max_context_chars"`
	HistoryTurns    int  `yaml:"history_turns" mapstructure:"history_turns"`
	MaxSubqueries   int  `yaml:"max_subqueries" mapstructure:"max_subqueries"`
	RewriteEnabled  bool `yaml:"rewrite_enabled" mapstructure:"rewrite_enabled"`
}

// GenerationConfig carries the sampling parameters sent to the chat deployment.
type GenerationConfig struct {
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`
}

// ClientConfig tunes the HTTP clients for the hosted deployments.
type ClientConfig struct {
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	MaxRetries            int `yaml:"max_retries" mapstructure:"max_retries"`
}

// MetricsConfig toggles run-statistics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// Addr returns the host:port the HTTP service listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RequestTimeout returns the timeout for calls to the hosted deployments,
// falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.Client.RequestTimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.Client.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns how long the HTTP server waits for in-flight
// requests on shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return defaultShutdownTimeout
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.Paths.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "hrdesk.log"
}

// ApplyDefaults fills unset fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if strings.TrimSpace(c.Paths.DocsDir) == "" {
		c.Paths.DocsDir = "supporting_docs"
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = "processed_docs"
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = "data"
	}
	if strings.TrimSpace(c.Paths.SessionsDir) == "" {
		c.Paths.SessionsDir = "data/sessions"
	}
	if strings.TrimSpace(c.Paths.AttritionCSV) == "" {
		c.Paths.AttritionCSV = "data/hr_employee_attrition.csv"
	}
	if strings.TrimSpace(c.Paths.StatsFile) == "" {
		c.Paths.StatsFile = "data/run_stats.json"
	}
	if strings.TrimSpace(c.Azure.APIVersion) == "" {
		c.Azure.APIVersion = "2024-02-01"
	}
	if strings.TrimSpace(c.Store.Backend) == "" {
		c.Store.Backend = BackendSQLite
	}
	if c.Store.Dimension <= 0 {
		c.Store.Dimension = 1536
	}
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = "data/chunks.db"
	}
	if strings.TrimSpace(c.Store.MilvusCollection) == "" {
		c.Store.MilvusCollection = "hr_documents"
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = 500
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 50
	} else if c.RAG.ChunkOverlap < 0 {
		c.RAG.ChunkOverlap = 0
	}
	if c.RAG.RetrievalK <= 0 {
		c.RAG.RetrievalK = 5
	}
	if c.RAG.MaxContextChars <= 0 {
		c.RAG.MaxContextChars = 6000
	}
	if c.RAG.HistoryTurns <= 0 {
		c.RAG.HistoryTurns = 6
	}
	if c.RAG.MaxSubqueries <= 0 {
		c.RAG.MaxSubqueries = 3
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 800
	}
	if c.Generation.TopP <= 0 {
		c.Generation.TopP = 0.95
	}
	if c.Client.RequestTimeoutSeconds <= 0 {
		c.Client.RequestTimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if c.Client.MaxRetries < 0 {
		c.Client.MaxRetries = 0
	}
}

// Validate rejects configurations the components cannot run with. Remote
// deployment settings are checked by the clients that need them, so
// commands that never call out (attrition, sessions) work without them.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range (1..65535)", c.Server.Port)
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendMilvus, BackendMemory:
	default:
		return fmt.Errorf("store.backend %q invalid (expected %q, %q, or %q)", c.Store.Backend, BackendSQLite, BackendMilvus, BackendMemory)
	}
	if c.Store.Backend == BackendMilvus && strings.TrimSpace(c.Store.MilvusAddress) == "" {
		return errors.New("store.milvus_address is required when store.backend is milvus")
	}
	if c.Store.Dimension <= 0 {
		return fmt.Errorf("store.dimension must be positive, got %d", c.Store.Dimension)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap %d must be smaller than rag.chunk_size %d", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.RetrievalK <= 0 {
		return fmt.Errorf("rag.retrieval_k must be positive, got %d", c.RAG.RetrievalK)
	}
	return nil
}

// ResolveAPIKey reads the Azure API key from the environment and stores it
// on the config. Returns false when no key is present.
func (c *Config) ResolveAPIKey() bool {
	for _, name := range []string{apiKeyEnv, apiKeyEnvFallback} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			c.Azure.APIKey = v
			return true
		}
	}
	return false
}

// Load reads the application configuration from the specified path, with
// fallback to a legacy path, and applies defaults and validation.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
