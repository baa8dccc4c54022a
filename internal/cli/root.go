// internal/cli/root.go
package hrdesk

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acmecorp/hrdesk/internal/appconfig"
	"github.com/acmecorp/hrdesk/internal/logging"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hrdesk",
	Short: "hrdesk — grounded HR document assistant and attrition analytics",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1) Load config (file or defaults)
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// 2) Materialize the fully merged configuration into currentConfig
		//    (flags > config > defaults). This gives other packages a stable snapshot.
		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.ResolveAPIKey()
		currentConfig = &cfg

		if err := logging.Init(cfg.LogFilePath()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.yaml)")

	rootCmd.PersistentFlags().String("store-backend", "", "vector store backend (sqlite, milvus, or memory)")
	rootCmd.PersistentFlags().Int("retrieval-k", 0, "number of chunks to ground each answer in")
	rootCmd.PersistentFlags().String("log-file", "", "path to the log file")
	rootCmd.PersistentFlags().Bool("metrics", false, "record run statistics")

	_ = viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store-backend"))
	_ = viper.BindPFlag("rag.retrieval_k", rootCmd.PersistentFlags().Lookup("retrieval-k"))
	_ = viper.BindPFlag("paths.log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("metrics.enabled", rootCmd.PersistentFlags().Lookup("metrics"))
}

// initConfig reads in the config file and the .env secrets file if present.
func initConfig() {
	// Secrets (the Azure API key) come from the environment; .env is a
	// convenience for local runs and is never required.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file, tolerating its absence so that
// commands that never call out (attrition, sessions) run on defaults alone.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// serverBaseURL resolves the URL the client commands talk to: an explicit
// --server flag wins, otherwise the configured listen address.
func serverBaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return "http://" + GetConfig().Addr()
}
