// internal/cli/stats.go
package hrdesk

import (
	"github.com/spf13/cobra"
)

// statsCmd prints the persisted run statistics.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ingest and query run statistics",
	Long:  `The 'stats' command prints the running statistics the service records while processing documents and answering questions.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
