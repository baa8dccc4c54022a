// internal/cli/process.go
package hrdesk

import (
	"github.com/spf13/cobra"
)

// processCmd runs one document-ingestion batch.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Ingest pending documents into the vector store",
	Long:  `The 'process' command chunks, embeds, and stores every document waiting in the docs directory, then archives the sources it handled. Documents that fail are left in place for the next run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
