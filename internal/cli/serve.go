// internal/cli/serve.go
package hrdesk

import (
	"github.com/spf13/cobra"
)

// serveCmd runs the HTTP service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the hrdesk HTTP service",
	Long:  `The 'serve' command starts the HTTP service exposing the chat, attrition, and operational endpoints until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
