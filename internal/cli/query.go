// internal/cli/query.go
package hrdesk

import (
	"github.com/spf13/cobra"
)

// queryCmd asks one question against a running server.
var queryCmd = &cobra.Command{
	Use:   "query \"question\"",
	Short: "Ask a single question and print the grounded answer",
	Long:  `The 'query' command sends one question to a running hrdesk server and prints the answer with the document chunks it was grounded in. Use --session to continue an existing conversation.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverFlag, _ := cmd.Flags().GetString("server")
		sessionID, _ := cmd.Flags().GetString("session")
		return runQuery(cmd.Context(), serverBaseURL(serverFlag), sessionID, args[0])
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("server", "s", "", "base URL of the hrdesk server (defaults to the configured listen address)")
	queryCmd.Flags().String("session", "", "session id to continue")
}
