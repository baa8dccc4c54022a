// internal/cli/chat.go
package hrdesk

import (
	"github.com/spf13/cobra"

	"github.com/acmecorp/hrdesk/internal/tui"
)

var startChat = tui.StartChat

// chatCmd represents the 'chat' command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `The 'chat' command opens a terminal chat against a running hrdesk server. Follow-up questions carry the conversation context of the session.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverFlag, _ := cmd.Flags().GetString("server")
		sessionID, _ := cmd.Flags().GetString("session")
		return startChat(cmd.Context(), serverBaseURL(serverFlag), sessionID, GetConfig().RequestTimeout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("server", "s", "", "base URL of the hrdesk server (defaults to the configured listen address)")
	chatCmd.Flags().String("session", "", "session id to resume")
}
