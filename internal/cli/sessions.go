// internal/cli/sessions.go
package hrdesk

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acmecorp/hrdesk/internal/history"
)

// sessionsCmd groups conversation-session commands.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage persisted conversation sessions",
}

// sessionsListCmd lists every persisted session.
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.NewStore(GetConfig().Paths.SessionsDir)
		if err != nil {
			return err
		}
		sessions, err := hist.List()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}

		header := color.New(color.FgCyan, color.Bold).SprintFunc()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\n", header("SESSION"), header("TURNS"), header("LAST ACTIVITY"))
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%d\t%s\n", s.ID, s.Turns, s.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

// sessionsEndCmd deletes one session's history.
var sessionsEndCmd = &cobra.Command{
	Use:   "end session_id",
	Short: "Delete a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hist, err := history.NewStore(GetConfig().Paths.SessionsDir)
		if err != nil {
			return err
		}
		if err := hist.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Session %s removed.\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsEndCmd)
}
