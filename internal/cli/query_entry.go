// internal/cli/query_entry.go
package hrdesk

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/acmecorp/hrdesk/internal/apiclient"
)

// runQuery sends one question and prints the grounded answer.
func runQuery(ctx context.Context, serverURL, sessionID, question string) error {
	cfg := GetConfig()
	api := apiclient.New(serverURL, cfg.RequestTimeout())

	result, err := api.Ask(ctx, sessionID, question)
	if err != nil {
		return err
	}

	fmt.Println(result.Answer)
	fmt.Println()

	dim := color.New(color.Faint).SprintFunc()
	if len(result.GroundingChunkIDs) == 0 {
		fmt.Println(dim("(no grounding chunks)"))
	} else {
		fmt.Println(dim("Sources:"))
		for _, id := range result.GroundingChunkIDs {
			fmt.Printf("  %s\n", dim(id))
		}
	}
	fmt.Printf("\n%s\n", dim("session: "+result.SessionID))
	return nil
}
