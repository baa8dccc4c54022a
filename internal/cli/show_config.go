// internal/cli/show_config.go
package hrdesk

import (
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acmecorp/hrdesk/internal/appconfig"
)

// showConfigCmd implements the 'show config' command, which displays the
// current configuration settings.
var showConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show config settings",
	Long:  `Show config settings ensuring that the YAML config is loaded properly and overridden by flags accordingly. --verbose dumps the full structure with the API key redacted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := GetConfig()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && cfg != nil {
			pp.Println(appconfig.Redacted(*cfg))
			return
		}
		appconfig.ShowConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), cfg)
	},
}

func init() {
	showCmd.AddCommand(showConfigCmd)

	showConfigCmd.Flags().BoolP("verbose", "v", false, "dump the full configuration structure")
}
