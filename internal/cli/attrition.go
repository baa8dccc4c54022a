// internal/cli/attrition.go
package hrdesk

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acmecorp/hrdesk/internal/attrition"
)

// attritionCmd summarizes the employee attrition dataset.
var attritionCmd = &cobra.Command{
	Use:   "attrition",
	Short: "Summarize attrition rates along one dimension",
	Long:  `The 'attrition' command groups the employee attrition dataset along one dimension and prints per-group counts and attrition rates, worst first. Filters narrow the dataset before grouping.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dimension, _ := cmd.Flags().GetString("dimension")
		topN, _ := cmd.Flags().GetInt("top")
		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		return runAttrition(dimension, topN, filter)
	},
}

func init() {
	rootCmd.AddCommand(attritionCmd)

	attritionCmd.Flags().StringP("dimension", "d", "Department",
		fmt.Sprintf("dimension to group by (%s)", strings.Join(attrition.Dimensions(), ", ")))
	attritionCmd.Flags().IntP("top", "n", 0, "keep only the N highest attrition rates (0 = all)")
	attritionCmd.Flags().StringSlice("department", nil, "filter to these departments")
	attritionCmd.Flags().StringSlice("role", nil, "filter to these job roles")
	attritionCmd.Flags().StringSlice("gender", nil, "filter to these genders")
	attritionCmd.Flags().StringSlice("age-group", nil, "filter to these age groups (18-30, 31-40, 41-50, 50+)")
	attritionCmd.Flags().StringSlice("tenure", nil, "filter to these tenure bands (0-2 yrs, 3-5 yrs, 6-10 yrs, 10+ yrs)")
	attritionCmd.Flags().StringSlice("income", nil, "filter to these income bands (<5K, 5K-10K, 10K-15K, 15K+)")
	attritionCmd.Flags().StringSlice("satisfaction", nil, "filter to these job satisfaction levels (Bad, Average, Great)")
	attritionCmd.Flags().String("overtime", "", "filter by overtime (yes or no)")
}

// filterFromFlags builds the dataset filter from the command's flags.
func filterFromFlags(cmd *cobra.Command) (attrition.Filter, error) {
	var filter attrition.Filter
	filter.Departments, _ = cmd.Flags().GetStringSlice("department")
	filter.JobRoles, _ = cmd.Flags().GetStringSlice("role")
	filter.Genders, _ = cmd.Flags().GetStringSlice("gender")
	filter.AgeGroups, _ = cmd.Flags().GetStringSlice("age-group")
	filter.TenureBands, _ = cmd.Flags().GetStringSlice("tenure")
	filter.IncomeBands, _ = cmd.Flags().GetStringSlice("income")
	filter.Satisfaction, _ = cmd.Flags().GetStringSlice("satisfaction")

	overtime, _ := cmd.Flags().GetString("overtime")
	switch strings.ToLower(strings.TrimSpace(overtime)) {
	case "":
	case "yes", "true":
		yes := true
		filter.OverTime = &yes
	case "no", "false":
		no := false
		filter.OverTime = &no
	default:
		return attrition.Filter{}, fmt.Errorf("--overtime must be yes or no, got %q", overtime)
	}
	return filter, nil
}
