// internal/cli/attrition_entry.go
package hrdesk

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/acmecorp/hrdesk/internal/attrition"
)

// runAttrition loads the dataset, applies the filter, and prints the
// summary table.
func runAttrition(dimension string, topN int, filter attrition.Filter) error {
	cfg := GetConfig()

	dataset, err := attrition.Load(cfg.Paths.AttritionCSV)
	if err != nil {
		return err
	}

	matched, err := dataset.Filter(filter)
	if err != nil {
		return err
	}
	rows, err := dataset.Summarize(filter, dimension, topN)
	if err != nil {
		return err
	}

	header := color.New(color.FgCyan, color.Bold).SprintFunc()
	warn := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		header(dimension), header("TOTAL"), header("ATTRITED"), header("RETAINED"), header("RATE"))
	for _, row := range rows {
		rate := fmt.Sprintf("%.2f%%", row.AttritionRate)
		if row.AttritionRate >= 25 {
			rate = warn(rate)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", row.Group, row.Total, row.Attrited, row.Retained, rate)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d of %d employees matched the filter\n", len(matched), dataset.Len())
	return nil
}
