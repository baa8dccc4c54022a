// internal/attrition/summary.go
package attrition

import (
	"math"
	"sort"

	"github.com/acmecorp/hrdesk/internal/fault"
)

// SummaryRow is one group's attrition aggregate.
type SummaryRow struct {
	Group         string  `json:"group"`
	Total         int     `json:"total"`
	Attrited      int     `json:"attrited"`
	Retained      int     `json:"retained"`
	AttritionRate float64 `json:"attrition_rate"`
}

// Summarize filters the dataset, groups it along one dimension, and returns
// per-group attrition rates sorted worst first. topN > 0 keeps only the
// highest rates. Row totals always sum to the filtered record count.
func (d *Dataset) Summarize(f Filter, dimension string, topN int) ([]SummaryRow, error) {
	if !ValidDimension(dimension) {
		return nil, fault.Errorf(fault.KindValidation, "unknown dimension %q", dimension)
	}

	records, err := d.Filter(f)
	if err != nil {
		return nil, err
	}

	type tally struct {
		total    int
		attrited int
	}
	groups := make(map[string]*tally)
	for _, record := range records {
		group := groupValue(record, dimension)
		t, ok := groups[group]
		if !ok {
			t = &tally{}
			groups[group] = t
		}
		t.total++
		if record.Attrited {
			t.attrited++
		}
	}

	rows := make([]SummaryRow, 0, len(groups))
	for group, t := range groups {
		rows = append(rows, SummaryRow{
			Group:         group,
			Total:         t.total,
			Attrited:      t.attrited,
			Retained:      t.total - t.attrited,
			AttritionRate: rate(t.attrited, t.total),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AttritionRate != rows[j].AttritionRate {
			return rows[i].AttritionRate > rows[j].AttritionRate
		}
		return rows[i].Group < rows[j].Group
	})

	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows, nil
}

// rate is the attrition percentage rounded to two decimals.
func rate(attrited, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(attrited)/float64(total)*10000) / 100
}
