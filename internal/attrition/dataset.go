// internal/attrition/dataset.go
// Package attrition aggregates the read-only employee attrition dataset for
// charting: filters, grouping buckets, and per-group attrition rates.
package attrition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/acmecorp/hrdesk/internal/fault"
)

// Record is one employee row, parsed into typed fields.
type Record struct {
	EmployeeID              string
	Attrited                bool
	Department              string
	JobRole                 string
	Gender                  string
	Age                     int
	MonthlyIncome           int
	OverTime                bool
	JobSatisfaction         int
	WorkLifeBalance         int
	EnvironmentSatisfaction int
	PerformanceRating       int
	YearsAtCompany          int
	YearsInCurrentRole      int
	DistanceFromHome        int
	EducationLevel          int
	TrainingTimesLastYear   int
}

// Dataset holds the parsed records plus the distinct categorical values used
// to validate filters.
type Dataset struct {
	records     []Record
	departments []string
	jobRoles    []string
}

var requiredColumns = []string{
	"EmployeeID", "Attrition", "Department", "JobRole", "Gender", "Age",
	"MonthlyIncome", "OverTime", "JobSatisfaction", "WorkLifeBalance",
	"EnvironmentSatisfaction", "PerformanceRating", "YearsAtCompany",
	"YearsInCurrentRole", "DistanceFromHome", "EducationLevel",
	"TrainingTimesLastYear",
}

// Load reads the attrition CSV. Column order does not matter; columns are
// located by header name. Any unparseable cell fails the load with the row
// and column named.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("open attrition dataset: %w", err))
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fault.Wrap(fault.KindIO, fmt.Errorf("read attrition header: %w", err))
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, fault.Errorf(fault.KindIO, "attrition dataset missing column %q", name)
		}
	}

	dataset := &Dataset{}
	departments := make(map[string]struct{})
	jobRoles := make(map[string]struct{})

	for rowNum := 2; ; rowNum++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fault.Wrap(fault.KindIO, fmt.Errorf("read attrition row %d: %w", rowNum, err))
		}

		record, err := parseRecord(row, columns, rowNum)
		if err != nil {
			return nil, err
		}
		dataset.records = append(dataset.records, record)
		departments[record.Department] = struct{}{}
		jobRoles[record.JobRole] = struct{}{}
	}

	dataset.departments = sortedKeys(departments)
	dataset.jobRoles = sortedKeys(jobRoles)
	return dataset, nil
}

// Len reports the number of records in the dataset.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Departments returns the distinct departments, sorted.
func (d *Dataset) Departments() []string {
	return d.departments
}

// JobRoles returns the distinct job roles, sorted.
func (d *Dataset) JobRoles() []string {
	return d.jobRoles
}

func parseRecord(row []string, columns map[string]int, rowNum int) (Record, error) {
	cell := func(name string) string {
		return strings.TrimSpace(row[columns[name]])
	}
	number := func(name string) (int, error) {
		value, err := strconv.Atoi(cell(name))
		if err != nil {
			return 0, fault.Errorf(fault.KindIO,
				"attrition row %d: column %s: invalid number %q", rowNum, name, cell(name))
		}
		return value, nil
	}
	yesNo := func(name string) (bool, error) {
		switch strings.ToLower(cell(name)) {
		case "yes":
			return true, nil
		case "no":
			return false, nil
		default:
			return false, fault.Errorf(fault.KindIO,
				"attrition row %d: column %s: expected Yes or No, got %q", rowNum, name, cell(name))
		}
	}

	record := Record{
		EmployeeID: cell("EmployeeID"),
		Department: cell("Department"),
		JobRole:    cell("JobRole"),
		Gender:     cell("Gender"),
	}

	var err error
	if record.Attrited, err = yesNo("Attrition"); err != nil {
		return Record{}, err
	}
	if record.OverTime, err = yesNo("OverTime"); err != nil {
		return Record{}, err
	}

	numbers := []struct {
		name string
		dst  *int
	}{
		{"Age", &record.Age},
		{"MonthlyIncome", &record.MonthlyIncome},
		{"JobSatisfaction", &record.JobSatisfaction},
		{"WorkLifeBalance", &record.WorkLifeBalance},
		{"EnvironmentSatisfaction", &record.EnvironmentSatisfaction},
		{"PerformanceRating", &record.PerformanceRating},
		{"YearsAtCompany", &record.YearsAtCompany},
		{"YearsInCurrentRole", &record.YearsInCurrentRole},
		{"DistanceFromHome", &record.DistanceFromHome},
		{"EducationLevel", &record.EducationLevel},
		{"TrainingTimesLastYear", &record.TrainingTimesLastYear},
	}
	for _, n := range numbers {
		if *n.dst, err = number(n.name); err != nil {
			return Record{}, err
		}
	}

	return record, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
