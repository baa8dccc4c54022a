// internal/attrition/groups.go
package attrition

import (
	"strings"

	"github.com/acmecorp/hrdesk/internal/fault"
)

// Grouping buckets. Ratings collapse the 1-5 scales; the numeric columns
// use the bands the original dashboards chart.
var (
	ratingLabels = []string{"Bad", "Average", "Great"}
	ageLabels    = []string{"18-30", "31-40", "41-50", "50+"}
	tenureLabels = []string{"0-2 yrs", "3-5 yrs", "6-10 yrs", "10+ yrs"}
	incomeLabels = []string{"<5K", "5K-10K", "10K-15K", "15K+"}
	yesNoLabels  = []string{"Yes", "No"}
)

// dimensions lists every groupable column in presentation order.
var dimensions = []string{
	"Department",
	"JobRole",
	"Gender",
	"OverTime",
	"Age",
	"YearsAtCompany",
	"MonthlyIncome",
	"JobSatisfaction",
	"WorkLifeBalance",
	"EnvironmentSatisfaction",
	"PerformanceRating",
}

// Dimensions returns the groupable dimensions in presentation order.
func Dimensions() []string {
	out := make([]string, len(dimensions))
	copy(out, dimensions)
	return out
}

// ValidDimension reports whether name can be grouped on.
func ValidDimension(name string) bool {
	for _, d := range dimensions {
		if d == name {
			return true
		}
	}
	return false
}

// BucketLabels returns the fixed bucket labels of a dimension, or nil for
// free-form dimensions such as Department.
func BucketLabels(dimension string) []string {
	switch dimension {
	case "Age":
		return append([]string(nil), ageLabels...)
	case "YearsAtCompany":
		return append([]string(nil), tenureLabels...)
	case "MonthlyIncome":
		return append([]string(nil), incomeLabels...)
	case "JobSatisfaction", "WorkLifeBalance", "EnvironmentSatisfaction", "PerformanceRating":
		return append([]string(nil), ratingLabels...)
	case "OverTime":
		return append([]string(nil), yesNoLabels...)
	default:
		return nil
	}
}

// groupValue buckets one record along a dimension.
func groupValue(r Record, dimension string) string {
	switch dimension {
	case "Department":
		return r.Department
	case "JobRole":
		return r.JobRole
	case "Gender":
		return r.Gender
	case "OverTime":
		if r.OverTime {
			return "Yes"
		}
		return "No"
	case "Age":
		return ageBucket(r.Age)
	case "YearsAtCompany":
		return tenureBucket(r.YearsAtCompany)
	case "MonthlyIncome":
		return incomeBucket(r.MonthlyIncome)
	case "JobSatisfaction":
		return ratingBucket(r.JobSatisfaction)
	case "WorkLifeBalance":
		return ratingBucket(r.WorkLifeBalance)
	case "EnvironmentSatisfaction":
		return ratingBucket(r.EnvironmentSatisfaction)
	case "PerformanceRating":
		return ratingBucket(r.PerformanceRating)
	default:
		return ""
	}
}

func ratingBucket(value int) string {
	switch {
	case value <= 2:
		return "Bad"
	case value == 3:
		return "Average"
	default:
		return "Great"
	}
}

func ageBucket(age int) string {
	switch {
	case age <= 30:
		return "18-30"
	case age <= 40:
		return "31-40"
	case age <= 50:
		return "41-50"
	default:
		return "50+"
	}
}

func tenureBucket(years int) string {
	switch {
	case years <= 2:
		return "0-2 yrs"
	case years <= 5:
		return "3-5 yrs"
	case years <= 10:
		return "6-10 yrs"
	default:
		return "10+ yrs"
	}
}

func incomeBucket(income int) string {
	switch {
	case income < 5000:
		return "<5K"
	case income < 10000:
		return "5K-10K"
	case income < 15000:
		return "10K-15K"
	default:
		return "15K+"
	}
}

// Filter narrows the dataset before aggregation. Empty fields match
// everything; values are validated against the dataset and the fixed bucket
// labels before any aggregation happens.
type Filter struct {
	Departments  []string `json:"departments,omitempty"`
	JobRoles     []string `json:"job_roles,omitempty"`
	Genders      []string `json:"genders,omitempty"`
	OverTime     *bool    `json:"overtime,omitempty"`
	AgeGroups    []string `json:"age_groups,omitempty"`
	TenureBands  []string `json:"tenure_bands,omitempty"`
	IncomeBands  []string `json:"income_bands,omitempty"`
	Satisfaction []string `json:"satisfaction,omitempty"`
}

// Options describes what callers may filter and group on.
type Options struct {
	Dimensions  []string            `json:"dimensions"`
	Departments []string            `json:"departments"`
	JobRoles    []string            `json:"job_roles"`
	Buckets     map[string][]string `json:"buckets"`
}

// Options reports the valid dimensions, categorical values, and bucket
// labels for this dataset.
func (d *Dataset) Options() Options {
	buckets := make(map[string][]string)
	for _, dimension := range dimensions {
		if labels := BucketLabels(dimension); labels != nil {
			buckets[dimension] = labels
		}
	}
	return Options{
		Dimensions:  Dimensions(),
		Departments: d.Departments(),
		JobRoles:    d.JobRoles(),
		Buckets:     buckets,
	}
}

// validate rejects filter values that name nothing in the dataset.
func (d *Dataset) validate(f Filter) error {
	if err := knownValues("department", f.Departments, d.departments); err != nil {
		return err
	}
	if err := knownValues("job role", f.JobRoles, d.jobRoles); err != nil {
		return err
	}
	if err := knownValues("age group", f.AgeGroups, ageLabels); err != nil {
		return err
	}
	if err := knownValues("tenure band", f.TenureBands, tenureLabels); err != nil {
		return err
	}
	if err := knownValues("income band", f.IncomeBands, incomeLabels); err != nil {
		return err
	}
	if err := knownValues("satisfaction level", f.Satisfaction, ratingLabels); err != nil {
		return err
	}
	return nil
}

func knownValues(what string, values, allowed []string) error {
	for _, value := range values {
		found := false
		for _, candidate := range allowed {
			if strings.EqualFold(value, candidate) {
				found = true
				break
			}
		}
		if !found {
			return fault.Errorf(fault.KindValidation, "unknown %s %q", what, value)
		}
	}
	return nil
}

// Filter returns the records matching f, validating it first.
func (d *Dataset) Filter(f Filter) ([]Record, error) {
	if err := d.validate(f); err != nil {
		return nil, err
	}

	var matched []Record
	for _, record := range d.records {
		if matches(record, f) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

func matches(r Record, f Filter) bool {
	if !valueIn(r.Department, f.Departments) {
		return false
	}
	if !valueIn(r.JobRole, f.JobRoles) {
		return false
	}
	if !valueIn(r.Gender, f.Genders) {
		return false
	}
	if f.OverTime != nil && r.OverTime != *f.OverTime {
		return false
	}
	if !valueIn(ageBucket(r.Age), f.AgeGroups) {
		return false
	}
	if !valueIn(tenureBucket(r.YearsAtCompany), f.TenureBands) {
		return false
	}
	if !valueIn(incomeBucket(r.MonthlyIncome), f.IncomeBands) {
		return false
	}
	if !valueIn(ratingBucket(r.JobSatisfaction), f.Satisfaction) {
		return false
	}
	return true
}

// valueIn reports whether value is in the set; an empty set matches all.
func valueIn(value string, set []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, candidate := range set {
		if strings.EqualFold(value, candidate) {
			return true
		}
	}
	return false
}
