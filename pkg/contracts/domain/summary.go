package domain

import (
	"fmt"
	"strings"
)

// StatName names a descriptive statistic the aggregator can compute.
type StatName string

const (
	StatAverage StatName = "average"
	StatMedian  StatName = "median"
	StatSD      StatName = "sd"
	StatMax     StatName = "max"
	StatMin     StatName = "min"
)

// AllStats lists every supported statistic in output order.
var AllStats = []StatName{StatAverage, StatMedian, StatSD, StatMax, StatMin}

var statAliases = map[string]StatName{
	"average":            StatAverage,
	"mean":               StatAverage,
	"avg":                StatAverage,
	"median":             StatMedian,
	"sd":                 StatSD,
	"stddev":             StatSD,
	"standard-deviation": StatSD,
	"max":                StatMax,
	"maximum":            StatMax,
	"min":                StatMin,
	"minimum":            StatMin,
}

// ParseStatName resolves a statistic name or one of its aliases.
func ParseStatName(s string) (StatName, error) {
	if name, ok := statAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown statistic %q", s)
}

// SummaryRecord is one aggregated output row per group key.
//
// Stats holds a missing Value for any statistic that could not be computed
// because the group has no non-missing measure values. Range is
// "<min> - <max>" over the ordering column and empty when no ordering column
// was requested or none of its values are present. Values serializes every
// measure value of the group in row order. Keys holds the same key parts as
// Group with their original kinds, so a numeric key stays a number when the
// summary is rendered as a table.
type SummaryRecord struct {
	Group   []string           `json:"group"`
	Keys    []Value            `json:"-"`
	Count   int                `json:"n"`
	Missing int                `json:"missing"`
	Stats   map[StatName]Value `json:"stats"`
	Range   string             `json:"range,omitempty"`
	Values  string             `json:"values"`
}

// Key joins the group key parts for display.
func (s SummaryRecord) Key() string {
	return strings.Join(s.Group, " / ")
}

// Stat returns a statistic, missing if it was not requested.
func (s SummaryRecord) Stat(name StatName) Value {
	return s.Stats[name]
}
