package dataprocessing

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/141286/SWG-introduction-to-R/pkg/contracts/domain"
)

// computeStat evaluates one statistic over the non-missing values of a group.
// An empty input yields a missing value rather than zero.
func computeStat(name domain.StatName, xs []float64) domain.Value {
	if len(xs) == 0 {
		return domain.Null()
	}

	switch name {
	case domain.StatAverage:
		return domain.Num(stat.Mean(xs, nil))
	case domain.StatMedian:
		return domain.Num(median(xs))
	case domain.StatSD:
		// sample standard deviation is undefined for a single observation
		if len(xs) < 2 {
			return domain.Null()
		}
		return domain.Num(stat.StdDev(xs, nil))
	case domain.StatMax:
		return domain.Num(floats.Max(xs))
	case domain.StatMin:
		return domain.Num(floats.Min(xs))
	default:
		return domain.Null()
	}
}

// median averages the two middle values for an even count.
func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// valueRange formats "<min> - <max>" over the non-missing values. Numeric
// columns compare numerically; anything else compares by rendered text.
func valueRange(values []domain.Value) string {
	var (
		nums    []float64
		texts   []string
		allNums = true
	)
	for _, v := range values {
		switch {
		case v.IsMissing():
			continue
		case v.IsNumber():
			nums = append(nums, v.Num)
		default:
			allNums = false
		}
		texts = append(texts, v.String())
	}

	if len(texts) == 0 {
		return ""
	}
	if allNums {
		return domain.FormatNumber(floats.Min(nums)) + " - " + domain.FormatNumber(floats.Max(nums))
	}

	sort.Strings(texts)
	return texts[0] + " - " + texts[len(texts)-1]
}
