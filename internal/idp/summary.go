package idp

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ColumnSummary aggregates one measure across the cohort. Statistics cover
// finite values only; Missing counts NaN and infinite cells.
type ColumnSummary struct {
	Column  string
	Count   int
	Missing int
	Mean    float64
	StdDev  float64
	Median  float64
	Min     float64
	Max     float64
}

// Summarize computes per-column statistics in column order.
func Summarize(t Table) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(t.Columns))
	for _, col := range t.Columns {
		values, _ := t.Column(col)
		out = append(out, summarizeColumn(col, values))
	}
	return out
}

func summarizeColumn(name string, values []float64) ColumnSummary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	summary := ColumnSummary{
		Column:  name,
		Count:   len(finite),
		Missing: len(values) - len(finite),
		Mean:    math.NaN(),
		StdDev:  math.NaN(),
		Median:  math.NaN(),
		Min:     math.NaN(),
		Max:     math.NaN(),
	}
	if len(finite) == 0 {
		return summary
	}
	slices.Sort(finite)
	summary.Mean = stat.Mean(finite, nil)
	if len(finite) > 1 {
		summary.StdDev = stat.StdDev(finite, nil)
	}
	summary.Median = median(finite)
	summary.Min = finite[0]
	summary.Max = finite[len(finite)-1]
	return summary
}

// median expects sorted input. Even counts average the two middle values,
// matching how fslstats and numpy report medians.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	lo := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	hi := sorted[n/2]
	return (lo + hi) / 2
}
