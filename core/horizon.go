package core

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CumulateDraws replaces each simulated path's per-step draws with their
// running sum along the horizon axis, in place. Risk measures extracted
// afterwards describe the aggregate outcome over the first j periods rather
// than period j alone.
func CumulateDraws(draws *mat.Dense) {
	rows, cols := draws.Dims()
	for j := 1; j < rows; j++ {
		prev := draws.RawRowView(j - 1)
		cur := draws.RawRowView(j)
		for k := range cols {
			cur[k] += prev[k]
		}
	}
}

// EmpiricalRisk estimates VaR and ES for one horizon step from its simulated
// draws: VaR is the empirical alpha-quantile, ES the mean of the tail up to
// and including that quantile. Accuracy scales with the draw count; no
// convergence check is made.
func EmpiricalRisk(draws []float64, alpha float64) (varValue, es float64) {
	sorted := slices.Clone(draws)
	slices.Sort(sorted)

	varValue = stat.Quantile(alpha, stat.Empirical, sorted, nil)

	cutoff := int(math.Ceil(alpha * float64(len(sorted))))
	if cutoff < 1 {
		cutoff = 1
	}
	es = stat.Mean(sorted[:cutoff], nil)
	return varValue, es
}
