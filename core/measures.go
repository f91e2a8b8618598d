package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BuildGrid derives the outcome evaluation grid from the empirical range of
// the data, padded by one standard deviation on each side. Points are evenly
// spaced; the step size is returned alongside.
func BuildGrid(data []float64, nmesh int) ([]float64, float64, error) {
	if nmesh < 2 {
		return nil, 0, fmt.Errorf("%w: nmesh must be at least 2, got %d", ErrConfiguration, nmesh)
	}
	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: need at least 2 observations to build a grid, got %d", ErrData, len(data))
	}

	sd := stat.StdDev(data, nil)
	lo := slices.Min(data) - sd
	hi := slices.Max(data) + sd

	// data with a single distinct value degenerates to a near-point range;
	// documented precision limit, not an error
	dx := (hi - lo) / float64(nmesh-1)
	grid := make([]float64, nmesh)
	for i := range nmesh {
		grid[i] = lo + float64(i)*dx
	}

	return grid, dx, nil
}

// Cumulate turns each density row into its running numerical CDF by discrete
// prefix summation scaled by the grid step. Pure transform, rows that do not
// integrate to 1 pass through unchanged.
func Cumulate(density *mat.Dense, dx float64) *mat.Dense {
	rows, cols := density.Dims()
	cdf := mat.NewDense(rows, cols, nil)
	for r := range rows {
		in := density.RawRowView(r)
		out := cdf.RawRowView(r)
		running := 0.0
		for j, f := range in {
			running += f * dx
			out[j] = running
		}
	}
	return cdf
}

// InvertQuantile returns the grid point whose cumulative probability is
// closest to alpha. Ties go to the lower index (first minimizer in a
// left-to-right scan), so flat density regions resolve conservatively.
// Resolution is bounded by the grid step; nothing is interpolated.
func InvertQuantile(cdfRow, grid []float64, alpha float64) float64 {
	best := 0
	bestDiff := math.Abs(cdfRow[0] - alpha)
	for j := 1; j < len(cdfRow); j++ {
		if diff := math.Abs(cdfRow[j] - alpha); diff < bestDiff {
			best = j
			bestDiff = diff
		}
	}
	return grid[best]
}

// ExpectedShortfall integrates the density mass at or below the VaR threshold,
// weighted by outcome value and normalized by the nominal confidence level.
// The realized discretized tail mass can differ slightly from alpha; the
// nominal normalization is kept deliberately.
func ExpectedShortfall(densRow, grid []float64, dx, alpha, varValue float64) float64 {
	tail := 0.0
	for k, x := range grid {
		if x > varValue {
			break
		}
		tail += densRow[k] * x
	}
	return dx / alpha * tail
}
