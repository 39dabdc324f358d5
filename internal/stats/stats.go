// Package stats provides the small numeric helpers shared by the analysis packages
package stats

import (
	"math"
	"sort"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// MeanStd computes the mean and population standard deviation
func MeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(varianceSum / float64(len(data)))
}

// Median returns the median of values without reordering them
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Describe computes mean, median, std, min, max and count.
// Empty input yields zeroed stats with Count 0.
func Describe(values []float64) models.MetricStats {
	if len(values) == 0 {
		return models.MetricStats{}
	}

	mean, std := MeanStd(values)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	return models.MetricStats{
		Mean:   mean,
		Median: Median(values),
		Std:    std,
		Min:    lo,
		Max:    hi,
		Count:  len(values),
	}
}

// Correlation computes the Pearson correlation coefficient.
// It returns 0 for mismatched or short input and when either side is constant.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	meanX, stdX := MeanStd(x)
	meanY, stdY := MeanStd(y)
	if stdX == 0 || stdY == 0 {
		return 0
	}

	cov := 0.0
	for i := range x {
		cov += (x[i] - meanX) * (y[i] - meanY)
	}
	cov /= float64(len(x))

	result := cov / (stdX * stdY)
	if math.IsNaN(result) {
		return 0
	}
	// Rounding can push a perfect correlation just past 1
	return math.Max(-1, math.Min(1, result))
}

// Linspace returns n evenly spaced values from start to end inclusive
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}

	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	out[n-1] = end
	return out
}

// Interp linearly interpolates the points (xs, ys) at x. xs must be
// ascending. Values outside [xs[0], xs[len-1]] take the given fill value.
func Interp(x float64, xs, ys []float64, fill float64) float64 {
	n := len(xs)
	if n == 0 || x < xs[0] || x > xs[n-1] {
		return fill
	}

	i := sort.SearchFloat64s(xs, x)
	if i < n && xs[i] == x {
		return ys[i]
	}
	// xs[i-1] < x < xs[i]
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// InterpEdge is Interp with values outside the range held at the end points
func InterpEdge(x float64, xs, ys []float64) float64 {
	n := len(xs)
	switch {
	case n == 0:
		return 0
	case x <= xs[0]:
		return ys[0]
	case x >= xs[n-1]:
		return ys[n-1]
	}
	return Interp(x, xs, ys, 0)
}

// Trapezoid integrates ys over xs with the trapezoidal rule
func Trapezoid(xs, ys []float64) float64 {
	area := 0.0
	for i := 1; i < len(xs) && i < len(ys); i++ {
		area += (xs[i] - xs[i-1]) * (ys[i] + ys[i-1]) / 2
	}
	return area
}
