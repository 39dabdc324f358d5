// Package metrics computes AUC, peak and recovery descriptors of a glucose excursion
package metrics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/stats"
)

// ErrInsufficientData is returned when a window holds fewer than two readings
var ErrInsufficientData = errors.New("insufficient data")

// TrapezoidAUC integrates the part of y above reference over x.
// Values below the reference count as zero so the area is never negative.
func TrapezoidAUC(x, y []float64, reference float64) float64 {
	adjusted := make([]float64, len(y))
	for i, v := range y {
		adjusted[i] = math.Max(v-reference, 0)
	}
	return stats.Trapezoid(x, adjusted)
}

// NormalizeCurve rescales y to [0,1] between baseline and peak.
// A curve with peak <= baseline normalizes to all zeros.
func NormalizeCurve(y []float64, baseline, peak float64) []float64 {
	out := make([]float64, len(y))
	if peak <= baseline {
		return out
	}
	span := peak - baseline
	for i, v := range y {
		out[i] = math.Min(math.Max((v-baseline)/span, 0), 1)
	}
	return out
}

// NormalizedAUC integrates the normalized curve
func NormalizedAUC(x, y []float64, baseline, peak float64) float64 {
	if peak <= baseline {
		return 0
	}
	return stats.Trapezoid(x, NormalizeCurve(y, baseline, peak))
}

// FindPeak returns the index and value of the first maximum, or -1 when y is empty
func FindPeak(y []float64) (int, float64) {
	if len(y) == 0 {
		return -1, 0
	}
	idx := 0
	for i, v := range y {
		if v > y[idx] {
			idx = i
		}
	}
	return idx, y[idx]
}

// RecoveryTime returns the minutes from the peak to the first later sample
// at or below baseline+tolerance. It returns nil when glucose never gets
// back into that band.
func RecoveryTime(x, y []float64, peakIdx int, baseline, tolerance float64) *float64 {
	if peakIdx < 0 {
		return nil
	}
	for i := peakIdx + 1; i < len(y); i++ {
		if y[i] <= baseline+tolerance {
			elapsed := x[i] - x[peakIdx]
			return &elapsed
		}
	}
	return nil
}

// Series splits readings into minutes-from-start and glucose slices
func Series(readings []models.Reading, start time.Time) ([]float64, []float64) {
	x := make([]float64, len(readings))
	y := make([]float64, len(readings))
	for i, r := range readings {
		x[i] = r.Time.Sub(start).Minutes()
		y[i] = r.Glucose
	}
	return x, y
}

// Calculator attaches AUC and recovery metrics to spikes
type Calculator struct {
	clinicalThreshold float64
	returnTolerance   float64
}

// NewCalculator creates a calculator from the detection settings
func NewCalculator(cfg models.DetectionConfig) *Calculator {
	return &Calculator{
		clinicalThreshold: cfg.ClinicalThreshold,
		returnTolerance:   cfg.ReturnTolerance,
	}
}

// Enrich returns a copy of spike with its metrics computed from the readings
// inside [StartTime, EndTime]. The spike's baseline is never changed.
func (c *Calculator) Enrich(spike models.Spike, readings []models.Reading) (models.Spike, error) {
	window := models.ReadingsBetween(readings, spike.StartTime, spike.EndTime)
	if len(window) < 2 {
		return spike, fmt.Errorf("spike at %s: %w (%d readings)",
			spike.StartTime.Format(time.RFC3339), ErrInsufficientData, len(window))
	}

	x, y := Series(window, spike.StartTime)
	peakIdx, _ := FindPeak(y)

	spike.AUC0 = TrapezoidAUC(x, y, 0)
	spike.AUC70 = TrapezoidAUC(x, y, c.clinicalThreshold)
	spike.AUCRelative = TrapezoidAUC(x, y, spike.Baseline)
	spike.NormalizedAUC = NormalizedAUC(x, y, spike.Baseline, spike.PeakGlucose)
	spike.RecoveryTime = RecoveryTime(x, y, peakIdx, spike.Baseline, c.returnTolerance)
	return spike, nil
}
