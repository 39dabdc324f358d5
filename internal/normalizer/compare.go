package normalizer

import (
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/stats"
)

// ProfileSummary describes a set of profiles
type ProfileSummary struct {
	Count        int                 `json:"count"`
	Duration     models.MetricStats  `json:"duration"`
	Magnitude    models.MetricStats  `json:"magnitude"`
	GlycemicLoad *models.MetricStats `json:"gl,omitempty"` // nil when no profile carries a GL
	Average      AverageProfile      `json:"average_profile"`
}

// ShapeChange is how group B's spikes differ from group A's
type ShapeChange struct {
	DurationMinutes  float64 `json:"duration_change_min"`
	MagnitudeMgDL    float64 `json:"magnitude_change_mgdl"`
	DurationPercent  float64 `json:"duration_pct_change"`
	MagnitudePercent float64 `json:"magnitude_pct_change"`
}

// ProfileComparison compares the profiles of two groups
type ProfileComparison struct {
	A      ProfileSummary `json:"group_a"`
	B      ProfileSummary `json:"group_b"`
	Change *ShapeChange   `json:"change,omitempty"` // nil when either group is empty
}

// Summarize computes duration, magnitude and GL statistics plus the average
// curve of profiles
func (n *Normalizer) Summarize(profiles []models.NormalizedProfile) ProfileSummary {
	durations := make([]float64, 0, len(profiles))
	magnitudes := make([]float64, 0, len(profiles))
	var loads []float64
	for _, p := range profiles {
		durations = append(durations, p.DurationMinutes)
		magnitudes = append(magnitudes, p.OriginalMagnitude)
		if p.GlycemicLoad != nil {
			loads = append(loads, *p.GlycemicLoad)
		}
	}

	s := ProfileSummary{
		Count:     len(profiles),
		Duration:  stats.Describe(durations),
		Magnitude: stats.Describe(magnitudes),
		Average:   n.Average(profiles),
	}
	if len(loads) > 0 {
		gl := stats.Describe(loads)
		s.GlycemicLoad = &gl
	}
	return s
}

// CompareGroups summarizes both profile sets and, when both are non-empty,
// the change in mean duration and magnitude from A to B
func (n *Normalizer) CompareGroups(a, b []models.NormalizedProfile) ProfileComparison {
	cmp := ProfileComparison{
		A: n.Summarize(a),
		B: n.Summarize(b),
	}
	if cmp.A.Count == 0 || cmp.B.Count == 0 {
		return cmp
	}

	durA, durB := cmp.A.Duration.Mean, cmp.B.Duration.Mean
	magA, magB := cmp.A.Magnitude.Mean, cmp.B.Magnitude.Mean
	cmp.Change = &ShapeChange{
		DurationMinutes:  durB - durA,
		MagnitudeMgDL:    magB - magA,
		DurationPercent:  percentChange(durA, durB),
		MagnitudePercent: percentChange(magA, magB),
	}
	return cmp
}

func percentChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}
