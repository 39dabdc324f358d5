// Package normalizer builds shape-normalized spike profiles and compares them
package normalizer

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mrcode/glucose-spikes/internal/metrics"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/stats"
)

// SimilarityPoints is the resampling resolution used for shape similarity
const SimilarityPoints = 50

// Normalizer turns spikes into normalized profiles
type Normalizer struct {
	points int
	logger *slog.Logger
}

// New creates a normalizer. cfg.ProfilePoints sets the grid size of
// aligned and averaged profiles.
func New(cfg models.AnalysisConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	points := cfg.ProfilePoints
	if points < 2 {
		points = models.DefaultSettings().Analysis.ProfilePoints
	}
	return &Normalizer{
		points: points,
		logger: logger.With("component", "normalizer"),
	}
}

// Points returns the grid size used for alignment
func (n *Normalizer) Points() int {
	return n.points
}

// Normalize rescales the readings inside the spike window to [0,1] between
// baseline and peak, keeping minutes from spike start as the time axis
func (n *Normalizer) Normalize(spike models.Spike, readings []models.Reading) (models.NormalizedProfile, error) {
	window := models.ReadingsBetween(readings, spike.StartTime, spike.EndTime)
	if len(window) < 2 {
		return models.NormalizedProfile{}, fmt.Errorf("normalizing spike at %s: %w",
			spike.StartTime.Format(time.RFC3339), metrics.ErrInsufficientData)
	}

	x, y := metrics.Series(window, spike.StartTime)
	return models.NormalizedProfile{
		TimestampsMinutes: x,
		NormalizedGlucose: metrics.NormalizeCurve(y, spike.Baseline, spike.PeakGlucose),
		OriginalBaseline:  spike.Baseline,
		OriginalPeak:      spike.PeakGlucose,
		OriginalMagnitude: spike.Magnitude,
		DurationMinutes:   spike.DurationMinutes,
		SpikeStartTime:    spike.StartTime,
	}, nil
}

// NormalizeSpikes normalizes each spike, skipping those without enough data
func (n *Normalizer) NormalizeSpikes(spikes []models.Spike, readings []models.Reading) []models.NormalizedProfile {
	profiles := make([]models.NormalizedProfile, 0, len(spikes))
	for _, spike := range spikes {
		p, err := n.Normalize(spike, readings)
		if err != nil {
			n.logger.Warn("could not normalize spike", "start", spike.StartTime, "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

// NormalizeAssociations normalizes each association's spike and attaches the
// primary meal time and the total glycemic load
func (n *Normalizer) NormalizeAssociations(assocs []models.Association, readings []models.Reading) []models.NormalizedProfile {
	profiles := make([]models.NormalizedProfile, 0, len(assocs))
	for _, a := range assocs {
		p, err := n.Normalize(a.Spike, readings)
		if err != nil {
			n.logger.Warn("could not normalize spike", "start", a.Spike.StartTime, "error", err)
			continue
		}
		mealTime := a.PrimaryMeal().Time
		gl := a.TotalGL
		p.MealTime = &mealTime
		p.GlycemicLoad = &gl
		profiles = append(profiles, p)
	}
	return profiles
}

// Align interpolates profiles onto a grid from 0 to the longest duration.
// Points before a profile starts or after it ends are zero.
func Align(profiles []models.NormalizedProfile, points int) ([]float64, [][]float64) {
	if len(profiles) == 0 || points < 1 {
		return nil, nil
	}

	longest := 0.0
	for _, p := range profiles {
		longest = max(longest, p.DurationMinutes)
	}
	grid := stats.Linspace(0, longest, points)

	rows := make([][]float64, len(profiles))
	for i, p := range profiles {
		row := make([]float64, points)
		for j, x := range grid {
			row[j] = stats.Interp(x, p.TimestampsMinutes, p.NormalizedGlucose, 0)
		}
		rows[i] = row
	}
	return grid, rows
}

// AverageProfile is the mean and spread of aligned profiles
type AverageProfile struct {
	TimeMinutes []float64 `json:"time_minutes"`
	Mean        []float64 `json:"mean"`
	Std         []float64 `json:"std"`
	Count       int       `json:"count"`
}

// Average aligns profiles on the normalizer grid and averages them point by point
func (n *Normalizer) Average(profiles []models.NormalizedProfile) AverageProfile {
	grid, rows := Align(profiles, n.points)
	avg := AverageProfile{
		TimeMinutes: grid,
		Mean:        make([]float64, len(grid)),
		Std:         make([]float64, len(grid)),
		Count:       len(rows),
	}

	column := make([]float64, len(rows))
	for j := range grid {
		for i, row := range rows {
			column[i] = row[j]
		}
		avg.Mean[j], avg.Std[j] = stats.MeanStd(column)
	}
	return avg
}

// Similarity is the Pearson correlation of two profiles resampled onto a
// grid covering the shorter of the two durations
func Similarity(a, b models.NormalizedProfile) float64 {
	span := min(a.DurationMinutes, b.DurationMinutes)
	grid := stats.Linspace(0, span, SimilarityPoints)

	ra := make([]float64, len(grid))
	rb := make([]float64, len(grid))
	for i, x := range grid {
		ra[i] = stats.InterpEdge(x, a.TimestampsMinutes, a.NormalizedGlucose)
		rb[i] = stats.InterpEdge(x, b.TimestampsMinutes, b.NormalizedGlucose)
	}
	return stats.Correlation(ra, rb)
}

// Match is a candidate profile with its similarity to a target
type Match struct {
	Profile    models.NormalizedProfile `json:"profile"`
	Similarity float64                  `json:"similarity"`
}

// FindSimilar returns the candidates whose similarity to target is at least
// threshold, best first. The target itself is recognised by its start time
// and left out.
func FindSimilar(target models.NormalizedProfile, candidates []models.NormalizedProfile, threshold float64) []Match {
	var matches []Match
	for _, c := range candidates {
		if c.SpikeStartTime.Equal(target.SpikeStartTime) {
			continue
		}
		if sim := Similarity(target, c); sim >= threshold {
			matches = append(matches, Match{Profile: c, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
