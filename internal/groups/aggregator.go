// Package groups summarizes associations per user-defined period and
// compares periods against each other
package groups

import (
	"log/slog"

	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/stats"
)

type metricDef struct {
	key       models.MetricKey
	label     string
	unit      string
	direction models.Direction
	value     func(models.Association) (float64, bool)
}

// metricDefs is the fixed metric order used by Stats and Compare
var metricDefs = []metricDef{
	{models.MetricAUCRelative, "AUC above baseline", "mg/dL·min", models.LowerIsBetter,
		func(a models.Association) (float64, bool) { return a.Spike.AUCRelative, true }},
	{models.MetricNormalizedAUC, "Normalized AUC", "min", models.LowerIsBetter,
		func(a models.Association) (float64, bool) { return a.Spike.NormalizedAUC, true }},
	{models.MetricRecoveryTime, "Recovery time", "min", models.LowerIsBetter,
		func(a models.Association) (float64, bool) {
			if a.Spike.RecoveryTime == nil {
				return 0, false
			}
			return *a.Spike.RecoveryTime, true
		}},
	{models.MetricMagnitude, "Magnitude", "mg/dL", models.LowerIsBetter,
		func(a models.Association) (float64, bool) { return a.Spike.Magnitude, true }},
	{models.MetricTimeToPeak, "Time to peak", "min", models.EitherWay,
		func(a models.Association) (float64, bool) { return a.Spike.TimeToPeakMinutes, true }},
	{models.MetricDelay, "Meal to spike delay", "min", models.EitherWay,
		func(a models.Association) (float64, bool) { return a.PrimaryDelay(), true }},
}

// Metrics returns the tracked metric keys in report order
func Metrics() []models.MetricKey {
	keys := make([]models.MetricKey, len(metricDefs))
	for i, d := range metricDefs {
		keys[i] = d.key
	}
	return keys
}

// MetricLabel returns the display label and unit of a metric
func MetricLabel(key models.MetricKey) (label, unit string) {
	for _, d := range metricDefs {
		if d.key == key {
			return d.label, d.unit
		}
	}
	return string(key), ""
}

// Aggregator computes group statistics and comparisons
type Aggregator struct {
	logger *slog.Logger
}

// New creates an aggregator
func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger.With("component", "groups")}
}

// Stats computes descriptive statistics for every tracked metric over assocs.
// A metric without observations gets Count 0 instead of an error.
func (g *Aggregator) Stats(group models.Group, assocs []models.Association) models.GroupStatistics {
	out := models.GroupStatistics{
		Group:   group,
		Count:   len(assocs),
		Metrics: make(map[models.MetricKey]models.MetricStats, len(metricDefs)),
	}

	for _, def := range metricDefs {
		values := make([]float64, 0, len(assocs))
		for _, a := range assocs {
			if v, ok := def.value(a); ok {
				values = append(values, v)
			}
		}
		out.Metrics[def.key] = stats.Describe(values)
	}

	loads := make([]float64, len(assocs))
	durations := make([]float64, len(assocs))
	peaks := make([]float64, len(assocs))
	for i, a := range assocs {
		loads[i] = a.TotalGL
		durations[i] = a.Spike.DurationMinutes
		peaks[i] = a.Spike.PeakGlucose
		if a.IsMultiMeal {
			out.ComplexEvents++
		}
	}
	out.GlycemicLoad = stats.Describe(loads)
	out.Duration = stats.Describe(durations)
	out.PeakGlucose = stats.Describe(peaks)

	g.logger.Debug("group statistics computed", "group", group.Description, "associations", len(assocs))
	return out
}

// Compare contrasts b against a metric by metric. An entry is unavailable
// when either side has no observations for it.
func Compare(a, b models.GroupStatistics) models.GroupComparison {
	cmp := models.GroupComparison{
		A:       a,
		B:       b,
		Changes: make([]models.MetricChange, 0, len(metricDefs)),
	}

	for _, def := range metricDefs {
		change := models.MetricChange{
			Metric:    def.key,
			Label:     def.label,
			Unit:      def.unit,
			Direction: def.direction,
		}

		sa, sb := a.Metrics[def.key], b.Metrics[def.key]
		if sa.Count > 0 && sb.Count > 0 {
			change.Available = true
			change.MeanA = sa.Mean
			change.MeanB = sb.Mean
			change.Absolute = sb.Mean - sa.Mean
			if sa.Mean != 0 {
				change.Percent = change.Absolute / sa.Mean * 100
			}
			change.IsImprovement = def.direction == models.LowerIsBetter && change.Absolute < 0
		}
		cmp.Changes = append(cmp.Changes, change)
	}
	return cmp
}

// Improvements counts the improved metrics among the available
// lower-is-better ones
func Improvements(cmp models.GroupComparison) (improved, total int) {
	for _, ch := range cmp.Changes {
		if !ch.Available || ch.Direction != models.LowerIsBetter {
			continue
		}
		total++
		if ch.IsImprovement {
			improved++
		}
	}
	return improved, total
}
