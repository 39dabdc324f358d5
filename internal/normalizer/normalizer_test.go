package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/glucose-spikes/internal/metrics"
	"github.com/mrcode/glucose-spikes/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func series(values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		out[i] = models.Reading{Time: t0.Add(time.Duration(i*5) * time.Minute), Glucose: v}
	}
	return out
}

func newNormalizer(points int) *Normalizer {
	return New(models.AnalysisConfig{ProfilePoints: points}, nil)
}

func scenario() ([]models.Reading, models.Spike) {
	readings := series(95, 98, 118, 148, 152, 140, 110, 96)
	spike := models.NewSpike(readings[0], readings[4], readings[7], models.EndReturnedToBaseline, models.SourceAuto)
	return readings, spike
}

func profile(start time.Time, ts, values []float64) models.NormalizedProfile {
	return models.NormalizedProfile{
		TimestampsMinutes: ts,
		NormalizedGlucose: values,
		DurationMinutes:   ts[len(ts)-1],
		SpikeStartTime:    start,
	}
}

func TestNormalize(t *testing.T) {
	readings, spike := scenario()

	p, err := newNormalizer(100).Normalize(spike, readings)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 5, 10, 15, 20, 25, 30, 35}, p.TimestampsMinutes)
	require.Len(t, p.NormalizedGlucose, 8)
	assert.Zero(t, p.NormalizedGlucose[0])
	assert.Equal(t, 1.0, p.NormalizedGlucose[4])
	assert.InDelta(t, 45.0/57.0, p.NormalizedGlucose[5], 1e-9)
	for _, v := range p.NormalizedGlucose {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 95.0, p.OriginalBaseline)
	assert.Equal(t, 57.0, p.OriginalMagnitude)
	assert.Equal(t, 35.0, p.DurationMinutes)
	assert.Nil(t, p.MealTime)
}

func TestNormalize_Degenerate(t *testing.T) {
	readings := series(95, 95, 95)
	spike := models.NewSpike(readings[0], readings[0], readings[2], models.EndMaxDuration, models.SourceAuto)

	p, err := newNormalizer(100).Normalize(spike, readings)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, p.NormalizedGlucose)
}

func TestNormalize_InsufficientData(t *testing.T) {
	readings, spike := scenario()
	spike.StartTime = t0.Add(2 * time.Hour)
	spike.EndTime = t0.Add(3 * time.Hour)

	_, err := newNormalizer(100).Normalize(spike, readings)
	assert.ErrorIs(t, err, metrics.ErrInsufficientData)
}

func TestNormalizeAssociations(t *testing.T) {
	readings, spike := scenario()
	meal := models.Meal{ID: "m1", Time: t0.Add(-10 * time.Minute), GlycemicLoad: 33}
	broken := spike
	broken.StartTime = t0.Add(5 * time.Hour)
	broken.EndTime = t0.Add(6 * time.Hour)

	assocs := []models.Association{
		models.NewAssociation(spike, []models.Meal{meal}),
		models.NewAssociation(broken, []models.Meal{meal}),
	}

	profiles := newNormalizer(100).NormalizeAssociations(assocs, readings)

	require.Len(t, profiles, 1, "spikes without data are skipped")
	require.NotNil(t, profiles[0].MealTime)
	require.NotNil(t, profiles[0].GlycemicLoad)
	assert.Equal(t, meal.Time, *profiles[0].MealTime)
	assert.Equal(t, 33.0, *profiles[0].GlycemicLoad)
}

func TestAlignAndAverage(t *testing.T) {
	short := profile(t0, []float64{0, 10}, []float64{0, 1})
	long := profile(t0.Add(time.Hour), []float64{0, 20}, []float64{1, 1})

	grid, rows := Align([]models.NormalizedProfile{short, long}, 3)
	assert.Equal(t, []float64{0, 10, 20}, grid)
	assert.Equal(t, []float64{0, 1, 0}, rows[0], "past its end a profile is zero")
	assert.Equal(t, []float64{1, 1, 1}, rows[1])

	avg := newNormalizer(3).Average([]models.NormalizedProfile{short, long})
	assert.Equal(t, 2, avg.Count)
	assert.Equal(t, []float64{0.5, 1, 0.5}, avg.Mean)
	assert.Equal(t, []float64{0.5, 0, 0.5}, avg.Std)

	grid, rows = Align(nil, 3)
	assert.Nil(t, grid)
	assert.Nil(t, rows)
}

func TestSimilarity(t *testing.T) {
	rising := profile(t0, []float64{0, 10, 20, 30}, []float64{0, 0.5, 1, 0.4})
	same := profile(t0.Add(time.Hour), []float64{0, 10, 20, 30, 40}, []float64{0, 0.5, 1, 0.4, 0.1})
	inverted := profile(t0.Add(2*time.Hour), []float64{0, 10, 20, 30}, []float64{1, 0.5, 0, 0.6})
	flat := profile(t0.Add(3*time.Hour), []float64{0, 30}, []float64{0, 0})

	assert.InDelta(t, 1.0, Similarity(rising, same), 1e-9)
	assert.InDelta(t, -1.0, Similarity(rising, inverted), 1e-9)
	assert.Zero(t, Similarity(rising, flat))
}

func TestFindSimilar(t *testing.T) {
	target := profile(t0, []float64{0, 10, 20, 30}, []float64{0, 0.5, 1, 0.4})
	self := target
	near := profile(t0.Add(time.Hour), []float64{0, 10, 20, 30}, []float64{0, 0.45, 1, 0.5})
	exact := profile(t0.Add(2*time.Hour), []float64{0, 10, 20, 30}, []float64{0, 0.5, 1, 0.4})
	opposite := profile(t0.Add(3*time.Hour), []float64{0, 10, 20, 30}, []float64{1, 0.5, 0, 0.6})

	matches := FindSimilar(target, []models.NormalizedProfile{self, near, exact, opposite}, 0.8)

	require.Len(t, matches, 2)
	assert.Equal(t, exact.SpikeStartTime, matches[0].Profile.SpikeStartTime)
	assert.Equal(t, near.SpikeStartTime, matches[1].Profile.SpikeStartTime)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)
}

func TestCompareGroups(t *testing.T) {
	gl := 20.0
	a := []models.NormalizedProfile{
		{TimestampsMinutes: []float64{0, 60}, NormalizedGlucose: []float64{0, 1}, DurationMinutes: 60, OriginalMagnitude: 50, GlycemicLoad: &gl},
		{TimestampsMinutes: []float64{0, 100}, NormalizedGlucose: []float64{0, 1}, DurationMinutes: 100, OriginalMagnitude: 70},
	}
	b := []models.NormalizedProfile{
		{TimestampsMinutes: []float64{0, 60}, NormalizedGlucose: []float64{0, 1}, DurationMinutes: 60, OriginalMagnitude: 45},
	}

	n := newNormalizer(10)
	cmp := n.CompareGroups(a, b)

	assert.Equal(t, 2, cmp.A.Count)
	assert.Equal(t, 80.0, cmp.A.Duration.Mean)
	require.NotNil(t, cmp.A.GlycemicLoad)
	assert.Equal(t, 20.0, cmp.A.GlycemicLoad.Mean)
	assert.Nil(t, cmp.B.GlycemicLoad)
	assert.Len(t, cmp.A.Average.Mean, 10)

	require.NotNil(t, cmp.Change)
	assert.Equal(t, -20.0, cmp.Change.DurationMinutes)
	assert.Equal(t, -15.0, cmp.Change.MagnitudeMgDL)
	assert.InDelta(t, -25.0, cmp.Change.DurationPercent, 1e-9)
	assert.InDelta(t, -25.0, cmp.Change.MagnitudePercent, 1e-9)

	assert.Nil(t, n.CompareGroups(a, nil).Change)
}
