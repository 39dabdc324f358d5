package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/glucose-spikes/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

// scenarioSpike mirrors the 95 -> 152 -> 96 excursion starting at t0
func scenarioSpike() models.Spike {
	return models.Spike{
		StartTime:    at(0),
		StartGlucose: 95,
		PeakTime:     at(20),
		PeakGlucose:  152,
		EndTime:      at(35),
		Magnitude:    57,
		Baseline:     95,
	}
}

func newMatcher(window float64) *Matcher {
	return New(models.MatchingConfig{PreSpikeMealWindowMinutes: window}, nil)
}

func TestAssociate_SingleMeal(t *testing.T) {
	meal := models.Meal{ID: "m1", Time: at(-10), GlycemicLoad: 33}

	res := newMatcher(15).Associate([]models.Meal{meal}, []models.Spike{scenarioSpike()})

	require.Len(t, res.Associations, 1)
	a := res.Associations[0]
	assert.Equal(t, []models.Meal{meal}, a.Meals)
	assert.Equal(t, []float64{10}, a.MealDelays)
	assert.Equal(t, 33.0, a.TotalGL)
	assert.False(t, a.IsMultiMeal)
	assert.Empty(t, res.UnmatchedSpikes)
	assert.Empty(t, res.UnmatchedMeals)
}

func TestAssociate_MealDuringRise(t *testing.T) {
	first := models.Meal{ID: "m1", Time: at(-10), GlycemicLoad: 33}
	second := models.Meal{ID: "m2", Time: at(5), GlycemicLoad: 12}

	// Input order must not matter
	res := newMatcher(15).Associate([]models.Meal{second, first}, []models.Spike{scenarioSpike()})

	require.Len(t, res.Associations, 1)
	a := res.Associations[0]
	require.Len(t, a.Meals, 2)
	assert.Equal(t, "m1", a.Meals[0].ID)
	assert.Equal(t, "m2", a.Meals[1].ID)
	assert.Equal(t, []float64{10, -5}, a.MealDelays)
	assert.True(t, a.IsMultiMeal)
	assert.Equal(t, 45.0, a.TotalGL)
}

func TestAssociate_WindowBounds(t *testing.T) {
	tests := []struct {
		name    string
		mealAt  time.Time
		matched bool
	}{
		{"exactly at window start", at(-15), true},
		{"before window", at(-16), false},
		{"exactly at peak", at(20), true},
		{"after peak", at(21), false},
		{"during decline", at(30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meal := models.Meal{ID: "m", Time: tt.mealAt, GlycemicLoad: 10}
			res := newMatcher(15).Associate([]models.Meal{meal}, []models.Spike{scenarioSpike()})

			if tt.matched {
				assert.Len(t, res.Associations, 1)
				assert.Empty(t, res.UnmatchedMeals)
			} else {
				assert.Empty(t, res.Associations)
				assert.Len(t, res.UnmatchedSpikes, 1)
				assert.Len(t, res.UnmatchedMeals, 1)
			}
		})
	}
}

func TestAssociate_EveryMealAccountedFor(t *testing.T) {
	spikes := []models.Spike{
		scenarioSpike(),
		{StartTime: at(120), PeakTime: at(150), EndTime: at(200)},
		{StartTime: at(400), PeakTime: at(430), EndTime: at(480)},
	}
	meals := []models.Meal{
		{ID: "a", Time: at(-30), GlycemicLoad: 5},
		{ID: "b", Time: at(-5), GlycemicLoad: 20},
		{ID: "c", Time: at(100), GlycemicLoad: 15},
		{ID: "d", Time: at(160), GlycemicLoad: 8},
		{ID: "e", Time: at(300), GlycemicLoad: 8},
	}

	res := newMatcher(60).Associate(meals, spikes)

	inAssoc := make(map[string]bool)
	for _, a := range res.Associations {
		for i, m := range a.Meals {
			inAssoc[m.ID] = true
			assert.Equal(t, a.Spike.StartTime.Sub(m.Time).Minutes(), a.MealDelays[i])
		}
		assert.Equal(t, models.TotalGlycemicLoad(a.Meals), a.TotalGL)
	}
	unmatched := make(map[string]bool)
	for _, m := range res.UnmatchedMeals {
		unmatched[m.ID] = true
	}

	for _, m := range meals {
		assert.NotEqual(t, inAssoc[m.ID], unmatched[m.ID], "meal %s must be in exactly one place", m.ID)
	}
	assert.Len(t, res.Associations, 2)
	assert.Len(t, res.UnmatchedSpikes, 1)
	assert.Equal(t, at(400), res.UnmatchedSpikes[0].StartTime)
}

func TestAssociate_OverlappingWindowsShareMeal(t *testing.T) {
	spikes := []models.Spike{
		{StartTime: at(0), PeakTime: at(20), EndTime: at(30)},
		{StartTime: at(30), PeakTime: at(50), EndTime: at(90)},
	}
	meal := models.Meal{ID: "m", Time: at(10), GlycemicLoad: 20}

	res := newMatcher(30).Associate([]models.Meal{meal}, spikes)

	assert.Len(t, res.Associations, 2)
	assert.Empty(t, res.UnmatchedMeals)
}

func TestAssociate_Deterministic(t *testing.T) {
	spikes := []models.Spike{scenarioSpike(), {StartTime: at(120), PeakTime: at(150), EndTime: at(200)}}
	meals := []models.Meal{
		{ID: "b", Time: at(100), GlycemicLoad: 15},
		{ID: "a", Time: at(-5), GlycemicLoad: 20},
		{ID: "c", Time: at(100), GlycemicLoad: 7},
	}

	m := newMatcher(30)
	first := m.Associate(meals, spikes)
	second := m.Associate(meals, spikes)
	assert.Equal(t, first, second)
	assert.Equal(t, "b", first.Associations[1].Meals[0].ID, "same timestamp ties break on ID")
}

func TestSummarize(t *testing.T) {
	meals := []models.Meal{
		{ID: "m1", Time: at(-10), GlycemicLoad: 33},
		{ID: "m2", Time: at(5), GlycemicLoad: 12},
		{ID: "m3", Time: at(500), GlycemicLoad: 12},
	}
	spikes := []models.Spike{scenarioSpike(), {StartTime: at(200), PeakTime: at(220), EndTime: at(260)}}

	sum := Summarize(newMatcher(15).Associate(meals, spikes))

	assert.Equal(t, 2, sum.TotalSpikes)
	assert.Equal(t, 1, sum.MatchedSpikes)
	assert.Equal(t, 1, sum.UnmatchedSpikes)
	assert.Equal(t, 3, sum.TotalMeals)
	assert.Equal(t, 2, sum.MatchedMeals)
	assert.Equal(t, 1, sum.ComplexEvents)
	assert.Equal(t, 10.0, sum.AvgDelay)
	assert.Equal(t, 45.0, sum.AvgTotalGL)
}
