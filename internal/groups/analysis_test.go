package groups

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/glucose-spikes/internal/models"
)

func TestFilters(t *testing.T) {
	end := day.Add(24 * time.Hour)
	closed := models.Group{Start: day, End: &end, Description: "day one"}
	open := models.Group{Start: end, Description: "ongoing"}

	inside := assoc(day.Add(10*time.Hour), 10, 100, 40, nil)
	onEnd := assoc(end, 20, 100, 40, nil)
	later := assoc(end.Add(72*time.Hour), 40, 100, 40, nil)
	assocs := []models.Association{inside, onEnd, later}

	tests := []struct {
		name  string
		group models.Group
		want  int
	}{
		{"closed group includes its end", closed, 2},
		{"open group runs forever", open, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(FilterAssociations(assocs, tt.group)); got != tt.want {
				t.Errorf("FilterAssociations() = %v, want %v", got, tt.want)
			}
		})
	}

	spikes := []models.Spike{inside.Spike, later.Spike}
	assert.Len(t, FilterSpikes(spikes, closed), 1)
	assert.Len(t, FilterSpikes(spikes, open), 1)

	meals := []models.Meal{inside.Meals[0], onEnd.Meals[0], later.Meals[0]}
	assert.Len(t, FilterMeals(meals, closed), 2)

	byGL := FilterByGL(assocs, 10, 20)
	require.Len(t, byGL, 2)
	assert.Equal(t, 10.0, byGL[0].TotalGL)
	assert.Equal(t, 20.0, byGL[1].TotalGL)
}

func TestAnalyze(t *testing.T) {
	end := day.Add(24 * time.Hour)
	first := models.Group{Start: day, End: &end, Description: "before"}
	secondEnd := end.Add(24 * time.Hour)
	second := models.Group{Start: end.Add(time.Minute), End: &secondEnd, Description: "after"}

	assocs := []models.Association{assoc(day.Add(8*time.Hour), 20, 500, 50, nil)}
	stray := models.NewSpike(
		models.Reading{Time: end.Add(3 * time.Hour), Glucose: 100},
		models.Reading{Time: end.Add(4 * time.Hour), Glucose: 150},
		models.Reading{Time: end.Add(5 * time.Hour), Glucose: 100},
		models.EndReturnedToBaseline, models.SourceAuto)
	meal := models.Meal{ID: "m", Time: end.Add(10 * time.Hour), GlycemicLoad: 12}

	agg := New(nil)
	a := agg.Analyze(first, assocs, []models.Spike{stray}, []models.Meal{meal})
	b := agg.Analyze(second, assocs, []models.Spike{stray}, []models.Meal{meal})

	assert.Equal(t, 1, a.MatchedCount())
	require.NotNil(t, a.Stats)
	assert.Empty(t, a.UnmatchedSpikes)
	assert.Empty(t, a.UnmatchedMeals)

	assert.Zero(t, b.MatchedCount())
	assert.Nil(t, b.Stats)
	assert.Len(t, b.UnmatchedSpikes, 1)
	assert.Len(t, b.UnmatchedMeals, 1)

	assert.Nil(t, CompareAnalyses(a, b))
	cmp := CompareAnalyses(a, a)
	require.NotNil(t, cmp)
	improved, _ := Improvements(*cmp)
	assert.Zero(t, improved)
}

func TestRestrictGL(t *testing.T) {
	g := models.Group{Start: day, Description: "baseline"}
	assocs := []models.Association{
		assoc(day.Add(8*time.Hour), 10, 300, 40, nil),
		assoc(day.Add(13*time.Hour), 30, 600, 70, nil),
	}
	agg := New(nil)
	an := agg.Analyze(g, assocs, nil, nil)

	low := agg.RestrictGL(an, 0, 15)
	require.NotNil(t, low.Stats)
	assert.Equal(t, 1, low.Stats.Count)
	assert.Equal(t, 10.0, low.Stats.GlycemicLoad.Mean)
	assert.Equal(t, 2, an.MatchedCount(), "the input analysis is untouched")

	none := agg.RestrictGL(an, 50, 60)
	assert.Zero(t, none.MatchedCount())
	assert.Nil(t, none.Stats)
}
