// Package matcher links detected spikes to the meals that could have caused them
package matcher

import (
	"log/slog"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// Result is the outcome of one association run
type Result struct {
	Associations    []models.Association `json:"associations"`
	UnmatchedSpikes []models.Spike       `json:"unmatched_spikes"`
	UnmatchedMeals  []models.Meal        `json:"unmatched_meals"`
}

// Matcher associates meals with spikes. Attribution is driven from the spike
// side so that one spike can have several contributing meals.
type Matcher struct {
	preWindow time.Duration
	logger    *slog.Logger
}

// New creates a matcher from the matching settings
func New(cfg models.MatchingConfig, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		preWindow: time.Duration(cfg.PreSpikeMealWindowMinutes * float64(time.Minute)),
		logger:    logger.With("component", "matcher"),
	}
}

// Associate collects, for every spike, the meals eaten between
// StartTime-preWindow and PeakTime. Meals after the peak cannot have caused
// it. Spikes keep their input order; meals need not be sorted.
func (m *Matcher) Associate(meals []models.Meal, spikes []models.Spike) Result {
	sorted := models.SortMeals(meals)
	used := make(map[int]bool, len(sorted))

	var res Result
	for _, spike := range spikes {
		var contributing []models.Meal
		for _, idx := range m.contributingIndexes(sorted, spike) {
			contributing = append(contributing, sorted[idx])
			used[idx] = true
		}

		if len(contributing) == 0 {
			res.UnmatchedSpikes = append(res.UnmatchedSpikes, spike)
			continue
		}
		res.Associations = append(res.Associations, models.NewAssociation(spike, contributing))
	}

	for i, meal := range sorted {
		if !used[i] {
			res.UnmatchedMeals = append(res.UnmatchedMeals, meal)
		}
	}

	m.logger.Debug("association finished",
		"spikes", len(spikes),
		"meals", len(meals),
		"associations", len(res.Associations),
		"unmatched_spikes", len(res.UnmatchedSpikes),
		"unmatched_meals", len(res.UnmatchedMeals))
	return res
}

// contributingIndexes returns indexes into sorted of the meals inside the
// spike's attribution window, in ascending time order
func (m *Matcher) contributingIndexes(sorted []models.Meal, spike models.Spike) []int {
	from := spike.StartTime.Add(-m.preWindow)
	var out []int
	for i, meal := range sorted {
		if meal.Time.Before(from) {
			continue
		}
		if meal.Time.After(spike.PeakTime) {
			break
		}
		out = append(out, i)
	}
	return out
}
