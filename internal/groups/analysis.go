package groups

import (
	"github.com/mrcode/glucose-spikes/internal/models"
)

// FilterAssociations keeps associations whose earliest meal lies in the group
func FilterAssociations(assocs []models.Association, group models.Group) []models.Association {
	var out []models.Association
	for _, a := range assocs {
		if len(a.Meals) > 0 && group.Contains(a.PrimaryMeal().Time) {
			out = append(out, a)
		}
	}
	return out
}

// FilterSpikes keeps spikes that start inside the group
func FilterSpikes(spikes []models.Spike, group models.Group) []models.Spike {
	var out []models.Spike
	for _, s := range spikes {
		if group.Contains(s.StartTime) {
			out = append(out, s)
		}
	}
	return out
}

// FilterMeals keeps meals logged inside the group
func FilterMeals(meals []models.Meal, group models.Group) []models.Meal {
	var out []models.Meal
	for _, m := range meals {
		if group.Contains(m.Time) {
			out = append(out, m)
		}
	}
	return out
}

// FilterByGL keeps associations whose total glycemic load is in [lo, hi]
func FilterByGL(assocs []models.Association, lo, hi float64) []models.Association {
	var out []models.Association
	for _, a := range assocs {
		if a.TotalGL >= lo && a.TotalGL <= hi {
			out = append(out, a)
		}
	}
	return out
}

// Analysis is everything that happened inside one group
type Analysis struct {
	Group           models.Group            `json:"group"`
	Associations    []models.Association    `json:"associations"`
	UnmatchedSpikes []models.Spike          `json:"unmatched_spikes"`
	UnmatchedMeals  []models.Meal           `json:"unmatched_meals"`
	Stats           *models.GroupStatistics `json:"statistics,omitempty"` // nil without associations
}

// MatchedCount returns the number of associations in the group
func (a Analysis) MatchedCount() int {
	return len(a.Associations)
}

// Analyze filters pipeline results down to group and computes its statistics
func (g *Aggregator) Analyze(group models.Group, assocs []models.Association,
	unmatchedSpikes []models.Spike, unmatchedMeals []models.Meal) Analysis {
	out := Analysis{
		Group:           group,
		Associations:    FilterAssociations(assocs, group),
		UnmatchedSpikes: FilterSpikes(unmatchedSpikes, group),
		UnmatchedMeals:  FilterMeals(unmatchedMeals, group),
	}
	if len(out.Associations) > 0 {
		s := g.Stats(group, out.Associations)
		out.Stats = &s
	}
	return out
}

// RestrictGL narrows an analysis to associations whose total glycemic load is
// in [lo, hi] and recomputes its statistics
func (g *Aggregator) RestrictGL(an Analysis, lo, hi float64) Analysis {
	an.Associations = FilterByGL(an.Associations, lo, hi)
	an.Stats = nil
	if len(an.Associations) > 0 {
		s := g.Stats(an.Group, an.Associations)
		an.Stats = &s
	}
	return an
}

// CompareAnalyses compares two analyses, or returns nil when either has no
// statistics
func CompareAnalyses(a, b Analysis) *models.GroupComparison {
	if a.Stats == nil || b.Stats == nil {
		return nil
	}
	cmp := Compare(*a.Stats, *b.Stats)
	return &cmp
}
