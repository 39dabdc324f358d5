package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Meal is a logged meal event
type Meal struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"timestamp"`
	GlycemicLoad float64   `json:"glycemic_load"`
	Note         string    `json:"description,omitempty"`
}

// NewMeal creates a meal with a fresh ID
func NewMeal(at time.Time, glycemicLoad float64, note string) Meal {
	return Meal{
		ID:           uuid.NewString(),
		Time:         at,
		GlycemicLoad: glycemicLoad,
		Note:         note,
	}
}

// SortMeals returns a copy of meals ordered by time, then ID
func SortMeals(meals []Meal) []Meal {
	sorted := make([]Meal, len(meals))
	copy(sorted, meals)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Time.Equal(sorted[j].Time) {
			return sorted[i].Time.Before(sorted[j].Time)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// TotalGlycemicLoad sums the glycemic load of meals
func TotalGlycemicLoad(meals []Meal) float64 {
	total := 0.0
	for _, m := range meals {
		total += m.GlycemicLoad
	}
	return total
}
