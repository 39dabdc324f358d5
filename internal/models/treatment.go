// Package models contains data structures used throughout the application
package models

import "time"

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID        string  `json:"_id"`
	EventType string  `json:"eventType"`
	Date      int64   `json:"date"` // Unix timestamp in milliseconds
	CreatedAt string  `json:"created_at"`
	Insulin   float64 `json:"insulin"` // Units of insulin
	Carbs     float64 `json:"carbs"`   // Grams of carbohydrates
	Notes     string  `json:"notes"`
	EnteredBy string  `json:"enteredBy"`
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Date > 0 {
		return time.UnixMilli(t.Date)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasCarbs returns true if this treatment includes carbohydrates
func (t *Treatment) HasCarbs() bool {
	return t.Carbs > 0
}

// Meal converts a carb treatment into a meal. The glycemic load is
// estimated from the carbs and an assumed glycemic index.
func (t *Treatment) Meal(glycemicIndex float64) Meal {
	note := t.Notes
	if note == "" {
		note = t.EventType
	}
	return Meal{
		ID:           t.ID,
		Time:         t.Time(),
		GlycemicLoad: t.Carbs * glycemicIndex / 100,
		Note:         note,
	}
}
