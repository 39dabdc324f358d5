package models

import "time"

// EndReason describes why a spike's end was placed where it was
type EndReason string

// End reasons
const (
	EndReturnedToBaseline EndReason = "returned_to_baseline"
	EndPlateau            EndReason = "plateau"
	EndMaxDuration        EndReason = "max_duration"
	EndManual             EndReason = "manual"
)

// SpikeSource tells whether a spike was detected or hand-labelled
type SpikeSource string

// Spike sources
const (
	SourceAuto   SpikeSource = "auto"
	SourceManual SpikeSource = "manual"
)

// Spike is a detected glucose excursion. It is treated as immutable once
// the metric calculator has filled in the AUC fields.
type Spike struct {
	StartTime         time.Time   `json:"start_time"`
	StartGlucose      float64     `json:"start_glucose"`
	PeakTime          time.Time   `json:"peak_time"`
	PeakGlucose       float64     `json:"peak_glucose"`
	EndTime           time.Time   `json:"end_time"`
	EndGlucose        float64     `json:"end_glucose"`
	Magnitude         float64     `json:"magnitude"`
	DurationMinutes   float64     `json:"duration_minutes"`
	TimeToPeakMinutes float64     `json:"time_to_peak_minutes"`
	EndReason         EndReason   `json:"end_reason"`
	Source            SpikeSource `json:"source"`

	Baseline      float64  `json:"baseline"`
	AUC0          float64  `json:"auc_0"`
	AUC70         float64  `json:"auc_70"`
	AUCRelative   float64  `json:"auc_relative"`
	NormalizedAUC float64  `json:"normalized_auc"`
	RecoveryTime  *float64 `json:"recovery_time,omitempty"` // minutes, nil if glucose never recovered
}

// NewSpike builds a spike from its three boundary readings and derives the
// temporal fields. Metrics are left for the calculator.
func NewSpike(start, peak, end Reading, reason EndReason, source SpikeSource) Spike {
	return Spike{
		StartTime:         start.Time,
		StartGlucose:      start.Glucose,
		PeakTime:          peak.Time,
		PeakGlucose:       peak.Glucose,
		EndTime:           end.Time,
		EndGlucose:        end.Glucose,
		Magnitude:         peak.Glucose - start.Glucose,
		DurationMinutes:   end.Time.Sub(start.Time).Minutes(),
		TimeToPeakMinutes: peak.Time.Sub(start.Time).Minutes(),
		EndReason:         reason,
		Source:            source,
		Baseline:          start.Glucose,
	}
}

// Contains reports whether t falls inside the spike window (inclusive)
func (s Spike) Contains(t time.Time) bool {
	return !t.Before(s.StartTime) && !t.After(s.EndTime)
}

// Recovered reports whether glucose came back near baseline in the window
func (s Spike) Recovered() bool {
	return s.RecoveryTime != nil
}

// Association links a spike to the meals that plausibly caused it
type Association struct {
	Spike       Spike     `json:"spike"`
	Meals       []Meal    `json:"meals"`
	TotalGL     float64   `json:"total_gl"`
	MealDelays  []float64 `json:"meal_delays"` // minutes from meal to spike start
	IsMultiMeal bool      `json:"is_multi_meal"`
}

// NewAssociation builds an association. meals must be non-empty; they are
// sorted here so callers need not.
func NewAssociation(spike Spike, meals []Meal) Association {
	sorted := SortMeals(meals)
	delays := make([]float64, len(sorted))
	for i, m := range sorted {
		delays[i] = spike.StartTime.Sub(m.Time).Minutes()
	}
	return Association{
		Spike:       spike,
		Meals:       sorted,
		TotalGL:     TotalGlycemicLoad(sorted),
		MealDelays:  delays,
		IsMultiMeal: len(sorted) > 1,
	}
}

// PrimaryMeal returns the earliest contributing meal
func (a Association) PrimaryMeal() Meal {
	return a.Meals[0]
}

// PrimaryDelay returns the delay of the earliest contributing meal
func (a Association) PrimaryDelay() float64 {
	return a.MealDelays[0]
}

// MealCount returns the number of contributing meals
func (a Association) MealCount() int {
	return len(a.Meals)
}

// NormalizedProfile is a spike curve rescaled to [0,1] between baseline and
// peak, on the original minutes-from-start time axis
type NormalizedProfile struct {
	TimestampsMinutes []float64  `json:"timestamps_minutes"`
	NormalizedGlucose []float64  `json:"normalized_glucose"`
	OriginalBaseline  float64    `json:"original_baseline"`
	OriginalPeak      float64    `json:"original_peak"`
	OriginalMagnitude float64    `json:"original_magnitude"`
	DurationMinutes   float64    `json:"duration_minutes"`
	SpikeStartTime    time.Time  `json:"spike_start_time"`
	MealTime          *time.Time `json:"meal_timestamp,omitempty"`
	GlycemicLoad      *float64   `json:"glycemic_load,omitempty"`
}
