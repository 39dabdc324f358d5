package matcher

// Summary describes an association run
type Summary struct {
	TotalSpikes     int     `json:"total_spikes"`
	TotalMeals      int     `json:"total_meals"`
	MatchedSpikes   int     `json:"matched_spikes"`
	MatchedMeals    int     `json:"matched_meals"`
	UnmatchedSpikes int     `json:"unmatched_spikes"`
	UnmatchedMeals  int     `json:"unmatched_meals"`
	ComplexEvents   int     `json:"complex_events"`
	AvgDelay        float64 `json:"avg_delay_minutes"` // primary meal
	AvgTotalGL      float64 `json:"avg_total_gl"`
	AvgPeak         float64 `json:"avg_peak"`
	AvgMagnitude    float64 `json:"avg_magnitude"`
}

// Summarize computes counts and averages over a result
func Summarize(res Result) Summary {
	s := Summary{
		MatchedSpikes:   len(res.Associations),
		UnmatchedSpikes: len(res.UnmatchedSpikes),
		UnmatchedMeals:  len(res.UnmatchedMeals),
	}
	s.TotalSpikes = s.MatchedSpikes + s.UnmatchedSpikes

	seen := make(map[string]bool)
	for _, a := range res.Associations {
		for _, m := range a.Meals {
			seen[m.ID] = true
		}
		if a.IsMultiMeal {
			s.ComplexEvents++
		}
		s.AvgDelay += a.PrimaryDelay()
		s.AvgTotalGL += a.TotalGL
		s.AvgPeak += a.Spike.PeakGlucose
		s.AvgMagnitude += a.Spike.Magnitude
	}
	s.MatchedMeals = len(seen)
	s.TotalMeals = s.MatchedMeals + s.UnmatchedMeals

	if n := float64(len(res.Associations)); n > 0 {
		s.AvgDelay /= n
		s.AvgTotalGL /= n
		s.AvgPeak /= n
		s.AvgMagnitude /= n
	}
	return s
}
