package detector

import (
	"math"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// Summary describes a set of detected spikes
type Summary struct {
	Count          int                      `json:"count"`
	AvgMagnitude   float64                  `json:"avg_magnitude"`
	MaxMagnitude   float64                  `json:"max_magnitude"`
	AvgPeakGlucose float64                  `json:"avg_peak_glucose"`
	MaxPeakGlucose float64                  `json:"max_peak_glucose"`
	AvgDuration    float64                  `json:"avg_duration_minutes"`
	AvgTimeToPeak  float64                  `json:"avg_time_to_peak_minutes"`
	Recovered      int                      `json:"recovered"`
	EndReasons     map[models.EndReason]int `json:"end_reasons"`
}

// Summarize computes summary statistics over spikes
func Summarize(spikes []models.Spike) Summary {
	s := Summary{
		Count:      len(spikes),
		EndReasons: make(map[models.EndReason]int),
	}
	if len(spikes) == 0 {
		return s
	}

	var magnitude, peak, duration, toPeak float64
	for _, sp := range spikes {
		magnitude += sp.Magnitude
		peak += sp.PeakGlucose
		duration += sp.DurationMinutes
		toPeak += sp.TimeToPeakMinutes
		s.MaxMagnitude = math.Max(s.MaxMagnitude, sp.Magnitude)
		s.MaxPeakGlucose = math.Max(s.MaxPeakGlucose, sp.PeakGlucose)
		s.EndReasons[sp.EndReason]++
		if sp.Recovered() {
			s.Recovered++
		}
	}

	n := float64(len(spikes))
	s.AvgMagnitude = magnitude / n
	s.AvgPeakGlucose = peak / n
	s.AvgDuration = duration / n
	s.AvgTimeToPeak = toPeak / n
	return s
}
