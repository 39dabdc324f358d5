// Package cgm computes whole-series statistics of CGM data
package cgm

import (
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/stats"
)

// Period is a part of the day
type Period string

const (
	Morning Period = "morning" // 6:00 - 11:00
	Midday  Period = "midday"  // 11:00 - 17:00
	Evening Period = "evening" // 17:00 - 22:00
	Night   Period = "night"   // 22:00 - 6:00
)

// Periods lists the parts of the day in clock order starting in the morning
var Periods = []Period{Morning, Midday, Evening, Night}

// PeriodOf returns the part of the day t falls in
func PeriodOf(t time.Time) Period {
	hour := t.Hour()
	switch {
	case hour >= 6 && hour < 11:
		return Morning
	case hour >= 11 && hour < 17:
		return Midday
	case hour >= 17 && hour < 22:
		return Evening
	default:
		return Night
	}
}

// Summary describes a glucose series
type Summary struct {
	Readings int       `json:"readings"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Days     int       `json:"days_of_data"`

	Mean float64 `json:"mean_glucose"`
	Std  float64 `json:"std_glucose"`
	Min  float64 `json:"min_glucose"`
	Max  float64 `json:"max_glucose"`
	CV   float64 `json:"coefficient_of_variation"` // percent
	GMI  float64 `json:"gmi"`                      // estimated A1C, percent

	TimeInRange    float64 `json:"time_in_range"`
	TimeBelowRange float64 `json:"time_below_range"`
	TimeAboveRange float64 `json:"time_above_range"`

	// ByPeriod is the mean glucose per part of the day
	ByPeriod map[Period]float64 `json:"by_period"`
}

// Summarize computes statistics for readings against the target range
// [low, high]. Readings must be sorted by time.
func Summarize(readings []models.Reading, low, high float64) Summary {
	s := Summary{Readings: len(readings), ByPeriod: map[Period]float64{}}
	if len(readings) == 0 {
		return s
	}

	values := make([]float64, len(readings))
	periodSums := map[Period]float64{}
	periodCounts := map[Period]int{}
	var inRange, belowRange, aboveRange int

	for i, r := range readings {
		values[i] = r.Glucose

		switch {
		case r.Glucose < low:
			belowRange++
		case r.Glucose > high:
			aboveRange++
		default:
			inRange++
		}

		p := PeriodOf(r.Time)
		periodSums[p] += r.Glucose
		periodCounts[p]++
	}

	d := stats.Describe(values)
	s.Mean, s.Std, s.Min, s.Max = d.Mean, d.Std, d.Min, d.Max

	n := float64(len(readings))
	s.TimeInRange = float64(inRange) / n * 100
	s.TimeBelowRange = float64(belowRange) / n * 100
	s.TimeAboveRange = float64(aboveRange) / n * 100

	// GMI = 3.31 + 0.02392 × mean glucose (mg/dL)
	s.GMI = 3.31 + 0.02392*s.Mean
	if s.Mean > 0 {
		s.CV = s.Std / s.Mean * 100
	}

	s.Start = readings[0].Time
	s.End = readings[len(readings)-1].Time
	s.Days = int(s.End.Sub(s.Start).Hours() / 24)

	for p, sum := range periodSums {
		s.ByPeriod[p] = sum / float64(periodCounts[p])
	}
	return s
}
