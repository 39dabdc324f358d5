package models

import (
	"fmt"
	"time"
)

// Group is a user-defined date range used to bucket associations
type Group struct {
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"` // nil while the group is open
	Description string     `json:"description"`
}

// IsOpen reports whether the group has not been ended yet
func (g Group) IsOpen() bool {
	return g.End == nil
}

// Contains reports whether t lies in the group range. Both bounds are
// inclusive and an open group extends forever.
func (g Group) Contains(t time.Time) bool {
	if t.Before(g.Start) {
		return false
	}
	return g.End == nil || !t.After(*g.End)
}

// Label returns a short human readable range
func (g Group) Label() string {
	const layout = "2006-01-02 15:04"
	end := "open"
	if g.End != nil {
		end = g.End.Format(layout)
	}
	return fmt.Sprintf("%s: %s to %s", g.Description, g.Start.Format(layout), end)
}

// MetricKey names a per-association metric tracked by group statistics
type MetricKey string

// Tracked metrics
const (
	MetricAUCRelative   MetricKey = "auc_relative"
	MetricNormalizedAUC MetricKey = "normalized_auc"
	MetricRecoveryTime  MetricKey = "recovery_time"
	MetricMagnitude     MetricKey = "magnitude"
	MetricTimeToPeak    MetricKey = "time_to_peak"
	MetricDelay         MetricKey = "delay_minutes"
)

// Direction is the comparison policy for a metric
type Direction string

// Comparison policies
const (
	LowerIsBetter Direction = "lower"
	EitherWay     Direction = "either"
)

// MetricStats holds descriptive statistics for one metric. A metric with no
// observations has Count 0 and zeroed values.
type MetricStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}

// GroupStatistics summarizes the associations of one group
type GroupStatistics struct {
	Group         Group                     `json:"group"`
	Count         int                       `json:"count"`
	Metrics       map[MetricKey]MetricStats `json:"metrics"`
	GlycemicLoad  MetricStats               `json:"gl"`
	Duration      MetricStats               `json:"duration"`
	PeakGlucose   MetricStats               `json:"peak_glucose"`
	ComplexEvents int                       `json:"complex_events"`
}

// MetricChange is the comparison of one metric between two groups
type MetricChange struct {
	Metric        MetricKey `json:"metric"`
	Label         string    `json:"label"`
	Unit          string    `json:"unit"`
	Direction     Direction `json:"direction"`
	MeanA         float64   `json:"mean_a"`
	MeanB         float64   `json:"mean_b"`
	Absolute      float64   `json:"absolute"`
	Percent       float64   `json:"percent"`
	IsImprovement bool      `json:"is_improvement"`
	Available     bool      `json:"available"`
}

// GroupComparison compares group B against group A
type GroupComparison struct {
	A       GroupStatistics `json:"group_a"`
	B       GroupStatistics `json:"group_b"`
	Changes []MetricChange  `json:"changes"`
}

// Change returns the change entry for a metric
func (c GroupComparison) Change(key MetricKey) (MetricChange, bool) {
	for _, ch := range c.Changes {
		if ch.Metric == key {
			return ch, true
		}
	}
	return MetricChange{}, false
}
