package cgm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mrcode/glucose-spikes/internal/models"
)

func TestPeriodOf(t *testing.T) {
	tests := []struct {
		hour int
		want Period
	}{
		{5, Night},
		{6, Morning},
		{10, Morning},
		{11, Midday},
		{16, Midday},
		{17, Evening},
		{21, Evening},
		{22, Night},
		{0, Night},
	}

	for _, tt := range tests {
		at := time.Date(2025, 1, 1, tt.hour, 30, 0, 0, time.UTC)
		if got := PeriodOf(at); got != tt.want {
			t.Errorf("PeriodOf(%02d:30) = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	readings := []models.Reading{
		{Time: start, Glucose: 60},
		{Time: start.Add(4 * time.Hour), Glucose: 100},
		{Time: start.Add(40 * time.Hour), Glucose: 200},
	}

	s := Summarize(readings, 70, 180)

	assert.Equal(t, 3, s.Readings)
	assert.InDelta(t, 120.0, s.Mean, 1e-9)
	assert.InDelta(t, 58.878, s.Std, 1e-3)
	assert.Equal(t, 60.0, s.Min)
	assert.Equal(t, 200.0, s.Max)
	assert.InDelta(t, 49.065, s.CV, 1e-3)
	assert.InDelta(t, 6.1804, s.GMI, 1e-9)
	assert.InDelta(t, 100.0/3, s.TimeInRange, 1e-9)
	assert.InDelta(t, 100.0/3, s.TimeBelowRange, 1e-9)
	assert.InDelta(t, 100.0/3, s.TimeAboveRange, 1e-9)
	assert.Equal(t, 1, s.Days)
	assert.Equal(t, start, s.Start)

	assert.Equal(t, map[Period]float64{Morning: 60, Midday: 100, Night: 200}, s.ByPeriod)
}

func TestSummarize_RangeBoundsAreInRange(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s := Summarize([]models.Reading{{Time: at, Glucose: 70}, {Time: at, Glucose: 180}}, 70, 180)
	assert.Equal(t, 100.0, s.TimeInRange)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 70, 180)
	assert.Zero(t, s.Readings)
	assert.Zero(t, s.Mean)
	assert.Empty(t, s.ByPeriod)
}
