package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/glucose-spikes/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func series(values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		out[i] = models.Reading{Time: t0.Add(time.Duration(i*5) * time.Minute), Glucose: v}
	}
	return out
}

func TestTrapezoidAUC(t *testing.T) {
	x := []float64{0, 5, 10}

	tests := []struct {
		name      string
		y         []float64
		reference float64
		want      float64
	}{
		{"above zero", []float64{100, 100, 100}, 0, 1000},
		{"relative", []float64{100, 120, 100}, 100, 100},
		{"below reference clamps to zero", []float64{60, 60, 60}, 70, 0},
		{"partially below", []float64{60, 80, 60}, 70, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrapezoidAUC(x, tt.y, tt.reference)
			if got != tt.want {
				t.Errorf("TrapezoidAUC() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeCurve(t *testing.T) {
	got := NormalizeCurve([]float64{90, 100, 150, 200, 210}, 100, 200)
	assert.Equal(t, []float64{0, 0, 0.5, 1, 1}, got)

	flat := NormalizeCurve([]float64{95, 95, 95}, 95, 95)
	assert.Equal(t, []float64{0, 0, 0}, flat)
}

func TestNormalizedAUC_Degenerate(t *testing.T) {
	x := []float64{0, 5, 10}
	y := []float64{95, 95, 95}

	assert.Zero(t, NormalizedAUC(x, y, 95, 95))
	assert.Zero(t, NormalizedAUC(x, y, 100, 95))
}

func TestFindPeak(t *testing.T) {
	idx, v := FindPeak([]float64{100, 150, 150, 120})
	assert.Equal(t, 1, idx, "first maximum wins")
	assert.Equal(t, 150.0, v)

	idx, _ = FindPeak(nil)
	assert.Equal(t, -1, idx)
}

func TestRecoveryTime(t *testing.T) {
	x := []float64{0, 5, 10, 15, 20}

	got := RecoveryTime(x, []float64{100, 150, 130, 104, 100}, 1, 100, 5)
	require.NotNil(t, got)
	assert.Equal(t, 10.0, *got)

	assert.Nil(t, RecoveryTime(x, []float64{100, 150, 140, 130, 120}, 1, 100, 5))
	assert.Nil(t, RecoveryTime(x, []float64{100}, -1, 100, 5))
}

func TestCalculator_Enrich(t *testing.T) {
	readings := series(95, 98, 118, 148, 152, 140, 110, 96)
	spike := models.NewSpike(readings[0], readings[4], readings[7], models.EndReturnedToBaseline, models.SourceAuto)

	cfg := models.DefaultSettings().Detection
	cfg.ReturnTolerance = 5
	calc := NewCalculator(cfg)

	got, err := calc.Enrich(spike, readings)
	require.NoError(t, err)

	assert.InDelta(t, 4807.5, got.AUC0, 1e-9)
	assert.InDelta(t, 2357.5, got.AUC70, 1e-9)
	assert.InDelta(t, 982.5, got.AUCRelative, 1e-9)
	assert.Greater(t, got.NormalizedAUC, 0.0)
	require.NotNil(t, got.RecoveryTime)
	assert.Equal(t, 15.0, *got.RecoveryTime)
	assert.Equal(t, 95.0, got.Baseline)
	assert.Zero(t, spike.AUC0, "Enrich must not modify its argument")
}

func TestCalculator_Enrich_InsufficientData(t *testing.T) {
	readings := series(95, 150)
	spike := models.Spike{StartTime: t0.Add(time.Hour), EndTime: t0.Add(2 * time.Hour)}

	_, err := NewCalculator(models.DefaultSettings().Detection).Enrich(spike, readings)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
