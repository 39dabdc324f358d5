// Package detector finds glucose spikes in a CGM series
package detector

import (
	"log/slog"
	"math"
	"time"

	"github.com/mrcode/glucose-spikes/internal/metrics"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// Detector scans a reading series for spikes. It keeps no state between
// calls, so the same input always yields the same spikes.
type Detector struct {
	cfg    models.DetectionConfig
	calc   *metrics.Calculator
	logger *slog.Logger
}

// New creates a detector. Optional thresholds left at zero take their defaults.
func New(cfg models.DetectionConfig, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := models.DefaultSettings().Detection
	if cfg.ValleyWindow < 1 {
		cfg.ValleyWindow = defaults.ValleyWindow
	}
	if cfg.RiseLookaheadMinutes <= 0 {
		cfg.RiseLookaheadMinutes = defaults.RiseLookaheadMinutes
	}

	return &Detector{
		cfg:    cfg,
		calc:   metrics.NewCalculator(cfg),
		logger: logger.With("component", "detector"),
	}
}

// Detect returns the spikes found in readings, ordered by start time.
// readings must be sorted by time. Windows that do not form a complete spike
// are skipped and scanning continues.
func (d *Detector) Detect(readings []models.Reading) []models.Spike {
	var spikes []models.Spike

	i := 0
	for i < len(readings) {
		start := d.findStart(readings, i)
		if start < 0 {
			break
		}

		spike, endIdx, ok := d.analyze(readings, start)
		if !ok {
			i = start + 1
			continue
		}

		enriched, err := d.calc.Enrich(spike, readings)
		if err != nil {
			d.logger.Warn("skipping spike", "start", spike.StartTime, "error", err)
			i = start + 1
			continue
		}
		spikes = append(spikes, enriched)

		// Resume at the end sample so the next spike can start where this one stopped
		i = max(endIdx, start+1)
	}

	d.logger.Debug("detection finished", "readings", len(readings), "spikes", len(spikes))
	return spikes
}

// findStart returns the index of the next confirmed spike start at or after from
func (d *Detector) findStart(readings []models.Reading, from int) int {
	for i := from; i < len(readings)-1; i++ {
		if d.isValley(readings, i) && d.hasRise(readings, i) {
			return i
		}
	}
	return -1
}

// isValley reports whether the reading is no greater than any neighbour within
// the valley window. The window is clipped at the start of the series; the
// last sample cannot be a valley since nothing can rise after it.
func (d *Detector) isValley(readings []models.Reading, idx int) bool {
	if idx >= len(readings)-1 {
		return false
	}
	current := readings[idx].Glucose
	lo := max(0, idx-d.cfg.ValleyWindow)
	hi := min(len(readings)-1, idx+d.cfg.ValleyWindow)
	for j := lo; j <= hi; j++ {
		if j != idx && readings[j].Glucose < current {
			return false
		}
	}
	return true
}

// hasRise looks ahead from a valley for a rise that meets either the
// magnitude or the absolute level threshold
func (d *Detector) hasRise(readings []models.Reading, idx int) bool {
	valley := readings[idx]
	horizon := valley.Time.Add(minutes(d.cfg.RiseLookaheadMinutes))

	found := false
	highest := math.Inf(-1)
	for j := idx + 1; j < len(readings) && !readings[j].Time.After(horizon); j++ {
		if readings[j].Time.Equal(valley.Time) {
			continue
		}
		found = true
		highest = math.Max(highest, readings[j].Glucose)
	}
	if !found {
		return false
	}

	return highest-valley.Glucose >= d.cfg.MinSpikeMagnitude || highest >= d.cfg.MinSpikeThreshold
}

// analyze finds the peak and end of a spike starting at start
func (d *Detector) analyze(readings []models.Reading, start int) (models.Spike, int, bool) {
	peak := d.findPeak(readings, start)
	if peak < 0 {
		return models.Spike{}, 0, false
	}

	end, reason := d.findEnd(readings, start, peak)
	spike := models.NewSpike(readings[start], readings[peak], readings[end], reason, models.SourceAuto)
	if spike.Magnitude < 0 {
		return models.Spike{}, 0, false
	}
	return spike, end, true
}

// findPeak returns the index of the highest reading within the max duration
// window from start. Ties go to the earliest reading.
func (d *Detector) findPeak(readings []models.Reading, start int) int {
	limit := readings[start].Time.Add(minutes(d.cfg.MaxDurationMinutes))

	peak := -1
	for j := start; j < len(readings) && !readings[j].Time.After(limit); j++ {
		if peak < 0 || readings[j].Glucose > readings[peak].Glucose {
			peak = j
		}
	}
	return peak
}

// findEnd scans forward from the peak. Per sample, return to baseline is
// checked before plateau. If neither happens inside the max duration window
// the spike ends at the last sample in it.
func (d *Detector) findEnd(readings []models.Reading, start, peak int) (int, models.EndReason) {
	startGlucose := readings[start].Glucose
	limit := readings[start].Time.Add(minutes(d.cfg.MaxDurationMinutes))

	last := -1
	for j := peak + 1; j < len(readings) && !readings[j].Time.After(limit); j++ {
		last = j
		if math.Abs(readings[j].Glucose-startGlucose) <= d.cfg.ReturnTolerance {
			return j, models.EndReturnedToBaseline
		}
		if d.isPlateau(readings, j) {
			return j, models.EndPlateau
		}
	}

	if last < 0 {
		// No data after the peak in the window
		return peak, models.EndMaxDuration
	}
	return last, models.EndMaxDuration
}

// isPlateau reports whether glucose stays flat for the configured duration
// from idx. Rates are normalized to mg/dL per 5 minutes. A sensor gap longer
// than maxPlateauGap ends the check: flatness is not assumed across it.
func (d *Detector) isPlateau(readings []models.Reading, idx int) bool {
	from := readings[idx].Time
	for j := idx + 1; j < len(readings); j++ {
		dt := readings[j].Time.Sub(readings[j-1].Time).Minutes()
		if dt > maxPlateauGap {
			return false
		}
		if dt > 0 {
			rate := math.Abs(readings[j].Glucose-readings[j-1].Glucose) * 5 / dt
			if rate > d.cfg.FlatRateThreshold {
				return false
			}
		}
		if readings[j].Time.Sub(from).Minutes() >= d.cfg.FlatDurationMinutes {
			return true
		}
	}
	// Not enough data to cover the duration
	return false
}

// maxPlateauGap is the longest step in minutes between readings that a
// plateau may span. Two missed 15 minute historic readings exceed it.
const maxPlateauGap = 30.0

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}
