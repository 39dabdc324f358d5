package manual

import (
	"log/slog"

	"github.com/mrcode/glucose-spikes/internal/metrics"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// Builder turns boundaries into spikes with full metrics
type Builder struct {
	calc   *metrics.Calculator
	logger *slog.Logger
}

// NewBuilder creates a builder using the detection settings for metrics
func NewBuilder(cfg models.DetectionConfig, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		calc:   metrics.NewCalculator(cfg),
		logger: logger.With("component", "manual"),
	}
}

// Build creates one spike per boundary from the readings inside it. The
// first and last readings are the start and end and the highest reading is
// the peak. Boundaries covering fewer than two readings are skipped.
func (b *Builder) Build(boundaries []Boundary, readings []models.Reading) []models.Spike {
	spikes := make([]models.Spike, 0, len(boundaries))
	for _, bound := range Sort(boundaries) {
		window := models.ReadingsBetween(readings, bound.Start, bound.End)
		if len(window) < 2 {
			b.logger.Warn("skipping manual spike", "boundary", bound.String(), "readings", len(window),
				"error", metrics.ErrInsufficientData)
			continue
		}

		peak := window[0]
		for _, r := range window[1:] {
			if r.Glucose > peak.Glucose {
				peak = r
			}
		}

		spike := models.NewSpike(window[0], peak, window[len(window)-1], models.EndManual, models.SourceManual)
		spike, err := b.calc.Enrich(spike, readings)
		if err != nil {
			b.logger.Warn("skipping manual spike", "boundary", bound.String(), "error", err)
			continue
		}
		spikes = append(spikes, spike)
	}
	return spikes
}
