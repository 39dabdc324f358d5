package charts

import (
	"fmt"
	"image"
	"math"

	"github.com/mrcode/glucose-spikes/internal/metrics"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// SpikeName is the file name of the chart of the 1-based spike number n
func SpikeName(n int, spike models.Spike, normalized bool) string {
	suffix := ""
	if normalized {
		suffix = "_normalized"
	}
	return fmt.Sprintf("spike_%d_%s%s.png", n, spike.StartTime.Format("20060102_1504"), suffix)
}

// Spike draws the glucose curve of one spike with its baseline, relative
// AUC area, peak and recovery point. With normalized set the curve is
// rescaled to 0 at baseline and 1 at peak.
func (r *Renderer) Spike(n int, spike models.Spike, readings []models.Reading, normalized bool) (image.Image, error) {
	window := models.ReadingsBetween(readings, spike.StartTime, spike.EndTime)
	if len(window) < 2 {
		return nil, fmt.Errorf("spike %d: %w", n, ErrNoData)
	}

	x, y := metrics.Series(window, spike.StartTime)
	baseline, peak := spike.Baseline, spike.PeakGlucose
	yTitle := "Glucose (mg/dL)"
	if normalized {
		y = metrics.NormalizeCurve(y, spike.Baseline, spike.PeakGlucose)
		baseline, peak = 0, 1
		yTitle = "Normalized glucose (0=baseline, 1=peak)"
	}

	lo, hi := baseline, peak
	for _, v := range y {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	pad := (hi - lo) * 0.1
	f := r.newFrame(0, x[len(x)-1], lo-pad, hi+pad)

	title := fmt.Sprintf("Spike %d: %s", n, spike.StartTime.Format("2006-01-02 15:04"))
	if normalized {
		title += " (Normalized)"
	}
	r.axes(f, title, "Minutes from spike start", yTitle,
		niceTicks(0, x[len(x)-1], 8), formatTick)

	f.area(x, y, baseline, fade(r.line, 0.3))
	f.hline(baseline, parseHexColor(colorBaseline))
	f.polyline(x, y, r.line, 2)
	for i := range x {
		f.dot(x[i], y[i], 2.5, r.line)
	}

	peakMin := minutesBetween(spike.StartTime, spike.PeakTime)
	f.dot(peakMin, peak, 7, r.spike)

	items := []legendItem{
		{"Glucose", r.line},
		{"AUC-relative", fade(r.line, 0.3)},
		{"Baseline", parseHexColor(colorBaseline)},
		{"Peak", r.spike},
	}
	if spike.RecoveryTime != nil {
		recovery := peakMin + *spike.RecoveryTime
		for i := range x {
			if x[i] >= recovery-1e-9 {
				f.dot(x[i], y[i], 6, r.meal)
				break
			}
		}
		items = append(items, legendItem{"Recovery", r.meal})
	}
	r.legend(f, items)

	return f.dc.Image(), nil
}
