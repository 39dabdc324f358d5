package charts

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// DayName is the file name of the timeline chart of day
func DayName(day time.Time) string {
	return "day_" + day.Format("20060102") + ".png"
}

// Day draws one calendar day: the target range, the glucose line, spike
// windows and meal markers
func (r *Renderer) Day(day time.Time, readings []models.Reading, spikes []models.Spike, meals []models.Meal) (image.Image, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1)

	window := models.ReadingsBetween(readings, from, to)
	if len(window) < 2 {
		return nil, fmt.Errorf("%s: %w", from.Format(models.DateLayout), ErrNoData)
	}

	x := make([]float64, len(window))
	y := make([]float64, len(window))
	hi := r.high
	for i, rd := range window {
		x[i] = minutesBetween(from, rd.Time)
		y[i] = rd.Glucose
		hi = math.Max(hi, rd.Glucose)
	}

	f := r.newFrame(0, 24*60, 40, hi+20)
	hours := []float64{0, 180, 360, 540, 720, 900, 1080, 1260, 1440}
	r.axes(f, "Glucose timeline: "+from.Format("Monday 2006-01-02"), "Time", "Glucose (mg/dL)",
		hours, func(v float64) string {
			return from.Add(time.Duration(v) * time.Minute).Format("15:04")
		})

	f.band(r.low, r.high, fade(r.target, 0.6))

	spikeCount := 0
	for _, s := range spikes {
		if !s.StartTime.Before(to) || s.EndTime.Before(from) {
			continue
		}
		spikeCount++
		start := math.Max(0, minutesBetween(from, s.StartTime))
		end := math.Min(24*60, minutesBetween(from, s.EndTime))
		f.span(start, end, fade(r.spike, 0.15))
		f.dot(minutesBetween(from, s.PeakTime), s.PeakGlucose, 5, r.spike)
	}

	f.polyline(x, y, r.line, 2)

	mealCount := 0
	for _, m := range meals {
		if m.Time.Before(from) || !m.Time.Before(to) {
			continue
		}
		mealCount++
		mx := minutesBetween(from, m.Time)
		f.marker(mx, 18, r.meal)
		r.setFont(f.dc, labelSize)
		f.dc.SetColor(parseHexColor(colorText))
		f.dc.DrawStringAnchored(fmt.Sprintf("GL %.0f", m.GlycemicLoad), f.px(mx), f.bottom-26, 0.5, 0.5)
	}

	r.legend(f, []legendItem{
		{"Glucose", r.line},
		{fmt.Sprintf("Spikes (%d)", spikeCount), r.spike},
		{fmt.Sprintf("Meals (%d)", mealCount), r.meal},
		{fmt.Sprintf("Target %.0f-%.0f", r.low, r.high), r.target},
	})

	return f.dc.Image(), nil
}
