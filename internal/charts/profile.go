package charts

import (
	"fmt"
	"image"
	"math"

	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/normalizer"
)

// Profile is a labelled average profile to draw
type Profile struct {
	Label   string
	Average normalizer.AverageProfile
}

// GroupName is the file name of the profile chart of one group
func GroupName(description string) string {
	return "group_" + slug(description) + "_profile.png"
}

// CompareName is the file name of the profile comparison chart
func CompareName(a, b string) string {
	return "compare_" + slug(a) + "_vs_" + slug(b) + ".png"
}

// ScatterName is the file name of the GL against AUC chart of one group
func ScatterName(description string) string {
	return "scatter_" + slug(description) + "_gl_vs_auc.png"
}

// Profiles draws the mean normalized curve of each profile with a one
// standard deviation band. The first profile uses the line colour and the
// second the comparison colour.
func (r *Renderer) Profiles(title string, profiles ...Profile) (image.Image, error) {
	longest := 0.0
	hi := 1.0
	for _, p := range profiles {
		if p.Average.Count == 0 || len(p.Average.TimeMinutes) < 2 {
			return nil, fmt.Errorf("%s: %w", p.Label, ErrNoData)
		}
		longest = math.Max(longest, p.Average.TimeMinutes[len(p.Average.TimeMinutes)-1])
		for i, m := range p.Average.Mean {
			hi = math.Max(hi, m+p.Average.Std[i])
		}
	}
	if len(profiles) == 0 {
		return nil, ErrNoData
	}

	f := r.newFrame(0, longest, -0.1, hi+0.1)
	r.axes(f, title, "Minutes from spike start", "Normalized glucose (0=baseline, 1=peak)",
		niceTicks(0, longest, 8), formatTick)
	f.hline(0, parseHexColor(colorBaseline))

	colors := []string{"", colorSecond}
	var items []legendItem
	for i, p := range profiles {
		c := r.line
		if i > 0 {
			c = parseHexColor(colors[i%len(colors)])
		}
		avg := p.Average
		lower := make([]float64, len(avg.Mean))
		upper := make([]float64, len(avg.Mean))
		for j := range avg.Mean {
			lower[j] = avg.Mean[j] - avg.Std[j]
			upper[j] = avg.Mean[j] + avg.Std[j]
		}
		f.envelope(avg.TimeMinutes, lower, upper, fade(c, 0.2))
		f.polyline(avg.TimeMinutes, avg.Mean, c, 2.5)
		items = append(items, legendItem{fmt.Sprintf("%s (n=%d)", p.Label, avg.Count), c})
	}
	r.legend(f, items)

	return f.dc.Image(), nil
}

// Scatter plots glycemic load against relative AUC for associations
func (r *Renderer) Scatter(title string, assocs []models.Association) (image.Image, error) {
	if len(assocs) == 0 {
		return nil, ErrNoData
	}

	maxGL, maxAUC := 1.0, 1.0
	for _, a := range assocs {
		maxGL = math.Max(maxGL, a.TotalGL)
		maxAUC = math.Max(maxAUC, a.Spike.AUCRelative)
	}

	f := r.newFrame(0, maxGL*1.1, 0, maxAUC*1.1)
	r.axes(f, title, "Glycemic load", "AUC-relative (mg/dL·min)",
		niceTicks(0, maxGL*1.1, 8), formatTick)

	single, multi := 0, 0
	for _, a := range assocs {
		c := r.line
		if a.IsMultiMeal {
			c = r.spike
			multi++
		} else {
			single++
		}
		f.dot(a.TotalGL, a.Spike.AUCRelative, 5, c)
	}
	r.legend(f, []legendItem{
		{fmt.Sprintf("Single meal (%d)", single), r.line},
		{fmt.Sprintf("Multi meal (%d)", multi), r.spike},
	})

	return f.dc.Image(), nil
}
