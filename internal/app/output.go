package app

import (
	"context"
	"image"
	"time"

	"github.com/mrcode/glucose-spikes/internal/charts"
	"github.com/mrcode/glucose-spikes/internal/exporter"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// ChartSpike saves the chart of the 1-based spike n
func (a *App) ChartSpike(n int, normalized bool) (string, error) {
	spike, err := a.Spike(n)
	if err != nil {
		return "", err
	}
	img, err := a.renderer.Spike(n, spike, a.Readings(), normalized)
	if err != nil {
		return "", err
	}
	return a.saveChart(img, charts.SpikeName(n, spike, normalized))
}

// ChartDay saves the timeline chart of day. Spikes come from the last
// analysis when there is one.
func (a *App) ChartDay(day time.Time) (string, error) {
	var spikes []models.Spike
	if res, err := a.Result(); err == nil {
		spikes = res.Spikes
	}
	img, err := a.renderer.Day(day, a.Readings(), spikes, a.Meals())
	if err != nil {
		return "", err
	}
	return a.saveChart(img, charts.DayName(day))
}

// ChartGroup saves the average profile chart of the 0-based group i, or the
// comparison of groups i and j when j is not negative
func (a *App) ChartGroup(i, j int) (string, error) {
	an1, p1, err := a.GroupAnalysis(i)
	if err != nil {
		return "", err
	}
	first := charts.Profile{Label: an1.Group.Description, Average: a.normalizer.Average(p1)}

	if j < 0 {
		img, err := a.renderer.Profiles("Group: "+an1.Group.Description+" (Normalized)", first)
		if err != nil {
			return "", err
		}
		return a.saveChart(img, charts.GroupName(an1.Group.Description))
	}

	an2, p2, err := a.GroupAnalysis(j)
	if err != nil {
		return "", err
	}
	second := charts.Profile{Label: an2.Group.Description, Average: a.normalizer.Average(p2)}
	img, err := a.renderer.Profiles("Group Comparison (Normalized)", first, second)
	if err != nil {
		return "", err
	}
	return a.saveChart(img, charts.CompareName(an1.Group.Description, an2.Group.Description))
}

// ChartScatter saves the GL against AUC chart of the 0-based group i
func (a *App) ChartScatter(i int) (string, error) {
	an, _, err := a.GroupAnalysis(i)
	if err != nil {
		return "", err
	}
	img, err := a.renderer.Scatter("GL vs AUC: "+an.Group.Description, an.Associations)
	if err != nil {
		return "", err
	}
	return a.saveChart(img, charts.ScatterName(an.Group.Description))
}

func (a *App) saveChart(img image.Image, name string) (string, error) {
	path, err := a.renderer.Save(img, name)
	if err != nil {
		return "", err
	}
	if err := a.notifier.ChartsComplete([]string{path}); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
	return path, nil
}

// Export writes the last analysis, its groups and the CGM summary to path
func (a *App) Export(ctx context.Context, path string) error {
	res, err := a.Result()
	if err != nil {
		return err
	}

	rep := exporter.Report{
		Associations:    res.Matching.Associations,
		UnmatchedSpikes: res.Matching.UnmatchedSpikes,
		Groups:          res.Groups,
	}
	if summary, err := a.CGMSummary(); err == nil {
		rep.CGM = &summary
	}

	if err := a.exporter.Write(path, rep); err != nil {
		return err
	}
	if err := a.notifier.ExportComplete(path); err != nil {
		a.logger.WarnContext(ctx, "notification failed", "error", err)
	}
	return nil
}
