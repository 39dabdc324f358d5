package app

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mrcode/glucose-spikes/internal/cgm"
	"github.com/mrcode/glucose-spikes/internal/detector"
	"github.com/mrcode/glucose-spikes/internal/groups"
	"github.com/mrcode/glucose-spikes/internal/matcher"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/normalizer"
)

// Result is the outcome of one analysis run
type Result struct {
	Manual    bool
	Spikes    []models.Spike // after bypass filtering, sorted by start
	Bypassed  int
	Detection detector.Summary
	Matching  matcher.Result
	Summary   matcher.Summary
	Profiles  []models.NormalizedProfile // one per association with data

	// Groups and GroupProfiles follow the order of the snapshot groups
	Groups        []groups.Analysis
	GroupProfiles [][]models.NormalizedProfile
}

// AnalyzeOptions selects how spikes are found
type AnalyzeOptions struct {
	// Manual uses the manual boundaries file instead of the detector
	Manual bool
}

// Analyze runs detection, bypass filtering, meal association, profile
// normalization and per-group aggregation over the loaded data
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) (*Result, error) {
	a.mu.RLock()
	readings := a.readings
	snap := a.snapshot
	meals := a.mealsLocked()
	a.mu.RUnlock()

	if len(readings) == 0 {
		return nil, ErrNoReadings
	}

	res := &Result{Manual: opts.Manual}

	var found []models.Spike
	if opts.Manual {
		boundaries, err := a.ManualBoundaries()
		if err != nil {
			return nil, fmt.Errorf("loading manual spikes: %w", err)
		}
		found = a.manual.Build(boundaries, readings)
	} else {
		found = a.detector.Detect(readings)
	}

	for _, s := range found {
		if snap.IsBypassed(s) {
			res.Bypassed++
			continue
		}
		res.Spikes = append(res.Spikes, s)
	}
	res.Detection = detector.Summarize(res.Spikes)

	res.Matching = a.matcher.Associate(meals, res.Spikes)
	res.Summary = matcher.Summarize(res.Matching)
	res.Profiles = a.normalizer.NormalizeAssociations(res.Matching.Associations, readings)

	if err := a.analyzeGroups(ctx, snap.Groups, readings, res); err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.result = res
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "analysis complete",
		"manual", opts.Manual,
		"spikes", len(res.Spikes),
		"bypassed", res.Bypassed,
		"matched", res.Summary.MatchedSpikes,
		"groups", len(res.Groups))

	if err := a.notifier.AnalysisComplete(res.Summary); err != nil {
		a.logger.WarnContext(ctx, "notification failed", "error", err)
	}
	return res, nil
}

// analyzeGroups fills the group analyses and profiles concurrently. Each
// worker writes only its own slot.
func (a *App) analyzeGroups(ctx context.Context, gs []models.Group, readings []models.Reading, res *Result) error {
	res.Groups = make([]groups.Analysis, len(gs))
	res.GroupProfiles = make([][]models.NormalizedProfile, len(gs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, group := range gs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			an := a.aggregator.Analyze(group, res.Matching.Associations,
				res.Matching.UnmatchedSpikes, res.Matching.UnmatchedMeals)
			res.Groups[i] = an
			res.GroupProfiles[i] = a.normalizer.NormalizeAssociations(an.Associations, readings)
			return nil
		})
	}
	return g.Wait()
}

// Result returns the last analysis
func (a *App) Result() (*Result, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.result == nil {
		return nil, ErrNoAnalysis
	}
	return a.result, nil
}

// Spike returns the 1-based spike n of the last analysis
func (a *App) Spike(n int) (models.Spike, error) {
	res, err := a.Result()
	if err != nil {
		return models.Spike{}, err
	}
	if n < 1 || n > len(res.Spikes) {
		return models.Spike{}, fmt.Errorf("%w: %d (have %d spikes)", ErrInvalidSpikeIndex, n, len(res.Spikes))
	}
	return res.Spikes[n-1], nil
}

// GroupAnalysis returns the analysis and profiles of the 0-based group idx
func (a *App) GroupAnalysis(idx int) (groups.Analysis, []models.NormalizedProfile, error) {
	res, err := a.Result()
	if err != nil {
		return groups.Analysis{}, nil, err
	}
	if idx < 0 || idx >= len(res.Groups) {
		return groups.Analysis{}, nil, fmt.Errorf("%w: %d (have %d groups)",
			models.ErrInvalidGroupIndex, idx+1, len(res.Groups))
	}
	return res.Groups[idx], res.GroupProfiles[idx], nil
}

// GroupAnalysisByGL is GroupAnalysis restricted to associations with a total
// glycemic load in [lo, hi]
func (a *App) GroupAnalysisByGL(idx int, lo, hi float64) (groups.Analysis, []models.NormalizedProfile, error) {
	an, _, err := a.GroupAnalysis(idx)
	if err != nil {
		return groups.Analysis{}, nil, err
	}
	an = a.aggregator.RestrictGL(an, lo, hi)
	return an, a.normalizer.NormalizeAssociations(an.Associations, a.Readings()), nil
}

// CompareGroups compares the statistics and profiles of two 0-based groups.
// The statistics comparison is nil when either group has no matched spikes.
func (a *App) CompareGroups(i, j int) (*models.GroupComparison, normalizer.ProfileComparison, error) {
	an1, p1, err := a.GroupAnalysis(i)
	if err != nil {
		return nil, normalizer.ProfileComparison{}, err
	}
	an2, p2, err := a.GroupAnalysis(j)
	if err != nil {
		return nil, normalizer.ProfileComparison{}, err
	}
	return groups.CompareAnalyses(an1, an2), a.normalizer.CompareGroups(p1, p2), nil
}

// Similar returns the profiles whose shape correlates with the 1-based
// profile n at or above threshold. A threshold of zero or less uses the
// configured one.
func (a *App) Similar(n int, threshold float64) (models.NormalizedProfile, []normalizer.Match, error) {
	res, err := a.Result()
	if err != nil {
		return models.NormalizedProfile{}, nil, err
	}
	if n < 1 || n > len(res.Profiles) {
		return models.NormalizedProfile{}, nil,
			fmt.Errorf("%w: %d (have %d profiles)", ErrInvalidProfileIndex, n, len(res.Profiles))
	}
	if threshold <= 0 {
		threshold = a.settings.Analysis.SimilarityThreshold
	}
	target := res.Profiles[n-1]
	return target, normalizer.FindSimilar(target, res.Profiles, threshold), nil
}

// AverageProfile averages profiles on the normalizer grid
func (a *App) AverageProfile(profiles []models.NormalizedProfile) normalizer.AverageProfile {
	return a.normalizer.Average(profiles)
}

// CGMSummary summarizes the loaded readings against the target range
func (a *App) CGMSummary() (cgm.Summary, error) {
	readings := a.Readings()
	if len(readings) == 0 {
		return cgm.Summary{}, ErrNoReadings
	}
	return cgm.Summarize(readings, a.settings.Analysis.TargetLow, a.settings.Analysis.TargetHigh), nil
}
