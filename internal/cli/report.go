package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mrcode/glucose-spikes/internal/app"
	"github.com/mrcode/glucose-spikes/internal/cgm"
	"github.com/mrcode/glucose-spikes/internal/groups"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/normalizer"
)

const notAvailable = "N/A"

func (s *Shell) cmdAnalyze(ctx context.Context, args []string) error {
	var opts app.AnalyzeOptions
	for _, a := range args {
		switch a {
		case "--manual", "-m":
			opts.Manual = true
		default:
			return usage("analyze [--manual]")
		}
	}

	s.printf("Analyzing glucose data...\n")
	res, err := s.app.Analyze(ctx, opts)
	if err != nil {
		return err
	}

	kind := "Detected"
	if res.Manual {
		kind = "Built"
	}
	s.printf("[OK] %s %d spikes", kind, len(res.Spikes))
	if res.Bypassed > 0 {
		s.printf(" (%d bypassed)", res.Bypassed)
	}
	s.printf("\n")

	d := res.Detection
	if d.Count > 0 {
		s.printf("\nSpikes:\n")
		s.printf("  Avg magnitude: %.0f mg/dL (max %.0f)\n", d.AvgMagnitude, d.MaxMagnitude)
		s.printf("  Avg peak: %.0f mg/dL (max %.0f)\n", d.AvgPeakGlucose, d.MaxPeakGlucose)
		s.printf("  Avg duration: %.0f min, avg time to peak: %.0f min\n", d.AvgDuration, d.AvgTimeToPeak)
		s.printf("  Recovered: %d of %d\n", d.Recovered, d.Count)
		s.printf("  End reasons: %s\n", endReasons(d.EndReasons))
	}

	m := res.Summary
	s.printf("\nMeal matching:\n")
	s.printf("  Matched spikes: %d of %d (%d multi-meal)\n", m.MatchedSpikes, m.TotalSpikes, m.ComplexEvents)
	s.printf("  Matched meals: %d of %d\n", m.MatchedMeals, m.TotalMeals)
	if m.MatchedSpikes > 0 {
		s.printf("  Avg delay: %.0f min, avg GL: %.1f, avg magnitude: %.0f mg/dL\n",
			m.AvgDelay, m.AvgTotalGL, m.AvgMagnitude)
	}
	s.printf("  Normalized profiles: %d\n", len(res.Profiles))

	if len(res.Groups) > 0 {
		s.printf("\nGroups:\n")
		for i, an := range res.Groups {
			s.printf("  %d: %s - %d matched, %d unmatched spikes, %d unmatched meals\n",
				i+1, an.Group.Description, an.MatchedCount(), len(an.UnmatchedSpikes), len(an.UnmatchedMeals))
		}
	}
	return nil
}

func endReasons(counts map[models.EndReason]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[models.EndReason(k)])
	}
	return strings.Join(parts, ", ")
}

func (s *Shell) cmdListSpikes(_ context.Context, args []string) error {
	res, err := s.app.Result()
	if err != nil {
		return err
	}
	from, to, err := parseRange(args)
	if err != nil {
		return err
	}

	count := 0
	for i, sp := range res.Spikes {
		if !inRange(sp.StartTime, from, to) {
			continue
		}
		if count == 0 {
			s.heading("Detected Spikes", len(res.Spikes))
		}
		count++

		s.printf("\nSpike %d:\n", i+1)
		s.printSpike(sp)
	}
	if count == 0 {
		s.printf("No spikes found in specified range\n")
	}
	return nil
}

func (s *Shell) printSpike(sp models.Spike) {
	s.printf("  Start: %s at %.0f mg/dL\n", stamp(sp.StartTime), sp.StartGlucose)
	s.printf("  Peak:  %s at %.0f mg/dL (+%.0f mg/dL in %.0f min, %s)\n",
		clock(sp.PeakTime), sp.PeakGlucose, sp.Magnitude, sp.TimeToPeakMinutes, s.settings.GetGlucoseStatus(sp.PeakGlucose))
	s.printf("  End:   %s at %.0f mg/dL (%s)\n", clock(sp.EndTime), sp.EndGlucose, sp.EndReason)
	s.printf("  Duration: %.0f minutes\n", sp.DurationMinutes)
	s.printf("  AUC-relative: %.0f mg/dL*min, Normalized: %.3f\n", sp.AUCRelative, sp.NormalizedAUC)
	if sp.RecoveryTime != nil {
		s.printf("  Recovery: %.0f minutes\n", *sp.RecoveryTime)
	} else {
		s.printf("  Recovery: %s\n", notAvailable)
	}
}

func (s *Shell) cmdListMatches(_ context.Context, args []string) error {
	res, err := s.app.Result()
	if err != nil {
		return err
	}
	from, to, err := parseRange(args)
	if err != nil {
		return err
	}

	var matches []models.Association
	for _, a := range res.Matching.Associations {
		if inRange(a.PrimaryMeal().Time, from, to) {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		s.printf("No matched events found\n")
		return nil
	}

	s.heading("Meal-Spike Matches", len(matches))
	for i, a := range matches {
		s.printf("\nMatch %d:\n", i+1)
		if a.IsMultiMeal {
			s.printf("  [COMPLEX] %d meals, total GL=%g\n", a.MealCount(), a.TotalGL)
		}
		for j, meal := range a.Meals {
			s.printf("  Meal:  %s (GL=%g, %+.0f min before spike)\n",
				models.FormatTimestamp(meal.Time), meal.GlycemicLoad, a.MealDelays[j])
		}
		s.printSpike(a.Spike)
	}
	return nil
}

func (s *Shell) cmdListUnmatched(_ context.Context, _ []string) error {
	res, err := s.app.Result()
	if err != nil {
		return err
	}

	if spikes := res.Matching.UnmatchedSpikes; len(spikes) > 0 {
		s.heading("Unmatched Spikes", len(spikes))
		s.printf("These spikes have no associated meal - possible unexplained events\n\n")
		for i, sp := range spikes {
			s.printf("%d. %s - Peak: %.0f mg/dL (+%.0f mg/dL), Duration: %.0f min\n",
				i+1, stamp(sp.StartTime), sp.PeakGlucose, sp.Magnitude, sp.DurationMinutes)
		}
	} else {
		s.printf("\n[OK] No unmatched spikes - all spikes have associated meals\n")
	}

	if meals := res.Matching.UnmatchedMeals; len(meals) > 0 {
		s.heading("Unmatched Meals", len(meals))
		s.printf("These meals did not trigger detectable spikes\n\n")
		for i, m := range meals {
			s.printf("%d. %s - GL=%g\n", i+1, models.FormatTimestamp(m.Time), m.GlycemicLoad)
		}
	} else {
		s.printf("\n[OK] No unmatched meals - all meals have associated spikes\n")
	}
	return nil
}

func (s *Shell) cmdListProfiles(_ context.Context, args []string) error {
	res, err := s.app.Result()
	if err != nil {
		return err
	}
	from, to, err := parseRange(args)
	if err != nil {
		return err
	}

	count := 0
	for i, p := range res.Profiles {
		if !inRange(p.SpikeStartTime, from, to) {
			continue
		}
		if count == 0 {
			s.heading("Normalized Spike Profiles", len(res.Profiles))
		}
		count++

		s.printf("\nProfile %d:\n", i+1)
		s.printProfile(p, "  ")
		s.printf("  Baseline: %.0f mg/dL, Peak: %.0f mg/dL\n", p.OriginalBaseline, p.OriginalPeak)
		s.printf("  Data points: %d\n", len(p.TimestampsMinutes))
	}
	if count == 0 {
		s.printf("No profiles found in specified range\n")
	}
	return nil
}

func (s *Shell) printProfile(p models.NormalizedProfile, indent string) {
	s.printf("%sSpike: %s\n", indent, models.FormatTimestamp(p.SpikeStartTime))
	if p.MealTime != nil && p.GlycemicLoad != nil {
		s.printf("%sMeal: %s (GL=%g)\n", indent, models.FormatTimestamp(*p.MealTime), *p.GlycemicLoad)
	}
	s.printf("%sDuration: %.0f minutes\n", indent, p.DurationMinutes)
	s.printf("%sMagnitude: %.0f mg/dL\n", indent, p.OriginalMagnitude)
}

func (s *Shell) cmdGroupStats(_ context.Context, args []string) error {
	if len(args) != 1 && len(args) != 3 {
		return usage("group stats <n> [gl_min gl_max]")
	}
	idx, err := groupIndex(args[0])
	if err != nil {
		return err
	}

	var (
		an       groups.Analysis
		profiles []models.NormalizedProfile
	)
	if len(args) == 3 {
		lo, errLo := strconv.ParseFloat(args[1], 64)
		hi, errHi := strconv.ParseFloat(args[2], 64)
		if errLo != nil || errHi != nil || lo < 0 || hi < lo {
			return usage("group stats <n> [gl_min gl_max], 0 <= gl_min <= gl_max")
		}
		an, profiles, err = s.app.GroupAnalysisByGL(idx, lo, hi)
		if err != nil {
			return err
		}
		s.printf("\nGroup %d: %s, GL %.1f-%.1f\n%s\n", idx+1, an.Group.Label(), lo, hi, rule)
	} else {
		an, profiles, err = s.app.GroupAnalysis(idx)
		if err != nil {
			return err
		}
		s.printf("\nGroup %d: %s\n%s\n", idx+1, an.Group.Label(), rule)
	}
	s.printf("  Matched spikes: %d\n", an.MatchedCount())
	s.printf("  Unmatched spikes: %d, unmatched meals: %d\n", len(an.UnmatchedSpikes), len(an.UnmatchedMeals))
	s.printf("  Normalized profiles: %d\n", len(profiles))
	if an.Stats == nil {
		s.printf("\n[INFO] No matched spikes in this group, statistics %s\n", notAvailable)
		return nil
	}
	st := an.Stats
	s.printf("  Multi-meal events: %d\n\n", st.ComplexEvents)

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Metric\tMean\tMedian\tStd\tMin\tMax\tN\t")
	row := func(label string, ms models.MetricStats) {
		if ms.Count == 0 {
			fmt.Fprintf(w, "%s\t%s\t\t\t\t\t0\t\n", label, notAvailable)
			return
		}
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\t%d\t\n",
			label, ms.Mean, ms.Median, ms.Std, ms.Min, ms.Max, ms.Count)
	}
	for _, key := range groups.Metrics() {
		label, unit := groups.MetricLabel(key)
		row(fmt.Sprintf("%s (%s)", label, unit), st.Metrics[key])
	}
	row("Glycemic load", st.GlycemicLoad)
	row("Duration (min)", st.Duration)
	row("Peak glucose (mg/dL)", st.PeakGlucose)
	return w.Flush()
}

func (s *Shell) cmdGroupCompare(_ context.Context, args []string) error {
	i, j, err := twoGroups(args, "group compare <n> <m>")
	if err != nil {
		return err
	}
	cmp, _, err := s.app.CompareGroups(i, j)
	if err != nil {
		return err
	}
	if cmp == nil {
		s.printf("Comparison: %s (one or both groups have no matched spikes)\n", notAvailable)
		return nil
	}

	s.printf("\nGroup %d \"%s\" (%d spikes) vs Group %d \"%s\" (%d spikes)\n%s\n",
		i+1, cmp.A.Group.Description, cmp.A.Count, j+1, cmp.B.Group.Description, cmp.B.Count, rule)

	w := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Metric\tGroup A\tGroup B\tChange\t%\t")
	for _, ch := range cmp.Changes {
		if !ch.Available {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", ch.Label, notAvailable, notAvailable, notAvailable, notAvailable)
			continue
		}
		pct := notAvailable
		if ch.MeanA != 0 {
			pct = fmt.Sprintf("%+.1f%%", ch.Percent)
		}
		mark := ""
		if ch.IsImprovement {
			mark = " improved"
		}
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%+.1f %s\t%s%s\t\n",
			ch.Label, ch.MeanA, ch.MeanB, ch.Absolute, ch.Unit, pct, mark)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	improved, total := groups.Improvements(*cmp)
	s.printf("\n%d of %d lower-is-better metrics improved\n", improved, total)
	return nil
}

func twoGroups(args []string, text string) (int, int, error) {
	if len(args) != 2 {
		return 0, 0, usage(text)
	}
	i, err := groupIndex(args[0])
	if err != nil {
		return 0, 0, err
	}
	j, err := groupIndex(args[1])
	if err != nil {
		return 0, 0, err
	}
	return i, j, nil
}

func (s *Shell) cmdCompareProfiles(_ context.Context, args []string) error {
	i, j, err := twoGroups(args, "compare <n> <m>")
	if err != nil {
		return err
	}
	_, cmp, err := s.app.CompareGroups(i, j)
	if err != nil {
		return err
	}
	snap := s.app.Snapshot()

	s.printf("\nGroup Comparison:\n%s\n", rule)
	sides := []struct {
		idx     int
		summary normalizer.ProfileSummary
	}{{i, cmp.A}, {j, cmp.B}}
	for _, side := range sides {
		idx, summary := side.idx, side.summary
		g, err := snap.Group(idx)
		if err != nil {
			return err
		}
		s.printf("\nGroup %d: \"%s\"\n", idx+1, g.Description)
		s.printf("  Count: %d spikes\n", summary.Count)
		if summary.Count == 0 {
			continue
		}
		s.printf("  Avg duration: %.0f ± %.0f min\n", summary.Duration.Mean, summary.Duration.Std)
		s.printf("  Avg magnitude: %.0f ± %.0f mg/dL\n", summary.Magnitude.Mean, summary.Magnitude.Std)
		if gl := summary.GlycemicLoad; gl != nil {
			s.printf("  Avg GL: %.1f ± %.1f\n", gl.Mean, gl.Std)
		}
	}

	if cmp.Change == nil {
		s.printf("\nChange: %s (one or both groups have no profiles)\n", notAvailable)
		return nil
	}
	ch := cmp.Change
	s.printf("\nChange (Group %d vs Group %d):\n", j+1, i+1)
	s.printf("  Duration: %+.0f min (%s)\n", ch.DurationMinutes, percent(cmp.A.Duration.Mean, ch.DurationPercent))
	s.printf("  Magnitude: %+.0f mg/dL (%s)\n", ch.MagnitudeMgDL, percent(cmp.A.Magnitude.Mean, ch.MagnitudePercent))

	switch {
	case ch.DurationPercent < -5:
		s.printf("  Improved: shorter spike duration\n")
	case ch.DurationPercent > 5:
		s.printf("  Longer: spike duration increased\n")
	}
	switch {
	case ch.MagnitudePercent < -5:
		s.printf("  Improved: lower spike magnitude\n")
	case ch.MagnitudePercent > 5:
		s.printf("  Higher: spike magnitude increased\n")
	}
	return nil
}

func percent(base, pct float64) string {
	if base == 0 {
		return notAvailable
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

func (s *Shell) cmdSimilar(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("similar <profile> [threshold]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return usage("similar <profile> [threshold], profile is the number from 'list profiles'")
	}
	threshold := 0.0
	if len(args) == 2 {
		threshold, err = strconv.ParseFloat(args[1], 64)
		if err != nil || threshold < 0 || threshold > 1 {
			return usage("threshold must be between 0.0 and 1.0")
		}
	}

	target, matches, err := s.app.Similar(n, threshold)
	if err != nil {
		return err
	}
	if threshold == 0 {
		threshold = s.settings.Analysis.SimilarityThreshold
	}

	s.printf("\nTarget Spike (Profile %d):\n", n)
	s.printProfile(target, "  ")

	if len(matches) == 0 {
		s.printf("\n[INFO] No similar spikes found (threshold=%.2f)\n", threshold)
		return nil
	}

	res, err := s.app.Result()
	if err != nil {
		return err
	}
	s.heading(fmt.Sprintf("Similar Spikes, threshold=%.2f", threshold), len(matches))
	for i, m := range matches {
		s.printf("\n%d. Profile #%d - Similarity: %.3f\n", i+1, profileNumber(res.Profiles, m.Profile), m.Similarity)
		s.printProfile(m.Profile, "   ")
	}
	return nil
}

// profileNumber returns the 1-based position of p, found by start time
func profileNumber(profiles []models.NormalizedProfile, p models.NormalizedProfile) int {
	for i, c := range profiles {
		if c.SpikeStartTime.Equal(p.SpikeStartTime) {
			return i + 1
		}
	}
	return 0
}

func (s *Shell) cmdStats(_ context.Context, _ []string) error {
	st, err := s.app.CGMSummary()
	if err != nil {
		return err
	}
	cfg := s.settings.Analysis

	s.printf("\nCGM Data Statistics:\n%s\n", rule)
	s.printf("Date range: %s to %s\n", stamp(st.Start), stamp(st.End))
	s.printf("Duration: %d days, %d readings\n", st.Days, st.Readings)
	s.printf("\nGlucose statistics:\n")
	s.printf("  Mean: %.1f mg/dL, %.1f mmol/L (SD %.1f, CV %.1f%%)\n", st.Mean, models.ToMmol(st.Mean), st.Std, st.CV)
	s.printf("  Min: %.0f mg/dL\n", st.Min)
	s.printf("  Max: %.0f mg/dL\n", st.Max)
	s.printf("  Range: %.0f mg/dL\n", st.Max-st.Min)
	s.printf("  GMI: %.1f%%\n", st.GMI)
	s.printf("\nTarget range %.0f-%.0f mg/dL:\n", cfg.TargetLow, cfg.TargetHigh)
	s.printf("  In range: %.1f%%\n", st.TimeInRange)
	s.printf("  Below: %.1f%%\n", st.TimeBelowRange)
	s.printf("  Above: %.1f%%\n", st.TimeAboveRange)

	if len(st.ByPeriod) > 0 {
		periods := make([]string, 0, len(st.ByPeriod))
		for p := range st.ByPeriod {
			periods = append(periods, string(p))
		}
		sort.Strings(periods)
		s.printf("\nMean by time of day:\n")
		for _, p := range periods {
			s.printf("  %s: %.0f mg/dL\n", p, st.ByPeriod[cgm.Period(p)])
		}
	}
	return nil
}
