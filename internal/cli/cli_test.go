package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/glucose-spikes/internal/app"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/store"
)

var day = time.Date(2025, 11, 14, 0, 0, 0, 0, time.Local)

// readings is one value every 15 minutes, flat at 100 with a spike peaking
// at 200 at 12:30
func readings() []models.Reading {
	var out []models.Reading
	for m := 0; m < 24*60; m += 15 {
		at := day.Add(time.Duration(m) * time.Minute)
		g := 100.0
		switch m {
		case 12*60 + 15, 12*60 + 45:
			g = 150
		case 12*60 + 30:
			g = 200
		}
		out = append(out, models.Reading{Time: at, Glucose: g})
	}
	return out
}

func newShell(t *testing.T, input string) (*Shell, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	settings := models.DefaultSettings()
	settings.Source.LibreViewCSV = filepath.Join(dir, "missing.csv")
	settings.Storage.Path = filepath.Join(dir, "meals.json")
	settings.Storage.ManualPath = filepath.Join(dir, "manual_spikes.json")
	settings.Output.ChartDir = filepath.Join(dir, "charts")
	settings.Output.ChartWidth = 400
	settings.Output.ChartHeight = 300

	repo, err := store.Open(settings.Storage, nil)
	require.NoError(t, err)
	a, err := app.New(settings, repo, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.LoadSnapshot(context.Background()))
	a.SetReadings(readings())

	var out bytes.Buffer
	return New(a, strings.NewReader(input), &out, nil), &out
}

// run executes lines and fails on the first error
func run(t *testing.T, s *Shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		require.NoError(t, s.Execute(context.Background(), line), line)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"list meals", []string{"list", "meals"}},
		{`group start 2025-11-14:00:00 "after medication"`, []string{"group", "start", "2025-11-14:00:00", "after medication"}},
		{"bypass\t2025-11-14:12:00  sensor", []string{"bypass", "2025-11-14:12:00", "sensor"}},
		{`note ""`, []string{"note", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, splitArgs(tt.line))
		})
	}
}

func TestParseRange(t *testing.T) {
	from, to, err := parseRange([]string{"2025-11-14:08:00", "2025-11-15"})
	require.NoError(t, err)
	assert.True(t, from.Equal(day.Add(8*time.Hour)))
	assert.True(t, to.Equal(day.AddDate(0, 0, 2).Add(-time.Nanosecond)))

	from, to, err = parseRange(nil)
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())

	_, _, err = parseRange([]string{"yesterday"})
	assert.ErrorIs(t, err, models.ErrInvalidTimestamp)
}

func TestExecute_Errors(t *testing.T) {
	s, out := newShell(t, "")
	ctx := context.Background()

	tests := []struct {
		line string
		want error
	}{
		{"frobnicate", ErrUnknownCommand},
		{"list", ErrUsage},
		{"list everything", ErrUnknownCommand},
		{"addmeal 2025-11-14:12:00", ErrUsage},
		{"addmeal 2025-11-14:12:00 lots", ErrUsage},
		{"addmeal 14.11.2025 30", models.ErrInvalidTimestamp},
		{"group end 2025-11-14:12:00", models.ErrNoOpenGroup},
		{"list spikes", app.ErrNoAnalysis},
		{"similar 1 1.5", ErrUsage},
		{"analyze --fast", ErrUsage},
		{"status", app.ErrNightscoutDisabled},
		{"notify loudly", ErrUsage},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out.Reset()
			err := s.Execute(ctx, tt.line)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, strings.HasPrefix(out.String(), "[ERROR]"), out.String())
		})
	}
}

func TestDataEntry(t *testing.T) {
	s, out := newShell(t, "")

	run(t, s, "addmeal 2025-11-14:11:50 35 pasta with pesto")
	assert.Contains(t, out.String(), "[OK] Meal added: 2025-11-14:11:50, GL=35")

	run(t, s, `group start 2025-11-14:00:00 "baseline week"`)
	err := s.Execute(context.Background(), "group start 2025-11-15:00:00 next")
	assert.ErrorIs(t, err, models.ErrGroupStillOpen)
	assert.Contains(t, out.String(), "close 'baseline week'")

	run(t, s, "group end 2025-11-14:23:59", "bypass 2025-11-14:20:00 sensor compression")
	assert.Contains(t, out.String(), "[OK] Group 'baseline week' closed at 2025-11-14:23:59")
	assert.Contains(t, out.String(), "bypassed: sensor compression")

	out.Reset()
	run(t, s, "list meals 2025-11-14")
	assert.Contains(t, out.String(), "Meals (1 total)")
	assert.Contains(t, out.String(), "pasta with pesto")

	out.Reset()
	run(t, s, "list meals 2025-11-15")
	assert.Contains(t, out.String(), "No meals found")

	out.Reset()
	run(t, s, "list groups")
	assert.Contains(t, out.String(), "1: 2025-11-14:00:00 to 2025-11-14:23:59")

	snap := s.app.Snapshot()
	assert.Len(t, snap.Meals, 1)
	assert.Len(t, snap.Groups, 1)
	assert.Len(t, snap.Bypasses, 1)
}

func TestNotifyCommand(t *testing.T) {
	s, out := newShell(t, "")

	run(t, s, "notify on")
	assert.Contains(t, out.String(), "[OK] Notifications on")
	assert.True(t, s.app.Settings().Output.Notify)

	run(t, s, "notify OFF")
	assert.Contains(t, out.String(), "[OK] Notifications off")
	assert.False(t, s.app.Settings().Output.Notify)
}

func TestAnalysisCommands(t *testing.T) {
	s, out := newShell(t, "")
	run(t, s,
		"addmeal 2025-11-14:11:50 35",
		"addmeal 2025-11-14:19:00 12",
		"group start 2025-11-14:00:00 baseline",
		"analyze",
	)
	assert.Contains(t, out.String(), "[OK] Detected 1 spikes")
	assert.Contains(t, out.String(), "returned_to_baseline=1")
	assert.Contains(t, out.String(), "Matched spikes: 1 of 1")

	out.Reset()
	run(t, s, "list spikes")
	assert.Contains(t, out.String(), "Spike 1:")
	assert.Contains(t, out.String(), "Peak:  12:30 at 200 mg/dL")

	out.Reset()
	run(t, s, "list spikes 2025-11-15")
	assert.Contains(t, out.String(), "No spikes found")

	out.Reset()
	run(t, s, "list matches")
	assert.Contains(t, out.String(), "Meal:  2025-11-14:11:50 (GL=35")

	out.Reset()
	run(t, s, "list unmatched")
	assert.Contains(t, out.String(), "[OK] No unmatched spikes")
	assert.Contains(t, out.String(), "1. 2025-11-14:19:00 - GL=12")

	out.Reset()
	run(t, s, "list profiles")
	assert.Contains(t, out.String(), "Profile 1:")

	out.Reset()
	run(t, s, "group stats 1")
	assert.Contains(t, out.String(), "Matched spikes: 1")
	assert.Contains(t, out.String(), "Magnitude (mg/dL)")

	err := s.Execute(context.Background(), "group stats 4")
	assert.ErrorIs(t, err, models.ErrInvalidGroupIndex)

	out.Reset()
	run(t, s, "group stats 1 30 40")
	assert.Contains(t, out.String(), "GL 30.0-40.0")
	assert.Contains(t, out.String(), "Matched spikes: 1")

	out.Reset()
	run(t, s, "group stats 1 0 20")
	assert.Contains(t, out.String(), "Matched spikes: 0")
	assert.Contains(t, out.String(), "statistics N/A")

	err = s.Execute(context.Background(), "group stats 1 40 30")
	assert.ErrorIs(t, err, ErrUsage)

	out.Reset()
	run(t, s, "similar 1")
	assert.Contains(t, out.String(), "No similar spikes found (threshold=0.80)")

	out.Reset()
	run(t, s, "stats")
	assert.Contains(t, out.String(), "Max: 200 mg/dL")
	assert.Contains(t, out.String(), "Duration: 0 days, 96 readings")

	run(t, s, "group end 2025-11-14:11:00")
	err = s.Execute(context.Background(), "group stats 1")
	assert.ErrorIs(t, err, app.ErrNoAnalysis, "a changed group needs a new analyze")
}

func TestCompareCommands_NotAvailable(t *testing.T) {
	s, out := newShell(t, "")
	run(t, s,
		"addmeal 2025-11-14:11:50 35",
		"group start 2025-11-14:00:00 before",
		"group end 2025-11-14:23:59",
		"group start 2025-11-20:00:00 after",
		"analyze",
	)

	out.Reset()
	run(t, s, "group compare 1 2")
	assert.Contains(t, out.String(), "Comparison: N/A")

	out.Reset()
	run(t, s, "compare 1 2")
	assert.Contains(t, out.String(), "Count: 1 spikes")
	assert.Contains(t, out.String(), "Change: N/A")
}

func TestChartAndExportCommands(t *testing.T) {
	s, out := newShell(t, "")
	run(t, s, "addmeal 2025-11-14:11:50 35", "group start 2025-11-14:00:00 baseline", "analyze")

	out.Reset()
	run(t, s, "chart day 2025-11-14")
	assert.Contains(t, out.String(), "[OK] Chart saved:")
	assert.Contains(t, out.String(), "Max: 210")

	for _, line := range []string{"chart spike 1", "chart spike 1 --normalized", "chart group 1", "chart scatter 1"} {
		out.Reset()
		run(t, s, line)
		assert.Contains(t, out.String(), "[OK] Chart saved:", line)
	}

	err := s.Execute(context.Background(), "chart spike 1 --wide")
	assert.ErrorIs(t, err, ErrUsage)

	path := filepath.Join(t.TempDir(), "report.xlsx")
	out.Reset()
	run(t, s, "export "+path)
	assert.Contains(t, out.String(), "[OK] Report written to "+path)
}

func TestManualAdd(t *testing.T) {
	s, out := newShell(t, "12:07\n11:00\n14:02\nbogus\n13:00\ndone\n")

	run(t, s, "manual add 2025-11-14")
	output := out.String()
	assert.Contains(t, output, "Start set at 12:00 (100 mg/dL)")
	assert.Contains(t, output, "End must be after the start")
	assert.Contains(t, output, "[OK] Spike")
	assert.Contains(t, output, `Invalid time "bogus"`)
	assert.Contains(t, output, "[OK] 1 spike(s) saved for 2025-11-14")

	boundaries, err := s.app.ManualBoundaries()
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.True(t, boundaries[0].Start.Equal(day.Add(12*time.Hour)))
	assert.True(t, boundaries[0].End.Equal(day.Add(14*time.Hour)))

	out.Reset()
	run(t, s, "manual list 2025-11-14")
	assert.Contains(t, out.String(), "Manual Spikes (1 total)")

	out.Reset()
	run(t, s, "analyze --manual")
	assert.Contains(t, out.String(), "[OK] Built 1 spikes")
}

func TestManualAdd_EndOfInputSaves(t *testing.T) {
	s, out := newShell(t, "12:00\n13:00\n")

	run(t, s, "manual add 2025-11-14")
	assert.Contains(t, out.String(), "[OK] 1 spike(s) saved")
}

func TestManualAdd_NoData(t *testing.T) {
	s, _ := newShell(t, "")
	err := s.Execute(context.Background(), "manual add 2025-12-01")
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	s, out := newShell(t, "help\n\nfrobnicate\nquit\nstats\n")

	require.NoError(t, s.Run(context.Background()))
	output := out.String()
	assert.Contains(t, output, "Glucose Spike Analyzer")
	assert.Contains(t, output, "CGM data: 96 readings loaded")
	assert.Contains(t, output, "Commands:")
	assert.Contains(t, output, "[ERROR] unknown command: frobnicate")
	assert.Contains(t, output, "Goodbye!")
	assert.NotContains(t, output, "CGM Data Statistics", "commands after quit are not run")
}
