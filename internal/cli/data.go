package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrcode/glucose-spikes/internal/app"
	"github.com/mrcode/glucose-spikes/internal/models"
)

func (s *Shell) cmdAddMeal(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("addmeal <timestamp> <gl> [note]")
	}
	at, err := models.ParseTimestamp(args[0])
	if err != nil {
		return err
	}
	gl, err := strconv.ParseFloat(args[1], 64)
	if err != nil || gl < 0 {
		return usage("GL must be a non-negative number")
	}
	note := strings.Join(args[2:], " ")

	err = s.app.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		return snap.AddMeal(models.NewMeal(at, gl, note)), nil
	})
	if err != nil {
		return err
	}
	s.printf("[OK] Meal added: %s, GL=%g\n", models.FormatTimestamp(at), gl)
	return nil
}

func (s *Shell) cmdGroupStart(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("group start <timestamp> <description>")
	}
	at, err := models.ParseTimestamp(args[0])
	if err != nil {
		return err
	}
	description := strings.Join(args[1:], " ")

	err = s.app.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		if idx, ok := snap.OpenGroup(); ok {
			return snap, fmt.Errorf("%w: close '%s' with 'group end' first",
				models.ErrGroupStillOpen, snap.Groups[idx].Description)
		}
		return snap.StartGroup(at, description)
	})
	if err != nil {
		return err
	}
	s.printf("[OK] New group started: %s\n", description)
	return nil
}

func (s *Shell) cmdGroupEnd(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("group end <timestamp>")
	}
	at, err := models.ParseTimestamp(args[0])
	if err != nil {
		return err
	}

	var closed string
	err = s.app.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		if idx, ok := snap.OpenGroup(); ok {
			closed = snap.Groups[idx].Description
		}
		return snap.EndGroup(at)
	})
	if err != nil {
		return err
	}
	s.printf("[OK] Group '%s' closed at %s\n", closed, models.FormatTimestamp(at))
	return nil
}

func (s *Shell) cmdBypass(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("bypass <timestamp> <reason>")
	}
	at, err := models.ParseTimestamp(args[0])
	if err != nil {
		return err
	}
	reason := strings.Join(args[1:], " ")

	err = s.app.Update(ctx, func(snap models.Snapshot) (models.Snapshot, error) {
		return snap.AddBypass(at, reason), nil
	})
	if err != nil {
		return err
	}
	s.printf("[OK] Spike at %s bypassed: %s\n", models.FormatTimestamp(at), reason)
	return nil
}

func (s *Shell) cmdLoad(ctx context.Context, _ []string) error {
	info, err := s.app.LoadReadings(ctx)
	if err != nil {
		if errors.Is(err, app.ErrNoReadings) {
			s.printf("[INFO] Place a LibreView CSV export at the configured path or set source.kind to nightscout\n")
		}
		return err
	}
	s.printf("[OK] Loaded %d CGM readings from %s\n", info.Readings, info.Source)
	s.printf("[INFO] Data range: %s to %s\n", stamp(info.Start), stamp(info.End))
	if info.Meals > 0 {
		s.printf("[INFO] %d carb treatments added as meals\n", info.Meals)
	}
	if info.Skipped > 0 {
		s.printf("[INFO] %d rows skipped\n", info.Skipped)
	}
	return nil
}

func (s *Shell) cmdStatus(ctx context.Context, _ []string) error {
	status, err := s.app.NightscoutStatus(ctx)
	if err != nil {
		return err
	}
	s.printf("[OK] %s: status %s, version %s, server time %s\n",
		status.Name, status.Status, status.Version, status.ServerTime)
	if !status.APIEnabled {
		s.printf("[WARNING] API is disabled on the server\n")
	}
	return nil
}

func (s *Shell) cmdNotify(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("notify on|off|test")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		s.app.SetNotify(true)
		s.printf("[OK] Notifications on\n")
	case "off":
		s.app.SetNotify(false)
		s.printf("[OK] Notifications off\n")
	case "test":
		if err := s.app.TestNotification(); err != nil {
			return err
		}
		s.printf("[OK] Test notification sent\n")
	default:
		return usage("notify on|off|test")
	}
	return nil
}

func (s *Shell) cmdListMeals(_ context.Context, args []string) error {
	from, to, err := parseRange(args)
	if err != nil {
		return err
	}

	var meals []models.Meal
	for _, m := range s.app.Meals() {
		if inRange(m.Time, from, to) {
			meals = append(meals, m)
		}
	}
	if len(meals) == 0 {
		s.printf("No meals found\n")
		return nil
	}

	s.heading("Meals", len(meals))
	for _, m := range meals {
		s.printf("  %s  GL=%g", models.FormatTimestamp(m.Time), m.GlycemicLoad)
		if m.Note != "" {
			s.printf("  %s", m.Note)
		}
		s.printf("\n")
	}
	return nil
}

func (s *Shell) cmdListGroups(_ context.Context, _ []string) error {
	groups := s.app.Snapshot().Groups
	if len(groups) == 0 {
		s.printf("No groups defined\n")
		return nil
	}

	s.heading("Analysis Groups", len(groups))
	for i, g := range groups {
		end := "OPEN"
		if g.End != nil {
			end = models.FormatTimestamp(*g.End)
		}
		s.printf("  %d: %s to %s\n", i+1, models.FormatTimestamp(g.Start), end)
		s.printf("     %s\n", g.Description)
	}
	return nil
}

func (s *Shell) cmdExport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("export <path.xlsx|path.csv>")
	}
	if err := s.app.Export(ctx, args[0]); err != nil {
		return err
	}
	s.printf("[OK] Report written to %s\n", args[0])
	return nil
}

func (s *Shell) cmdHelp(_ context.Context, _ []string) error {
	s.printf(`
Commands:
  addmeal <timestamp> <gl> [note]       Add meal entry
  group start <timestamp> <desc>        Start new analysis group
  group end <timestamp>                 Close current group
  group stats <n> [gl_min gl_max]       Show metric statistics of group n, optionally by GL range
  group compare <n> <m>                 Compare metrics of groups n and m
  bypass <timestamp> <reason>           Exclude the spike containing timestamp
  load                                  Reload CGM readings from the configured source
  status                                Check the Nightscout connection
  notify on|off|test                    Switch desktop notifications, or send a test
  analyze [--manual]                    Run full analysis (manual spikes with --manual)
  list meals [start] [end]              List meals in date range
  list groups                           Show all groups
  list spikes [start] [end]             List detected spikes
  list matches [start] [end]            List meal-spike matches
  list unmatched                        Show unmatched spikes and meals
  list profiles [start] [end]           List normalized spike profiles
  compare <n> <m>                       Compare normalized profiles of groups n and m
  similar <profile> [threshold]         Find spikes with similar shapes (threshold: 0.0-1.0)
  stats                                 Show CGM data statistics
  chart spike <n> [--normalized]        Save chart of spike n
  chart day <date>                      Save timeline chart of a day
  chart group <n> [m]                   Save average profile of group n, or n against m
  chart scatter <n>                     Save GL against AUC chart of group n
  manual add <date>                     Mark spikes of a day by hand
  manual list [date]                    Show hand-marked spikes
  export <path.xlsx|path.csv>           Write report of the last analysis
  help                                  Show this help
  quit                                  Exit program

Timestamp format: YYYY-MM-DD:HH:MM (24-hour), dates: YYYY-MM-DD
Groups are numbered as shown by 'list groups'.
Examples:
  addmeal 2025-11-14:18:00 33
  group start 2025-11-01:00:00 "after medication"
  similar 3 0.8
`)
	return nil
}
