package cli

import (
	"context"
	"strconv"
	"time"

	"github.com/mrcode/glucose-spikes/internal/charts"
	"github.com/mrcode/glucose-spikes/internal/models"
)

const (
	previewWidth  = 96
	previewHeight = 8
)

func (s *Shell) cmdChartSpike(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("chart spike <n> [--normalized]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return usage("chart spike <n> [--normalized], n is the number from 'list spikes'")
	}
	normalized := len(args) == 2 && (args[1] == "--normalized" || args[1] == "-n")
	if len(args) == 2 && !normalized {
		return usage("chart spike <n> [--normalized]")
	}

	path, err := s.app.ChartSpike(n, normalized)
	if err != nil {
		return err
	}
	s.printf("[OK] Chart saved: %s\n", path)
	return nil
}

func (s *Shell) cmdChartDay(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("chart day <YYYY-MM-DD>")
	}
	day, err := models.ParseDate(args[0])
	if err != nil {
		return err
	}

	path, err := s.app.ChartDay(day)
	if err != nil {
		return err
	}
	s.printf("[OK] Chart saved: %s\n", path)
	s.preview(day)
	return nil
}

// preview prints a terminal sparkline of the day's readings
func (s *Shell) preview(day time.Time) {
	readings := models.ReadingsBetween(s.app.Readings(), day, day.AddDate(0, 0, 1).Add(-time.Nanosecond))
	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Glucose
	}
	if line := charts.Sparkline(charts.Downsample(values, previewWidth), previewHeight); line != "" {
		s.printf("\n%s\n", line)
	}
}

func (s *Shell) cmdChartGroup(_ context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usage("chart group <n> [m]")
	}
	i, err := groupIndex(args[0])
	if err != nil {
		return err
	}
	j := -1
	if len(args) == 2 {
		if j, err = groupIndex(args[1]); err != nil {
			return err
		}
	}

	path, err := s.app.ChartGroup(i, j)
	if err != nil {
		return err
	}
	s.printf("[OK] Chart saved: %s\n", path)
	return nil
}

func (s *Shell) cmdChartScatter(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("chart scatter <n>")
	}
	i, err := groupIndex(args[0])
	if err != nil {
		return err
	}

	path, err := s.app.ChartScatter(i)
	if err != nil {
		return err
	}
	s.printf("[OK] Chart saved: %s\n", path)
	return nil
}
