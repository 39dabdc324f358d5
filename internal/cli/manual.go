package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mrcode/glucose-spikes/internal/manual"
	"github.com/mrcode/glucose-spikes/internal/models"
)

const clockLayout = "15:04"

func (s *Shell) cmdManualList(_ context.Context, args []string) error {
	if len(args) > 1 {
		return usage("manual list [YYYY-MM-DD]")
	}
	boundaries, err := s.app.ManualBoundaries()
	if err != nil {
		return err
	}

	var day time.Time
	if len(args) == 1 {
		if day, err = models.ParseDate(args[0]); err != nil {
			return err
		}
	}

	var shown []manual.Boundary
	for _, b := range boundaries {
		if day.IsZero() || b.OnDay(day) {
			shown = append(shown, b)
		}
	}
	if len(shown) == 0 {
		s.printf("No manual spikes found\n")
		return nil
	}

	s.heading("Manual Spikes", len(shown))
	for i, b := range shown {
		s.printf("  %d. %s\n", i+1, b)
	}
	return nil
}

// cmdManualAdd runs the boundary editor for one day. Times are typed as
// HH:MM and snap to the nearest reading; alternating picks give start and
// end. End of input saves like 'done'.
func (s *Shell) cmdManualAdd(_ context.Context, args []string) error {
	if len(args) != 1 {
		return usage("manual add <YYYY-MM-DD>")
	}
	day, err := models.ParseDate(args[0])
	if err != nil {
		return err
	}
	existing, err := s.app.ManualBoundaries()
	if err != nil {
		return err
	}
	editor, err := manual.NewEditor(day, s.app.Readings(), existing)
	if err != nil {
		return err
	}

	date := day.Format(models.DateLayout)
	s.printf("Marking spikes for %s (%d readings)\n", date, len(editor.Readings()))
	s.preview(day)
	for _, b := range editor.Existing() {
		s.printf("  Existing: %s\n", b)
	}
	s.printf("\nEnter times as HH:MM. 'cancel' drops a pending start, 'done' saves, 'abort' discards.\n")

	for {
		s.printf("%s> ", promptFor(editor.State()))
		if !s.in.Scan() {
			s.printf("\n")
			break
		}
		input := strings.TrimSpace(s.in.Text())

		switch strings.ToLower(input) {
		case "":
			continue
		case "done":
			return s.saveManual(editor, date)
		case "abort", "quit":
			s.printf("[INFO] No spikes saved for %s\n", date)
			return nil
		case "cancel":
			editor.Cancel()
			s.printf("  Pending start dropped\n")
			continue
		}

		at, err := time.ParseInLocation(clockLayout, input, day.Location())
		if err != nil {
			s.printf("  [ERROR] Invalid time %q, use HH:MM\n", input)
			continue
		}
		at = editor.Day().Add(time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute)

		snapped, boundary, err := editor.Pick(at)
		switch {
		case errors.Is(err, manual.ErrInvalidBoundary):
			s.printf("  [ERROR] End must be after the start, pick the end again\n")
		case errors.Is(err, manual.ErrOverlappingBoundaries):
			s.printf("  [ERROR] %v, start over\n", err)
		case err != nil:
			return err
		case boundary != nil:
			s.printf("  [OK] Spike %s added\n", boundary)
		default:
			s.printf("  Start set at %s (%s)\n", snapped.Format(clockLayout), glucoseAt(editor, snapped))
		}
	}
	return s.saveManual(editor, date)
}

func (s *Shell) saveManual(editor *manual.Editor, date string) error {
	added := editor.Added()
	if len(added) == 0 {
		s.printf("[INFO] No new spikes added for %s\n", date)
		return nil
	}
	if err := s.app.SaveManualBoundaries(added); err != nil {
		return err
	}
	s.printf("[OK] %d spike(s) saved for %s. Run 'analyze --manual' to use them\n", len(added), date)
	return nil
}

func promptFor(state manual.State) string {
	if state == manual.WaitingForEnd {
		return "end"
	}
	return "start"
}

func glucoseAt(editor *manual.Editor, t time.Time) string {
	for _, r := range editor.Readings() {
		if r.Time.Equal(t) {
			return fmt.Sprintf("%.0f mg/dL", r.Glucose)
		}
	}
	return notAvailable
}
