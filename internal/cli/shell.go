// Package cli implements the command shell of the analyzer, used both
// interactively and for one-shot commands
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/glucose-spikes/internal/app"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// Shell errors
var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
)

const rule = "================================================================================"

// Shell parses command lines and runs them against an App
type Shell struct {
	app      *app.App
	settings *models.Settings
	in       *bufio.Scanner
	out      io.Writer
	logger   *slog.Logger
	running  bool
}

type handler func(ctx context.Context, args []string) error

// New creates a shell reading prompts from in and writing to out
func New(a *app.App, in io.Reader, out io.Writer, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		app:      a,
		settings: a.Settings(),
		in:       bufio.NewScanner(in),
		out:      out,
		logger:   logger.With("component", "cli"),
		running:  true,
	}
}

// Run prints the banner and executes lines until quit, end of input or ctx
// is done. Command errors are printed and do not stop the loop.
func (s *Shell) Run(ctx context.Context) error {
	s.banner()

	for s.running {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		_ = s.Execute(ctx, s.in.Text())
	}
	return nil
}

// Execute runs one command line. Errors are printed and returned.
func (s *Shell) Execute(ctx context.Context, line string) error {
	return s.ExecuteArgs(ctx, splitArgs(line))
}

// ExecuteArgs runs a command already split into words
func (s *Shell) ExecuteArgs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	err := s.dispatch(ctx, strings.ToLower(args[0]), args[1:])
	if err != nil {
		s.printf("[ERROR] %v\n", err)
		s.logger.Debug("command failed", "command", args[0], "error", err)
	}
	return err
}

func (s *Shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "group", "list", "chart", "manual":
		return s.subcommand(ctx, cmd, args)
	case "quit", "exit":
		s.running = false
		s.printf("Goodbye!\n")
		return nil
	}

	h, ok := s.commands()[cmd]
	if !ok {
		return fmt.Errorf("%w: %s. Type 'help' for commands", ErrUnknownCommand, cmd)
	}
	return h(ctx, args)
}

func (s *Shell) commands() map[string]handler {
	return map[string]handler{
		"addmeal": s.cmdAddMeal,
		"bypass":  s.cmdBypass,
		"load":    s.cmdLoad,
		"status":  s.cmdStatus,
		"notify":  s.cmdNotify,
		"analyze": s.cmdAnalyze,
		"compare": s.cmdCompareProfiles,
		"similar": s.cmdSimilar,
		"stats":   s.cmdStats,
		"export":  s.cmdExport,
		"help":    s.cmdHelp,
	}
}

func (s *Shell) subcommands(cmd string) map[string]handler {
	switch cmd {
	case "group":
		return map[string]handler{
			"start":   s.cmdGroupStart,
			"end":     s.cmdGroupEnd,
			"stats":   s.cmdGroupStats,
			"compare": s.cmdGroupCompare,
		}
	case "list":
		return map[string]handler{
			"meals":     s.cmdListMeals,
			"groups":    s.cmdListGroups,
			"spikes":    s.cmdListSpikes,
			"matches":   s.cmdListMatches,
			"unmatched": s.cmdListUnmatched,
			"profiles":  s.cmdListProfiles,
		}
	case "chart":
		return map[string]handler{
			"spike":   s.cmdChartSpike,
			"day":     s.cmdChartDay,
			"group":   s.cmdChartGroup,
			"scatter": s.cmdChartScatter,
		}
	case "manual":
		return map[string]handler{
			"add":  s.cmdManualAdd,
			"list": s.cmdManualList,
		}
	}
	return nil
}

func (s *Shell) subcommand(ctx context.Context, cmd string, args []string) error {
	subs := s.subcommands(cmd)
	names := make([]string, 0, len(subs))
	for name := range subs {
		names = append(names, cmd+" "+name)
	}
	sort.Strings(names)

	if len(args) == 0 {
		return fmt.Errorf("%w: %s", ErrUsage, strings.Join(names, " | "))
	}
	h, ok := subs[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("%w: %s %s. Use %s", ErrUnknownCommand, cmd, args[0], strings.Join(names, ", "))
	}
	return h(ctx, args[1:])
}

func (s *Shell) banner() {
	snap := s.app.Snapshot()
	s.printf("Glucose Spike Analyzer\n")
	s.printf("Loaded %d meals, %d groups, %d bypassed spikes\n",
		len(snap.Meals), len(snap.Groups), len(snap.Bypasses))
	if n := len(s.app.Readings()); n > 0 {
		s.printf("CGM data: %d readings loaded\n", n)
	} else {
		s.printf("[WARNING] No CGM data loaded. Use 'load' once the export is in place\n")
	}
	s.printf("Type 'help' for commands\n\n")
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) heading(title string, count int) {
	s.printf("\n%s (%d total):\n%s\n", title, count, rule)
}

// splitArgs splits a line on whitespace. Double quotes group words and are
// removed.
func splitArgs(line string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case !quoted && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, current.String())
	}
	return args
}

func usage(text string) error {
	return fmt.Errorf("%w: %s", ErrUsage, text)
}

// parseRange reads the optional [start] [end] arguments of list commands.
// Each bound is a timestamp or a date; a date end covers the whole day.
func parseRange(args []string) (from, to time.Time, err error) {
	if len(args) > 0 {
		if from, err = parseBound(args[0], false); err != nil {
			return
		}
	}
	if len(args) > 1 {
		if to, err = parseBound(args[1], true); err != nil {
			return
		}
	}
	return from, to, nil
}

func parseBound(s string, end bool) (time.Time, error) {
	if t, err := models.ParseTimestamp(s); err == nil {
		return t, nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, models.ErrInvalidTimestamp
	}
	if end {
		return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	}
	return d, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	return to.IsZero() || !t.After(to)
}

// groupIndex converts a 1-based group argument into a 0-based index
func groupIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", models.ErrInvalidGroupIndex, arg)
	}
	return n - 1, nil
}

func clock(t time.Time) string {
	return t.Format("15:04")
}

func stamp(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
