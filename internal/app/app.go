// Package app provides the main application logic
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/glucose-spikes/internal/charts"
	"github.com/mrcode/glucose-spikes/internal/detector"
	"github.com/mrcode/glucose-spikes/internal/exporter"
	"github.com/mrcode/glucose-spikes/internal/groups"
	"github.com/mrcode/glucose-spikes/internal/libreview"
	"github.com/mrcode/glucose-spikes/internal/manual"
	"github.com/mrcode/glucose-spikes/internal/matcher"
	"github.com/mrcode/glucose-spikes/internal/models"
	"github.com/mrcode/glucose-spikes/internal/nightscout"
	"github.com/mrcode/glucose-spikes/internal/normalizer"
	"github.com/mrcode/glucose-spikes/internal/notifications"
	"github.com/mrcode/glucose-spikes/internal/store"
)

// DefaultCSV is the LibreView export looked up in the config directory
const DefaultCSV = "glucose.csv"

// Application errors
var (
	ErrNoReadings          = errors.New("no CGM data loaded")
	ErrNoAnalysis          = errors.New("no current analysis, run analyze first")
	ErrNightscoutDisabled  = errors.New("nightscout is not configured")
	ErrInvalidSpikeIndex   = errors.New("invalid spike index")
	ErrInvalidProfileIndex = errors.New("invalid profile index")
)

// App holds the loaded data and the analysis components
type App struct {
	settings   *models.Settings
	repo       store.Repository
	client     *nightscout.Client
	parser     *libreview.Parser
	detector   *detector.Detector
	matcher    *matcher.Matcher
	normalizer *normalizer.Normalizer
	aggregator *groups.Aggregator
	manual     *manual.Builder
	renderer   *charts.Renderer
	exporter   *exporter.Exporter
	notifier   *notifications.Manager
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	snapshot models.Snapshot
	readings []models.Reading
	extMeals []models.Meal // from Nightscout, never persisted
	result   *Result
}

// New creates an App from settings. The repository is owned by the App and
// closed by Close.
func New(settings *models.Settings, repo store.Repository, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	settings = settings.Clone()

	renderer, err := charts.New(settings.Output, settings.Analysis, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		settings:   settings,
		repo:       repo,
		parser:     libreview.NewParser(time.Local, logger),
		detector:   detector.New(settings.Detection, logger),
		matcher:    matcher.New(settings.Matching, logger),
		normalizer: normalizer.New(settings.Analysis, logger),
		aggregator: groups.New(logger),
		manual:     manual.NewBuilder(settings.Detection, logger),
		renderer:   renderer,
		exporter:   exporter.New(logger),
		notifier:   notifications.NewManager(settings.Output, logger),
		logger:     logger.With("component", "app"),
		now:        time.Now,
	}
	if settings.IsNightscoutConfigured() {
		a.client = nightscout.NewClient(settings.Nightscout, logger)
	}
	return a, nil
}

// Settings returns a copy of the settings the App runs with
func (a *App) Settings() *models.Settings {
	return a.settings.Clone()
}

// SetNotify switches notifications for the rest of the session. Repeat
// suppression starts over.
func (a *App) SetNotify(enabled bool) {
	a.settings.SetNotify(enabled)
	a.notifier.UpdateSettings(a.settings.Clone().Output)
	a.notifier.ClearNoticeState("")
}

// TestNotification sends a notice even when notifications are off
func (a *App) TestNotification() error {
	return a.notifier.SendTestNotification()
}

// Close releases the repository
func (a *App) Close() error {
	return a.repo.Close()
}

// LoadSnapshot reads meals, groups and bypasses from the repository
func (a *App) LoadSnapshot(ctx context.Context) error {
	snap, err := a.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading data: %w", err)
	}

	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "data loaded",
		"meals", len(snap.Meals),
		"groups", len(snap.Groups),
		"bypasses", len(snap.Bypasses))
	return nil
}

// Snapshot returns the current meals, groups and bypasses
func (a *App) Snapshot() models.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// Update applies fn to the snapshot and persists the result. Nothing changes
// when fn or the save fails. A successful update drops the last analysis.
func (a *App) Update(ctx context.Context, fn func(models.Snapshot) (models.Snapshot, error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := fn(a.snapshot)
	if err != nil {
		return err
	}
	if err := a.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("saving data: %w", err)
	}
	a.snapshot = next
	a.result = nil
	return nil
}

// NightscoutStatus queries the configured Nightscout server
func (a *App) NightscoutStatus(ctx context.Context) (*models.ServerStatus, error) {
	if a.client == nil {
		return nil, ErrNightscoutDisabled
	}
	return a.client.GetStatus(ctx)
}

// LoadInfo describes a readings load
type LoadInfo struct {
	Source   string
	Readings int
	Meals    int // Nightscout carb treatments
	Start    time.Time
	End      time.Time
	Skipped  int
}

// LoadReadings loads CGM readings from the configured source. A missing
// LibreView export returns ErrNoReadings.
func (a *App) LoadReadings(ctx context.Context) (LoadInfo, error) {
	var (
		info     LoadInfo
		readings []models.Reading
		meals    []models.Meal
	)

	switch a.settings.Source.Kind {
	case "nightscout":
		if a.client == nil {
			return info, ErrNightscoutDisabled
		}
		to := a.now()
		from := to.AddDate(0, 0, -a.settings.Source.Days)

		var err error
		if readings, err = a.client.Readings(ctx, from, to); err != nil {
			return info, err
		}
		if meals, err = a.client.Meals(ctx, from, to); err != nil {
			return info, err
		}
	default:
		path, err := a.csvPath()
		if err != nil {
			return info, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return info, fmt.Errorf("%w: %s not found", ErrNoReadings, path)
		}
		res, err := a.parser.ParseFile(path)
		if err != nil {
			return info, err
		}
		readings = res.Readings
		info.Skipped = res.Skipped
	}

	info.Source = a.settings.Source.Kind
	info.Readings = len(readings)
	info.Meals = len(meals)
	if len(readings) > 0 {
		info.Start = readings[0].Time
		info.End = readings[len(readings)-1].Time
	}

	a.mu.Lock()
	a.readings = readings
	a.extMeals = meals
	a.result = nil
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "readings loaded",
		"source", info.Source,
		"readings", info.Readings,
		"meals", info.Meals,
		"skipped", info.Skipped)

	if info.Readings == 0 {
		return info, ErrNoReadings
	}
	return info, nil
}

// SetReadings replaces the loaded readings
func (a *App) SetReadings(readings []models.Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readings = models.SortReadings(readings)
	a.extMeals = nil
	a.result = nil
}

// Readings returns the loaded readings
func (a *App) Readings() []models.Reading {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.readings
}

// Meals returns the stored meals plus any loaded from Nightscout
func (a *App) Meals() []models.Meal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mealsLocked()
}

func (a *App) mealsLocked() []models.Meal {
	all := make([]models.Meal, 0, len(a.snapshot.Meals)+len(a.extMeals))
	all = append(all, a.snapshot.Meals...)
	all = append(all, a.extMeals...)
	return models.SortMeals(all)
}

func (a *App) csvPath() (string, error) {
	if a.settings.Source.LibreViewCSV != "" {
		return a.settings.Source.LibreViewCSV, nil
	}
	dir, err := models.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCSV), nil
}

// ManualPath returns the manual boundaries file
func (a *App) ManualPath() (string, error) {
	if a.settings.Storage.ManualPath != "" {
		return a.settings.Storage.ManualPath, nil
	}
	dir, err := models.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, manual.DefaultFile), nil
}

// ManualBoundaries loads the manual boundaries file
func (a *App) ManualBoundaries() ([]manual.Boundary, error) {
	path, err := a.ManualPath()
	if err != nil {
		return nil, err
	}
	return manual.Load(path)
}

// SaveManualBoundaries merges added into the boundaries file
func (a *App) SaveManualBoundaries(added []manual.Boundary) error {
	path, err := a.ManualPath()
	if err != nil {
		return err
	}
	existing, err := manual.Load(path)
	if err != nil {
		return err
	}
	merged, err := manual.Merge(existing, added)
	if err != nil {
		return err
	}
	if err := manual.Save(path, merged); err != nil {
		return err
	}
	a.mu.Lock()
	a.result = nil
	a.mu.Unlock()
	a.logger.Info("manual spikes saved", "path", path, "added", len(added), "total", len(merged))
	return nil
}
