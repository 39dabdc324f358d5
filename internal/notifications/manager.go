// Package notifications sends desktop notifications when long runs finish
package notifications

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/glucose-spikes/internal/matcher"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// Notice kinds
const (
	noticeAnalysis = "analysis"
	noticeExport   = "export"
	noticeCharts   = "charts"
)

// repeatInterval suppresses repeats of the same notice kind
const repeatInterval = time.Minute

// Manager sends run-complete notices when enabled in the output settings
type Manager struct {
	enabled        bool
	lastNoticeTime map[string]time.Time
	send           func(title, message string) error
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(cfg models.OutputConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		enabled:        cfg.Notify,
		lastNoticeTime: make(map[string]time.Time),
		send:           sendNotification,
		logger:         logger.With("component", "notifications"),
	}
}

// UpdateSettings updates the enabled flag
func (m *Manager) UpdateSettings(cfg models.OutputConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = cfg.Notify
}

// AnalysisComplete announces a finished analysis run
func (m *Manager) AnalysisComplete(sum matcher.Summary) error {
	title, message := m.formatAnalysis(sum)
	return m.notify(noticeAnalysis, title, message)
}

// ExportComplete announces a written report
func (m *Manager) ExportComplete(path string) error {
	return m.notify(noticeExport, "Report exported", path)
}

// ChartsComplete announces saved charts
func (m *Manager) ChartsComplete(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	message := paths[0]
	if len(paths) > 1 {
		message = fmt.Sprintf("%d charts saved, first: %s", len(paths), paths[0])
	}
	return m.notify(noticeCharts, "Charts saved", message)
}

// notify sends the notice unless disabled or repeated too soon
func (m *Manager) notify(kind, title, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return nil
	}
	if last, ok := m.lastNoticeTime[kind]; ok && time.Since(last) < repeatInterval {
		m.logger.Debug("notice suppressed", "kind", kind)
		return nil
	}

	if err := m.send(title, message); err != nil {
		return fmt.Errorf("sending %s notification: %w", kind, err)
	}

	m.lastNoticeTime[kind] = time.Now()
	return nil
}

// formatAnalysis creates the analysis notification title and message
func (m *Manager) formatAnalysis(sum matcher.Summary) (string, string) {
	title := "Glucose analysis complete"
	if sum.TotalSpikes == 0 {
		return title, "No spikes detected"
	}

	message := fmt.Sprintf("%d spikes, %d matched to meals", sum.TotalSpikes, sum.MatchedSpikes)
	if sum.ComplexEvents > 0 {
		message += fmt.Sprintf(" (%d multi-meal)", sum.ComplexEvents)
	}
	if sum.UnmatchedMeals > 0 {
		message += fmt.Sprintf(", %d meals without a spike", sum.UnmatchedMeals)
	}
	return title, message
}

// ClearNoticeState clears the repeat state for a specific kind or all kinds
func (m *Manager) ClearNoticeState(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == "" {
		m.lastNoticeTime = make(map[string]time.Time)
	} else {
		delete(m.lastNoticeTime, kind)
	}
}

// SendTestNotification sends a test notification regardless of settings
func (m *Manager) SendTestNotification() error {
	return m.send("Glucose Spikes", "Test notification - notifications are working!")
}

// sendNotification sends a system notification
func sendNotification(title, message string) error {
	// Use beeep for cross-platform notifications
	return beeep.Notify(title, message, "")
}
