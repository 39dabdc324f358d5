// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// GLUCOSE_DETECTION_MIN_SPIKE_MAGNITUDE
const EnvPrefix = "GLUCOSE"

// DetectionConfig holds the spike detection thresholds. Glucose values are
// mg/dL and durations are minutes.
type DetectionConfig struct {
	MinSpikeMagnitude   float64 `json:"min_spike_magnitude" yaml:"min_spike_magnitude" split_words:"true" validate:"required,gt=0"`
	MinSpikeThreshold   float64 `json:"min_spike_threshold" yaml:"min_spike_threshold" split_words:"true" validate:"required,gt=0"`
	ReturnTolerance     float64 `json:"return_tolerance" yaml:"return_tolerance" split_words:"true" validate:"required,gt=0"`
	FlatRateThreshold   float64 `json:"flat_rate_threshold" yaml:"flat_rate_threshold" split_words:"true" validate:"required,gt=0"` // per 5 minutes
	FlatDurationMinutes float64 `json:"flat_duration_minutes" yaml:"flat_duration_minutes" split_words:"true" validate:"required,gt=0"`
	MaxDurationMinutes  float64 `json:"max_duration_minutes" yaml:"max_duration_minutes" split_words:"true" validate:"required,gt=0"`

	// ValleyWindow is the number of samples checked on each side of a valley
	ValleyWindow         int     `json:"valley_window" yaml:"valley_window" split_words:"true" validate:"gte=1"`
	RiseLookaheadMinutes float64 `json:"rise_lookahead_minutes" yaml:"rise_lookahead_minutes" split_words:"true" validate:"gt=0"`
	// ClinicalThreshold is the reference level of auc_70
	ClinicalThreshold float64 `json:"clinical_threshold" yaml:"clinical_threshold" split_words:"true" validate:"gte=0"`
}

// MatchingConfig holds the meal association settings
type MatchingConfig struct {
	PreSpikeMealWindowMinutes float64 `json:"pre_spike_meal_window_minutes" yaml:"pre_spike_meal_window_minutes" split_words:"true" validate:"required,gt=0"`
}

// AnalysisConfig holds profile and summary settings
type AnalysisConfig struct {
	ProfilePoints       int     `json:"profile_points" yaml:"profile_points" split_words:"true" validate:"gte=2"`
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold" split_words:"true" validate:"gte=0,lte=1"`
	TargetLow           float64 `json:"target_low" yaml:"target_low" split_words:"true" validate:"gt=0"`
	TargetHigh          float64 `json:"target_high" yaml:"target_high" split_words:"true" validate:"gtfield=TargetLow"`
}

// SourceConfig selects where glucose readings come from. An empty
// LibreViewCSV resolves to glucose.csv in the config directory.
type SourceConfig struct {
	Kind         string `json:"kind" yaml:"kind" split_words:"true" validate:"oneof=libreview nightscout"`
	LibreViewCSV string `json:"libreview_csv" yaml:"libreview_csv" split_words:"true"`
	Days         int    `json:"days" yaml:"days" split_words:"true" validate:"gte=1"` // Nightscout history to fetch
}

// StorageConfig selects the snapshot repository. Empty paths resolve to
// files in the config directory.
type StorageConfig struct {
	Backend    string `json:"backend" yaml:"backend" split_words:"true" validate:"oneof=json sqlite"`
	Path       string `json:"path" yaml:"path" split_words:"true"`
	ManualPath string `json:"manual_path" yaml:"manual_path" split_words:"true"`
}

// NightscoutConfig holds the optional Nightscout connection
type NightscoutConfig struct {
	URL       string `json:"url" yaml:"url" split_words:"true" validate:"omitempty,url"`
	APISecret string `json:"api_secret" yaml:"api_secret" split_words:"true"` // Plain API secret (will be hashed)
	APIToken  string `json:"api_token" yaml:"api_token" split_words:"true"`
	UseToken  bool   `json:"use_token" yaml:"use_token" split_words:"true"`

	// GlycemicIndex turns treatment carbs into glycemic load
	GlycemicIndex float64 `json:"glycemic_index" yaml:"glycemic_index" split_words:"true" validate:"gt=0,lte=100"`
}

// OutputConfig holds chart and report settings
type OutputConfig struct {
	ChartDir    string `json:"chart_dir" yaml:"chart_dir" split_words:"true"`
	ChartWidth  int    `json:"chart_width" yaml:"chart_width" split_words:"true" validate:"gte=200"`
	ChartHeight int    `json:"chart_height" yaml:"chart_height" split_words:"true" validate:"gte=150"`
	ColorLine   string `json:"color_line" yaml:"color_line" split_words:"true" validate:"hexcolor"`
	ColorSpike  string `json:"color_spike" yaml:"color_spike" split_words:"true" validate:"hexcolor"`
	ColorMeal   string `json:"color_meal" yaml:"color_meal" split_words:"true" validate:"hexcolor"`
	ColorTarget string `json:"color_target" yaml:"color_target" split_words:"true" validate:"hexcolor"`
	Notify      bool   `json:"notify" yaml:"notify" split_words:"true"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level string `json:"level" yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	JSON  bool   `json:"json" yaml:"json" split_words:"true"`
}

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex

	Detection  DetectionConfig  `json:"detection" yaml:"detection"`
	Matching   MatchingConfig   `json:"matching" yaml:"matching"`
	Analysis   AnalysisConfig   `json:"analysis" yaml:"analysis"`
	Source     SourceConfig     `json:"source" yaml:"source"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Nightscout NightscoutConfig `json:"nightscout" yaml:"nightscout"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Detection: DetectionConfig{
			MinSpikeMagnitude:    30,
			MinSpikeThreshold:    180,
			ReturnTolerance:      10,
			FlatRateThreshold:    3,
			FlatDurationMinutes:  30,
			MaxDurationMinutes:   180,
			ValleyWindow:         2,
			RiseLookaheadMinutes: 90,
			ClinicalThreshold:    70,
		},
		Matching: MatchingConfig{
			PreSpikeMealWindowMinutes: 60,
		},
		Analysis: AnalysisConfig{
			ProfilePoints:       100,
			SimilarityThreshold: 0.8,
			TargetLow:           70,
			TargetHigh:          180,
		},
		Source: SourceConfig{
			Kind: "libreview",
			Days: 14,
		},
		Storage: StorageConfig{
			Backend: "json",
		},
		Nightscout: NightscoutConfig{
			GlycemicIndex: 55,
		},
		Output: OutputConfig{
			ChartWidth:  1200,
			ChartHeight: 600,
			ColorLine:   "#2563eb", // Blue
			ColorSpike:  "#ef4444", // Red
			ColorMeal:   "#4ade80", // Green
			ColorTarget: "#e5e7eb", // Gray-200
			Notify:      false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	appDir := filepath.Join(configDir, "glucose-spikes")
	if err := os.MkdirAll(appDir, 0750); err != nil {
		return "", err
	}

	return appDir, nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// LoadFile loads settings from a JSON or YAML file, applies environment
// overrides and validates the result. A missing file means defaults. A file
// that exists must name every detection threshold and the meal window.
func (s *Settings) LoadFile(path string) error {
	loaded := DefaultSettings()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is chosen by the user
	switch {
	case os.IsNotExist(err):
		// Use defaults if file doesn't exist
	case err != nil:
		return err
	default:
		loaded.Detection.clearRequired()
		loaded.Matching.PreSpikeMealWindowMinutes = 0
		if err := decodeSettings(path, data, loaded); err != nil {
			return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}

	if err := envconfig.Process(EnvPrefix, loaded); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.copySettingsFields(loaded)
	return nil
}

func decodeSettings(path string, data []byte, into *Settings) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, into)
	default:
		return json.Unmarshal(data, into)
	}
}

// clearRequired zeroes the thresholds that a config file must provide
func (d *DetectionConfig) clearRequired() {
	d.MinSpikeMagnitude = 0
	d.MinSpikeThreshold = 0
	d.ReturnTolerance = 0
	d.FlatRateThreshold = 0
	d.FlatDurationMinutes = 0
	d.MaxDurationMinutes = 0
}

// Validate checks every section against its constraints
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// SaveFile writes settings to path, as YAML when the extension asks for it
func (s *Settings) SaveFile(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Create a new Settings struct with copied values (not the mutex)
	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// copySettingsFields copies all sections from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.Detection = other.Detection
	s.Matching = other.Matching
	s.Analysis = other.Analysis
	s.Source = other.Source
	s.Storage = other.Storage
	s.Nightscout = other.Nightscout
	s.Output = other.Output
	s.Logging = other.Logging
}

// IsNightscoutConfigured returns true if a Nightscout URL is set
func (s *Settings) IsNightscoutConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Nightscout.URL != ""
}

// SetNotify turns run-complete notifications on or off
func (s *Settings) SetNotify(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Output.Notify = enabled
}

// GetGlucoseStatus returns the range status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl float64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case mgdl < s.Analysis.TargetLow:
		return "low"
	case mgdl > s.Analysis.TargetHigh:
		return "high"
	default:
		return "normal"
	}
}
