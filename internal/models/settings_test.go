package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	if settings.Detection.MinSpikeMagnitude != 30 {
		t.Errorf("Default min spike magnitude = %v, want 30", settings.Detection.MinSpikeMagnitude)
	}
	if settings.Detection.ValleyWindow != 2 {
		t.Errorf("Default valley window = %d, want 2", settings.Detection.ValleyWindow)
	}
	if settings.Detection.RiseLookaheadMinutes != 90 {
		t.Errorf("Default rise lookahead = %v, want 90", settings.Detection.RiseLookaheadMinutes)
	}
	if settings.Detection.ClinicalThreshold != 70 {
		t.Errorf("Default clinical threshold = %v, want 70", settings.Detection.ClinicalThreshold)
	}
	if settings.Storage.Backend != "json" {
		t.Errorf("Default backend = %s, want json", settings.Storage.Backend)
	}
	if settings.Source.Kind != "libreview" {
		t.Errorf("Default source = %s, want libreview", settings.Source.Kind)
	}
	require.NoError(t, settings.Validate())
}

func TestSettings_GetGlucoseStatus(t *testing.T) {
	settings := DefaultSettings()

	tests := []struct {
		name     string
		mgdl     float64
		expected string
	}{
		{"Low", 60, "low"},
		{"Low boundary", 70, "normal"},
		{"Normal", 120, "normal"},
		{"High boundary", 180, "normal"},
		{"High", 200, "high"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := settings.GetGlucoseStatus(tt.mgdl)
			if result != tt.expected {
				t.Errorf("GetGlucoseStatus(%v) = %s, want %s", tt.mgdl, result, tt.expected)
			}
		})
	}
}

func TestSettings_Clone(t *testing.T) {
	original := DefaultSettings()
	original.Nightscout.URL = "https://test.example.com"

	clone := original.Clone()

	if clone.Nightscout.URL != original.Nightscout.URL {
		t.Error("Clone did not copy Nightscout URL")
	}

	clone.Nightscout.URL = "https://modified.example.com"
	if original.Nightscout.URL == clone.Nightscout.URL {
		t.Error("Modifying clone affected original")
	}
}

func TestSettings_SetNotify(t *testing.T) {
	settings := DefaultSettings()
	settings.SetNotify(true)

	if !settings.Clone().Output.Notify {
		t.Error("SetNotify(true) was not applied")
	}
}

func TestSettings_IsNightscoutConfigured(t *testing.T) {
	settings := DefaultSettings()

	if settings.IsNightscoutConfigured() {
		t.Error("Empty settings should not be configured")
	}

	settings.Nightscout.URL = "https://test.example.com"
	if !settings.IsNightscoutConfigured() {
		t.Error("Settings with URL should be configured")
	}
}

const completeYAML = `
detection:
  min_spike_magnitude: 25
  min_spike_threshold: 170
  return_tolerance: 5
  flat_rate_threshold: 2
  flat_duration_minutes: 20
  max_duration_minutes: 150
matching:
  pre_spike_meal_window_minutes: 15
`

func TestSettings_LoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
		check   func(t *testing.T, s *Settings)
	}{
		{
			name:    "yaml with all thresholds",
			file:    "settings.yaml",
			content: completeYAML,
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, 25.0, s.Detection.MinSpikeMagnitude)
				assert.Equal(t, 15.0, s.Matching.PreSpikeMealWindowMinutes)
				assert.Equal(t, 2, s.Detection.ValleyWindow, "optional keys keep defaults")
			},
		},
		{
			name: "json with all thresholds",
			file: "settings.json",
			content: `{"detection": {"min_spike_magnitude": 40, "min_spike_threshold": 200,
				"return_tolerance": 8, "flat_rate_threshold": 3, "flat_duration_minutes": 30,
				"max_duration_minutes": 180}, "matching": {"pre_spike_meal_window_minutes": 30}}`,
			check: func(t *testing.T, s *Settings) {
				assert.Equal(t, 40.0, s.Detection.MinSpikeMagnitude)
				assert.Equal(t, 8.0, s.Detection.ReturnTolerance)
			},
		},
		{
			name:    "missing threshold is rejected",
			file:    "settings.yaml",
			content: "detection:\n  min_spike_magnitude: 25\nmatching:\n  pre_spike_meal_window_minutes: 15\n",
			wantErr: true,
		},
		{
			name:    "bad backend is rejected",
			file:    "settings.yaml",
			content: completeYAML + "storage:\n  backend: csv\n",
			wantErr: true,
		},
		{
			name:    "malformed json",
			file:    "settings.json",
			content: "{",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			s := DefaultSettings()
			err := s.LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, 30.0, s.Detection.MinSpikeMagnitude, "failed load must not change settings")
				return
			}
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestSettings_LoadFile_MissingUsesDefaults(t *testing.T) {
	s := DefaultSettings()
	s.Detection.MinSpikeMagnitude = 99

	require.NoError(t, s.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
	assert.Equal(t, 30.0, s.Detection.MinSpikeMagnitude)
}

func TestSettings_LoadFile_EnvOverride(t *testing.T) {
	t.Setenv("GLUCOSE_DETECTION_RETURN_TOLERANCE", "12")
	t.Setenv("GLUCOSE_LOGGING_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(completeYAML), 0600))

	s := DefaultSettings()
	require.NoError(t, s.LoadFile(path))
	assert.Equal(t, 12.0, s.Detection.ReturnTolerance)
	assert.Equal(t, "debug", s.Logging.Level)
}

func TestSettings_SaveFileRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			original := DefaultSettings()
			original.Detection.MaxDurationMinutes = 240
			require.NoError(t, original.SaveFile(path))

			loaded := DefaultSettings()
			require.NoError(t, loaded.LoadFile(path))
			assert.Equal(t, 240.0, loaded.Detection.MaxDurationMinutes)
		})
	}
}
