// Package manual handles hand-labelled spike boundaries: the boundaries
// file, the authoring state machine and turning boundaries into spikes
package manual

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultFile is the boundaries file name inside the config directory
const DefaultFile = "manual_spikes.json"

// fileLayout is how boundary instants are written; zone-less, local time
const fileLayout = "2006-01-02T15:04:05"

// Boundary errors
var (
	ErrOverlappingBoundaries = errors.New("overlapping spike boundaries")
	ErrInvalidBoundary       = errors.New("spike end must be after start")
)

// Boundary is a hand-labelled spike window
type Boundary struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether b and other share any time. Touching ends do
// not overlap.
func (b Boundary) Overlaps(other Boundary) bool {
	return b.Start.Before(other.End) && b.End.After(other.Start)
}

// OnDay reports whether the boundary starts on the calendar day of day
func (b Boundary) OnDay(day time.Time) bool {
	y1, m1, d1 := b.Start.Date()
	y2, m2, d2 := day.In(b.Start.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (b Boundary) String() string {
	return b.Start.Format("2006-01-02 15:04") + "-" + b.End.Format("15:04")
}

type record struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Sort returns a copy of boundaries ordered by start
func Sort(boundaries []Boundary) []Boundary {
	sorted := make([]Boundary, len(boundaries))
	copy(sorted, boundaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}

// Validate checks that every boundary ends after it starts and that no two
// overlap
func Validate(boundaries []Boundary) error {
	sorted := Sort(boundaries)
	for i, b := range sorted {
		if !b.End.After(b.Start) {
			return fmt.Errorf("%w: %s", ErrInvalidBoundary, b)
		}
		if i > 0 && sorted[i-1].Overlaps(b) {
			return fmt.Errorf("%w: %s and %s", ErrOverlappingBoundaries, sorted[i-1], b)
		}
	}
	return nil
}

// Load reads and validates the boundaries file. A missing file has no
// boundaries.
func Load(path string) ([]Boundary, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from settings
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	boundaries := make([]Boundary, 0, len(records))
	for i, r := range records {
		start, err := parseInstant(r.Start)
		if err != nil {
			return nil, fmt.Errorf("boundary %d start: %w", i+1, err)
		}
		end, err := parseInstant(r.End)
		if err != nil {
			return nil, fmt.Errorf("boundary %d end: %w", i+1, err)
		}
		boundaries = append(boundaries, Boundary{Start: start, End: end})
	}

	if err := Validate(boundaries); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return Sort(boundaries), nil
}

// Save validates boundaries and writes them sorted by start
func Save(path string, boundaries []Boundary) error {
	if err := Validate(boundaries); err != nil {
		return err
	}

	sorted := Sort(boundaries)
	records := make([]record, len(sorted))
	for i, b := range sorted {
		records[i] = record{
			Start: b.Start.Local().Format(fileLayout),
			End:   b.End.Local().Format(fileLayout),
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// parseInstant accepts ISO-8601 with or without a zone offset
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(fileLayout, s, time.Local)
}
