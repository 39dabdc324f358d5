package manual

import (
	"errors"
	"fmt"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// ErrNoData is returned when the chosen day has no readings
var ErrNoData = errors.New("no glucose data for day")

// State is the authoring step the editor waits for
type State int

// Editor states
const (
	WaitingForStart State = iota
	WaitingForEnd
)

func (s State) String() string {
	if s == WaitingForEnd {
		return "waiting_for_end"
	}
	return "waiting_for_start"
}

// Editor collects new boundaries for one day. Picked times snap to the
// nearest reading. A pick that would overlap another boundary discards the
// pending start.
type Editor struct {
	day      time.Time
	readings []models.Reading
	existing []Boundary
	added    []Boundary
	state    State
	start    time.Time
}

// NewEditor creates an editor for the calendar day of day. existing may hold
// boundaries of any day; those reaching into this day are kept for overlap
// checks, including ones that start the day before.
func NewEditor(day time.Time, readings []models.Reading, existing []Boundary) (*Editor, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)

	dayReadings := models.ReadingsBetween(readings, from, to)
	if len(dayReadings) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoData, from.Format(models.DateLayout))
	}

	window := Boundary{Start: from, End: from.AddDate(0, 0, 1)}
	var same []Boundary
	for _, b := range existing {
		if b.Overlaps(window) {
			same = append(same, b)
		}
	}

	return &Editor{
		day:      from,
		readings: dayReadings,
		existing: same,
	}, nil
}

// Day returns midnight of the edited day
func (e *Editor) Day() time.Time {
	return e.day
}

// Readings returns the readings of the edited day
func (e *Editor) Readings() []models.Reading {
	return e.readings
}

// State returns the current step
func (e *Editor) State() State {
	return e.state
}

// PendingStart returns the start picked while waiting for an end
func (e *Editor) PendingStart() (time.Time, bool) {
	return e.start, e.state == WaitingForEnd
}

// Existing returns the boundaries already on file for the day
func (e *Editor) Existing() []Boundary {
	return e.existing
}

// Added returns the boundaries created in this session
func (e *Editor) Added() []Boundary {
	return e.added
}

// Snap returns the reading time closest to t. Ties go to the earlier reading.
func (e *Editor) Snap(t time.Time) time.Time {
	best := e.readings[0].Time
	bestDelta := absDuration(t.Sub(best))
	for _, r := range e.readings[1:] {
		if d := absDuration(t.Sub(r.Time)); d < bestDelta {
			best, bestDelta = r.Time, d
		}
	}
	return best
}

// Pick feeds a chosen time into the state machine and returns the snapped
// time. When waiting for an end it returns the finished boundary. An end not
// after the start returns ErrInvalidBoundary and keeps waiting for an end.
// An overlap returns ErrOverlappingBoundaries and starts over.
func (e *Editor) Pick(t time.Time) (time.Time, *Boundary, error) {
	snapped := e.Snap(t)

	if e.state == WaitingForStart {
		e.start = snapped
		e.state = WaitingForEnd
		return snapped, nil, nil
	}

	if !snapped.After(e.start) {
		return snapped, nil, ErrInvalidBoundary
	}

	candidate := Boundary{Start: e.start, End: snapped}
	for _, b := range append(e.existing[:len(e.existing):len(e.existing)], e.added...) {
		if candidate.Overlaps(b) {
			e.reset()
			return snapped, nil, fmt.Errorf("%w: %s", ErrOverlappingBoundaries, b)
		}
	}

	e.added = append(e.added, candidate)
	e.reset()
	return snapped, &candidate, nil
}

// Cancel drops a pending start
func (e *Editor) Cancel() {
	e.reset()
}

func (e *Editor) reset() {
	e.start = time.Time{}
	e.state = WaitingForStart
}

// Merge returns all plus the added boundaries, validated and sorted
func Merge(all, added []Boundary) ([]Boundary, error) {
	merged := make([]Boundary, 0, len(all)+len(added))
	merged = append(merged, all...)
	merged = append(merged, added...)
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return Sort(merged), nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
