package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot errors
var (
	ErrGroupStillOpen    = errors.New("a group is still open")
	ErrNoOpenGroup       = errors.New("no open group")
	ErrEndBeforeStart    = errors.New("end is before start")
	ErrInvalidGroupIndex = errors.New("invalid group index")
)

// Bypass marks a spike to be left out of association and statistics.
// Any spike whose window contains Time is bypassed.
type Bypass struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"timestamp"`
	Reason string    `json:"reason"`
}

// Snapshot is the persisted user state handed to the analysis pipeline.
// Mutators return a new value and never touch the receiver's slices.
type Snapshot struct {
	Meals    []Meal   `json:"meals"`
	Groups   []Group  `json:"groups"`
	Bypasses []Bypass `json:"bypassed_spikes"`
}

// AddMeal returns a snapshot with meal appended
func (s Snapshot) AddMeal(meal Meal) Snapshot {
	out := s.clone()
	out.Meals = append(out.Meals, meal)
	return out
}

// StartGroup opens a new group. Only one group may be open at a time.
func (s Snapshot) StartGroup(start time.Time, description string) (Snapshot, error) {
	if _, ok := s.OpenGroup(); ok {
		return s, ErrGroupStillOpen
	}
	out := s.clone()
	out.Groups = append(out.Groups, Group{Start: start, Description: description})
	return out, nil
}

// EndGroup closes the most recently opened group
func (s Snapshot) EndGroup(end time.Time) (Snapshot, error) {
	idx, ok := s.OpenGroup()
	if !ok {
		return s, ErrNoOpenGroup
	}
	if end.Before(s.Groups[idx].Start) {
		return s, fmt.Errorf("closing %q: %w", s.Groups[idx].Description, ErrEndBeforeStart)
	}
	out := s.clone()
	out.Groups[idx].End = &end
	return out, nil
}

// AddBypass returns a snapshot with a new bypass entry
func (s Snapshot) AddBypass(at time.Time, reason string) Snapshot {
	out := s.clone()
	out.Bypasses = append(out.Bypasses, Bypass{ID: uuid.NewString(), Time: at, Reason: reason})
	return out
}

// OpenGroup returns the index of the last open group
func (s Snapshot) OpenGroup() (int, bool) {
	for i := len(s.Groups) - 1; i >= 0; i-- {
		if s.Groups[i].IsOpen() {
			return i, true
		}
	}
	return -1, false
}

// Group returns the group at a zero-based index
func (s Snapshot) Group(idx int) (Group, error) {
	if idx < 0 || idx >= len(s.Groups) {
		return Group{}, fmt.Errorf("%w: %d (have %d groups)", ErrInvalidGroupIndex, idx+1, len(s.Groups))
	}
	return s.Groups[idx], nil
}

// MealsBetween returns the meals in [from, to], sorted by time
func (s Snapshot) MealsBetween(from, to time.Time) []Meal {
	var out []Meal
	for _, m := range s.Meals {
		if m.Time.Before(from) || m.Time.After(to) {
			continue
		}
		out = append(out, m)
	}
	return SortMeals(out)
}

// IsBypassed reports whether a spike is covered by a bypass entry
func (s Snapshot) IsBypassed(spike Spike) bool {
	for _, b := range s.Bypasses {
		if spike.Contains(b.Time) {
			return true
		}
	}
	return false
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Meals:    make([]Meal, len(s.Meals)),
		Groups:   make([]Group, len(s.Groups)),
		Bypasses: make([]Bypass, len(s.Bypasses)),
	}
	copy(out.Meals, s.Meals)
	copy(out.Groups, s.Groups)
	copy(out.Bypasses, s.Bypasses)
	return out
}
