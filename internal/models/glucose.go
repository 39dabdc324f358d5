// Package models contains data structures used throughout the application
package models

import (
	"sort"
	"time"
)

// mgdlPerMmol converts between mg/dL and mmol/L
const mgdlPerMmol = 18.0182

// Reading represents a single CGM glucose sample
type Reading struct {
	Time    time.Time `json:"timestamp"`
	Glucose float64   `json:"glucose"` // mg/dL
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / mgdlPerMmol
}

// SortReadings returns a copy of readings ordered by time.
// Readings sharing a timestamp keep their input order.
func SortReadings(readings []Reading) []Reading {
	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return sorted
}

// ReadingsBetween returns the readings whose time lies in [from, to]
func ReadingsBetween(readings []Reading, from, to time.Time) []Reading {
	var out []Reading
	for _, r := range readings {
		if r.Time.Before(from) || r.Time.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GlucoseEntry represents a single glucose reading from Nightscout
type GlucoseEntry struct {
	ID        string `json:"_id"`
	SGV       int    `json:"sgv"`  // Sensor glucose value in mg/dL
	Date      int64  `json:"date"` // Unix timestamp in milliseconds
	DateStr   string `json:"dateString"`
	Direction string `json:"direction"`
	Device    string `json:"device"`
	Type      string `json:"type"`
}

// Time returns the time of the glucose entry
func (g *GlucoseEntry) Time() time.Time {
	return time.UnixMilli(g.Date)
}

// Reading converts the entry to a Reading
func (g *GlucoseEntry) Reading() Reading {
	return Reading{Time: g.Time(), Glucose: float64(g.SGV)}
}

// ServerStatus represents the Nightscout server status
type ServerStatus struct {
	Status     string `json:"status"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	ServerTime string `json:"serverTime"`
	APIEnabled bool   `json:"apiEnabled"`
}
