// Package libreview reads glucose exports from LibreView
package libreview

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/glucose-spikes/internal/models"
)

// Column names of the export header
const (
	ColumnTimestamp  = "Device Timestamp"
	ColumnRecordType = "Record Type"
	ColumnHistoric   = "Historic Glucose mg/dL"
	ColumnScan       = "Scan Glucose mg/dL"
)

// Record types
const (
	RecordHistoric = 0 // automatic reading every 15 minutes
	RecordScan     = 1
	RecordNote     = 6
)

// headerSearchLines bounds how far the header row may be from the top
const headerSearchLines = 5

// ErrNoHeader is returned when no header row names the required columns
var ErrNoHeader = errors.New("no LibreView header found")

// TimestampLayouts are tried in order for the device timestamp
var TimestampLayouts = []string{
	"01-02-2006 03:04 PM",
	"01-02-2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
}

// Result is a parsed export
type Result struct {
	Readings []models.Reading `json:"readings"` // record type 0, sorted by time
	Scans    []models.Reading `json:"scans"`
	Counts   map[int]int      `json:"counts"` // rows per record type
	Total    int              `json:"total_records"`
	Skipped  int              `json:"skipped"`
}

// Parser reads LibreView CSV exports
type Parser struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewParser creates a parser. Timestamps carry no zone and are read in loc
// (time.Local when nil).
func NewParser(loc *time.Location, logger *slog.Logger) *Parser {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{loc: loc, logger: logger.With("component", "libreview")}
}

// ParseFile parses the export at path
func (p *Parser) ParseFile(path string) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // Path is chosen by the user
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}

// Parse reads an export. The header row is located by column name so the
// metadata line LibreView puts above it is skipped. Rows that cannot be
// parsed are counted in Skipped.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	cols, err := findHeader(reader)
	if err != nil {
		return nil, err
	}

	res := &Result{Counts: map[int]int{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			p.logger.Warn("unreadable row", "error", err)
			continue
		}
		res.Total++

		recordType, err := strconv.Atoi(strings.TrimSpace(cols.get(row, ColumnRecordType)))
		if err != nil {
			res.Skipped++
			continue
		}
		res.Counts[recordType]++

		var column string
		switch recordType {
		case RecordHistoric:
			column = ColumnHistoric
		case RecordScan:
			column = ColumnScan
		default:
			continue
		}

		reading, err := p.reading(cols.get(row, ColumnTimestamp), cols.get(row, column))
		if err != nil {
			res.Skipped++
			p.logger.Debug("skipping row", "row", res.Total, "error", err)
			continue
		}
		if recordType == RecordHistoric {
			res.Readings = append(res.Readings, reading)
		} else {
			res.Scans = append(res.Scans, reading)
		}
	}

	res.Readings = models.SortReadings(res.Readings)
	res.Scans = models.SortReadings(res.Scans)

	p.logger.Info("parsed export",
		"records", res.Total,
		"readings", len(res.Readings),
		"scans", len(res.Scans),
		"skipped", res.Skipped)
	return res, nil
}

func (p *Parser) reading(timestamp, glucose string) (models.Reading, error) {
	at, err := p.parseTime(strings.TrimSpace(timestamp))
	if err != nil {
		return models.Reading{}, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(glucose), 64)
	if err != nil {
		return models.Reading{}, fmt.Errorf("glucose %q: %w", glucose, err)
	}
	return models.Reading{Time: at, Glucose: value}, nil
}

func (p *Parser) parseTime(s string) (time.Time, error) {
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Start returns the first automatic reading time
func (r *Result) Start() time.Time {
	if len(r.Readings) == 0 {
		return time.Time{}
	}
	return r.Readings[0].Time
}

// End returns the last automatic reading time
func (r *Result) End() time.Time {
	if len(r.Readings) == 0 {
		return time.Time{}
	}
	return r.Readings[len(r.Readings)-1].Time
}

type columns map[string]int

func (c columns) get(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func findHeader(reader *csv.Reader) (columns, error) {
	for range headerSearchLines {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}

		cols := columns{}
		for i, name := range row {
			cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
		}
		_, hasTime := cols[ColumnTimestamp]
		_, hasType := cols[ColumnRecordType]
		_, hasHistoric := cols[ColumnHistoric]
		if hasTime && hasType && hasHistoric {
			return cols, nil
		}
	}
	return nil, ErrNoHeader
}
