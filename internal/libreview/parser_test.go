package libreview

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = `Glucose Data,Generated on,11-20-2025 09:12 AM UTC,Generated by,Jane Doe
Device,Serial Number,Device Timestamp,Record Type,Historic Glucose mg/dL,Scan Glucose mg/dL,Notes
FreeStyle LibreLink,ABC,11-14-2025 06:15 PM,0,110,,
FreeStyle LibreLink,ABC,11-14-2025 06:00 PM,0,102,,
FreeStyle LibreLink,ABC,11-14-2025 06:07 PM,1,,108,
FreeStyle LibreLink,ABC,11-14-2025 06:10 PM,6,,,Lunch
FreeStyle LibreLink,ABC,not a date,0,99,,
FreeStyle LibreLink,ABC,11-14-2025 06:30 PM,0,,,
FreeStyle LibreLink,ABC,11-14-2025 18:45,0,131,,
`

func TestParse(t *testing.T) {
	res, err := NewParser(time.UTC, nil).Parse(strings.NewReader(export))
	require.NoError(t, err)

	at := func(h, m int) time.Time { return time.Date(2025, 11, 14, h, m, 0, 0, time.UTC) }

	require.Len(t, res.Readings, 3)
	assert.Equal(t, at(18, 0), res.Readings[0].Time, "readings are sorted")
	assert.Equal(t, 102.0, res.Readings[0].Glucose)
	assert.Equal(t, at(18, 15), res.Readings[1].Time)
	assert.Equal(t, at(18, 45), res.Readings[2].Time, "24-hour timestamps are accepted")

	require.Len(t, res.Scans, 1)
	assert.Equal(t, 108.0, res.Scans[0].Glucose)

	assert.Equal(t, 7, res.Total)
	assert.Equal(t, 5, res.Counts[RecordHistoric])
	assert.Equal(t, 1, res.Counts[RecordScan])
	assert.Equal(t, 1, res.Counts[RecordNote])
	assert.Equal(t, 2, res.Skipped)

	assert.Equal(t, at(18, 0), res.Start())
	assert.Equal(t, at(18, 45), res.End())
}

func TestParse_HeaderOnFirstLine(t *testing.T) {
	data := "Device Timestamp,Record Type,Historic Glucose mg/dL\n2025-11-14 08:00,0,95\n"

	res, err := NewParser(time.UTC, nil).Parse(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, res.Readings, 1)
	assert.Equal(t, 95.0, res.Readings[0].Glucose)
}

func TestParse_NoHeader(t *testing.T) {
	_, err := NewParser(time.UTC, nil).Parse(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glucose.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0600))

	res, err := NewParser(time.UTC, nil).ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, res.Readings, 3)

	_, err = NewParser(time.UTC, nil).ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, os.IsNotExist(err))

	var empty Result
	assert.True(t, empty.Start().IsZero())
}
