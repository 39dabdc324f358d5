package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mrcode/glucose-spikes/internal/cgm"
	"github.com/mrcode/glucose-spikes/internal/groups"
	"github.com/mrcode/glucose-spikes/internal/models"
)

var t0 = time.Date(2025, 11, 14, 12, 0, 0, 0, time.Local)

func sampleReport() Report {
	recovery := 25.0
	spike := models.NewSpike(
		models.Reading{Time: t0, Glucose: 100},
		models.Reading{Time: t0.Add(30 * time.Minute), Glucose: 190},
		models.Reading{Time: t0.Add(90 * time.Minute), Glucose: 105},
		models.EndReturnedToBaseline, models.SourceAuto)
	spike.AUCRelative = 3200
	spike.RecoveryTime = &recovery

	lone := models.NewSpike(
		models.Reading{Time: t0.Add(6 * time.Hour), Glucose: 110},
		models.Reading{Time: t0.Add(6*time.Hour + 20*time.Minute), Glucose: 150},
		models.Reading{Time: t0.Add(7 * time.Hour), Glucose: 115},
		models.EndPlateau, models.SourceAuto)

	meal := models.Meal{ID: "m1", Time: t0.Add(-20 * time.Minute), GlycemicLoad: 30, Note: "pasta"}
	assoc := models.NewAssociation(spike, []models.Meal{meal})

	group := models.Group{Start: t0.Add(-24 * time.Hour), Description: "baseline"}
	analysis := groups.New(nil).Analyze(group, []models.Association{assoc}, []models.Spike{lone}, nil)
	empty := groups.New(nil).Analyze(models.Group{Start: t0.AddDate(0, 1, 0), Description: "later"}, nil, nil, nil)

	summary := cgm.Summarize([]models.Reading{
		{Time: t0, Glucose: 100},
		{Time: t0.Add(5 * time.Minute), Glucose: 200},
	}, 70, 180)

	return Report{
		Associations:    []models.Association{assoc},
		UnmatchedSpikes: []models.Spike{lone},
		Groups:          []groups.Analysis{analysis, empty},
		CGM:             &summary,
	}
}

func TestWrite_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, New(nil).Write(path, sampleReport()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, spikeHeader, records[0])

	matched := records[1]
	assert.Equal(t, "2025-11-14:12:00", matched[0])
	assert.Equal(t, "auto", matched[3])
	assert.Equal(t, "90.00", matched[7])
	assert.Equal(t, "3200.00", matched[12])
	assert.Equal(t, "25.00", matched[14])
	assert.Equal(t, "1", matched[15])
	assert.Equal(t, "2025-11-14:11:40", matched[16])
	assert.Equal(t, "30.00", matched[17])
	assert.Equal(t, "20.00", matched[18])

	unmatched := records[2]
	assert.Equal(t, "plateau", unmatched[4])
	assert.Equal(t, "", unmatched[14])
	assert.Equal(t, "0", unmatched[15])
}

func TestWrite_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	require.NoError(t, New(nil).Write(path, sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSpikes, SheetGroups, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetSpikes)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "spike_start", rows[0][0])
	assert.Equal(t, "2025-11-14:12:00", rows[1][0])

	rows, err = f.GetRows(SheetGroups)
	require.NoError(t, err)
	// header + 6 metrics + gl, duration, peak for the first group + 1 row for the empty one
	require.Len(t, rows, 1+len(groups.Metrics())+3+1)
	assert.Equal(t, "baseline", rows[1][0])
	assert.Equal(t, "ongoing", rows[1][2])
	assert.Equal(t, "later", rows[len(rows)-1][0])
	assert.Equal(t, "matched_spikes", rows[len(rows)-1][3])

	rows, err = f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"readings", "2"}, rows[1])
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	err := New(nil).Write(filepath.Join(t.TempDir(), "report.pdf"), Report{})
	assert.Error(t, err)
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{1.004, "1.00"},
		{12, "12"},
		{"x", "x"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := formatCell(tt.in); got != tt.want {
			t.Errorf("formatCell(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
