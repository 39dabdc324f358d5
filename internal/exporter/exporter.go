// Package exporter writes analysis results to xlsx workbooks and CSV files
package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mrcode/glucose-spikes/internal/cgm"
	"github.com/mrcode/glucose-spikes/internal/groups"
	"github.com/mrcode/glucose-spikes/internal/models"
)

// Sheet names of the xlsx report
const (
	SheetSpikes  = "Spikes"
	SheetGroups  = "Groups"
	SheetSummary = "Summary"
)

// Report is what gets exported
type Report struct {
	Associations    []models.Association
	UnmatchedSpikes []models.Spike
	Groups          []groups.Analysis
	CGM             *cgm.Summary
}

// Exporter writes reports
type Exporter struct {
	logger *slog.Logger
}

// New creates an exporter
func New(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger.With("component", "exporter")}
}

// Write exports rep to path. The format follows the extension: .xlsx gets a
// workbook with spike, group and summary sheets and .csv gets the spike
// table only.
func (e *Exporter) Write(path string, rep Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		err = e.writeXLSX(path, rep)
	case ".csv":
		err = e.writeCSV(path, rep)
	default:
		return fmt.Errorf("unsupported export format %q, use .xlsx or .csv", ext)
	}
	if err != nil {
		return err
	}

	e.logger.Info("report exported", "path", path,
		"spikes", len(rep.Associations)+len(rep.UnmatchedSpikes), "groups", len(rep.Groups))
	return nil
}

var spikeHeader = []string{
	"spike_start", "spike_peak", "spike_end", "source", "end_reason",
	"baseline", "peak_glucose", "magnitude", "duration_min", "time_to_peak_min",
	"auc_0", "auc_70", "auc_relative", "normalized_auc", "recovery_min",
	"meals", "meal_times", "total_gl", "primary_delay_min",
}

// spikeRows returns matched spikes followed by unmatched ones
func spikeRows(rep Report) [][]any {
	rows := make([][]any, 0, len(rep.Associations)+len(rep.UnmatchedSpikes))
	for _, a := range rep.Associations {
		times := make([]string, len(a.Meals))
		for i, m := range a.Meals {
			times[i] = models.FormatTimestamp(m.Time)
		}
		row := spikeCells(a.Spike)
		row = append(row, len(a.Meals), strings.Join(times, " "), a.TotalGL, a.PrimaryDelay())
		rows = append(rows, row)
	}
	for _, s := range rep.UnmatchedSpikes {
		row := spikeCells(s)
		row = append(row, 0, "", "", "")
		rows = append(rows, row)
	}
	return rows
}

func spikeCells(s models.Spike) []any {
	var recovery any = ""
	if s.RecoveryTime != nil {
		recovery = *s.RecoveryTime
	}
	return []any{
		models.FormatTimestamp(s.StartTime),
		models.FormatTimestamp(s.PeakTime),
		models.FormatTimestamp(s.EndTime),
		string(s.Source),
		string(s.EndReason),
		s.Baseline,
		s.PeakGlucose,
		s.Magnitude,
		s.DurationMinutes,
		s.TimeToPeakMinutes,
		s.AUC0,
		s.AUC70,
		s.AUCRelative,
		s.NormalizedAUC,
		recovery,
	}
}

var groupHeader = []string{"group", "start", "end", "metric", "count", "mean", "median", "std", "min", "max"}

func groupRows(analyses []groups.Analysis) [][]any {
	var rows [][]any
	for _, an := range analyses {
		end := "ongoing"
		if an.Group.End != nil {
			end = models.FormatTimestamp(*an.Group.End)
		}
		prefix := []any{an.Group.Description, models.FormatTimestamp(an.Group.Start), end}

		if an.Stats == nil {
			rows = append(rows, append(prefix, "matched_spikes", 0, "", "", "", "", ""))
			continue
		}

		add := func(name string, ms models.MetricStats) {
			row := append(append([]any{}, prefix...), name, ms.Count, ms.Mean, ms.Median, ms.Std, ms.Min, ms.Max)
			rows = append(rows, row)
		}
		for _, key := range groups.Metrics() {
			add(string(key), an.Stats.Metrics[key])
		}
		add("glycemic_load", an.Stats.GlycemicLoad)
		add("duration", an.Stats.Duration)
		add("peak_glucose", an.Stats.PeakGlucose)
	}
	return rows
}

func summaryRows(s *cgm.Summary) [][]any {
	if s == nil {
		return nil
	}
	rows := [][]any{
		{"readings", s.Readings},
		{"start", models.FormatTimestamp(s.Start)},
		{"end", models.FormatTimestamp(s.End)},
		{"days_of_data", s.Days},
		{"mean_glucose", s.Mean},
		{"std_glucose", s.Std},
		{"min_glucose", s.Min},
		{"max_glucose", s.Max},
		{"coefficient_of_variation", s.CV},
		{"gmi", s.GMI},
		{"time_in_range", s.TimeInRange},
		{"time_below_range", s.TimeBelowRange},
		{"time_above_range", s.TimeAboveRange},
	}
	for _, p := range cgm.Periods {
		if v, ok := s.ByPeriod[p]; ok {
			rows = append(rows, []any{"mean_" + string(p), v})
		}
	}
	return rows
}

func (e *Exporter) writeXLSX(path string, rep Report) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("closing workbook", "error", err)
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetSpikes); err != nil {
		return err
	}
	if err := writeSheet(f, SheetSpikes, spikeHeader, spikeRows(rep), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetGroups); err != nil {
		return err
	}
	if err := writeSheet(f, SheetGroups, groupHeader, groupRows(rep.Groups), bold); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := writeSheet(f, SheetSummary, []string{"statistic", "value"}, summaryRows(rep.CGM), bold); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", last, 18)
}

func (e *Exporter) writeCSV(path string, rep Report) error {
	file, err := os.Create(path) //nolint:gosec // Path comes from the user
	if err != nil {
		return err
	}

	w := csv.NewWriter(file)
	if err := w.Write(spikeHeader); err != nil {
		_ = file.Close()
		return err
	}
	for _, row := range spikeRows(rep) {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := w.Write(record); err != nil {
			_ = file.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int:
		return strconv.Itoa(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
