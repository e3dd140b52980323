package report

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/cass-aq/speciation/internal/timegrid"
	"github.com/cass-aq/speciation/internal/types"
)

const timestampFormat = "2006-01-02 15:04:05"

// dataColumns is the fixed output column order of the data sheet.
var dataColumns = []string{
	"Date_and_Time",
	"B-abs1", "B-abs2", "B-abs3", "B-abs4", "B-abs5", "B-abs6", "B-abs7",
	"TCconc", "CO2", "EC", "OC", "AE33_BC6", "B-abs6_Val",
	"B-abs-ff", "B-abs-bb", "BC-ff", "BC-bb", "B-abs-BC", "B-abs-Brc",
	"BrC", "BrC-abs-Sec", "SOC", "POC", "BrC-abs-Prim",
	"POA", "SOA", "POA_BrC", "SOA_BrC", "POA_WtC", "SOA_WtC",
}

// NameValue is one row of the constants sheet.
type NameValue struct {
	Name  string
	Value interface{}
}

// GapUnit selects how a gap sheet reports durations.
type GapUnit int

const (
	GapMinutes GapUnit = iota
	GapHours
)

// Workbook accumulates the output sheets and saves them as one xlsx file.
type Workbook struct {
	f    *excelize.File
	path string
}

// NewWorkbook creates an empty workbook destined for path.
func NewWorkbook(path string) *Workbook {
	return &Workbook{f: excelize.NewFile(), path: path}
}

// WriteData writes the aligned+derived frame to the "data" sheet in the
// fixed column order, rendering missing cells as "NA".
func (w *Workbook) WriteData(records []types.Record) error {
	const sheet = "data"
	if err := w.createSheet(sheet); err != nil {
		return err
	}
	if err := w.writeHeader(sheet, dataColumns); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		values := []interface{}{r.Time.Format(timestampFormat)}
		for _, v := range []float64{
			r.Abs[0], r.Abs[1], r.Abs[2], r.Abs[3], r.Abs[4], r.Abs[5], r.Abs[6],
			r.TCconc, r.CO2, r.EC, r.OC, r.AE33BC6, r.Babs6Val,
			r.BabsFF, r.BabsBB, r.BCff, r.BCbb, r.BabsBC, r.BabsBrC,
			r.BrC, r.BrCAbsSec, r.SOC, r.POC, r.BrCAbsPrim,
			r.POA, r.SOA, r.POABrC, r.SOABrC, r.POAWtC, r.SOAWtC,
		} {
			values = append(values, RenderCell(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing data row %d: %w", row, err)
		}
	}

	return w.f.SetColWidth(sheet, "A", "A", 25)
}

// WriteConstants writes the run's constants sheet.
func (w *Workbook) WriteConstants(pairs []NameValue) error {
	const sheet = "constants"
	if err := w.createSheet(sheet); err != nil {
		return err
	}
	if err := w.writeHeader(sheet, []string{"Constant", "Value"}); err != nil {
		return err
	}
	for i, p := range pairs {
		row := i + 2
		values := []interface{}{p.Name, p.Value}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing constants row %d: %w", row, err)
		}
	}
	return nil
}

// WriteGaps writes one instrument's gap audit sheet.
func (w *Workbook) WriteGaps(sheet string, gaps []timegrid.Gap, unit GapUnit) error {
	if err := w.createSheet(sheet); err != nil {
		return err
	}

	durationHeader := "minute_duration"
	if unit == GapHours {
		durationHeader = "gap_duration_hours"
	}
	if err := w.writeHeader(sheet, []string{"gap_start", "gap_end", durationHeader}); err != nil {
		return err
	}

	for i, g := range gaps {
		row := i + 2
		duration := g.Minutes()
		if unit == GapHours {
			duration = g.Hours()
		}
		values := []interface{}{
			g.Start.Format(timestampFormat),
			g.End.Format(timestampFormat),
			duration,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing gap row %d: %w", row, err)
		}
	}

	return w.f.SetColWidth(sheet, "A", "B", 25)
}

// Save writes the workbook to disk and releases its resources.
func (w *Workbook) Save() error {
	if err := w.f.SaveAs(w.path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return w.f.Close()
}

// createSheet adds a sheet, reusing the default first sheet for the first
// call so the workbook never carries an empty "Sheet1".
func (w *Workbook) createSheet(name string) error {
	sheets := w.f.GetSheetList()
	if len(sheets) == 1 && sheets[0] == "Sheet1" {
		return w.f.SetSheetName("Sheet1", name)
	}
	_, err := w.f.NewSheet(name)
	return err
}

func (w *Workbook) writeHeader(sheet string, headers []string) error {
	bold, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := w.f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := w.f.SetCellStyle(sheet, cell, cell, bold); err != nil {
			return err
		}
	}
	return nil
}

// RenderCell converts a frame value to its spreadsheet form: true-missing
// cells become the literal string "NA", everything else stays numeric.
func RenderCell(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return v
}
