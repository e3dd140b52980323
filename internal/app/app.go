// Package app orchestrates one speciation run: lock probe, fetch, alignment,
// the two decorrelation passes, the apportionment cascade, and the output
// artifacts.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/report"
	"github.com/cass-aq/speciation/internal/speciation"
	"github.com/cass-aq/speciation/internal/timegrid"
	"github.com/cass-aq/speciation/internal/types"
	"github.com/cass-aq/speciation/pkg/config"
)

// ErrNoData indicates the margined query window returned no rows from either
// instrument; the run terminates without producing output.
var ErrNoData = errors.New("no rows in the requested date range")

// Gap report thresholds, per instrument cadence: the absorption instrument
// samples every minute, the carbon analyzer hourly.
const (
	ae33GapThreshold = time.Minute
	tcaGapThreshold  = time.Hour
)

// AllowedIntervals are the supported bucket widths in seconds.
var AllowedIntervals = []int{1200, 1800, 3600, 7200}

// RunParams are the per-invocation analysis parameters.
type RunParams struct {
	Start           time.Time
	End             time.Time
	IntervalSeconds int
}

// App runs the speciation analysis against an open measurement store.
type App struct {
	cfg    *config.Config
	db     *database.Client
	logger *zap.SugaredLogger
}

// New creates an application instance.
func New(cfg *config.Config, db *database.Client, logger *zap.SugaredLogger) *App {
	return &App{cfg: cfg, db: db, logger: logger}
}

// Run executes one complete analysis and writes the run's artifacts.
func (a *App) Run(ctx context.Context, params RunParams) error {
	if !validInterval(params.IntervalSeconds) {
		return fmt.Errorf("unsupported averaging interval %ds (allowed: 1200, 1800, 3600, 7200)", params.IntervalSeconds)
	}

	rc, err := NewRunContext(a.cfg.Output.Dir)
	if err != nil {
		return err
	}
	a.logger.Infow("starting speciation run", "run_id", rc.ID, "dir", rc.Dir,
		"start", params.Start.Format("2006-01-02"), "end", params.End.Format("2006-01-02"),
		"interval_s", params.IntervalSeconds)

	// Refuse to compute at all if the workbook can't be written afterwards.
	if err := report.CheckWritable(rc.WorkbookPath); err != nil {
		return err
	}

	consts := a.constants()

	extendedEnd, added := timegrid.ExtendEnd(params.Start, params.End, consts.TimeDelta)
	if added > 0 {
		a.logger.Infof("extending end date by %d day(s) for uniform chunking, new end: %s",
			added, extendedEnd.Format("2006-01-02"))
	}

	marginStart := params.Start.AddDate(0, 0, -consts.TimeDelta)
	marginEnd := extendedEnd.AddDate(0, 0, consts.TimeDelta)
	fetchLimit := marginEnd.AddDate(0, 0, 1)

	ae33, err := a.db.FetchAE33Samples(ctx, a.cfg.Database.AE33Table, marginStart, fetchLimit)
	if err != nil {
		return err
	}
	tca, err := a.db.FetchTCASamples(ctx, a.cfg.Database.TCATable, marginStart, fetchLimit)
	if err != nil {
		return err
	}
	if len(ae33) == 0 && len(tca) == 0 {
		return ErrNoData
	}
	a.logger.Infow("fetched raw samples", "ae33_rows", len(ae33), "tca_rows", len(tca))

	records := timegrid.Align(ae33, tca, params.IntervalSeconds, a.cfg.Calibration.Multipliers())
	a.logger.Infof("aligned frame holds %d buckets", len(records))

	brcResults := speciation.Separate(records, consts.TimeDelta, speciation.BrCSeparation(), a.logger)
	socResults := speciation.Separate(records, consts.TimeDelta, speciation.SOCSeparation(), a.logger)

	speciation.Derive(records, consts)

	final := speciation.FilterWindow(records, params.Start, params.End)
	a.logger.Infof("final frame holds %d rows after window filtering", len(final))

	if err := a.writeWorkbook(ctx, rc, params, final); err != nil {
		return err
	}
	a.renderPlots(rc, params, final, brcResults, socResults)

	a.logger.Infow("speciation run complete", "run_id", rc.ID, "workbook", rc.WorkbookPath)
	return nil
}

func (a *App) constants() speciation.Constants {
	k := a.cfg.Constants
	return speciation.Constants{
		AAEbb:       *k.AAEbb,
		AAEff:       *k.AAEff,
		AAEbc:       *k.AAEbc,
		MACbb:       *k.MACbb,
		MACff:       *k.MACff,
		POAPOCRatio: *k.POAPOCRatio,
		SOASOCRatio: *k.SOASOCRatio,
		MACBrCPrim:  *k.MACBrCPrim,
		MACBrCSec:   *k.MACBrCSec,
		TimeDelta:   *k.TimeDelta,
	}
}

func (a *App) writeWorkbook(ctx context.Context, rc RunContext, params RunParams, final []types.Record) error {
	windowEnd := params.End.AddDate(0, 0, 1).Add(-time.Second)

	ae33TS, err := a.db.FetchTimestampsRange(ctx, a.cfg.Database.AE33Table, "datetime", params.Start, windowEnd)
	if err != nil {
		return err
	}
	tcaTS, err := a.db.FetchTimestampsRange(ctx, a.cfg.Database.TCATable, "StartTimeLocal", params.Start, windowEnd)
	if err != nil {
		return err
	}
	ae33Gaps := timegrid.FindGaps(ae33TS, ae33GapThreshold)
	tcaGaps := timegrid.FindGaps(tcaTS, tcaGapThreshold)
	a.logger.Infow("gap audit", "ae33_gaps", len(ae33Gaps), "tca_gaps", len(tcaGaps))

	wb := report.NewWorkbook(rc.WorkbookPath)
	if err := wb.WriteData(final); err != nil {
		return err
	}
	if err := wb.WriteConstants(a.constantPairs(params)); err != nil {
		return err
	}
	if err := wb.WriteGaps("TCA Gaps", tcaGaps, report.GapHours); err != nil {
		return err
	}
	if err := wb.WriteGaps("AE33 Gaps", ae33Gaps, report.GapMinutes); err != nil {
		return err
	}
	return wb.Save()
}

func (a *App) constantPairs(params RunParams) []report.NameValue {
	cal := a.cfg.Calibration
	k := a.cfg.Constants
	return []report.NameValue{
		{Name: "BC1", Value: *cal.BC1},
		{Name: "BC2", Value: *cal.BC2},
		{Name: "BC3", Value: *cal.BC3},
		{Name: "BC4", Value: *cal.BC4},
		{Name: "BC5", Value: *cal.BC5},
		{Name: "BC6", Value: *cal.BC6},
		{Name: "BC7", Value: *cal.BC7},
		{Name: "AAE_bb", Value: *k.AAEbb},
		{Name: "AAE_ff", Value: *k.AAEff},
		{Name: "AAE_bc", Value: *k.AAEbc},
		{Name: "MAC_bb", Value: *k.MACbb},
		{Name: "MAC_ff", Value: *k.MACff},
		{Name: "POA_POC_Ratio", Value: *k.POAPOCRatio},
		{Name: "SOA_SOC_Ratio", Value: *k.SOASOCRatio},
		{Name: "MAC_BrC_Prim", Value: *k.MACBrCPrim},
		{Name: "MAC_BrC_Sec", Value: *k.MACBrCSec},
		{Name: "Time_Delta", Value: *k.TimeDelta},
		{Name: "Start Date", Value: params.Start.Format("2006-01-02")},
		{Name: "End Date", Value: params.End.Format("2006-01-02")},
		{Name: "Time Resolution (mins)", Value: params.IntervalSeconds / 60},
	}
}

func (a *App) renderPlots(rc RunContext, params RunParams, final []types.Record, brc, soc []speciation.ChunkResult) {
	for _, res := range brc {
		if path, err := report.ScoreCurvePlot(res, "BrC-Abs-Sec vs. B-abs6", "BrCAbsSec_vs_Babs6", rc.RSquaredDir); err != nil {
			a.logger.Warnw("failed to render score curve", "error", err)
		} else {
			a.logger.Debugw("saved score curve", "path", path)
		}
	}
	for _, res := range soc {
		if path, err := report.ScoreCurvePlot(res, "SOC vs. BC", "SOC_vs_BC", rc.RSquaredDir); err != nil {
			a.logger.Warnw("failed to render score curve", "error", err)
		} else {
			a.logger.Debugw("saved score curve", "path", path)
		}
	}

	if _, err := report.TimeSeriesPlot(final, params.Start, params.End, rc.PlotDir); err != nil {
		a.logger.Warnw("failed to render time-series plot", "error", err)
	}
	if _, err := report.DiurnalPlot(final, params.Start, params.End, rc.PlotDir); err != nil {
		a.logger.Warnw("failed to render diurnal plot", "error", err)
	}
}

func validInterval(seconds int) bool {
	for _, s := range AllowedIntervals {
		if s == seconds {
			return true
		}
	}
	return false
}
