package report

import (
	"fmt"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cass-aq/speciation/internal/speciation"
	"github.com/cass-aq/speciation/internal/types"
)

const dateOnly = "2006-01-02"

// ScoreCurvePlot renders one chunk's score-vs-candidate curve with the
// selected minimum annotated, into dir.
func ScoreCurvePlot(result speciation.ChunkResult, title, filePrefix, dir string) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s to %s", title,
		result.Start.Format(dateOnly), result.End.Format(dateOnly))
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "R-squared"

	pts := make(plotter.XYs, len(result.Curve))
	for i, cs := range result.Curve {
		pts[i].X = cs.Candidate
		pts[i].Y = cs.Score
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return "", fmt.Errorf("building score curve: %w", err)
	}
	p.Add(line)
	p.Legend.Add("R-squared", line)

	minPoint, err := plotter.NewScatter(plotter.XYs{{X: result.Coefficient, Y: result.MinScore}})
	if err != nil {
		return "", fmt.Errorf("building minimum marker: %w", err)
	}
	p.Add(minPoint)

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    []plotter.XY{{X: result.Coefficient, Y: result.MinScore}},
		Labels: []string{fmt.Sprintf("min step %.1f, R²=%.6f", result.Coefficient, result.MinScore)},
	})
	if err != nil {
		return "", fmt.Errorf("building annotation: %w", err)
	}
	p.Add(labels)

	name := fmt.Sprintf("%s_%s_%s.png", filePrefix,
		result.Start.Format(dateOnly), result.End.Format(dateOnly))
	path := filepath.Join(dir, name)
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return "", fmt.Errorf("saving score curve plot: %w", err)
	}
	return path, nil
}

// TimeSeriesPlot renders the apportioned BC-ff and BC-bb series over the
// analysis window, skipping sentinel and missing rows.
func TimeSeriesPlot(records []types.Record, start, end time.Time, dir string) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("BC-ff & BC-bb  %s to %s",
		start.Format(dateOnly), end.Format(dateOnly))
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "BC (ng/m³)"
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 02"}
	p.Add(plotter.NewGrid())

	var ff, bb plotter.XYs
	for _, r := range records {
		x := float64(r.Time.Unix())
		if types.IsValid(r.BCff) {
			ff = append(ff, plotter.XY{X: x, Y: r.BCff})
		}
		if types.IsValid(r.BCbb) {
			bb = append(bb, plotter.XY{X: x, Y: r.BCbb})
		}
	}

	ffLine, err := plotter.NewLine(ff)
	if err != nil {
		return "", fmt.Errorf("building BC-ff series: %w", err)
	}
	bbLine, err := plotter.NewLine(bb)
	if err != nil {
		return "", fmt.Errorf("building BC-bb series: %w", err)
	}
	bbLine.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(ffLine, bbLine)
	p.Legend.Add("BC-ff", ffLine)
	p.Legend.Add("BC-bb", bbLine)

	name := fmt.Sprintf("Speciation_BCff_BCbb_%s_%s.png",
		start.Format(dateOnly), end.Format(dateOnly))
	path := filepath.Join(dir, name)
	if err := p.Save(12*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("saving time-series plot: %w", err)
	}
	return path, nil
}

// DiurnalPlot renders the 24-hour mean ± one standard deviation of the
// apportioned BC series. Returns an empty path when no row has both
// components valid.
func DiurnalPlot(records []types.Record, start, end time.Time, dir string) (string, error) {
	byHour := make(map[int][][2]float64, 24)
	for _, r := range records {
		if types.IsValid(r.BCff) && types.IsValid(r.BCbb) {
			h := r.Time.Hour()
			byHour[h] = append(byHour[h], [2]float64{r.BCff, r.BCbb})
		}
	}
	if len(byHour) == 0 {
		return "", nil
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Diurnal BC-ff & BC-bb  %s to %s",
		start.Format(dateOnly), end.Format(dateOnly))
	p.X.Label.Text = "Hour of Day"
	p.Y.Label.Text = "BC (ng/m³)"
	p.Add(plotter.NewGrid())

	for series, name := range []string{"BC-ff", "BC-bb"} {
		var pts plotter.XYs
		var errs plotter.YErrors
		for h := 0; h < 24; h++ {
			rows, ok := byHour[h]
			if !ok {
				continue
			}
			vals := make([]float64, len(rows))
			for i, row := range rows {
				vals[i] = row[series]
			}
			mean := stat.Mean(vals, nil)
			sd := 0.0
			if len(vals) > 1 {
				sd = stat.StdDev(vals, nil)
			}
			pts = append(pts, plotter.XY{X: float64(h), Y: mean})
			errs = append(errs, struct{ Low, High float64 }{sd, sd})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", fmt.Errorf("building diurnal %s series: %w", name, err)
		}
		if series == 1 {
			line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		bars, err := plotter.NewYErrorBars(struct {
			plotter.XYs
			plotter.YErrors
		}{pts, errs})
		if err != nil {
			return "", fmt.Errorf("building diurnal %s error bars: %w", name, err)
		}
		p.Add(line, bars)
		p.Legend.Add(name, line)
	}

	name := fmt.Sprintf("Speciation_Diurnal_%s_%s.png",
		start.Format(dateOnly), end.Format(dateOnly))
	path := filepath.Join(dir, name)
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return "", fmt.Errorf("saving diurnal plot: %w", err)
	}
	return path, nil
}
