package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/pkg/config"
)

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func testdb(t *testing.T, days int) (*database.Client, time.Time) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cass.db")
	client, err := database.Open(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	_, err = client.DB.ExecContext(ctx, `CREATE TABLE "AE33_raw" (
		"datetime" TEXT PRIMARY KEY, "date" TEXT, "time" TEXT,
		"BC1" REAL, "BC2" REAL, "BC3" REAL, "BC4" REAL, "BC5" REAL, "BC6" REAL, "BC7" REAL)`)
	require.NoError(t, err)
	_, err = client.DB.ExecContext(ctx, `CREATE TABLE "TCA_raw" (
		"ID" INTEGER PRIMARY KEY, "StartTimeLocal" TEXT,
		"TCconc" REAL, "CO2" REAL, "EC" REAL, "OC" REAL, "AE33_BC6" REAL)`)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	refCycle := []float64{1, 2, 3, 4}
	noise := []float64{1, -1, -1, 1}

	for h := 0; h < days*24; h++ {
		ts := start.Add(time.Duration(h) * time.Hour)
		ref := refCycle[h%4]
		blue := 1.5*ref + noise[h%4]

		_, err = client.DB.ExecContext(ctx,
			`INSERT INTO "AE33_raw" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ts.Format(database.TimestampLayout), ts.Format("2006-01-02"), ts.Format("15:04:05"),
			5.0, blue, 5.0, 5.0, 5.0, ref, 9.0)
		require.NoError(t, err)

		_, err = client.DB.ExecContext(ctx,
			`INSERT INTO "TCA_raw" VALUES (?, ?, ?, ?, ?, ?, ?)`,
			h+1, ts.Format(database.TimestampLayout),
			10.0, 400.0, 1.0, 2.0*ref+noise[(h+1)%4], ref)
		require.NoError(t, err)
	}

	return client, start
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.Database{AE33Table: "AE33_raw", TCATable: "TCA_raw"},
		Calibration: config.Calibration{
			BC1: f64(1000), BC2: f64(1000), BC3: f64(1000), BC4: f64(1000),
			BC5: f64(1000), BC6: f64(1000), BC7: f64(1000),
		},
		Constants: config.Constants{
			AAEbb: f64(2.0), AAEff: f64(1.0), AAEbc: f64(1.0),
			MACbb: f64(9.0), MACff: f64(12.5),
			POAPOCRatio: f64(1.4), SOASOCRatio: f64(2.1),
			MACBrCPrim: f64(1.2), MACBrCSec: f64(0.8),
			TimeDelta: i(3),
		},
		Output: config.Output{Dir: filepath.Join(t.TempDir(), "output")},
	}
}

// readDataSheet opens the single run directory under outputDir and returns
// the data sheet rows of its workbook.
func readDataSheet(t *testing.T, outputDir string) [][]string {
	t.Helper()

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "expected exactly one run directory")

	wbPath := filepath.Join(outputDir, entries[0].Name(), "CASSOutput.xlsx")
	f, err := excelize.OpenFile(wbPath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("data")
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	client, start := testdb(t, 6)
	cfg := testConfig(t)
	a := New(cfg, client, zap.NewNop().Sugar())

	err := a.Run(context.Background(), RunParams{
		Start:           start,
		End:             start.AddDate(0, 0, 5), // 6 days inclusive
		IntervalSeconds: 3600,
	})
	require.NoError(t, err)

	rows := readDataSheet(t, cfg.Output.Dir)
	require.Len(t, rows, 145, "header plus 6 days of hourly buckets")

	header := rows[0]
	assert.Equal(t, "Date_and_Time", header[0])
	assert.Equal(t, "BrC-abs-Sec", header[21])
	assert.Equal(t, "SOC", header[22])
	assert.Len(t, header, 31)

	// Both chunks regressed: the separated columns carry no missing marker.
	for idx, row := range rows[1:] {
		assert.NotEqual(t, "NA", row[21], "BrC-abs-Sec row %d", idx)
		assert.NotEqual(t, "NA", row[22], "SOC row %d", idx)
	}

	// Chronological bucket order survives the round trip.
	assert.Equal(t, "2024-03-01 00:00:00", rows[1][0])
	assert.Equal(t, "2024-03-06 23:00:00", rows[144][0])
}

func TestRunWindowExtensionStaysInternal(t *testing.T) {
	client, start := testdb(t, 6)
	cfg := testConfig(t)
	a := New(cfg, client, zap.NewNop().Sugar())

	// 5 requested days with 3-day chunks: the engine extends to 6 days
	// internally but must emit only the requested window.
	err := a.Run(context.Background(), RunParams{
		Start:           start,
		End:             start.AddDate(0, 0, 4),
		IntervalSeconds: 3600,
	})
	require.NoError(t, err)

	rows := readDataSheet(t, cfg.Output.Dir)
	require.Len(t, rows, 121, "header plus 5 days of hourly buckets")
	assert.Equal(t, "2024-03-05 23:00:00", rows[120][0])
}

func TestRunRejectsBadInterval(t *testing.T) {
	client, start := testdb(t, 2)
	cfg := testConfig(t)
	a := New(cfg, client, zap.NewNop().Sugar())

	err := a.Run(context.Background(), RunParams{
		Start: start, End: start.AddDate(0, 0, 1), IntervalSeconds: 900,
	})
	require.Error(t, err)
}

func TestRunNoData(t *testing.T) {
	client, _ := testdb(t, 2)
	cfg := testConfig(t)
	a := New(cfg, client, zap.NewNop().Sugar())

	empty := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	err := a.Run(context.Background(), RunParams{
		Start: empty, End: empty.AddDate(0, 0, 2), IntervalSeconds: 3600,
	})
	require.ErrorIs(t, err, ErrNoData)

	// A no-data run leaves no workbook behind.
	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(cfg.Output.Dir, entries[0].Name(), "CASSOutput.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
