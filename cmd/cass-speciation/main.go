package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/cass-aq/speciation/internal/app"
	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/log"
	"github.com/cass-aq/speciation/internal/timegrid"
	"github.com/cass-aq/speciation/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

const dateLayout = "2006-01-02"

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the configuration file")
	startStr := flag.String("start", "", "Analysis start date (YYYY-MM-DD)")
	endStr := flag.String("end", "", "Analysis end date, inclusive (YYYY-MM-DD)")
	interval := flag.Int("interval", 60, "Averaging interval in minutes: 20, 30, 60 or 120")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("cass-speciation %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	start, end, err := parseWindow(*startStr, *endStr)
	if err != nil {
		log.Errorf("Invalid analysis window: %v", err)
		os.Exit(1)
	}

	client, err := database.OpenReadOnly(cfg.Database.Path, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open measurement database: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	if err := describeStore(ctx, client, cfg, start, end); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}

	application := app.New(cfg, client, log.GetSugaredLogger())
	err = application.Run(ctx, app.RunParams{
		Start:           start,
		End:             end,
		IntervalSeconds: *interval * 60,
	})
	if errors.Is(err, app.ErrNoData) {
		log.Warnf("No instrument rows inside the requested window, nothing to do")
		os.Exit(0)
	}
	if err != nil {
		log.Errorf("Analysis failed: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile string) (*config.Config, error) {
	filename, _ := filepath.Abs(cfgFile)
	cfg, err := config.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start and -end are required")
	}
	start, err := time.ParseInLocation(dateLayout, startStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout, endStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s precedes start date %s", endStr, startStr)
	}
	return start, end, nil
}

// describeStore prints the per-table coverage and native cadence, then
// rejects windows falling outside the period both instruments cover.
func describeStore(ctx context.Context, client *database.Client, cfg *config.Config, start, end time.Time) error {
	ae33Stats, err := client.Stats(ctx, cfg.Database.AE33Table, "datetime")
	if err != nil {
		return fmt.Errorf("reading %s coverage: %w", cfg.Database.AE33Table, err)
	}
	tcaStats, err := client.Stats(ctx, cfg.Database.TCATable, "StartTimeLocal")
	if err != nil {
		return fmt.Errorf("reading %s coverage: %w", cfg.Database.TCATable, err)
	}

	printTable(ctx, client, cfg.Database.AE33Table, "datetime", ae33Stats)
	printTable(ctx, client, cfg.Database.TCATable, "StartTimeLocal", tcaStats)

	lo, hi, err := database.OverlapRange(ae33Stats, tcaStats)
	if err != nil {
		return err
	}
	fmt.Printf("Instruments overlap from %s to %s\n",
		lo.Format(database.TimestampLayout), hi.Format(database.TimestampLayout))

	if start.Before(truncateDay(lo)) || end.After(hi) {
		return fmt.Errorf("requested window %s to %s falls outside the instrument overlap",
			start.Format(dateLayout), end.Format(dateLayout))
	}
	return nil
}

func printTable(ctx context.Context, client *database.Client, table, column string, stats database.TableStats) {
	fmt.Printf("%s: %d rows, %s to %s", table, stats.Count,
		stats.Min.Format(database.TimestampLayout), stats.Max.Format(database.TimestampLayout))
	if ts, err := client.FetchTimestamps(ctx, table, column, 100); err == nil {
		if modal := timegrid.ModalInterval(ts, len(ts)); modal > 0 {
			fmt.Printf(", native cadence %s", modal)
		}
	}
	fmt.Println()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
