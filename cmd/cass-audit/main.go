// cass-audit scans one raw instrument table for recording gaps longer than
// its own typical cadence and prints them, optionally exporting the list as
// CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/log"
	"github.com/cass-aq/speciation/internal/timegrid"
	"github.com/cass-aq/speciation/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the configuration file")
	instrument := flag.String("table", "ae33", "Instrument table to audit: 'ae33' or 'tca'")
	csvPath := flag.String("csv", "", "Optional path for a CSV export of the gap list")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	var table, column string
	switch *instrument {
	case "ae33":
		table, column = cfg.Database.AE33Table, "datetime"
	case "tca":
		table, column = cfg.Database.TCATable, "StartTimeLocal"
	default:
		log.Errorf("Unknown instrument table %q, use 'ae33' or 'tca'", *instrument)
		os.Exit(1)
	}

	client, err := database.OpenReadOnly(cfg.Database.Path, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open measurement database: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ts, err := client.FetchTimestamps(context.Background(), table, column, 0)
	if err != nil {
		log.Errorf("Failed to read timestamps: %v", err)
		os.Exit(1)
	}
	if len(ts) == 0 {
		log.Warnf("Table %s holds no timestamps", table)
		os.Exit(0)
	}

	// The table's own typical cadence is the gap threshold: anything longer
	// than the modal consecutive delta counts as a recording gap.
	modal := timegrid.ModalInterval(ts, len(ts))
	if modal <= 0 {
		log.Warnf("Table %s holds too few timestamps to estimate a cadence", table)
		os.Exit(0)
	}
	fmt.Printf("%s: %d rows, most common interval %.2f minutes\n",
		table, len(ts), modal.Minutes())

	gaps := timegrid.FindGaps(ts, modal)
	if len(gaps) == 0 {
		fmt.Println("No gaps found")
		return
	}

	fmt.Printf("%d gap(s) longer than the typical interval:\n", len(gaps))
	for _, g := range gaps {
		fmt.Printf("  %s  to  %s  (%.2f minutes)\n",
			g.Start.Format(database.TimestampLayout),
			g.End.Format(database.TimestampLayout),
			g.Minutes())
	}

	if *csvPath != "" {
		if err := exportCSV(*csvPath, gaps); err != nil {
			log.Errorf("Failed to write CSV export: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Gap list written to %s\n", *csvPath)
	}
}

func exportCSV(path string, gaps []timegrid.Gap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"gap_start", "gap_end", "gap_minutes"}); err != nil {
		return err
	}
	for _, g := range gaps {
		row := []string{
			g.Start.Format(database.TimestampLayout),
			g.End.Format(database.TimestampLayout),
			strconv.FormatFloat(g.Minutes(), 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
