// cass-ingest loads raw instrument export files into the measurement
// database, skipping rows already present so re-runs are safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/ingest"
	"github.com/cass-aq/speciation/internal/log"
	"github.com/cass-aq/speciation/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the configuration file")
	instrument := flag.String("instrument", "", "Instrument to ingest: 'ae33' or 'tca'")
	dataDir := flag.String("data", "", "Raw file directory (overrides the configured location)")
	prefix := flag.String("prefix", "", "Raw file name prefix (overrides the configured prefix)")
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

	client, err := database.Open(cfg.Database.Path, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Failed to open measurement database: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	logger := log.GetSugaredLogger()

	var inserted int
	switch *instrument {
	case "ae33":
		dir := pick(*dataDir, cfg.Data.AE33Dir)
		pfx := pick(*prefix, cfg.Data.AE33FilePrefix)
		inserted, err = ingest.IngestAE33Dir(ctx, client, cfg.Database.AE33Table, dir, pfx, logger)
	case "tca":
		dir := pick(*dataDir, cfg.Data.TCADir)
		pfx := pick(*prefix, cfg.Data.TCAFilePrefix)
		inserted, err = ingest.IngestTCADir(ctx, client, cfg.Database.TCATable, dir, pfx, logger)
	default:
		log.Errorf("Unknown instrument %q, use 'ae33' or 'tca'", *instrument)
		os.Exit(1)
	}
	if err != nil {
		log.Errorf("Ingestion failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Inserted %d new row(s)\n", inserted)
}

func pick(override, configured string) string {
	if override != "" {
		return override
	}
	return configured
}
