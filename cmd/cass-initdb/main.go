// cass-initdb creates the measurement database file if needed and verifies
// it can be both written and read before any data is loaded.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/log"
	"github.com/cass-aq/speciation/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the configuration file")
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

	if err := client.VerifyReadWrite(context.Background()); err != nil {
		log.Errorf("Database verification failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("Measurement database at %s is ready\n", cfg.Database.Path)
}
