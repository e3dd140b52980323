// Package config loads and validates the run configuration for the
// speciation tools from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

// ErrMissingKey indicates one or more required configuration keys are absent.
var ErrMissingKey = errors.New("missing required configuration key")

// Database holds the SQLite connection settings and raw table names.
type Database struct {
	Path      string `yaml:"path"`
	AE33Table string `yaml:"ae33_table"`
	TCATable  string `yaml:"tca_table"`
}

// Calibration holds the per-channel AE33 compensation factors, expressed in
// parts per thousand as they appear on the instrument's calibration sheet.
type Calibration struct {
	BC1 *float64 `yaml:"bc1"`
	BC2 *float64 `yaml:"bc2"`
	BC3 *float64 `yaml:"bc3"`
	BC4 *float64 `yaml:"bc4"`
	BC5 *float64 `yaml:"bc5"`
	BC6 *float64 `yaml:"bc6"`
	BC7 *float64 `yaml:"bc7"`
}

// Multipliers returns the calibration factors scaled for direct application
// to the raw absorption channels.
func (c Calibration) Multipliers() [7]float64 {
	ppt := [...]*float64{c.BC1, c.BC2, c.BC3, c.BC4, c.BC5, c.BC6, c.BC7}
	var out [7]float64
	for i, p := range ppt {
		if p != nil {
			out[i] = *p / 1000.0
		}
	}
	return out
}

// Constants holds the physical source-apportionment constants.
type Constants struct {
	AAEbb       *float64 `yaml:"aae_bb"`
	AAEff       *float64 `yaml:"aae_ff"`
	AAEbc       *float64 `yaml:"aae_bc"`
	MACbb       *float64 `yaml:"mac_bb"`
	MACff       *float64 `yaml:"mac_ff"`
	POAPOCRatio *float64 `yaml:"poa_poc_ratio"`
	SOASOCRatio *float64 `yaml:"soa_soc_ratio"`
	MACBrCPrim  *float64 `yaml:"mac_brc_prim"`
	MACBrCSec   *float64 `yaml:"mac_brc_sec"`
	TimeDelta   *int     `yaml:"time_delta"`
}

// Output holds output artifact settings.
type Output struct {
	Dir string `yaml:"dir"`
}

// Data holds the raw instrument file locations used by ingestion.
type Data struct {
	AE33Dir        string `yaml:"ae33_dir"`
	AE33FilePrefix string `yaml:"ae33_file_prefix"`
	TCADir         string `yaml:"tca_dir"`
	TCAFilePrefix  string `yaml:"tca_file_prefix"`
}

// Config is the complete, validated run configuration.
type Config struct {
	Database    Database    `yaml:"database"`
	Calibration Calibration `yaml:"calibration"`
	Constants   Constants   `yaml:"constants"`
	Output      Output      `yaml:"output"`
	Data        Data        `yaml:"data"`
}

// Load reads, parses, and validates the configuration file. All missing
// required keys are reported in a single error.
func Load(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if missing := cfg.missingKeys(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.AE33Table == "" {
		c.Database.AE33Table = "AE33_raw"
	}
	if c.Database.TCATable == "" {
		c.Database.TCATable = "TCA_raw"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
}

func (c *Config) missingKeys() []string {
	var missing []string

	if c.Database.Path == "" {
		missing = append(missing, "database.path")
	}

	cal := map[string]*float64{
		"calibration.bc1": c.Calibration.BC1,
		"calibration.bc2": c.Calibration.BC2,
		"calibration.bc3": c.Calibration.BC3,
		"calibration.bc4": c.Calibration.BC4,
		"calibration.bc5": c.Calibration.BC5,
		"calibration.bc6": c.Calibration.BC6,
		"calibration.bc7": c.Calibration.BC7,
	}
	for key, v := range cal {
		if v == nil {
			missing = append(missing, key)
		}
	}

	consts := map[string]*float64{
		"constants.aae_bb":        c.Constants.AAEbb,
		"constants.aae_ff":        c.Constants.AAEff,
		"constants.aae_bc":        c.Constants.AAEbc,
		"constants.mac_bb":        c.Constants.MACbb,
		"constants.mac_ff":        c.Constants.MACff,
		"constants.poa_poc_ratio": c.Constants.POAPOCRatio,
		"constants.soa_soc_ratio": c.Constants.SOASOCRatio,
		"constants.mac_brc_prim":  c.Constants.MACBrCPrim,
		"constants.mac_brc_sec":   c.Constants.MACBrCSec,
	}
	for key, v := range consts {
		if v == nil {
			missing = append(missing, key)
		}
	}

	if c.Constants.TimeDelta == nil {
		missing = append(missing, "constants.time_delta")
	}

	sort.Strings(missing)
	return missing
}
