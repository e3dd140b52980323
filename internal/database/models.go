package database

import "time"

// AE33Sample is one raw row from the seven-wavelength absorption instrument.
// Channels that were not numeric in the store are NaN.
type AE33Sample struct {
	Time time.Time
	Abs  [7]float64
}

// TCASample is one raw row from the thermal-optical carbon analyzer.
// Fields that were not numeric in the store are NaN.
type TCASample struct {
	Time   time.Time
	TCconc float64
	CO2    float64
	EC     float64
	OC     float64
	BC6    float64
}

// TableStats summarizes a raw table's time coverage.
type TableStats struct {
	Min   time.Time
	Max   time.Time
	Count int64
}
