// Package types holds the shared data types passed between the alignment,
// separation, and reporting layers.
package types

import (
	"math"
	"time"
)

// Sentinel is the reserved value meaning "the instrument reported no data in
// this bucket". It is distinct from true-missing, which is NaN: sentinels are
// carried through to the output as -99, while missing cells render as "NA".
const Sentinel = -99.0

// Record is one bucket of the aligned frame: the twelve aligned instrument
// channels plus every derived column. Derived columns start out missing (NaN)
// and are filled in by the separation and apportionment passes.
type Record struct {
	Time time.Time

	// Scaled absorption channels B-abs1..B-abs7 (AE33).
	Abs [7]float64

	// Thermal-optical carbon analyzer aggregates.
	TCconc  float64
	CO2     float64
	EC      float64
	OC      float64
	AE33BC6 float64

	// Derived columns.
	Babs6Val   float64
	BabsFF     float64
	BabsBB     float64
	BCff       float64
	BCbb       float64
	BabsBC     float64
	BabsBrC    float64
	BrC        float64
	BrCAbsSec  float64
	SOC        float64
	POC        float64
	BrCAbsPrim float64
	POA        float64
	SOA        float64
	POABrC     float64
	SOABrC     float64
	POAWtC     float64
	SOAWtC     float64
}

// NewRecord returns a Record for the given bucket with every channel
// sentineled and every derived column missing.
func NewRecord(t time.Time) Record {
	r := Record{Time: t}
	for i := range r.Abs {
		r.Abs[i] = Sentinel
	}
	r.TCconc = Sentinel
	r.CO2 = Sentinel
	r.EC = Sentinel
	r.OC = Sentinel
	r.AE33BC6 = Sentinel

	nan := math.NaN()
	r.Babs6Val = nan
	r.BabsFF = nan
	r.BabsBB = nan
	r.BCff = nan
	r.BCbb = nan
	r.BabsBC = nan
	r.BabsBrC = nan
	r.BrC = nan
	r.BrCAbsSec = nan
	r.SOC = nan
	r.POC = nan
	r.BrCAbsPrim = nan
	r.POA = nan
	r.SOA = nan
	r.POABrC = nan
	r.SOABrC = nan
	r.POAWtC = nan
	r.SOAWtC = nan
	return r
}

// IsSentinel reports whether v is the no-source-data marker.
func IsSentinel(v float64) bool {
	return v == Sentinel
}

// IsMissing reports whether v is the true-missing marker.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// IsValid reports whether v carries a real measurement.
func IsValid(v float64) bool {
	return !IsSentinel(v) && !IsMissing(v)
}
