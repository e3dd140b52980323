package speciation

import (
	"math"
	"time"

	"github.com/cass-aq/speciation/internal/types"
)

// wavelengthRatio is the near-IR over near-UV wavelength ratio (950/470 nm)
// used by the Ångström apportionment.
const wavelengthRatio = 950.0 / 470.0

// Constants are the physical source-apportionment constants, already parsed
// and validated by the configuration layer.
type Constants struct {
	AAEbb       float64
	AAEff       float64
	AAEbc       float64
	MACbb       float64
	MACff       float64
	POAPOCRatio float64
	SOASOCRatio float64
	MACBrCPrim  float64
	MACBrCSec   float64
	TimeDelta   int
}

// Derive fills every downstream apportionment column from the aligned and
// separated channels, then applies the sentinel override rules. The two
// separated columns (SOC, BrCAbsSec) must already be populated.
func Derive(records []types.Record, k Constants) {
	denom := math.Pow(wavelengthRatio, -k.AAEff) - math.Pow(wavelengthRatio, -k.AAEbb)

	for i := range records {
		r := &records[i]
		blue, ir := r.Abs[1], r.Abs[6]

		r.BabsFF = (ir - blue*math.Pow(wavelengthRatio, -k.AAEbb)) / denom
		r.BabsBB = (ir - blue*math.Pow(wavelengthRatio, -k.AAEff)) / denom

		macRatio := k.MACff / k.MACbb
		num := 1 - (blue/ir)*math.Pow(wavelengthRatio, -k.AAEff)
		den := 1 - (blue/ir)*math.Pow(wavelengthRatio, -k.AAEbb)
		ffFraction := 1 / (1 - macRatio*(num/den))
		r.BCff = r.AE33BC6 * ffFraction
		r.BCbb = r.AE33BC6 - r.BCff

		r.BabsBC = r.Abs[5] * math.Pow(470.0/880.0, -k.AAEbc)
		r.BabsBrC = blue - r.BabsBC
		r.BrC = r.OC - r.AE33BC6

		r.POC = r.OC - r.SOC
		r.POA = r.POC * k.POAPOCRatio
		r.SOA = r.SOC * k.SOASOCRatio
		r.BrCAbsPrim = r.BabsBrC - r.BrCAbsSec

		r.POABrC = r.BrCAbsPrim / k.MACBrCPrim
		r.SOABrC = r.BrCAbsSec / k.MACBrCSec
		r.POAWtC = r.POA - r.POABrC
		r.SOAWtC = r.SOA - r.SOABrC
	}

	applyOverrides(records)

	// Fixed 880nm spot factor from the AE33 calibration sheet; computed after
	// the override pass, matching the upstream processing order.
	for i := range records {
		records[i].Babs6Val = records[i].AE33BC6 * 7.77 / 1000
	}
}

// OverrideRule forces a set of columns to the sentinel when its condition
// holds for a row. Rules are applied in order, so later rules win.
type OverrideRule struct {
	Name    string
	When    func(*types.Record) bool
	Columns []func(*types.Record) *float64
}

// overrideRules is the sentinel-propagation table. Rule order matters: the
// carbon-analyzer rule can override columns the absorption rule already set.
var overrideRules = []OverrideRule{
	{
		Name: "absorption anchors sentinel",
		When: func(r *types.Record) bool {
			return types.IsSentinel(r.Abs[6]) || types.IsSentinel(r.Abs[1])
		},
		Columns: []func(*types.Record) *float64{
			func(r *types.Record) *float64 { return &r.BabsBB },
			func(r *types.Record) *float64 { return &r.BabsFF },
			func(r *types.Record) *float64 { return &r.BCff },
			func(r *types.Record) *float64 { return &r.BCbb },
			func(r *types.Record) *float64 { return &r.BabsBrC },
			func(r *types.Record) *float64 { return &r.BabsBC },
			func(r *types.Record) *float64 { return &r.BrCAbsSec },
		},
	},
	{
		Name: "total carbon sentinel or missing",
		When: func(r *types.Record) bool {
			return types.IsSentinel(r.TCconc) || types.IsMissing(r.TCconc)
		},
		Columns: []func(*types.Record) *float64{
			func(r *types.Record) *float64 { return &r.SOC },
			func(r *types.Record) *float64 { return &r.POC },
			func(r *types.Record) *float64 { return &r.SOA },
			func(r *types.Record) *float64 { return &r.POA },
			func(r *types.Record) *float64 { return &r.AE33BC6 },
			func(r *types.Record) *float64 { return &r.BrC },
			func(r *types.Record) *float64 { return &r.BrCAbsSec },
			func(r *types.Record) *float64 { return &r.BrCAbsPrim },
			func(r *types.Record) *float64 { return &r.POABrC },
			func(r *types.Record) *float64 { return &r.SOABrC },
			func(r *types.Record) *float64 { return &r.POAWtC },
			func(r *types.Record) *float64 { return &r.SOAWtC },
			func(r *types.Record) *float64 { return &r.TCconc },
			func(r *types.Record) *float64 { return &r.CO2 },
			func(r *types.Record) *float64 { return &r.EC },
			func(r *types.Record) *float64 { return &r.OC },
			func(r *types.Record) *float64 { return &r.BCff },
			func(r *types.Record) *float64 { return &r.BCbb },
		},
	},
}

func applyOverrides(records []types.Record) {
	for i := range records {
		r := &records[i]
		for _, rule := range overrideRules {
			if rule.When(r) {
				for _, col := range rule.Columns {
					*col(r) = types.Sentinel
				}
			}
		}
	}
}

// FilterWindow keeps rows whose timestamp falls inside the user's original
// analysis window: from the start date through the end of the end date.
func FilterWindow(records []types.Record, start, end time.Time) []types.Record {
	limit := end.AddDate(0, 0, 1)
	out := records[:0:0]
	for _, r := range records {
		if !r.Time.Before(start) && r.Time.Before(limit) {
			out = append(out, r)
		}
	}
	return out
}
