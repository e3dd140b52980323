package speciation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cass-aq/speciation/internal/types"
)

func testConstants() Constants {
	return Constants{
		AAEbb:       2.0,
		AAEff:       1.5,
		AAEbc:       1.0,
		MACbb:       9.0,
		MACff:       12.5,
		POAPOCRatio: 1.4,
		SOASOCRatio: 2.1,
		MACBrCPrim:  1.2,
		MACBrCSec:   0.8,
		TimeDelta:   3,
	}
}

func TestDeriveApportionmentRoundTrip(t *testing.T) {
	k := testConstants()

	r := types.NewRecord(ts("2024-03-01 12:00:00"))
	r.Abs = [7]float64{4, 5, 5.5, 6, 7, 8, 10} // blue = Abs[1] = 5, IR = Abs[6] = 10
	r.TCconc = 12
	r.CO2 = 420
	r.EC = 2
	r.OC = 9
	r.AE33BC6 = 3
	r.SOC = 4
	r.BrCAbsSec = 1.5

	records := []types.Record{r}
	Derive(records, k)
	got := records[0]

	ratio := 950.0 / 470.0
	// The fossil-fuel and biomass components are complementary
	// decompositions of the same two-wavelength measurement.
	assert.InDelta(t, 5.0, got.BabsFF-got.BabsBB, 1e-9, "ff - bb reproduces the blue channel")
	assert.InDelta(t, 10.0,
		got.BabsFF*math.Pow(ratio, -k.AAEff)-got.BabsBB*math.Pow(ratio, -k.AAEbb),
		1e-9, "wavelength-weighted recomposition reproduces the IR channel")

	assert.InDelta(t, 3.0, got.BCff+got.BCbb, 1e-9, "BC split preserves the reference channel")

	assert.InDelta(t, got.Abs[1]-got.BabsBC, got.BabsBrC, 1e-12)
	assert.InDelta(t, 6.0, got.BrC, 1e-12)        // OC - AE33_BC6
	assert.InDelta(t, 5.0, got.POC, 1e-12)        // OC - SOC
	assert.InDelta(t, 7.0, got.POA, 1e-12)        // POC * 1.4
	assert.InDelta(t, 8.4, got.SOA, 1e-12)        // SOC * 2.1
	assert.InDelta(t, 1.875, got.SOABrC, 1e-12)   // BrCAbsSec / 0.8
	assert.InDelta(t, got.POA-got.POABrC, got.POAWtC, 1e-12)
	assert.InDelta(t, got.SOA-got.SOABrC, got.SOAWtC, 1e-12)
	assert.InDelta(t, 3*7.77/1000, got.Babs6Val, 1e-12)
}

func TestSentinelPropagation(t *testing.T) {
	k := testConstants()

	withChannels := func(mutate func(*types.Record)) types.Record {
		r := types.NewRecord(ts("2024-03-01 12:00:00"))
		r.Abs = [7]float64{4, 5, 5.5, 6, 7, 8, 10}
		r.TCconc = 12
		r.CO2 = 420
		r.EC = 2
		r.OC = 9
		r.AE33BC6 = 3
		r.SOC = 4
		r.BrCAbsSec = 1.5
		mutate(&r)
		return r
	}

	t.Run("absorption anchor sentinel forces absorption-derived columns", func(t *testing.T) {
		records := []types.Record{withChannels(func(r *types.Record) {
			r.Abs[1] = types.Sentinel
		})}
		Derive(records, k)
		got := records[0]

		for name, v := range map[string]float64{
			"BabsFF": got.BabsFF, "BabsBB": got.BabsBB,
			"BCff": got.BCff, "BCbb": got.BCbb,
			"BabsBrC": got.BabsBrC, "BabsBC": got.BabsBC,
			"BrCAbsSec": got.BrCAbsSec,
		} {
			assert.True(t, types.IsSentinel(v), "%s should be sentinel", name)
		}
		// Carbon columns are untouched by this rule.
		assert.False(t, types.IsSentinel(got.SOC))
		assert.False(t, types.IsSentinel(got.OC))
	})

	t.Run("total carbon sentinel forces the carbon set", func(t *testing.T) {
		records := []types.Record{withChannels(func(r *types.Record) {
			r.TCconc = types.Sentinel
		})}
		Derive(records, k)
		got := records[0]

		for name, v := range map[string]float64{
			"SOC": got.SOC, "POC": got.POC, "SOA": got.SOA, "POA": got.POA,
			"AE33BC6": got.AE33BC6, "BrC": got.BrC,
			"BrCAbsSec": got.BrCAbsSec, "BrCAbsPrim": got.BrCAbsPrim,
			"POABrC": got.POABrC, "SOABrC": got.SOABrC,
			"POAWtC": got.POAWtC, "SOAWtC": got.SOAWtC,
			"TCconc": got.TCconc, "CO2": got.CO2, "EC": got.EC, "OC": got.OC,
			"BCff": got.BCff, "BCbb": got.BCbb,
		} {
			assert.True(t, types.IsSentinel(v), "%s should be sentinel", name)
		}
	})

	t.Run("missing total carbon triggers the same rule", func(t *testing.T) {
		records := []types.Record{withChannels(func(r *types.Record) {
			r.TCconc = math.NaN()
		})}
		Derive(records, k)
		assert.True(t, types.IsSentinel(records[0].SOC))
		assert.True(t, types.IsSentinel(records[0].TCconc))
	})

	t.Run("carbon rule overrides the absorption rule", func(t *testing.T) {
		records := []types.Record{withChannels(func(r *types.Record) {
			r.Abs[1] = types.Sentinel
			r.TCconc = types.Sentinel
		})}
		Derive(records, k)
		got := records[0]

		// Both rules fired; BCff sits in both column sets and must end up
		// sentinel either way, while EC is only reachable through rule two.
		assert.True(t, types.IsSentinel(got.BCff))
		assert.True(t, types.IsSentinel(got.EC))
		assert.True(t, types.IsSentinel(got.BabsFF))
	})
}

func TestFilterWindow(t *testing.T) {
	records := hourlyRecords(ts("2024-02-28 00:00:00"), 10, func(i int, r *types.Record) {})

	// Keep 2024-03-01 through the end of 2024-03-03.
	out := FilterWindow(records, ts("2024-03-01 00:00:00"), ts("2024-03-03 00:00:00"))
	require.Len(t, out, 72)
	assert.True(t, out[0].Time.Equal(ts("2024-03-01 00:00:00")))
	assert.True(t, out[71].Time.Equal(ts("2024-03-03 23:00:00")))
}
