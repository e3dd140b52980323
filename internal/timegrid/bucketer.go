// Package timegrid resamples the two independently-timestamped instrument
// streams onto a shared fixed-width time grid and audits their sampling
// cadence for gaps.
package timegrid

import (
	"math"
	"sort"
	"time"

	"github.com/cass-aq/speciation/internal/database"
	"github.com/cass-aq/speciation/internal/types"
)

// BucketKey truncates a timestamp to the preceding grid line. The grid is
// anchored at the Unix epoch.
func BucketKey(t time.Time, widthSeconds int) time.Time {
	w := int64(widthSeconds)
	return time.Unix(t.Unix()/w*w, 0).UTC()
}

// ExtendEnd pushes end forward until (end - start + 1 day) is a whole number
// of timeDelta-day chunks, so every analysis day falls inside a complete
// chunk. Returns the new end and the number of days added.
func ExtendEnd(start, end time.Time, timeDeltaDays int) (time.Time, int) {
	days := int(end.Sub(start).Hours()/24) + 1
	rem := days % timeDeltaDays
	if rem == 0 {
		return end, 0
	}
	added := timeDeltaDays - rem
	return end.AddDate(0, 0, added), added
}

type accumulator struct {
	sum   float64
	count int
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	a.sum += v
	a.count++
}

// mean collapses an accumulator, yielding the sentinel when no numeric
// reading landed in the bucket.
func (a accumulator) mean() float64 {
	if a.count == 0 {
		return types.Sentinel
	}
	return a.sum / float64(a.count)
}

// Align buckets both raw streams onto the shared grid and merges them into
// one aligned frame. Only buckets present in at least one source are
// materialized; channels of an absent source are sentineled. The seven
// absorption channels are scaled by their calibration multipliers immediately
// after averaging.
func Align(ae33 []database.AE33Sample, tca []database.TCASample, widthSeconds int, multipliers [7]float64) []types.Record {
	type ae33Acc struct{ abs [7]accumulator }
	type tcaAcc struct{ tc, co2, ec, oc, bc6 accumulator }

	ae33Buckets := make(map[int64]*ae33Acc)
	for _, s := range ae33 {
		key := BucketKey(s.Time, widthSeconds).Unix()
		acc := ae33Buckets[key]
		if acc == nil {
			acc = &ae33Acc{}
			ae33Buckets[key] = acc
		}
		for i, v := range s.Abs {
			acc.abs[i].add(v)
		}
	}

	tcaBuckets := make(map[int64]*tcaAcc)
	for _, s := range tca {
		key := BucketKey(s.Time, widthSeconds).Unix()
		acc := tcaBuckets[key]
		if acc == nil {
			acc = &tcaAcc{}
			tcaBuckets[key] = acc
		}
		acc.tc.add(s.TCconc)
		acc.co2.add(s.CO2)
		acc.ec.add(s.EC)
		acc.oc.add(s.OC)
		acc.bc6.add(s.BC6)
	}

	keySet := make(map[int64]struct{}, len(ae33Buckets)+len(tcaBuckets))
	for k := range ae33Buckets {
		keySet[k] = struct{}{}
	}
	for k := range tcaBuckets {
		keySet[k] = struct{}{}
	}
	keys := make([]int64, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	records := make([]types.Record, 0, len(keys))
	for _, k := range keys {
		rec := types.NewRecord(time.Unix(k, 0).UTC())
		if acc, ok := ae33Buckets[k]; ok {
			for i := range rec.Abs {
				if m := acc.abs[i].mean(); types.IsSentinel(m) {
					rec.Abs[i] = types.Sentinel
				} else {
					rec.Abs[i] = m * multipliers[i]
				}
			}
		}
		if acc, ok := tcaBuckets[k]; ok {
			rec.TCconc = acc.tc.mean()
			rec.CO2 = acc.co2.mean()
			rec.EC = acc.ec.mean()
			rec.OC = acc.oc.mean()
			rec.AE33BC6 = acc.bc6.mean()
		}
		records = append(records, rec)
	}
	return records
}
