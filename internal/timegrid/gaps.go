package timegrid

import (
	"time"
)

// Gap is an interval between consecutive samples that exceeded the expected
// sampling cadence.
type Gap struct {
	Start time.Time
	End   time.Time
	Delta time.Duration
}

// Minutes returns the gap duration in minutes, rounded to two decimals.
func (g Gap) Minutes() float64 {
	return round2(g.Delta.Minutes())
}

// Hours returns the gap duration in hours, rounded to two decimals.
func (g Gap) Hours() float64 {
	return round2(g.Delta.Hours())
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ModalInterval returns the most frequent consecutive delta over the first
// lead timestamps (all of them when lead <= 0). Zero when fewer than two
// timestamps are available.
func ModalInterval(ts []time.Time, lead int) time.Duration {
	if lead > 0 && len(ts) > lead {
		ts = ts[:lead]
	}
	if len(ts) < 2 {
		return 0
	}

	counts := make(map[time.Duration]int)
	for i := 1; i < len(ts); i++ {
		counts[ts[i].Sub(ts[i-1])]++
	}

	var mode time.Duration
	best := 0
	for d, n := range counts {
		// Prefer the smaller delta on equal counts so the scan stays stable
		// across map iteration order.
		if n > best || (n == best && d < mode) {
			mode = d
			best = n
		}
	}
	return mode
}

// FindGaps reports every consecutive pair whose delta strictly exceeds the
// threshold, ordered by gap start.
func FindGaps(ts []time.Time, threshold time.Duration) []Gap {
	var gaps []Gap
	for i := 1; i < len(ts); i++ {
		delta := ts[i].Sub(ts[i-1])
		if delta > threshold {
			gaps = append(gaps, Gap{Start: ts[i-1], End: ts[i], Delta: delta})
		}
	}
	return gaps
}
