// Package speciation implements the analytical core: the chunked
// decorrelation regression that splits confounded components and the
// closed-form source-apportionment cascade applied to the aligned frame.
package speciation

import (
	"time"

	"github.com/cass-aq/speciation/internal/types"
)

// Chunk is one contiguous window of the aligned frame, [Start, End) in time
// and [Lo, Hi) as a row index range.
type Chunk struct {
	Start time.Time
	End   time.Time
	Lo    int
	Hi    int
}

// Chunks partitions the aligned frame into consecutive windows of exactly
// timeDeltaDays, anchored at the frame's minimum timestamp and covering up
// to (not including) its maximum. Records must be sorted by time.
func Chunks(records []types.Record, timeDeltaDays int) []Chunk {
	if len(records) == 0 {
		return nil
	}

	minT := records[0].Time
	maxT := records[len(records)-1].Time

	var chunks []Chunk
	idx := 0
	for start := minT; start.Before(maxT); {
		end := start.AddDate(0, 0, timeDeltaDays)
		lo := idx
		for idx < len(records) && records[idx].Time.Before(end) {
			idx++
		}
		chunks = append(chunks, Chunk{Start: start, End: end, Lo: lo, Hi: idx})
		start = end
	}
	return chunks
}

// distinctDays counts the unique calendar dates covered by the chunk's rows.
func distinctDays(records []types.Record, c Chunk) int {
	seen := make(map[string]struct{})
	for _, r := range records[c.Lo:c.Hi] {
		seen[r.Time.Format("2006-01-02")] = struct{}{}
	}
	return len(seen)
}
