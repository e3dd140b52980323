package speciation

import (
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/cass-aq/speciation/internal/types"
)

// Separation describes one decorrelation-regression pass: the raw signal to
// split, the reference signal assumed to trace the primary component, where
// to store the separated remainder, and the candidate coefficient grid.
type Separation struct {
	Name    string
	Raw     func(*types.Record) float64
	Ref     func(*types.Record) float64
	Assign  func(*types.Record, float64)
	GridMax float64 // candidates run 0.0..GridMax in steps of 0.1
}

// SOCSeparation splits secondary organic carbon out of total organic carbon
// against the reference black-carbon channel.
func SOCSeparation() Separation {
	return Separation{
		Name:    "SOC_vs_BC",
		Raw:     func(r *types.Record) float64 { return r.OC },
		Ref:     func(r *types.Record) float64 { return r.AE33BC6 },
		Assign:  func(r *types.Record, v float64) { r.SOC = v },
		GridMax: 10.0,
	}
}

// BrCSeparation splits secondary brown-carbon absorption out of the near-UV
// channel against the near-IR channel.
func BrCSeparation() Separation {
	return Separation{
		Name:    "BrCAbsSec_vs_Babs6",
		Raw:     func(r *types.Record) float64 { return r.Abs[1] },
		Ref:     func(r *types.Record) float64 { return r.Abs[5] },
		Assign:  func(r *types.Record, v float64) { r.BrCAbsSec = v },
		GridMax: 6.0,
	}
}

// CandidateScore is one point of a chunk's score-vs-candidate curve.
type CandidateScore struct {
	Candidate float64
	Score     float64
}

// ChunkResult is the fitted coefficient for one regressable chunk, along
// with the full grid curve for diagnostic plotting.
type ChunkResult struct {
	Start       time.Time
	End         time.Time
	Coefficient float64
	MinScore    float64
	Curve       []CandidateScore
}

// Separate runs one decorrelation pass over the chunk partition of the
// aligned frame, writing the separated column in place. Chunks lacking three
// distinct calendar days or any valid value in either series are skipped;
// their rows keep the missing marker. Returns one result per regressable
// chunk.
func Separate(records []types.Record, timeDeltaDays int, sep Separation, logger *zap.SugaredLogger) []ChunkResult {
	var results []ChunkResult

	for _, chunk := range Chunks(records, timeDeltaDays) {
		if distinctDays(records, chunk) < 3 {
			continue
		}

		if !hasValid(records, chunk, sep.Raw) || !hasValid(records, chunk, sep.Ref) {
			continue
		}

		// Pair rows where both series carry a real measurement.
		var raw, ref []float64
		for i := chunk.Lo; i < chunk.Hi; i++ {
			rv := sep.Raw(&records[i])
			fv := sep.Ref(&records[i])
			if types.IsValid(rv) && types.IsValid(fv) {
				raw = append(raw, rv)
				ref = append(ref, fv)
			}
		}

		logger.Infow("fitting chunk", "separation", sep.Name,
			"from", chunk.Start.Format("2006-01-02"), "to", chunk.End.Format("2006-01-02"),
			"pairs", len(raw))

		curve := scoreGrid(raw, ref, sep.GridMax)
		best := argMin(curve)

		for i := chunk.Lo; i < chunk.Hi; i++ {
			sep.Assign(&records[i], sep.Raw(&records[i])-best.Candidate*sep.Ref(&records[i]))
		}

		results = append(results, ChunkResult{
			Start:       chunk.Start,
			End:         chunk.End,
			Coefficient: best.Candidate,
			MinScore:    best.Score,
			Curve:       curve,
		})
	}

	if len(results) == 0 {
		logger.Infow("no regressable chunk in the whole series, column stays missing",
			"separation", sep.Name)
	}
	return results
}

func hasValid(records []types.Record, c Chunk, get func(*types.Record) float64) bool {
	for i := c.Lo; i < c.Hi; i++ {
		if types.IsValid(get(&records[i])) {
			return true
		}
	}
	return false
}

// scoreGrid evaluates every candidate coefficient. The score is the squared
// Pearson correlation between the residual (raw - c*ref) and the reference;
// fewer than two usable pairs, or a degenerate correlation, scores zero.
func scoreGrid(raw, ref []float64, gridMax float64) []CandidateScore {
	steps := int(gridMax*10 + 0.5)
	curve := make([]CandidateScore, 0, steps+1)
	residual := make([]float64, len(raw))

	for i := 0; i <= steps; i++ {
		c := float64(i) / 10.0
		score := 0.0
		if len(raw) >= 2 {
			for j := range raw {
				residual[j] = raw[j] - c*ref[j]
			}
			corr := stat.Correlation(residual, ref, nil)
			if !math.IsNaN(corr) {
				score = corr * corr
			}
		}
		curve = append(curve, CandidateScore{Candidate: c, Score: score})
	}
	return curve
}

// argMin picks the minimum-score candidate; on ties the lowest coefficient
// wins (first occurrence in ascending grid order).
func argMin(curve []CandidateScore) CandidateScore {
	best := curve[0]
	for _, cs := range curve[1:] {
		if cs.Score < best.Score {
			best = cs
		}
	}
	return best
}
