package reporting

import (
	"math"
	"sort"

	"solana-token-engine/internal/domain"
)

// PnLStats describes the distribution of realized P&L over closed positions.
type PnLStats struct {
	Count                int
	Mean                 float64
	Median               float64
	P10                  float64
	P90                  float64
	Stddev               float64 // sample stddev, 0 below two samples
	Best                 float64
	Worst                float64
	MaxDrawdown          float64 // worst peak-to-trough of cumulative P&L
	MaxConsecutiveLosses int
}

// closedPnLs returns realized P&L of closed positions ordered by close time.
func closedPnLs(positions []*domain.Position) []float64 {
	type closed struct {
		at  int64
		pnl float64
	}
	var rows []closed
	for _, p := range positions {
		if p.State != domain.PositionClosed || p.RealizedPnL == nil {
			continue
		}
		var at int64
		if p.ClosedAt != nil {
			at = *p.ClosedAt
		}
		rows = append(rows, closed{at: at, pnl: *p.RealizedPnL})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at < rows[j].at })

	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.pnl
	}
	return out
}

func computeStats(chronological []float64) PnLStats {
	st := PnLStats{Count: len(chronological)}
	if st.Count == 0 {
		return st
	}

	sorted := append([]float64(nil), chronological...)
	sort.Float64s(sorted)

	st.Mean = mean(chronological)
	st.Median = percentile(sorted, 0.5)
	st.P10 = percentile(sorted, 0.1)
	st.P90 = percentile(sorted, 0.9)
	st.Stddev = stddev(chronological, st.Mean)
	st.Worst = sorted[0]
	st.Best = sorted[len(sorted)-1]
	st.MaxDrawdown = maxDrawdown(chronological)
	st.MaxConsecutiveLosses = maxConsecutiveLosses(chronological)
	return st
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// percentile interpolates linearly between closest ranks. sorted must be
// ascending and non-empty.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lower := int(idx)
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

func maxDrawdown(xs []float64) float64 {
	var cumulative, peak, worst float64
	for _, x := range xs {
		cumulative += x
		peak = math.Max(peak, cumulative)
		worst = math.Max(worst, peak-cumulative)
	}
	return worst
}

// maxConsecutiveLosses counts the longest run of non-positive P&L.
func maxConsecutiveLosses(xs []float64) int {
	longest, run := 0, 0
	for _, x := range xs {
		if x > 0 {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}
