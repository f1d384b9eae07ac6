// Package reporting exports ledger positions and decisions as CSV and a
// markdown summary.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-token-engine/internal/domain"
)

// Report aggregates positions and decisions for the summary.
type Report struct {
	GeneratedAt time.Time

	Positions []*domain.Position
	Decisions []*domain.Decision

	StateCounts  map[domain.PositionState]int
	ActionCounts map[domain.Action]int

	// Closed positions only.
	Closed      int
	Wins        int
	Losses      int
	WinRate     float64 // wins / closed, 0 when nothing closed
	RealizedPnL float64
	TotalFees   float64

	PnL PnLStats

	Failed []*domain.Position
}

// Build computes the report. Inputs are not modified.
func Build(positions []*domain.Position, decisions []*domain.Decision, generatedAt time.Time) *Report {
	r := &Report{
		GeneratedAt:  generatedAt.UTC(),
		Positions:    positions,
		Decisions:    decisions,
		StateCounts:  make(map[domain.PositionState]int),
		ActionCounts: make(map[domain.Action]int),
	}

	pnl := decimal.Zero
	fees := decimal.Zero
	for _, p := range positions {
		r.StateCounts[p.State]++
		fees = fees.Add(decimal.NewFromFloat(p.Fees))
		switch p.State {
		case domain.PositionClosed:
			r.Closed++
			if p.RealizedPnL == nil {
				continue
			}
			pnl = pnl.Add(decimal.NewFromFloat(*p.RealizedPnL))
			if *p.RealizedPnL > 0 {
				r.Wins++
			} else {
				r.Losses++
			}
		case domain.PositionFailed:
			r.Failed = append(r.Failed, p)
		}
	}
	for _, d := range decisions {
		r.ActionCounts[d.Action]++
	}

	r.RealizedPnL, _ = pnl.Float64()
	r.TotalFees, _ = fees.Float64()
	if r.Closed > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Closed)
	}
	r.PnL = computeStats(closedPnLs(positions))
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].Mint < r.Failed[j].Mint })
	return r
}
