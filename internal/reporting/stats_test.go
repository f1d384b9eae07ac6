package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-token-engine/internal/domain"
)

func TestComputeStats(t *testing.T) {
	st := computeStats([]float64{2, -1, -3, 4, 1})

	assert.Equal(t, 5, st.Count)
	assert.InDelta(t, 0.6, st.Mean, 1e-9)
	assert.InDelta(t, 1, st.Median, 1e-9)
	assert.InDelta(t, -2.2, st.P10, 1e-9)
	assert.InDelta(t, 3.2, st.P90, 1e-9)
	assert.InDelta(t, 2.701851, st.Stddev, 1e-6)
	assert.Equal(t, 4.0, st.Best)
	assert.Equal(t, -3.0, st.Worst)
	// Cumulative 2, 1, -2, 2, 3: peak 2, trough -2.
	assert.InDelta(t, 4, st.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, st.MaxConsecutiveLosses)
}

func TestComputeStats_Edges(t *testing.T) {
	assert.Equal(t, PnLStats{}, computeStats(nil))

	one := computeStats([]float64{-5})
	assert.Equal(t, -5.0, one.Median)
	assert.Zero(t, one.Stddev)
	assert.Equal(t, 5.0, one.MaxDrawdown)
	assert.Equal(t, 1, one.MaxConsecutiveLosses)
}

func TestClosedPnLsOrderedByCloseTime(t *testing.T) {
	positions := []*domain.Position{
		{Mint: "a", State: domain.PositionClosed, ClosedAt: i64(300), RealizedPnL: f64(3)},
		{Mint: "b", State: domain.PositionOpen, RealizedPnL: nil},
		{Mint: "c", State: domain.PositionClosed, ClosedAt: i64(100), RealizedPnL: f64(1)},
		{Mint: "d", State: domain.PositionFailed, ClosedAt: i64(200)},
	}
	assert.Equal(t, []float64{1, 3}, closedPnLs(positions))
}
