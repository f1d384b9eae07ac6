package reporting

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func fixturePositions() []*domain.Position {
	return []*domain.Position{
		{Mint: "mintA", State: domain.PositionClosed, EntryPrice: f64(1), ExitPrice: f64(1.5), Size: 10,
			RequestedSize: 10, Fees: 0.1, OpenedAt: i64(1000), ClosedAt: i64(5000), RealizedPnL: f64(4.9),
			OpenDecisionID: "d1", CloseDecisionID: "d2", LastCycle: 2},
		{Mint: "mintB", State: domain.PositionClosed, EntryPrice: f64(2), ExitPrice: f64(1), Size: 3,
			Fees: 0.2, RealizedPnL: f64(-3.2), LastCycle: 4},
		{Mint: "mintC", State: domain.PositionOpen, EntryPrice: f64(0.1), Size: 100, OpenedAt: i64(3000)},
		{Mint: "mintD", State: domain.PositionFailed, RequestedSize: 5, FailureReason: "execution timeout"},
	}
}

func fixtureDecisions() []*domain.Decision {
	return []*domain.Decision{
		{DecisionID: "d1", Mint: "mintA", Cycle: 1, Action: domain.ActionBuy, Confidence: 0.9,
			Reasons: []string{"score 0.82", "liquidity ok"}, Stage: domain.StageDecided, Price: 1, Size: 10, CreatedAt: 1000},
		{DecisionID: "d2", Mint: "mintA", Cycle: 2, Action: domain.ActionSell, Confidence: 0.7, Stage: domain.StageDecided, CreatedAt: 5000},
		{DecisionID: "d3", Mint: "mintE", Cycle: 1, Action: domain.ActionReject, Stage: domain.StageScreened, CreatedAt: 6000},
	}
}

func TestBuild(t *testing.T) {
	r := Build(fixturePositions(), fixtureDecisions(), time.UnixMilli(0))

	assert.Equal(t, 2, r.Closed)
	assert.Equal(t, 1, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.InDelta(t, 0.5, r.WinRate, 1e-9)
	assert.InDelta(t, 1.7, r.RealizedPnL, 1e-9)
	assert.InDelta(t, 0.3, r.TotalFees, 1e-9)
	assert.Equal(t, 2, r.StateCounts[domain.PositionClosed])
	assert.Equal(t, 1, r.StateCounts[domain.PositionFailed])
	assert.Equal(t, 1, r.ActionCounts[domain.ActionReject])
	require.Len(t, r.Failed, 1)
	assert.Equal(t, "mintD", r.Failed[0].Mint)
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, nil, time.Now())
	assert.Zero(t, r.WinRate)
	assert.Zero(t, r.RealizedPnL)
	assert.Contains(t, Summary(r), "| Win Rate | n/a |")
}

func TestSummary(t *testing.T) {
	md := Summary(Build(fixturePositions(), fixtureDecisions(), time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	assert.Contains(t, md, "Generated: 2024-05-01T12:00:00Z")
	assert.Contains(t, md, "Positions: 4 | Decisions: 3")
	assert.Contains(t, md, "| Win Rate | 50.00% |")
	assert.Contains(t, md, "| Realized P&L | 1.700000 |")
	assert.Contains(t, md, "| CLOSED | 2 |")
	assert.Contains(t, md, "| PENDING_OPEN | 0 |")
	assert.Contains(t, md, "| BUY | 1 |")
	assert.Contains(t, md, "- `mintD`: execution timeout")
}

func TestWritePositionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePositionsCSV(&buf, fixturePositions()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, positionHeader, records[0])
	assert.Equal(t, []string{"mintA", "CLOSED", "1", "1.5", "10", "10", "0.1", "1000", "5000", "4.9", "d1", "d2", "2", ""}, records[1])
	// Undefined exit price and pnl stay empty.
	assert.Equal(t, "", records[3][3])
	assert.Equal(t, "", records[3][9])
	assert.Equal(t, "execution timeout", records[4][13])
}

func TestWriteDecisionsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecisionsCSV(&buf, fixtureDecisions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "decision_id,mint,cycle,action"))
	assert.True(t, strings.HasSuffix(lines[1], ",score 0.82;liquidity ok"))
	assert.Contains(t, lines[3], ",REJECT,")
}
