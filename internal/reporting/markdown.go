package reporting

import (
	"fmt"
	"strings"
	"time"

	"solana-token-engine/internal/domain"
)

var stateOrder = []domain.PositionState{
	domain.PositionPendingOpen,
	domain.PositionOpen,
	domain.PositionPendingClose,
	domain.PositionClosed,
	domain.PositionFailed,
}

var actionOrder = []domain.Action{
	domain.ActionBuy,
	domain.ActionSell,
	domain.ActionHold,
	domain.ActionReject,
}

// Summary renders the report as markdown.
func Summary(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Ledger Summary\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Positions: %d | Decisions: %d\n\n", len(r.Positions), len(r.Decisions)))

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Closed Positions | %d |\n", r.Closed))
	sb.WriteString(fmt.Sprintf("| Wins | %d |\n", r.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d |\n", r.Losses))
	if r.Closed > 0 {
		sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", r.WinRate*100))
	} else {
		sb.WriteString("| Win Rate | n/a |\n")
	}
	sb.WriteString(fmt.Sprintf("| Realized P&L | %.6f |\n", r.RealizedPnL))
	sb.WriteString(fmt.Sprintf("| Total Fees | %.6f |\n", r.TotalFees))
	sb.WriteString("\n")

	if st := r.PnL; st.Count > 0 {
		sb.WriteString("## P&L Distribution\n\n")
		sb.WriteString("| Mean | Median | P10 | P90 | Stddev | Best | Worst | Max Drawdown | Max Loss Streak |\n")
		sb.WriteString("|------|--------|-----|-----|--------|------|-------|--------------|-----------------|\n")
		sb.WriteString(fmt.Sprintf("| %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %.6f | %d |\n\n",
			st.Mean, st.Median, st.P10, st.P90, st.Stddev, st.Best, st.Worst, st.MaxDrawdown, st.MaxConsecutiveLosses))
	}

	sb.WriteString("## Positions by State\n\n")
	sb.WriteString("| State | Count |\n")
	sb.WriteString("|-------|-------|\n")
	for _, s := range stateOrder {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", s, r.StateCounts[s]))
	}
	sb.WriteString("\n")

	sb.WriteString("## Decisions by Action\n\n")
	sb.WriteString("| Action | Count |\n")
	sb.WriteString("|--------|-------|\n")
	for _, a := range actionOrder {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", a, r.ActionCounts[a]))
	}
	sb.WriteString("\n")

	if len(r.Failed) > 0 {
		sb.WriteString("## Failed Positions\n\n")
		for _, p := range r.Failed {
			reason := p.FailureReason
			if reason == "" {
				reason = "unknown"
			}
			sb.WriteString(fmt.Sprintf("- `%s`: %s\n", p.Mint, reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
