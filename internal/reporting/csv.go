package reporting

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"solana-token-engine/internal/domain"
)

var positionHeader = []string{
	"mint", "state", "entry_price", "exit_price", "size", "requested_size", "fees",
	"opened_at", "closed_at", "realized_pnl", "open_decision_id", "close_decision_id",
	"last_cycle", "failure_reason",
}

// WritePositionsCSV writes one row per position. Undefined values are empty.
func WritePositionsCSV(w io.Writer, positions []*domain.Position) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return err
	}
	for _, p := range positions {
		row := []string{
			p.Mint,
			string(p.State),
			optFloat(p.EntryPrice),
			optFloat(p.ExitPrice),
			formatFloat(p.Size),
			formatFloat(p.RequestedSize),
			formatFloat(p.Fees),
			optInt(p.OpenedAt),
			optInt(p.ClosedAt),
			optFloat(p.RealizedPnL),
			p.OpenDecisionID,
			p.CloseDecisionID,
			strconv.FormatUint(p.LastCycle, 10),
			p.FailureReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var decisionHeader = []string{
	"decision_id", "mint", "cycle", "action", "confidence", "stage", "verdict_status",
	"verdict_snapshot_id", "scorer_id", "price", "size", "created_at", "reasons",
}

// WriteDecisionsCSV writes one row per decision; reasons are joined with ';'.
func WriteDecisionsCSV(w io.Writer, decisions []*domain.Decision) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(decisionHeader); err != nil {
		return err
	}
	for _, d := range decisions {
		row := []string{
			d.DecisionID,
			d.Mint,
			strconv.FormatUint(d.Cycle, 10),
			string(d.Action),
			formatFloat(d.Confidence),
			string(d.Stage),
			string(d.VerdictStatus),
			d.VerdictSnapshotID,
			d.ScorerID,
			formatFloat(d.Price),
			formatFloat(d.Size),
			strconv.FormatInt(d.CreatedAt, 10),
			strings.Join(d.Reasons, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
