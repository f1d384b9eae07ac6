// Package audit fans decisions and ledger transitions out to log, store and
// chat writers without ever blocking the decision path.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"solana-token-engine/internal/domain"
)

// NewDecisionEvent builds the audit record for an emitted decision.
func NewDecisionEvent(d *domain.Decision) *domain.AuditEvent {
	payload, _ := json.Marshal(d)
	return &domain.AuditEvent{
		EventID:    uuid.NewString(),
		Kind:       domain.AuditDecision,
		Mint:       d.Mint,
		DecisionID: d.DecisionID,
		Action:     d.Action,
		Summary:    decisionSummary(d),
		Payload:    string(payload),
		Timestamp:  d.CreatedAt,
	}
}

// NewTransitionEvent builds the audit record for a committed ledger transition.
func NewTransitionEvent(t *domain.Transition, pos *domain.Position) *domain.AuditEvent {
	payload, _ := json.Marshal(struct {
		Transition *domain.Transition
		Position   *domain.Position
	}{t, pos})
	return &domain.AuditEvent{
		EventID:    uuid.NewString(),
		Kind:       domain.AuditTransition,
		Mint:       t.Mint,
		DecisionID: t.DecisionID,
		Action:     t.Action,
		FromState:  t.FromState,
		ToState:    t.ToState,
		Summary:    transitionSummary(t, pos),
		Payload:    string(payload),
		Timestamp:  t.Timestamp,
	}
}

func decisionSummary(d *domain.Decision) string {
	s := fmt.Sprintf("%s %s cycle=%d conf=%.2f", d.Action, shortMint(d.Mint), d.Cycle, d.Confidence)
	if d.Size > 0 {
		s += fmt.Sprintf(" size=%g", d.Size)
	}
	if len(d.Reasons) > 0 {
		s += " reasons=" + strings.Join(d.Reasons, "; ")
	}
	return s
}

func transitionSummary(t *domain.Transition, pos *domain.Position) string {
	s := fmt.Sprintf("%s %s %s->%s", t.Action, shortMint(t.Mint), t.FromState, t.ToState)
	if pos == nil {
		return s
	}
	switch t.ToState {
	case domain.PositionOpen:
		if pos.EntryPrice != nil {
			s += fmt.Sprintf(" entry=%g size=%g", *pos.EntryPrice, pos.Size)
		}
	case domain.PositionClosed:
		if pos.ExitPrice != nil && pos.RealizedPnL != nil {
			s += fmt.Sprintf(" exit=%g pnl=%.4f", *pos.ExitPrice, *pos.RealizedPnL)
		}
	case domain.PositionFailed:
		s += " reason=" + pos.FailureReason
	}
	return s
}

func shortMint(m string) string {
	if len(m) > 8 {
		return m[:4] + ".." + m[len(m)-4:]
	}
	return m
}
