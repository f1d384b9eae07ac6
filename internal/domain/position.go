package domain

// PositionState is the ledger state of a position.
type PositionState string

const (
	PositionNone         PositionState = "NONE"
	PositionPendingOpen  PositionState = "PENDING_OPEN"
	PositionOpen         PositionState = "OPEN"
	PositionPendingClose PositionState = "PENDING_CLOSE"
	PositionClosed       PositionState = "CLOSED"
	PositionFailed       PositionState = "FAILED"
)

// String returns the string representation of PositionState.
func (s PositionState) String() string {
	return string(s)
}

// IsValid checks if the state is a valid value.
func (s PositionState) IsValid() bool {
	switch s {
	case PositionNone, PositionPendingOpen, PositionOpen, PositionPendingClose, PositionClosed, PositionFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s PositionState) IsTerminal() bool {
	return s == PositionClosed || s == PositionFailed
}

// IsActive reports whether the state counts as an active position.
func (s PositionState) IsActive() bool {
	return s == PositionPendingOpen || s == PositionOpen || s == PositionPendingClose
}

// Position is owned exposure to one mint. Only the ledger mutates it.
type Position struct {
	Mint            string
	State           PositionState
	EntryPrice      *float64 // set on OPEN
	ExitPrice       *float64 // set on CLOSED
	Size            float64  // token units, never negative
	RequestedSize   float64  // size asked for by the opening decision
	Fees            float64  // accumulated entry + exit fees
	OpenedAt        *int64   // Unix ms, set on OPEN
	ClosedAt        *int64   // Unix ms, set on CLOSED or FAILED
	RealizedPnL     *float64 // defined only when CLOSED
	OpenDecisionID  string
	CloseDecisionID string
	LastCycle       uint64 // cycle of the last accepted decision
	FailureReason   string
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	c.EntryPrice = cloneFloat(p.EntryPrice)
	c.ExitPrice = cloneFloat(p.ExitPrice)
	c.OpenedAt = cloneInt(p.OpenedAt)
	c.ClosedAt = cloneInt(p.ClosedAt)
	c.RealizedPnL = cloneFloat(p.RealizedPnL)
	return &c
}
