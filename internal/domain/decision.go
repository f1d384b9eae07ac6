package domain

// Action is the outcome of one decision cycle.
type Action string

const (
	ActionBuy    Action = "BUY"
	ActionSell   Action = "SELL"
	ActionHold   Action = "HOLD"
	ActionReject Action = "REJECT"
)

// String returns the string representation of Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a valid value.
func (a Action) IsValid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold, ActionReject:
		return true
	}
	return false
}

// IsTrade reports whether the action affects capital.
func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// Stage names the step a decision cycle reached.
type Stage string

const (
	StageNewSnapshot Stage = "NEW_SNAPSHOT"
	StageNormalized  Stage = "NORMALIZED"
	StageWindowed    Stage = "WINDOWED"
	StageScreened    Stage = "SCREENED"
	StageScored      Stage = "SCORED"
	StageGated       Stage = "GATED"
	StageDecided     Stage = "DECIDED"
)

// String returns the string representation of Stage.
func (s Stage) String() string {
	return string(s)
}

// Decision is the single output of one (mint, cycle). Immutable once emitted.
// Corresponds to decisions table in PostgreSQL.
type Decision struct {
	DecisionID        string // SHA256(mint|cycle|snapshot_id)
	Mint              string
	Cycle             uint64 // per-mint, strictly increasing
	Action            Action
	Confidence        float64  // 0..1
	Reasons           []string // ordered contributing factors
	VerdictSnapshotID string   // snapshot the security verdict was computed for
	VerdictStatus     VerdictStatus
	Stage             Stage   // last stage reached
	ScorerID          string  // scorer that produced the recommendation
	Price             float64 // reference price at decision time
	Size              float64 // requested size in token units, 0 for HOLD/REJECT
	CreatedAt         int64   // Unix timestamp in milliseconds
}

// Clone returns a deep copy.
func (d *Decision) Clone() *Decision {
	if d == nil {
		return nil
	}
	c := *d
	c.Reasons = append([]string(nil), d.Reasons...)
	return &c
}
