package domain

// Transition is one append-only ledger log entry.
// Corresponds to position_transitions table in PostgreSQL.
type Transition struct {
	Seq        int64 // global, strictly increasing
	Mint       string
	FromState  PositionState
	ToState    PositionState
	DecisionID string
	Cycle      uint64
	Action     Action
	Size       float64 // requested size at acceptance, filled size at settlement
	Result     *ExecutionResult
	Timestamp  int64 // Unix timestamp in milliseconds
}
