package domain

// ExecutionStatus is the outcome reported by an execution adapter.
type ExecutionStatus string

const (
	ExecutionAck      ExecutionStatus = "ack"
	ExecutionRejected ExecutionStatus = "rejected"
	ExecutionTimeout  ExecutionStatus = "timeout"
)

// String returns the string representation of ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s ExecutionStatus) IsValid() bool {
	return s == ExecutionAck || s == ExecutionRejected || s == ExecutionTimeout
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExecutionResult is the adapter's answer to a submitted order.
// Only ExecutionAck counts as success.
type ExecutionResult struct {
	Status     ExecutionStatus
	FillPrice  float64 // 0 unless acked
	FilledSize float64
	Fees       float64
	Reason     string
	ExecutedAt int64 // Unix timestamp in milliseconds
}

// IsAck reports whether the result is a successful fill.
func (r *ExecutionResult) IsAck() bool {
	return r != nil && r.Status == ExecutionAck
}
