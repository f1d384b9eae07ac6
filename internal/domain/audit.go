package domain

// AuditKind distinguishes audit event types.
type AuditKind string

const (
	AuditDecision   AuditKind = "DECISION"
	AuditTransition AuditKind = "TRANSITION"
)

// AuditEvent is one structured record sent to the alert/audit sink.
// Corresponds to audit_events table in ClickHouse.
type AuditEvent struct {
	EventID    string // random UUID
	Kind       AuditKind
	Mint       string
	DecisionID string
	Action     Action        // decisions only
	FromState  PositionState // transitions only
	ToState    PositionState // transitions only
	Summary    string        // one-line human readable description
	Payload    string        // JSON encoding of the decision or transition
	Timestamp  int64         // Unix timestamp in milliseconds
}
