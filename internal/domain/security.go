package domain

// VerdictStatus is the Screener's classification of a token's security risk.
type VerdictStatus string

const (
	VerdictSafe    VerdictStatus = "SAFE"
	VerdictWarning VerdictStatus = "WARNING"
	VerdictDanger  VerdictStatus = "DANGER"
)

// String returns the string representation of VerdictStatus.
func (v VerdictStatus) String() string {
	return string(v)
}

// IsValid checks if the status is a valid value.
func (v VerdictStatus) IsValid() bool {
	return v == VerdictSafe || v == VerdictWarning || v == VerdictDanger
}

// SecurityFacts are raw security signals for one mint as reported by a
// security-scan provider. A nil flag means the provider did not report it.
type SecurityFacts struct {
	Mint                  string
	FetchedAt             int64 // Unix timestamp in milliseconds
	Source                string
	IsHoneypot            *bool
	IsBlacklisted         *bool
	IsProxy               *bool
	TradingPaused         *bool
	CanTakeBackOwnership  *bool
	MintAuthorityExists   *bool
	FreezeAuthorityExists *bool
	AntiBot               *bool
	MetadataMutable       *bool
	TaxFee                *float64  // fraction of notional, 0.05 = 5%
	TopHolderPcts         []float64 // holder shares as fractions, largest first
	LPHolders             *int64
	HolderCount           *int64
}

// SecurityVerdict is derived from a snapshot and its security facts.
// Recomputed every cycle; never persisted beyond the audit trail.
type SecurityVerdict struct {
	Mint                  string
	SnapshotID            string // snapshot the verdict was computed for
	EvaluatedAt           int64  // Unix timestamp in milliseconds
	Status                VerdictStatus
	IsHoneypot            bool
	IsBlacklisted         bool
	IsProxy               bool
	TradingPaused         bool
	CanTakeBackOwnership  bool
	MintAuthorityExists   bool
	FreezeAuthorityExists bool
	AntiBot               bool
	MetadataMutable       bool
	HeldByTop1            *float64
	HeldByTop5            *float64
	HeldByTop10           *float64
	TaxFee                *float64
	RiskScore             float64  // combined soft-risk score
	FactsAvailable        bool     // false when facts were missing or too old
	Sticky                bool     // true when DANGER is held by the cool-down
	Reasons               []string // ordered, human-readable
}
