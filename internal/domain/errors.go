package domain

import "errors"

// Decision pipeline error taxonomy.
var (
	// ErrDataUnavailable is returned when a provider returned nothing or timed out.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientHistory is returned when the window is not yet populated.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrStaleData is returned when a gap exceeded the staleness threshold.
	ErrStaleData = errors.New("stale data")

	// ErrSecurityRejected is returned when a hard-reject security rule fired.
	ErrSecurityRejected = errors.New("security rejected")

	// ErrExecutionFailed is returned when the adapter rejected or timed out.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrReplayConflict is returned when a decision was already applied.
	ErrReplayConflict = errors.New("replay conflict: decision already applied")

	// ErrCorruptLedger is returned when the transition log cannot be reduced.
	// Fatal at startup.
	ErrCorruptLedger = errors.New("corrupt ledger")

	// ErrInvalidTransition is returned for a state change the machine forbids.
	ErrInvalidTransition = errors.New("invalid position transition")
)
