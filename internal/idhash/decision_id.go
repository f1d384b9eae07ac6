package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDecisionID computes a deterministic decision_id using SHA256.
// Formula: SHA256(mint|cycle|snapshot_id)
// Returns hex-encoded hash (64 characters).
//
// Re-running a cycle for the same snapshot yields the same id, which is what
// makes ledger application idempotent across restarts.
func ComputeDecisionID(mint string, cycle uint64, snapshotID string) string {
	data := fmt.Sprintf("%s|%d|%s",
		mint,
		cycle,
		snapshotID,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
