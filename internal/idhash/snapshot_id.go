package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-token-engine/internal/domain"
)

// ComputeSnapshotID computes a deterministic snapshot_id using SHA256.
// Formula: SHA256(mint|observed_at|source)
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotID(mint string, observedAt int64, source domain.Source) string {
	data := fmt.Sprintf("%s|%d|%s",
		mint,
		observedAt,
		string(source),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
