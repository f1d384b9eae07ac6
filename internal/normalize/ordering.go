package normalize

import (
	"errors"
	"sort"

	"solana-token-engine/internal/domain"
)

// ErrInvalidOrdering is returned when snapshots are not in (observed_at, mint) order.
var ErrInvalidOrdering = errors.New("snapshots are not in deterministic order")

// SortSnapshots orders snapshots by (observed_at ASC, mint ASC, source ASC).
// Batch loaders sort before ingesting so per-mint order is preserved.
func SortSnapshots(snaps []*domain.TokenSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return compareSnapshots(snaps[i], snaps[j]) < 0
	})
}

// ValidateSnapshotOrdering checks if snapshots are strictly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateSnapshotOrdering(snaps []*domain.TokenSnapshot) error {
	for i := 1; i < len(snaps); i++ {
		if compareSnapshots(snaps[i-1], snaps[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareSnapshots returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareSnapshots(a, b *domain.TokenSnapshot) int {
	if a.ObservedAt != b.ObservedAt {
		if a.ObservedAt < b.ObservedAt {
			return -1
		}
		return 1
	}
	if a.Mint != b.Mint {
		if a.Mint < b.Mint {
			return -1
		}
		return 1
	}
	if a.Source != b.Source {
		if a.Source < b.Source {
			return -1
		}
		return 1
	}
	return 0
}
