package storage

import "context"

// DiscoveryProgress is the last launch-program log the discovery stream handled.
type DiscoveryProgress struct {
	Slot      uint64 // slot of the last handled log notification
	Signature string // its transaction signature
}

// DiscoveryProgressStore persists discovery state so restarts neither
// re-announce mints nor lose the resume point.
type DiscoveryProgressStore interface {
	// GetLastProcessed returns the last handled slot and signature.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*DiscoveryProgress, error)

	// SetLastProcessed saves the last handled slot and signature.
	SetLastProcessed(ctx context.Context, progress *DiscoveryProgress) error

	// IsMintSeen checks if a mint was already added to the watchlist.
	IsMintSeen(ctx context.Context, mint string) (bool, error)

	// MarkMintSeen records that a mint was added to the watchlist.
	MarkMintSeen(ctx context.Context, mint string) error

	// LoadSeenMints returns all seen mints (for warming the in-memory cache).
	LoadSeenMints(ctx context.Context) ([]string, error)
}
