// Package ingestion talks to the market-data and security-scan providers and
// feeds the engine: snapshot sources, security-facts sources, trending
// exports, the watchlist poller and launch discovery.
package ingestion

import (
	"context"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
)

// SnapshotSource fetches the current market payload for a mint.
type SnapshotSource interface {
	Fetch(ctx context.Context, mint string) (normalize.Payload, error)
}

// FactsSource fetches security facts for a mint. Implementations return
// domain.ErrDataUnavailable when the provider has nothing for the mint.
type FactsSource interface {
	Name() string
	Fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error)
}

// Submitter accepts payloads for processing. engine.Pool implements it.
type Submitter interface {
	Submit(ctx context.Context, p normalize.Payload) error
}

func boolPtr(v bool) *bool { return &v }
