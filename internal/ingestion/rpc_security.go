package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
	"solana-token-engine/internal/solana"
)

// RPCSecuritySource derives security facts straight from chain state: mint
// and freeze authorities from the mint account, metadata mutability from
// the Metaplex account, holder concentration from the largest token accounts.
type RPCSecuritySource struct {
	rpc solana.RPCClient
	now func() time.Time
	log zerolog.Logger
}

func NewRPCSecuritySource(rpc solana.RPCClient, now func() time.Time, log zerolog.Logger) *RPCSecuritySource {
	if now == nil {
		now = time.Now
	}
	return &RPCSecuritySource{rpc: rpc, now: now, log: log.With().Str("component", "rpc_security").Logger()}
}

func (s *RPCSecuritySource) Name() string { return "rpc" }

// Fetch implements FactsSource. A missing or unparseable mint account is
// domain.ErrDataUnavailable; metadata and holder lookups are best effort.
func (s *RPCSecuritySource) Fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error) {
	start := time.Now()
	facts, err := s.fetch(ctx, mint)
	observability.RecordProviderCall(s.Name(), time.Since(start).Seconds(), err)
	return facts, err
}

func (s *RPCSecuritySource) fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error) {
	acct, err := s.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: mint account: %w", domain.ErrDataUnavailable, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: mint account %s not found", domain.ErrDataUnavailable, mint)
	}
	m, err := parseSPLMint(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: mint account: %w", domain.ErrDataUnavailable, err)
	}

	facts := &domain.SecurityFacts{
		Mint:                  mint,
		FetchedAt:             s.now().UnixMilli(),
		Source:                s.Name(),
		MintAuthorityExists:   boolPtr(m.MintAuthority),
		FreezeAuthorityExists: boolPtr(m.FreezeAuthority),
	}

	if mutable, err := s.metadataMutable(ctx, mint); err != nil {
		s.log.Debug().Err(err).Str("mint", mint).Msg("metadata unavailable")
	} else {
		facts.MetadataMutable = boolPtr(mutable)
	}

	if pcts, err := s.holderShares(ctx, mint); err != nil {
		s.log.Debug().Err(err).Str("mint", mint).Msg("holder concentration unavailable")
	} else {
		facts.TopHolderPcts = pcts
	}
	return facts, nil
}

func (s *RPCSecuritySource) metadataMutable(ctx context.Context, mint string) (bool, error) {
	pda, err := metadataPDA(mint)
	if err != nil {
		return false, err
	}
	acct, err := s.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return false, err
	}
	if acct == nil {
		return false, fmt.Errorf("metadata account %s not found", pda)
	}
	return parseMetadataMutable(acct.Data)
}

// holderShares returns the largest accounts' shares of total supply,
// largest first, as fractions.
func (s *RPCSecuritySource) holderShares(ctx context.Context, mint string) ([]float64, error) {
	supply, err := s.rpc.GetTokenSupply(ctx, mint)
	if err != nil {
		return nil, err
	}
	if supply == nil {
		return nil, fmt.Errorf("no supply for %s", mint)
	}
	total, err := decimal.NewFromString(supply.Amount)
	if err != nil {
		return nil, fmt.Errorf("supply amount: %w", err)
	}
	if !total.IsPositive() {
		return nil, fmt.Errorf("zero supply for %s", mint)
	}

	largest, err := s.rpc.GetTokenLargestAccounts(ctx, mint)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(largest))
	for _, acc := range largest {
		amt, err := decimal.NewFromString(acc.Amount)
		if err != nil {
			continue
		}
		out = append(out, amt.Div(total).InexactFloat64())
	}
	return out, nil
}
