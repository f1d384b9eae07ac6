package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/solana"
	"solana-token-engine/internal/storage"
)

const (
	// PumpFunProgram is the launchpad program whose create instructions
	// announce new mints.
	PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	createLog = "Program log: Instruction: Create"

	txRetries   = 3
	txBaseDelay = 500 * time.Millisecond
)

// DiscoveryOptions configures a WSDiscovery.
type DiscoveryOptions struct {
	Program  string                         // defaults to PumpFunProgram
	Progress storage.DiscoveryProgressStore // optional
	Label    string
	Logger   zerolog.Logger
}

// WSDiscovery watches launchpad logs and adds every newly created mint to
// the watchlist.
type WSDiscovery struct {
	ws       solana.WSClient
	rpc      solana.RPCClient
	list     *Watchlist
	progress storage.DiscoveryProgressStore
	program  string
	label    string
	log      zerolog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func NewWSDiscovery(ws solana.WSClient, rpc solana.RPCClient, list *Watchlist, opts DiscoveryOptions) *WSDiscovery {
	if opts.Program == "" {
		opts.Program = PumpFunProgram
	}
	if opts.Label == "" {
		opts.Label = "launch"
	}
	return &WSDiscovery{
		ws:       ws,
		rpc:      rpc,
		list:     list,
		progress: opts.Progress,
		program:  opts.Program,
		label:    opts.Label,
		log:      opts.Logger.With().Str("component", "discovery").Logger(),
		seen:     make(map[string]bool),
	}
}

// Run subscribes and handles notifications until ctx is done or the
// subscription channel closes.
func (d *WSDiscovery) Run(ctx context.Context) error {
	if d.progress != nil {
		mints, err := d.progress.LoadSeenMints(ctx)
		if err != nil {
			return err
		}
		d.mu.Lock()
		for _, m := range mints {
			d.seen[m] = true
		}
		d.mu.Unlock()
		if last, err := d.progress.GetLastProcessed(ctx); err == nil {
			d.log.Info().Uint64("slot", last.Slot).Str("signature", last.Signature).Int("seen", len(mints)).Msg("discovery resumed")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	ch, err := d.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{d.program}})
	if err != nil {
		return err
	}
	d.log.Info().Str("program", d.program).Msg("discovery subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := d.Handle(ctx, n); err != nil && ctx.Err() == nil {
				d.log.Warn().Err(err).Str("signature", n.Signature).Msg("discovery notification")
			}
		}
	}
}

// Handle processes one notification and returns the discovered mint, or ""
// when the notification announces nothing new.
func (d *WSDiscovery) Handle(ctx context.Context, n solana.LogNotification) (string, error) {
	if n.Failed || !isCreate(n.Logs) {
		return "", nil
	}

	tx, err := d.transaction(ctx, n.Signature)
	if err != nil {
		return "", err
	}
	if tx == nil {
		return "", nil
	}
	mint := createdMint(tx.AccountKeys)
	if mint == "" {
		return "", nil
	}

	d.mu.Lock()
	dup := d.seen[mint]
	d.seen[mint] = true
	d.mu.Unlock()
	if dup {
		return "", nil
	}

	d.list.Add(mint, domain.SourceWatchlist, d.label)
	d.log.Info().Str("mint", mint).Str("signature", n.Signature).Int64("slot", n.Slot).Msg("new mint discovered")

	if d.progress != nil {
		if err := d.progress.MarkMintSeen(ctx, mint); err != nil {
			return mint, err
		}
		if err := d.progress.SetLastProcessed(ctx, &storage.DiscoveryProgress{Slot: uint64(n.Slot), Signature: n.Signature}); err != nil {
			return mint, err
		}
	}
	return mint, nil
}

// transaction fetches a signature with exponential backoff; freshly
// confirmed transactions are often not yet served by the RPC node.
func (d *WSDiscovery) transaction(ctx context.Context, sig string) (*solana.Transaction, error) {
	delay := txBaseDelay
	var lastErr error
	for attempt := 0; attempt < txRetries; attempt++ {
		tx, err := d.rpc.GetTransaction(ctx, sig)
		if err == nil && tx != nil {
			return tx, nil
		}
		lastErr = err
		if attempt == txRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func isCreate(logs []string) bool {
	for _, l := range logs {
		if strings.HasPrefix(l, createLog) {
			return true
		}
	}
	return false
}

// createdMint picks the mint among a create transaction's accounts: a key
// with the launchpad's "pump" vanity suffix, else the second account.
func createdMint(keys []string) string {
	for _, k := range keys {
		if strings.HasSuffix(k, "pump") {
			if mint, err := normalize.CleanMint(k); err == nil {
				return mint
			}
		}
	}
	if len(keys) < 2 {
		return ""
	}
	mint, err := normalize.CleanMint(keys[1])
	if err != nil {
		return ""
	}
	return mint
}
