package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/observability"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("pool closed")

// Processor runs one decision cycle.
type Processor interface {
	Process(ctx context.Context, p normalize.Payload) (*domain.Decision, error)
}

// PoolOptions configures a Pool.
type PoolOptions struct {
	Workers   int // number of shards, one goroutine each
	QueueSize int // buffered payloads per shard
	Logger    zerolog.Logger
}

// Pool serializes work per mint and runs different mints in parallel. Every
// mint hashes to exactly one shard, and each shard is a FIFO queue with a
// single consumer, so cycles for a mint run in submission order.
type Pool struct {
	proc   Processor
	shards []chan normalize.Payload
	log    zerolog.Logger
	ctx    context.Context

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts the shard workers. ctx is passed to every Process call.
func NewPool(ctx context.Context, proc Processor, opts PoolOptions) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 64
	}

	p := &Pool{
		proc:   proc,
		shards: make([]chan normalize.Payload, workers),
		log:    opts.Logger,
		ctx:    ctx,
	}
	for i := range p.shards {
		p.shards[i] = make(chan normalize.Payload, size)
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

// shardFor maps a mint to its shard. Raw addresses are cleaned first so
// variants of the same mint share a queue.
func (p *Pool) shardFor(raw string) int {
	key := raw
	if mint, err := normalize.CleanMint(raw); err == nil {
		key = mint
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// Submit enqueues a payload on its mint's shard, blocking until there is
// room or ctx is done.
func (p *Pool) Submit(ctx context.Context, payload normalize.Payload) error {
	if payload == nil {
		return normalize.ErrUnknownPayload
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	i := p.shardFor(payload.MintAddress())
	select {
	case p.shards[i] <- payload:
		observability.DefaultMetrics.QueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(len(p.shards[i])))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) work(i int) {
	defer p.wg.Done()
	label := strconv.Itoa(i)
	for payload := range p.shards[i] {
		observability.DefaultMetrics.QueueDepth.WithLabelValues(label).Set(float64(len(p.shards[i])))
		if _, err := p.proc.Process(p.ctx, payload); err != nil {
			p.log.Debug().
				Err(err).
				Str("mint", payload.MintAddress()).
				Int("shard", i).
				Msg("payload dropped")
		}
	}
}

// Close stops accepting payloads and waits for queued ones to be processed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
