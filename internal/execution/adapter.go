// Package execution places orders for the ledger's trade decisions.
package execution

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
)

// Mode names an execution backend.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

var (
	// ErrUnknownMode is returned by FromConfig for an unsupported mode.
	ErrUnknownMode = errors.New("unknown execution mode")

	// ErrMissingExecutorURL is returned when live mode has no executor endpoint.
	ErrMissingExecutorURL = errors.New("live execution requires executor url")
)

// Adapter submits orders. Implementations report every outcome through the
// returned result: rejections and timeouts are results, not errors.
type Adapter interface {
	SubmitBuy(ctx context.Context, mint string, size float64) *domain.ExecutionResult
	SubmitSell(ctx context.Context, mint string, size float64) *domain.ExecutionResult
}

// PriceSource supplies the reference price used by the paper adapter.
type PriceSource interface {
	LatestPrice(mint string) (float64, bool)
}

func rejected(reason string, at time.Time) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Status:     domain.ExecutionRejected,
		Reason:     reason,
		ExecutedAt: at.UnixMilli(),
	}
}

// timeoutAdapter bounds every call with a deadline and records order metrics.
type timeoutAdapter struct {
	inner   Adapter
	timeout time.Duration
	log     zerolog.Logger
}

// WithTimeout wraps a so that each submission runs under its own deadline.
// An expired deadline or a cancelled context yields a timeout result even if
// the wrapped adapter is still running.
func WithTimeout(a Adapter, d time.Duration, log zerolog.Logger) Adapter {
	return &timeoutAdapter{inner: a, timeout: d, log: log}
}

func (t *timeoutAdapter) SubmitBuy(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return t.submit(ctx, domain.SideBuy, mint, size, t.inner.SubmitBuy)
}

func (t *timeoutAdapter) SubmitSell(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return t.submit(ctx, domain.SideSell, mint, size, t.inner.SubmitSell)
}

type submitFunc func(ctx context.Context, mint string, size float64) *domain.ExecutionResult

func (t *timeoutAdapter) submit(ctx context.Context, side domain.Side, mint string, size float64, fn submitFunc) *domain.ExecutionResult {
	start := time.Now()
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	done := make(chan *domain.ExecutionResult, 1)
	go func() {
		done <- fn(ctx, mint, size)
	}()

	var res *domain.ExecutionResult
	select {
	case res = <-done:
		if res == nil {
			res = rejected("adapter returned no result", time.Now())
		}
		if !res.IsAck() && ctx.Err() != nil {
			res = &domain.ExecutionResult{
				Status:     domain.ExecutionTimeout,
				Reason:     ctx.Err().Error(),
				ExecutedAt: time.Now().UnixMilli(),
			}
		}
	case <-ctx.Done():
		res = &domain.ExecutionResult{
			Status:     domain.ExecutionTimeout,
			Reason:     ctx.Err().Error(),
			ExecutedAt: time.Now().UnixMilli(),
		}
	}

	elapsed := time.Since(start)
	observability.RecordOrder(string(side), string(res.Status), elapsed.Seconds())

	ev := t.log.Info()
	if !res.IsAck() {
		ev = t.log.Warn()
	}
	ev.Str("mint", mint).
		Str("side", string(side)).
		Float64("size", size).
		Str("status", string(res.Status)).
		Float64("fill_price", res.FillPrice).
		Str("reason", res.Reason).
		Dur("elapsed", elapsed).
		Msg("order finished")
	return res
}
