package execution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"solana-token-engine/internal/domain"
)

var bpsDivisor = decimal.NewFromInt(10_000)

// PaperAdapter fills every order immediately at the latest known price,
// moved against the trader by SlippageBps, and charges FeeBps of notional.
type PaperAdapter struct {
	prices      PriceSource
	slippageBps decimal.Decimal
	feeBps      decimal.Decimal
	now         func() time.Time
}

// PaperOptions configures a PaperAdapter.
type PaperOptions struct {
	SlippageBps float64
	FeeBps      float64
	Now         func() time.Time
}

// NewPaperAdapter creates a simulator reading prices from prices.
func NewPaperAdapter(prices PriceSource, opts PaperOptions) *PaperAdapter {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &PaperAdapter{
		prices:      prices,
		slippageBps: decimal.NewFromFloat(opts.SlippageBps),
		feeBps:      decimal.NewFromFloat(opts.FeeBps),
		now:         now,
	}
}

// SubmitBuy fills above the reference price.
func (p *PaperAdapter) SubmitBuy(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return p.fill(ctx, mint, size, decimal.NewFromInt(1))
}

// SubmitSell fills below the reference price.
func (p *PaperAdapter) SubmitSell(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return p.fill(ctx, mint, size, decimal.NewFromInt(-1))
}

func (p *PaperAdapter) fill(ctx context.Context, mint string, size float64, direction decimal.Decimal) *domain.ExecutionResult {
	now := p.now()
	if err := ctx.Err(); err != nil {
		return &domain.ExecutionResult{Status: domain.ExecutionTimeout, Reason: err.Error(), ExecutedAt: now.UnixMilli()}
	}
	if size <= 0 {
		return rejected("non-positive size", now)
	}
	ref, ok := p.prices.LatestPrice(mint)
	if !ok || ref <= 0 {
		return rejected("no reference price", now)
	}

	// price * (1 ± slippage/10000)
	adj := decimal.NewFromInt(1).Add(direction.Mul(p.slippageBps).Div(bpsDivisor))
	price := decimal.NewFromFloat(ref).Mul(adj)
	if !price.IsPositive() {
		return rejected("slippage leaves no positive price", now)
	}
	qty := decimal.NewFromFloat(size)
	fees := price.Mul(qty).Mul(p.feeBps).Div(bpsDivisor)

	fillPrice, _ := price.Float64()
	feeAmount, _ := fees.Float64()
	return &domain.ExecutionResult{
		Status:     domain.ExecutionAck,
		FillPrice:  fillPrice,
		FilledSize: size,
		Fees:       feeAmount,
		ExecutedAt: now.UnixMilli(),
	}
}
