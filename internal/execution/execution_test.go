package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
)

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

type staticPrices map[string]float64

func (s staticPrices) LatestPrice(m string) (float64, bool) {
	p, ok := s[m]
	return p, ok
}

func TestPaperAdapter_Fills(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	p := NewPaperAdapter(staticPrices{mint: 2.0}, PaperOptions{
		SlippageBps: 100,
		FeeBps:      30,
		Now:         func() time.Time { return now },
	})

	buy := p.SubmitBuy(context.Background(), mint, 1000)
	require.True(t, buy.IsAck())
	assert.InDelta(t, 2.02, buy.FillPrice, 1e-12)
	assert.Equal(t, 1000.0, buy.FilledSize)
	assert.InDelta(t, 6.06, buy.Fees, 1e-12)
	assert.Equal(t, now.UnixMilli(), buy.ExecutedAt)

	sell := p.SubmitSell(context.Background(), mint, 1000)
	require.True(t, sell.IsAck())
	assert.InDelta(t, 1.98, sell.FillPrice, 1e-12)
	assert.InDelta(t, 5.94, sell.Fees, 1e-12)
}

func TestPaperAdapter_Rejections(t *testing.T) {
	p := NewPaperAdapter(staticPrices{mint: 0}, PaperOptions{})

	res := p.SubmitBuy(context.Background(), "unknown", 1)
	assert.Equal(t, domain.ExecutionRejected, res.Status)
	assert.Equal(t, "no reference price", res.Reason)

	res = p.SubmitBuy(context.Background(), mint, 1)
	assert.Equal(t, domain.ExecutionRejected, res.Status)

	res = NewPaperAdapter(staticPrices{mint: 1}, PaperOptions{}).SubmitSell(context.Background(), mint, 0)
	assert.Equal(t, domain.ExecutionRejected, res.Status)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res = NewPaperAdapter(staticPrices{mint: 1}, PaperOptions{}).SubmitBuy(ctx, mint, 1)
	assert.Equal(t, domain.ExecutionTimeout, res.Status)
}

func TestRemoteAdapter(t *testing.T) {
	var got orderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		switch got.Side {
		case "BUY":
			_ = json.NewEncoder(w).Encode(orderResponse{
				Status: "ack", FillPrice: 0.5, FilledSize: got.Size, Fees: 0.01, ExecutedAt: 42,
			})
		default:
			_ = json.NewEncoder(w).Encode(orderResponse{Status: "rejected", Reason: "insufficient liquidity"})
		}
	}))
	defer srv.Close()

	r := NewRemoteAdapter(srv.URL, time.Second)

	res := r.SubmitBuy(context.Background(), mint, 10)
	assert.Equal(t, domain.ExecutionAck, res.Status)
	assert.Equal(t, 0.5, res.FillPrice)
	assert.Equal(t, 10.0, res.FilledSize)
	assert.Equal(t, int64(42), res.ExecutedAt)
	assert.Equal(t, orderRequest{Mint: mint, Side: "BUY", Size: 10}, got)

	res = r.SubmitSell(context.Background(), mint, 10)
	assert.Equal(t, domain.ExecutionRejected, res.Status)
	assert.Equal(t, "insufficient liquidity", res.Reason)
}

func TestRemoteAdapter_HTTPFailures(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	r := NewRemoteAdapter(srv.URL, time.Second)
	assert.Equal(t, domain.ExecutionRejected, r.SubmitBuy(context.Background(), mint, 1).Status)

	status = http.StatusGatewayTimeout
	assert.Equal(t, domain.ExecutionTimeout, r.SubmitBuy(context.Background(), mint, 1).Status)

	srv.Close()
	assert.Equal(t, domain.ExecutionTimeout, r.SubmitBuy(context.Background(), mint, 1).Status)
}

type slowAdapter struct {
	delay time.Duration
}

func (s slowAdapter) SubmitBuy(ctx context.Context, _ string, size float64) *domain.ExecutionResult {
	select {
	case <-time.After(s.delay):
		return &domain.ExecutionResult{Status: domain.ExecutionAck, FillPrice: 1, FilledSize: size}
	case <-ctx.Done():
		return &domain.ExecutionResult{Status: domain.ExecutionRejected, Reason: "cancelled"}
	}
}

func (s slowAdapter) SubmitSell(ctx context.Context, m string, size float64) *domain.ExecutionResult {
	return s.SubmitBuy(ctx, m, size)
}

func TestWithTimeout(t *testing.T) {
	fast := WithTimeout(slowAdapter{delay: time.Millisecond}, time.Second, zerolog.Nop())
	assert.True(t, fast.SubmitBuy(context.Background(), mint, 1).IsAck())

	slow := WithTimeout(slowAdapter{delay: time.Second}, 20*time.Millisecond, zerolog.Nop())
	res := slow.SubmitSell(context.Background(), mint, 1)
	assert.Equal(t, domain.ExecutionTimeout, res.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Reason)
}

func TestFromOptions(t *testing.T) {
	a, err := FromOptions(Options{Mode: ModePaper}, staticPrices{mint: 1})
	require.NoError(t, err)
	assert.True(t, a.SubmitBuy(context.Background(), mint, 1).IsAck())

	_, err = FromOptions(Options{Mode: ModeLive}, nil)
	assert.ErrorIs(t, err, ErrMissingExecutorURL)

	_, err = FromOptions(Options{Mode: ModeLive, ExecutorURL: "http://localhost:1"}, nil)
	assert.NoError(t, err)

	_, err = FromOptions(Options{Mode: "margin"}, nil)
	assert.ErrorIs(t, err, ErrUnknownMode)
}
