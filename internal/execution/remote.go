package execution

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"solana-token-engine/internal/domain"
)

// orderRequest is the body POSTed to the executor service.
type orderRequest struct {
	Mint string  `json:"mint"`
	Side string  `json:"side"`
	Size float64 `json:"size"`
}

// orderResponse is the executor's answer.
type orderResponse struct {
	Status     string  `json:"status"`
	FillPrice  float64 `json:"fill_price"`
	FilledSize float64 `json:"filled_size"`
	Fees       float64 `json:"fees"`
	Reason     string  `json:"reason"`
	ExecutedAt int64   `json:"executed_at"`
}

// RemoteAdapter forwards orders to an external executor over HTTP.
// Transport failures are reported as timeouts because the order may or may
// not have reached the venue.
type RemoteAdapter struct {
	client *resty.Client
	now    func() time.Time
}

// NewRemoteAdapter creates an adapter posting to baseURL + "/orders".
func NewRemoteAdapter(baseURL string, timeout time.Duration) *RemoteAdapter {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &RemoteAdapter{client: client, now: time.Now}
}

func (r *RemoteAdapter) SubmitBuy(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return r.post(ctx, domain.SideBuy, mint, size)
}

func (r *RemoteAdapter) SubmitSell(ctx context.Context, mint string, size float64) *domain.ExecutionResult {
	return r.post(ctx, domain.SideSell, mint, size)
}

func (r *RemoteAdapter) post(ctx context.Context, side domain.Side, mint string, size float64) *domain.ExecutionResult {
	var out orderResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(orderRequest{Mint: mint, Side: string(side), Size: size}).
		SetResult(&out).
		Post("/orders")
	if err != nil {
		return &domain.ExecutionResult{
			Status:     domain.ExecutionTimeout,
			Reason:     err.Error(),
			ExecutedAt: r.now().UnixMilli(),
		}
	}

	switch {
	case resp.StatusCode() == http.StatusGatewayTimeout || resp.StatusCode() == http.StatusRequestTimeout:
		return &domain.ExecutionResult{
			Status:     domain.ExecutionTimeout,
			Reason:     resp.Status(),
			ExecutedAt: r.now().UnixMilli(),
		}
	case resp.IsError():
		return rejected("executor: "+resp.Status(), r.now())
	}

	status := domain.ExecutionStatus(out.Status)
	if !status.IsValid() {
		return rejected("executor returned status "+out.Status, r.now())
	}
	res := &domain.ExecutionResult{
		Status:     status,
		FillPrice:  out.FillPrice,
		FilledSize: out.FilledSize,
		Fees:       out.Fees,
		Reason:     out.Reason,
		ExecutedAt: out.ExecutedAt,
	}
	if res.ExecutedAt == 0 {
		res.ExecutedAt = r.now().UnixMilli()
	}
	if res.IsAck() && res.FillPrice <= 0 {
		return rejected("ack without fill price", r.now())
	}
	return res
}
