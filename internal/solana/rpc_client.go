package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/observability"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryWait  = 500 * time.Millisecond
	DefaultMaxWait    = 8 * time.Second
)

// ErrRPCStatus is returned when the endpoint keeps answering with a non-200 status.
var ErrRPCStatus = errors.New("rpc http status")

// RPCError is an error object returned by the node. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HTTPClient implements RPCClient over JSON-RPC 2.0.
type HTTPClient struct {
	http *resty.Client
	log  zerolog.Logger
	id   atomic.Uint64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.SetTimeout(d) }
}

// WithRetries sets the retry count and the backoff bounds. Transport errors,
// 429 and 5xx responses are retried.
func WithRetries(n int, wait, maxWait time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.SetRetryCount(n).SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *HTTPClient) { c.log = log }
}

// NewHTTPClient creates a client for the given RPC endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	r := resty.New().
		SetBaseURL(endpoint).
		SetHeader("Content-Type", "application/json").
		SetTimeout(DefaultTimeout).
		SetRetryCount(DefaultMaxRetries).
		SetRetryWaitTime(DefaultRetryWait).
		SetRetryMaxWaitTime(DefaultMaxWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		})

	c := &HTTPClient{http: r, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call posts one request and decodes result into out. A null result leaves
// out untouched and reports found=false.
func (c *HTTPClient) call(ctx context.Context, method string, params []any, out any) (found bool, err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	var body rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: c.id.Add(1), Method: method, Params: params}).
		SetResult(&body).
		Post("")
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Msg("rpc transport error")
		return false, fmt.Errorf("%s: %w", method, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("%s: %w %d", method, ErrRPCStatus, resp.StatusCode())
	}
	if body.Error != nil {
		return false, fmt.Errorf("%s: %w", method, body.Error)
	}
	if len(body.Result) == 0 || string(body.Result) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(body.Result, out); err != nil {
		return false, fmt.Errorf("%s: decode result: %w", method, err)
	}
	return true, nil
}

type contextValue[T any] struct {
	Value T `json:"value"`
}

// GetAccountInfo implements RPCClient.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	var res contextValue[*struct {
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
	}]
	params := []any{pubkey, map[string]any{"encoding": "base64", "commitment": "confirmed"}}
	if _, err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   res.Value.Lamports,
		Owner:      res.Value.Owner,
		Executable: res.Value.Executable,
	}
	if len(res.Value.Data) > 0 && res.Value.Data[0] != "" {
		data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("getAccountInfo: decode data: %w", err)
		}
		info.Data = data
	}
	return info, nil
}

// GetTokenLargestAccounts implements RPCClient.
func (c *HTTPClient) GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error) {
	var res contextValue[[]TokenAccountBalance]
	params := []any{mint, map[string]any{"commitment": "confirmed"}}
	if _, err := c.call(ctx, "getTokenLargestAccounts", params, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

// GetTokenSupply implements RPCClient.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	var res contextValue[*TokenAmount]
	params := []any{mint, map[string]any{"commitment": "confirmed"}}
	if _, err := c.call(ctx, "getTokenSupply", params, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

type txResult struct {
	Slot      int64  `json:"slot"`
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		Err         json.RawMessage `json:"err"`
		LogMessages []string        `json:"logMessages"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// GetTransaction implements RPCClient.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var res txResult
	params := []any{signature, map[string]any{
		"encoding":                       "json",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}}
	found, err := c.call(ctx, "getTransaction", params, &res)
	if err != nil || !found {
		return nil, err
	}

	tx := &Transaction{
		Slot:        res.Slot,
		Signature:   signature,
		AccountKeys: res.Transaction.Message.AccountKeys,
	}
	if len(res.Transaction.Signatures) > 0 {
		tx.Signature = res.Transaction.Signatures[0]
	}
	if res.BlockTime != nil {
		tx.BlockTime = *res.BlockTime
	}
	if res.Meta != nil {
		tx.LogMessages = res.Meta.LogMessages
		tx.Failed = len(res.Meta.Err) > 0 && string(res.Meta.Err) != "null"
	}
	return tx, nil
}
