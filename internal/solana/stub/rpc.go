// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"sync"

	"solana-token-engine/internal/solana"
)

// RPCClient serves canned responses. Missing entries read as not found.
// Err, when set, is returned by every call.
type RPCClient struct {
	mu       sync.Mutex
	Accounts map[string]*solana.AccountInfo
	Largest  map[string][]solana.TokenAccountBalance
	Supply   map[string]*solana.TokenAmount
	Txs      map[string]*solana.Transaction
	Err      error
	Calls    map[string]int
}

// NewRPCClient returns an empty stub.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
		Largest:  make(map[string][]solana.TokenAccountBalance),
		Supply:   make(map[string]*solana.TokenAmount),
		Txs:      make(map[string]*solana.Transaction),
		Calls:    make(map[string]int),
	}
}

func (c *RPCClient) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Err
}

// CallCount reports how often method was invoked.
func (c *RPCClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if err := c.record("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[pubkey], nil
}

func (c *RPCClient) GetTokenLargestAccounts(_ context.Context, mint string) ([]solana.TokenAccountBalance, error) {
	if err := c.record("getTokenLargestAccounts"); err != nil {
		return nil, err
	}
	return c.Largest[mint], nil
}

func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	if err := c.record("getTokenSupply"); err != nil {
		return nil, err
	}
	return c.Supply[mint], nil
}

func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.record("getTransaction"); err != nil {
		return nil, err
	}
	return c.Txs[signature], nil
}

var _ solana.RPCClient = (*RPCClient)(nil)
