// Package solana is a minimal Solana JSON-RPC client: the account and token
// queries used for security facts, and logsSubscribe for mint discovery.
package solana

import "context"

// RPCClient is the subset of Solana JSON-RPC the engine uses.
type RPCClient interface {
	// GetAccountInfo returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenLargestAccounts returns up to 20 largest holders of a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenSupply returns the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)

	// GetTransaction returns nil, nil when the transaction is unknown.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// AccountInfo is an account with its data decoded from base64.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte
	Executable bool
}

// TokenAmount is an SPL token quantity. Amount is the raw integer string.
type TokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

// TokenAccountBalance is one entry of getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address string `json:"address"`
	TokenAmount
}

// Transaction is the part of getTransaction the engine reads.
type Transaction struct {
	Slot        int64
	Signature   string
	BlockTime   int64 // Unix seconds
	Failed      bool
	LogMessages []string
	AccountKeys []string
}
