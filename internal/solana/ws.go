package solana

import "context"

// WSClient is a Solana pubsub connection.
type WSClient interface {
	// SubscribeLogs streams log notifications for transactions mentioning
	// any of filter.Mentions. The channel is closed by Close.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)
	Close() error
}

// LogsFilter selects transactions for logsSubscribe. Empty Mentions means all.
type LogsFilter struct {
	Mentions []string
}

// LogNotification is one logsNotification.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Failed    bool
}
