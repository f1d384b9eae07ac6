package execution

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options selects and configures an adapter.
type Options struct {
	Mode        string
	SlippageBps float64
	FeeBps      float64
	ExecutorURL string
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// FromOptions builds the adapter for opts.Mode wrapped with WithTimeout.
// prices is only used in paper mode.
func FromOptions(opts Options, prices PriceSource) (Adapter, error) {
	var inner Adapter
	switch opts.Mode {
	case ModePaper, "":
		inner = NewPaperAdapter(prices, PaperOptions{
			SlippageBps: opts.SlippageBps,
			FeeBps:      opts.FeeBps,
		})
	case ModeLive:
		if opts.ExecutorURL == "" {
			return nil, ErrMissingExecutorURL
		}
		inner = NewRemoteAdapter(opts.ExecutorURL, opts.Timeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
	return WithTimeout(inner, opts.Timeout, opts.Logger), nil
}
