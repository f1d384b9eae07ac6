package audit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
)

const defaultBufferSize = 1024

// Writer delivers an event to one destination.
type Writer interface {
	Name() string
	Write(ctx context.Context, ev *domain.AuditEvent) error
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	BufferSize   int
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

// Dispatcher queues events and delivers them to every writer from a single
// background goroutine.
type Dispatcher struct {
	events       chan *domain.AuditEvent
	writers      []Writer
	writeTimeout time.Duration
	log          zerolog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewDispatcher starts a dispatcher delivering to writers.
func NewDispatcher(opts DispatcherOptions, writers ...Writer) *Dispatcher {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{
		events:       make(chan *domain.AuditEvent, size),
		writers:      writers,
		writeTimeout: timeout,
		log:          opts.Logger,
		done:         make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev and returns immediately. When the buffer is full or the
// dispatcher is closed the event is logged and dropped.
func (d *Dispatcher) Publish(ev *domain.AuditEvent) {
	if ev == nil {
		return
	}
	observability.RecordAuditEvent(string(ev.Kind))

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ev, "closed")
		return
	}
	select {
	case d.events <- ev:
	default:
		d.drop(ev, "buffer full")
	}
}

func (d *Dispatcher) drop(ev *domain.AuditEvent, why string) {
	observability.RecordAuditDropped()
	d.log.Warn().
		Str("event_id", ev.EventID).
		Str("kind", string(ev.Kind)).
		Str("mint", ev.Mint).
		Str("summary", ev.Summary).
		Msgf("audit event dropped: %s", why)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, w := range d.writers {
			d.write(w, ev)
		}
	}
}

func (d *Dispatcher) write(w Writer, ev *domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()
	if err := w.Write(ctx, ev); err != nil {
		observability.RecordAuditWriterError(w.Name())
		d.log.Error().
			Err(err).
			Str("writer", w.Name()).
			Str("event_id", ev.EventID).
			Msg("audit write failed")
	}
}

// Close stops accepting events and waits until queued events are delivered
// or ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
