package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/observability"
)

// ErrClientClosed is returned by SubscribeLogs after Close.
var ErrClientClosed = errors.New("websocket client closed")

// WSConfig tunes the pubsub connection.
type WSConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	BufferSize        int // per-subscription notification buffer
	Logger            zerolog.Logger
}

// DefaultWSConfig returns the defaults used when NewWSClient gets nil.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BufferSize:        1024,
		Logger:            zerolog.Nop(),
	}
}

type subscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// PubSubClient implements WSClient with gorilla/websocket. Subscriptions
// survive reconnects: every registered filter is re-sent on a new connection.
type PubSubClient struct {
	endpoint string
	cfg      WSConfig
	log      zerolog.Logger

	writeMu sync.Mutex // one concurrent writer per connection

	mu       sync.Mutex
	conn     *websocket.Conn
	nextID   uint64
	subs     []*subscription
	pending  map[uint64]*subscription
	byServer map[int64]*subscription
	closed   bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient dials endpoint and starts the read and ping loops.
func NewWSClient(ctx context.Context, endpoint string, cfg *WSConfig) (*PubSubClient, error) {
	c := &PubSubClient{
		endpoint: endpoint,
		cfg:      DefaultWSConfig(),
		pending:  make(map[uint64]*subscription),
		byServer: make(map[int64]*subscription),
		done:     make(chan struct{}),
	}
	if cfg != nil {
		c.cfg = *cfg
	}
	if c.cfg.BufferSize <= 0 {
		c.cfg.BufferSize = 1024
	}
	c.log = c.cfg.Logger

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	c.wg.Add(2)
	go c.readLoop(conn)
	go c.pingLoop()
	return c, nil
}

func (c *PubSubClient) dial(ctx context.Context) (*websocket.Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		})
	}
	return conn, nil
}

// SubscribeLogs implements WSClient. The subscription request is sent
// immediately; notifications flow once the node confirms it.
func (c *PubSubClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &subscription{filter: filter, ch: make(chan LogNotification, c.cfg.BufferSize)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.subs = append(c.subs, sub)
	conn := c.conn
	id := c.registerLocked(sub)
	c.mu.Unlock()

	if err := c.send(conn, id, sub.filter); err != nil {
		// the read loop resubscribes after reconnecting
		c.log.Warn().Err(err).Msg("logsSubscribe send failed")
	}
	return sub.ch, nil
}

func (c *PubSubClient) registerLocked(sub *subscription) uint64 {
	c.nextID++
	c.pending[c.nextID] = sub
	return c.nextID
}

func (c *PubSubClient) send(conn *websocket.Conn, id uint64, filter LogsFilter) error {
	var mentions any = "all"
	if len(filter.Mentions) > 0 {
		mentions = map[string]any{"mentions": filter.Mentions}
	}
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params:  []any{mentions, map[string]string{"commitment": "confirmed"}},
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return conn.WriteJSON(req)
}

func (c *PubSubClient) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn().Err(err).Msg("websocket read failed, reconnecting")
			next, ok := c.reconnect()
			if !ok {
				return
			}
			conn = next
			continue
		}
		observability.RecordWSMessage()
		c.handle(msg)
	}
}

// reconnect dials with exponential backoff until it succeeds or Close is
// called, then re-sends every subscription.
func (c *PubSubClient) reconnect() (*websocket.Conn, bool) {
	delay := c.cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	for {
		select {
		case <-c.done:
			return nil, false
		case <-time.After(delay):
		}

		conn, err := c.dial(context.Background())
		if err != nil {
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("websocket reconnect failed")
			delay *= 2
			if c.cfg.MaxReconnectDelay > 0 && delay > c.cfg.MaxReconnectDelay {
				delay = c.cfg.MaxReconnectDelay
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil, false
		}
		_ = c.conn.Close()
		c.conn = conn
		c.pending = make(map[uint64]*subscription)
		c.byServer = make(map[int64]*subscription)
		ids := make([]uint64, len(c.subs))
		for i, sub := range c.subs {
			ids[i] = c.registerLocked(sub)
		}
		subs := append([]*subscription(nil), c.subs...)
		c.mu.Unlock()

		for i, sub := range subs {
			if err := c.send(conn, ids[i], sub.filter); err != nil {
				c.log.Warn().Err(err).Msg("resubscribe failed")
			}
		}
		c.log.Info().Int("subscriptions", len(subs)).Msg("websocket reconnected")
		return conn, true
	}
}

func (c *PubSubClient) handle(msg []byte) {
	var env wsMessage
	if err := json.Unmarshal(msg, &env); err != nil {
		c.log.Debug().Err(err).Msg("undecodable websocket message")
		return
	}

	switch {
	case env.Error != nil:
		c.log.Warn().Int("code", env.Error.Code).Str("message", env.Error.Message).Msg("pubsub error response")
		if env.ID != nil {
			c.mu.Lock()
			delete(c.pending, *env.ID)
			c.mu.Unlock()
		}

	case env.ID != nil && env.Result != nil:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.mu.Lock()
		if sub, ok := c.pending[*env.ID]; ok {
			delete(c.pending, *env.ID)
			c.byServer[subID] = sub
		}
		c.mu.Unlock()

	case env.Method == "logsNotification" && env.Params != nil:
		var p logsParams
		if err := json.Unmarshal(env.Params, &p); err != nil {
			return
		}
		c.mu.Lock()
		sub := c.byServer[p.Subscription]
		c.mu.Unlock()
		if sub == nil {
			return
		}
		n := LogNotification{
			Signature: p.Result.Value.Signature,
			Slot:      p.Result.Context.Slot,
			Logs:      p.Result.Value.Logs,
			Failed:    len(p.Result.Value.Err) > 0 && string(p.Result.Value.Err) != "null",
		}
		select {
		case sub.ch <- n:
		case <-c.done:
		}
	}
}

func (c *PubSubClient) pingLoop() {
	defer c.wg.Done()
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
			}
		}
	}
}

// Close stops the loops, closes the connection and every subscription channel.
func (c *PubSubClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := conn.Close()
	c.wg.Wait()

	c.mu.Lock()
	for _, sub := range c.subs {
		close(sub.ch)
	}
	c.subs = nil
	c.mu.Unlock()
	return err
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type logsParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string          `json:"signature"`
			Err       json.RawMessage `json:"err"`
			Logs      []string        `json:"logs"`
		} `json:"value"`
	} `json:"result"`
}

var _ WSClient = (*PubSubClient)(nil)
