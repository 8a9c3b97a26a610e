// Package channel is the client end of the outcome socket: a reconnecting
// websocket to the remote authority that resolves rounds.
//
// Every failure is silent from the caller's point of view. Callers impose
// their own deadline and fall back when nothing arrives.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"casino-round-settlement/internal/logging"
	"casino-round-settlement/internal/models"
)

const resultSuffix = ":result"

var ErrClosed = errors.New("outcome channel closed")

type Config struct {
	// URL of the authority socket; empty disables the channel.
	URL        string
	Header     http.Header
	RetryDelay time.Duration
	MaxRetries int
}

type Channel struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	connected atomic.Bool

	mu     sync.Mutex
	conn   *websocket.Conn
	subs   map[uint64]*subscription
	nextID uint64

	writeMu sync.Mutex

	started   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type subscription struct {
	gameID     string
	clientSeed string
	fn         func(models.RoundResult)
}

func New(cfg Config, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Channel{
		cfg:    cfg,
		logger: logger.With("component", "outcome_channel"),
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		subs:   make(map[uint64]*subscription),
		done:   make(chan struct{}),
	}
}

// Connect starts the background connection loop. A missing URL is not an
// error; the channel just stays unavailable.
func (c *Channel) Connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		c.logger.Info("outcome channel disabled, no endpoint configured")
		return nil
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

func (c *Channel) run(ctx context.Context) {
	defer c.wg.Done()

	failures := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			failures++
			if c.cfg.MaxRetries > 0 && failures > c.cfg.MaxRetries {
				c.logger.Warn("giving up on outcome channel", "attempts", failures, "error", err)
				return
			}
			c.logger.Debug("outcome channel dial failed", "attempt", failures, "error", err)
			if !c.sleep(ctx) {
				return
			}
			continue
		}

		failures = 0
		if !c.setConn(conn) {
			conn.Close()
			return
		}
		c.logger.Info("outcome channel connected")

		c.readLoop(conn)

		c.setConn(nil)
		conn.Close()

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.logger.Info("outcome channel lost, reconnecting", "delay", c.cfg.RetryDelay)
		if !c.sleep(ctx) {
			return
		}
	}
}

func (c *Channel) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.cfg.RetryDelay)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// setConn reports false when the channel was closed before conn could be
// published.
func (c *Channel) setConn(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn != nil {
		select {
		case <-c.done:
			return false
		default:
		}
	}
	c.conn = conn
	c.connected.Store(conn != nil)
	return true
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		var msg models.Envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("outcome channel read failed", "error", err)
			}
			return
		}

		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg models.Envelope) {
	if !strings.HasSuffix(msg.Event, resultSuffix) {
		return
	}

	var res models.RoundResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		c.logger.Debug("dropping malformed result", "event", msg.Event, "error", err)
		return
	}

	var matched []*subscription
	c.mu.Lock()
	for id, sub := range c.subs {
		if sub.matches(res) {
			matched = append(matched, sub)
			delete(c.subs, id)
		}
	}
	c.mu.Unlock()

	for _, sub := range matched {
		sub.fn(res)
	}
}

func (s *subscription) matches(res models.RoundResult) bool {
	if s.gameID != res.GameID {
		return false
	}
	if s.clientSeed != "" && res.ClientSeed != "" && s.clientSeed != res.ClientSeed {
		return false
	}
	return true
}

// Subscribe registers a one-shot handler for the next result of gameID. The
// handler is removed before it runs. The returned func disposes of the
// subscription and is safe to call more than once.
func (c *Channel) Subscribe(gameID, clientSeed string, fn func(models.RoundResult)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = &subscription{gameID: gameID, clientSeed: clientSeed, fn: fn}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SubmitRound sends a play request. It never reports failure.
func (c *Channel) SubmitRound(event string, req models.RoundRequest) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Debug("outcome channel not connected, round not submitted", "game_id", req.GameID)
		return
	}

	msg, err := models.NewEnvelope(event, req)
	if err != nil {
		c.logger.Warn("failed to encode round request", "error", err)
		return
	}

	c.writeMu.Lock()
	err = conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("failed to submit round", "game_id", req.GameID, "error", err)
	}
}

func (c *Channel) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		cancel := c.cancel
		conn := c.conn
		c.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.writeMu.Unlock()
			conn.Close()
		}
	})

	c.wg.Wait()
	return nil
}
