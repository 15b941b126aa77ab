package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/matheus3301/inboxsync/internal/api"
	"github.com/matheus3301/inboxsync/internal/status"
	"go.uber.org/zap"
)

// Config configures the push channel client.
type Config struct {
	// URL of the push endpoint. http(s) schemes are rewritten to ws(s).
	URL                  string
	Tokens               api.TokenSource
	HeartbeatInterval    time.Duration
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	MaxReconnectAttempts int
	ReadLimit            int64
}

func (c *Config) defaults() {
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.ReadLimit == 0 {
		c.ReadLimit = 1 << 20
	}
	if c.Tokens == nil {
		c.Tokens = api.StaticToken("")
	}
}

// Client keeps a websocket to the push endpoint open and dispatches every
// received envelope to the hub, reconnecting with backoff when it drops.
type Client struct {
	cfg     Config
	hub     *Hub
	machine *status.Machine
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(cfg Config, hub *Hub, machine *status.Machine, logger *zap.Logger) *Client {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if machine == nil {
		machine = status.NewMachine(nil)
	}
	return &Client{cfg: cfg, hub: hub, machine: machine, logger: logger}
}

// Start runs the connection loop in the background.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		if err := c.Run(ctx); err != nil {
			c.logger.Error("realtime connection stopped", zap.Error(err))
		}
	}()
}

// Stop ends the connection loop and waits for it to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the connection state.
func (c *Client) State() status.State {
	return c.machine.Current()
}

// Run connects and reads until ctx is done or reconnect attempts run out.
func (c *Client) Run(ctx context.Context) error {
	recon := newReconnector(c.cfg.ReconnectBaseDelay, c.cfg.ReconnectMaxDelay, c.cfg.MaxReconnectAttempts)
	for {
		c.set(status.Connecting)
		conn, err := c.dial(ctx)
		if err == nil {
			recon.markConnected()
			c.set(status.Connected)
			c.logger.Info("realtime connected", zap.String("url", c.cfg.URL))
			err = c.read(ctx, conn)
		}
		if ctx.Err() != nil {
			c.set(status.Disconnected)
			return nil
		}
		if !recon.shouldReconnect() {
			c.set(status.Disconnected)
			return fmt.Errorf("realtime: giving up after %d attempts: %w", recon.attempt, err)
		}
		delay := recon.nextDelay()
		c.set(status.Reconnecting)
		c.logger.Warn("realtime connection lost, reconnecting",
			zap.Error(err),
			zap.Int("attempt", recon.attempt),
			zap.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.set(status.Disconnected)
			return nil
		}
	}
}

func (c *Client) set(s status.State) {
	if c.machine.Current() == s {
		return
	}
	if err := c.machine.Transition(s); err != nil {
		c.logger.Debug("ignored status transition", zap.Error(err))
	}
}

func wsURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if tok := c.cfg.Tokens.Token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL(c.cfg.URL), &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)
	return conn, nil
}

// read dispatches envelopes until the connection fails.
func (c *Client) read(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.CloseNow()

	go c.heartbeat(connCtx, conn)

	for {
		_, data, err := conn.Read(connCtx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return errors.New("server closed the connection")
			}
			return err
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		if env.Type == TypePing {
			continue
		}
		c.hub.Dispatch(env)
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.cfg.HeartbeatInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					c.logger.Warn("heartbeat failed", zap.Error(err))
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				}
				return
			}
		}
	}
}
