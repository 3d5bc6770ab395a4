package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Sink receives decoded stream events. Implementations must not block.
type Sink interface {
	OnOrderUpdate(update domain.OrderUpdate)
	OnTick(symbol string, lastPrice decimal.Decimal)
}

// ClientConfig configures the streaming connection.
type ClientConfig struct {
	URL            string
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	Header         http.Header // e.g. authorization
}

// Client keeps a websocket connection to the broker's stream open,
// reconnecting after a fixed delay, and relays every frame to a Sink.
type Client struct {
	cfg    ClientConfig
	sink   Sink
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	writeMu   sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a stopped client.
func NewClient(cfg ClientConfig, sink Sink, logger *slog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(slog.String("feed_url", cfg.URL)),
	}
}

// Start launches the connection loop. It stops when ctx is cancelled or Stop
// is called.
func (c *Client) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop closes the connection and waits for the loop to exit.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.close()
	c.wg.Wait()
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(ctx); err != nil {
			c.logger.Warn("feed connection failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", c.cfg.ReconnectDelay),
			)
		} else {
			c.read(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.ReconnectDelay):
			c.logger.Info("feed reconnecting")
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(ctx, conn)
	}
	c.logger.Info("feed connected")
	return nil
}

func (c *Client) read(ctx context.Context) {
	defer c.close()

	// Unblocks ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, c.close)
	defer stop()

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed read failed", slog.String("error", err.Error()))
			}
			return
		}
		c.handle(msg)
	}
}

// handle decodes one message and relays it. Malformed frames are logged and
// skipped.
func (c *Client) handle(msg []byte) {
	frame, err := DecodeFrame(msg)
	if err != nil {
		c.logger.Warn("discarding feed message", slog.String("error", err.Error()))
		return
	}

	switch frame.Type {
	case FrameOrder:
		u, err := DecodeOrderUpdate(frame.Data)
		if err != nil {
			c.logger.Warn("discarding order update", slog.String("error", err.Error()))
			return
		}
		if !u.Status.Known() {
			c.logger.Warn("unhandled order update",
				slog.String("broker_order_id", u.BrokerOrderID),
				slog.String("status", string(u.Status)),
			)
			return
		}
		c.sink.OnOrderUpdate(u)
	case FrameTick:
		t, err := DecodeTick(frame.Data)
		if err != nil {
			c.logger.Warn("discarding tick", slog.String("error", err.Error()))
			return
		}
		c.sink.OnTick(t.Tradingsymbol, domain.RoundPrice(decimal.NewFromFloat(t.LastPrice)))
	default:
		c.logger.Debug("ignoring feed frame", slog.String("type", frame.Type))
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			current := c.conn
			c.mu.RUnlock()
			if current != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Warn("feed ping failed", slog.String("error", err.Error()))
				c.close()
				return
			}
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
