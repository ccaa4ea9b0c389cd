// Package wsclient is a reconnecting client for the collaboration socket.
// It is self-contained so external tooling can depend on it without
// pulling in the server.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultPingInterval         = 30 * time.Second

	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
	handshakeTimeout   = 10 * time.Second
	writeWait          = 10 * time.Second
)

// ErrMaxReconnectAttempts is returned through Done when the client gives
// up reconnecting.
var ErrMaxReconnectAttempts = errors.New("max reconnect attempts reached")

// Message is the wire envelope in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Config struct {
	// URL is the collaboration endpoint, http(s) or ws(s) scheme.
	URL string
	// Token authenticates the connection; it is sent as a query parameter.
	Token string
	// MaxReconnectAttempts bounds consecutive failed dials before the
	// client gives up. Zero means DefaultMaxReconnectAttempts.
	MaxReconnectAttempts int
	// PingInterval is the application-level heartbeat period. Zero means
	// DefaultPingInterval.
	PingInterval time.Duration
	Logger       *log.Logger
}

type Client struct {
	url          string
	maxAttempts  int
	pingInterval time.Duration
	log          *log.Logger

	send    chan Message
	recv    chan Message
	done    chan struct{}
	doneErr error

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	endpoint, err := buildURL(cfg.URL, cfg.Token)
	if err != nil {
		return nil, err
	}

	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Client{
		url:          endpoint,
		maxAttempts:  cfg.MaxReconnectAttempts,
		pingInterval: cfg.PingInterval,
		log:          cfg.Logger,
		send:         make(chan Message, 64),
		recv:         make(chan Message, 64),
		done:         make(chan struct{}),
	}, nil
}

// Connect dials the endpoint and starts the connection manager, which
// reconnects with exponential backoff on failure. The first dial happens
// synchronously so callers learn about bad endpoints immediately.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return err
	}

	go c.run(ctx, conn)
	return nil
}

// Messages delivers everything received from the server. The channel is
// closed when the client stops for good.
func (c *Client) Messages() <-chan Message {
	return c.recv
}

// Send queues a message for delivery. Messages queued while the client is
// between connections are sent after the next successful dial.
func (c *Client) Send(msg Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("client is closed")
	}
}

// Done is closed when the client has permanently stopped. Err reports why.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.doneErr
	default:
		return nil
	}
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
	})
	return nil
}

func (c *Client) run(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		close(c.recv)
		close(c.done)
	}()

	for {
		readErr := c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
			// the server hung up cleanly, do not reconnect
			return
		}

		var err error
		conn, err = c.redial(ctx)
		if err != nil {
			c.doneErr = err
			return
		}
	}
}

// redial attempts to re-establish the connection, backing off
// exponentially between attempts.
func (c *Client) redial(ctx context.Context) (*websocket.Conn, error) {
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		delay := backoff(attempt)
		c.log.Printf("reconnecting in %s (attempt %d/%d)", delay, attempt+1, c.maxAttempts)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		c.log.Println("reconnect failed:", err)
	}

	return nil, ErrMaxReconnectAttempts
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	return conn, nil
}

// serve pumps one connection until it fails or the context is cancelled,
// and returns the read error that ended it.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	var readErr error
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.log.Println("read:", err)
				}
				readErr = err
				return
			}

			select {
			case c.recv <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(conn, msg); err != nil {
				c.log.Println("write:", err)
				return err
			}
		case <-ticker.C:
			if err := c.write(conn, Message{Type: "ping"}); err != nil {
				c.log.Println("heartbeat:", err)
				return err
			}
		case <-readDone:
			return readErr
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return nil
		}
	}
}

func (c *Client) write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// backoff returns the delay before reconnect attempt n, doubling from one
// second and capping at thirty.
func backoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}

	delay := baseReconnectDelay << attempt
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	return delay
}

func buildURL(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
