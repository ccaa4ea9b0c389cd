package collab

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/codeprep-io/codeprep/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 256 * 1024
)

// Client is one live connection for an authenticated user. It owns the
// read and write pumps; all room and session state lives in the server
// run loop, which the read pump feeds through the inbound channel.
type Client struct {
	conn     *websocket.Conn
	server   *CollabServer
	log      *log.Logger
	user     types.User
	send     chan *ServerMessage
	stop     chan struct{}
	stopOnce sync.Once

	// lastActivity is read and written only by the server run loop.
	lastActivity time.Time
}

func NewClient(user types.User, conn *websocket.Conn, cs *CollabServer, l *log.Logger) *Client {
	return &Client{
		conn:   conn,
		server: cs,
		log:    l,
		user:   user,
		send:   make(chan *ServerMessage, 256),
		stop:   make(chan struct{}),
	}
}

func (c *Client) User() types.User {
	return c.user
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed payloads are dropped; the connection stays open.
			c.log.Println("error parsing message:", err)
			continue
		}

		select {
		case c.server.inbound <- inboundMessage{client: c, env: env}:
		default:
			c.log.Printf("inbound channel full, dropping %q from user %d", env.Type, c.user.Id)
		}
	}
}

// queueMessage enqueues a message for the write pump. Delivery is
// best-effort: a full send queue drops the message.
func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for user %d, dropping message", c.user.Id)
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// closeWith sends a close frame with the given code before tearing the
// connection down. Used for auth rejections and idle eviction, where the
// cause must be distinguishable client-side.
func (c *Client) closeWith(code int, reason string) {
	if c.conn != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	c.stopClient()
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup hands the connection back to the run loop, or gives up if the
// server has already shut down and nobody is draining the channel.
func (c *Client) cleanup() {
	select {
	case c.server.deRegisterChan <- c:
	case <-c.server.done:
	}
	c.stopClient()
}
