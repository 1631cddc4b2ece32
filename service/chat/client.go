package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ChatLink/logger"
	"ChatLink/tools/ids"
	jwtsec "ChatLink/tools/security"
)

const (
	defaultSendQueue = 64
	writeDeadline    = 5 * time.Second
)

// Client is one live websocket session bound to an authenticated user.
// Outbound frames go through a buffered send queue drained by a single
// writer goroutine, so handler goroutines never write to the socket
// directly.
type Client struct {
	ConnID   string
	UserID   string
	Identity *jwtsec.Identity

	ws        *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(id *jwtsec.Identity, ws *websocket.Conn) *Client {
	return &Client{
		ConnID:   ids.GenerateString(),
		UserID:   id.ID,
		Identity: id,
		ws:       ws,
		send:     make(chan []byte, defaultSendQueue),
		done:     make(chan struct{}),
	}
}

// StartWriter launches the writer goroutine. Called once after the handshake.
func (c *Client) StartWriter() {
	go c.writeLoop()
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				c.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[ws] write failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				c.Close()
				return
			}
		}
	}
}

// Push enqueues one outbound frame. A full queue or a closed client drops
// the frame; pushes are best-effort by design.
func (c *Client) Push(event string, data any) bool {
	payload, err := MarshalFrame(event, data)
	if err != nil {
		logger.Errorf("[ws] marshal frame event=%s err=%v", event, err)
		return false
	}
	select {
	case <-c.done:
		return false
	case c.send <- payload:
		return true
	default:
		logger.Warnf("[ws] send queue full, dropping event=%s user=%s", event, c.UserID)
		return false
	}
}

// Close stops the writer and closes the transport. Safe to call repeatedly.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Client) Done() <-chan struct{} { return c.done }
