package chat

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ChatLink/logger"
	"ChatLink/service/storage"
	"ChatLink/tools/decode"
	"ChatLink/tools/errs"
	jwtsec "ChatLink/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CredentialVerifier resolves an opaque bearer credential to an identity.
type CredentialVerifier func(token string) (*jwtsec.Identity, error)

// Server is the realtime gateway. It owns the connection lifecycle
// (handshake, registration, teardown), the presence broadcast, and the
// dispatch of conversation events to their handlers.
type Server struct {
	registry *Registry
	disp     *Dispatcher
	msgs     MessageStore
	verify   CredentialVerifier
	mirror   *storage.Mirror
}

func NewServer(msgs MessageStore, verify CredentialVerifier, mirror *storage.Mirror) *Server {
	s := &Server{
		registry: NewRegistry(),
		disp:     NewDispatcher(),
		msgs:     msgs,
		verify:   verify,
		mirror:   mirror,
	}
	s.registerHandlers()
	return s
}

func (s *Server) Registry() *Registry { return s.registry }

// HandleWS runs one connection from upgrade to teardown.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	client, ok := s.handshake(ws)
	if !ok {
		// never registered; teardown already done
		return
	}

	client.StartWriter()
	s.registry.Register(client.UserID, client)
	_ = s.mirror.Online(context.Background(), client.UserID)
	s.broadcastExcept(client, EventUserStatusChange, statusChangePayload{UserID: client.UserID, IsOnline: true})
	logger.Infof("[ws] user connected user=%s conn=%s", client.UserID, client.ConnID)

	s.readLoop(client)

	// Guarded teardown: only the connection still held by the registry may
	// flip presence to offline. A superseded connection leaves presence
	// alone since its successor is live.
	removed := s.registry.Deregister(client.UserID, client)
	client.Close()
	if removed {
		_ = s.mirror.Offline(context.Background(), client.UserID)
		s.broadcastExcept(client, EventUserStatusChange, statusChangePayload{UserID: client.UserID, IsOnline: false})
	}
	logger.Infof("[ws] user disconnected user=%s conn=%s removed=%v", client.UserID, client.ConnID, removed)
}

// handshake reads the first frame, which must be auth{token}, and resolves
// the credential. Failure surfaces an error frame to the client and closes
// the transport without ever touching the registry.
func (s *Server) handshake(ws *websocket.Conn) (*Client, bool) {
	_, data, err := ws.ReadMessage()
	if err != nil {
		_ = ws.Close()
		return nil, false
	}

	f, err := ParseFrame(data)
	if err != nil || f.Event != EventAuth {
		rejectHandshake(ws, errs.ErrAuthRequired.Msg)
		return nil, false
	}

	var token string
	if m := f.DataMap(); m != nil {
		if p, err := decode.Map[authPayload](m); err == nil {
			token = p.Token
		}
	}
	if token == "" {
		rejectHandshake(ws, errs.ErrAuthRequired.Msg)
		return nil, false
	}

	id, err := s.verify(token)
	if err != nil {
		rejectHandshake(ws, errs.ErrInvalidToken.Msg)
		return nil, false
	}

	return NewClient(id, ws), true
}

func rejectHandshake(ws *websocket.Conn, msg string) {
	payload, err := MarshalFrame(EventError, map[string]string{"message": msg})
	if err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(writeDeadline))
		_ = ws.WriteMessage(websocket.TextMessage, payload)
	}
	_ = ws.Close()
}

// readLoop pulls frames until the transport closes. Each event is handled to
// completion before the next frame on this connection is read.
func (s *Server) readLoop(client *Client) {
	for {
		mt, data, rerr := client.ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed user=%s err=%v", client.UserID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout user=%s err=%v", client.UserID, rerr)
			} else {
				logger.Infof("[ws] read err user=%s err=%v", client.UserID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame user=%s err=%v sample=%q", client.UserID, perr, sample)
			client.Push(EventMessageError, errorPayload{Error: "malformed frame"})
			continue
		}
		if f.Event == EventAuth {
			// already authenticated
			continue
		}

		h := s.disp.Get(f.Event)
		if h == nil {
			logger.Infof("[ws] no handler for event=%s user=%s", f.Event, client.UserID)
			client.Push(EventMessageError, errorPayload{Error: "unknown event: " + f.Event})
			continue
		}
		h(context.Background(), client, f)
	}
}

// ===== fan-out =====

func (s *Server) broadcastExcept(origin *Client, event string, data any) {
	for _, c := range s.registry.Snapshot() {
		if c != origin {
			c.Push(event, data)
		}
	}
}

// EmitToAll pushes an event to every registered connection. This is the
// produced interface the HTTP-side creation paths use.
func (s *Server) EmitToAll(event string, data any) {
	for _, c := range s.registry.Snapshot() {
		c.Push(event, data)
	}
}

// EmitToUser pushes to one user's live connection; false means the user is
// offline and the push was skipped (a routing miss, not an error).
func (s *Server) EmitToUser(userID, event string, data any) bool {
	c, ok := s.registry.Lookup(userID)
	if !ok {
		return false
	}
	return c.Push(event, data)
}
