package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// JoinAuthorizer decides whether the user may subscribe to a project.
type JoinAuthorizer func(ctx context.Context, userID, projectID uint) (bool, error)

// Client is one connected browser tab. The hub only touches channels and the
// send queue; the connection is owned by the pumps.
type Client struct {
	UserID uint

	send      chan []byte
	channels  map[string]struct{}
	closeOnce sync.Once
}

func NewClient(userID uint) *Client {
	return &Client{
		UserID:   userID,
		send:     make(chan []byte, sendBuffer),
		channels: make(map[string]struct{}),
	}
}

// Send exposes the outbound queue. It is closed when the hub drops the
// client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

type clientMessage struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"project_id"`
}

// Session binds a client to its WebSocket connection.
type Session struct {
	hub       *Hub
	client    *Client
	conn      *websocket.Conn
	authorize JoinAuthorizer
	log       *logger.Logger
}

func NewSession(hub *Hub, client *Client, conn *websocket.Conn, authorize JoinAuthorizer, log *logger.Logger) *Session {
	return &Session{
		hub:       hub,
		client:    client,
		conn:      conn,
		authorize: authorize,
		log:       log.With("user_id", client.UserID),
	}
}

// Serve registers the client and runs both pumps. It returns once the read
// side closes.
func (s *Session) Serve(ctx context.Context) {
	s.hub.Register(s.client)
	go s.writePump()
	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	defer func() {
		s.hub.Unregister(s.client)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Warn("failed to set initial read deadline", "error", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Debug("ignoring malformed client message", "error", err)
			continue
		}

		s.handle(ctx, msg)
	}
}

func (s *Session) handle(ctx context.Context, msg clientMessage) {
	switch msg.Type {
	case types.MessageJoinProject:
		if msg.ProjectID == 0 {
			return
		}
		allowed, err := s.authorize(ctx, s.client.UserID, msg.ProjectID)
		if err != nil {
			s.log.Error("membership check failed", "project_id", msg.ProjectID, "error", err)
			return
		}
		if !allowed {
			s.log.Warn("rejected join for non-member", "project_id", msg.ProjectID)
			return
		}
		s.hub.Join(s.client, ProjectChannel(msg.ProjectID))
	case types.MessageLeaveProject:
		s.hub.Leave(s.client, ProjectChannel(msg.ProjectID))
	default:
		s.log.Debug("ignoring unknown client message", "type", msg.Type)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.client.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
