package server

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/spark-dating/spark-server/internal/presence"
)

const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// time allowed to read the next pong from the peer
	pongWait = 60 * time.Second
	// send pings with this period; must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// outbound event buffer per connection
	sendBuffer = 256

	maxMessageSize = 1024
)

var errConnSaturated = errors.New("connection send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn adapts one gorilla websocket to presence.Conn. Events are queued
// on a buffered channel and written by a single pump goroutine, so Send
// never blocks a caller: a saturated or dying connection just drops the
// event.
type wsConn struct {
	userID uint64
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newWSConn(userID uint64, conn *websocket.Conn, logger *slog.Logger) *wsConn {
	return &wsConn{
		userID: userID,
		conn:   conn,
		logger: logger,
		send:   make(chan []byte, sendBuffer),
	}
}

// Send queues an event for the write pump. Fails soft when the connection
// is closing or its buffer is full.
func (c *wsConn) Send(event []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errConnSaturated
	}
}

// Close shuts the connection down. Safe to call more than once and safe
// against concurrent Send.
func (c *wsConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes the peer side until it drops. Clients do not issue
// commands over the socket (all actions go through the HTTP API); the
// read loop only services pongs and detects disconnects.
func (c *wsConn) readPump(registry *presence.Registry) {
	defer func() {
		registry.Remove(c.userID, c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", "user_id", c.userID, "err", err)
			}
			return
		}
	}
}

// handleWS upgrades the request and registers the connection under the
// authenticated user. Token comes from the auth middleware (cookie or
// bearer) or, for browser websocket clients, a token query parameter.
func (s *Server) handleWS(c *gin.Context) {
	userID, ok := s.wsIdentity(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "not authorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response
		s.appCtx.Logger.Warn("websocket upgrade failed", "user_id", userID, "err", err)
		return
	}

	wc := newWSConn(userID, conn, s.appCtx.Logger)
	s.registry.Register(userID, wc)
	s.appCtx.Logger.Info("websocket connected", "user_id", userID)

	go wc.writePump()
	go func() {
		wc.readPump(s.registry)
		s.appCtx.Logger.Info("websocket disconnected", "user_id", userID)
	}()
}

func (s *Server) wsIdentity(c *gin.Context) (uint64, bool) {
	token := c.Query("token")
	if token == "" {
		if cookie, err := c.Cookie("jwt"); err == nil {
			token = cookie
		}
	}
	if token == "" {
		return 0, false
	}
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return 0, false
	}
	return userID, true
}
