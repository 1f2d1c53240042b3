package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 32
)

// InboundFunc handles a text frame sent by a client. Returning an error only
// logs it; the connection stays open.
type InboundFunc func(ctx context.Context, teamID, userID, content string) error

// Client is one websocket connection bound to a team.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	teamID string
	userID string
}

// NewUpgrader returns a websocket upgrader accepting the given origins. An
// empty list or "*" accepts any origin.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := allowed[strings.TrimRight(origin, "/")]
			return ok
		},
	}
}

// Serve registers conn with the hub and pumps frames until the peer goes away
// or ctx is cancelled. It blocks.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, teamID, userID string, inbound InboundFunc) {
	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), teamID: teamID, userID: userID}
	h.register(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()
	c.readPump(ctx, inbound)
	h.unregister(c)
	<-done
}

func (c *Client) readPump(ctx context.Context, inbound InboundFunc) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected chat socket close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		content := strings.TrimSpace(string(message))
		if content == "" || inbound == nil {
			continue
		}
		if err := inbound(ctx, c.teamID, c.userID, content); err != nil {
			c.hub.logger.Warn("chat message rejected", zap.String("team_id", c.teamID), zap.String("user_id", c.userID), zap.Error(err))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
