package server

import (
	"fmt"
	"time"

	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connection is one open socket of a match. Its send channel is owned by
// the match actor, which is the only party allowed to close it.
type connection struct {
	id          string
	ws          *websocket.Conn
	send        chan []byte
	cfg         WebsocketConfig
	connectedAt time.Time
}

func newConnection(ws *websocket.Conn, cfg WebsocketConfig, now time.Time) *connection {
	buffer := cfg.SendBufferSize
	if buffer < 1 {
		buffer = 1
	}
	return &connection{
		id:          uuid.NewString(),
		ws:          ws,
		send:        make(chan []byte, buffer),
		cfg:         cfg,
		connectedAt: now,
	}
}

// writePump drains the send channel onto the socket and keeps the peer
// alive with pings. It returns once the actor closes the channel or a
// write fails.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error("failed to write message",
					zap.String("connection_id", c.id),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				logging.Info("failed to send ping",
					zap.String("connection_id", c.id),
					zap.Error(err),
				)
				return
			}
		}
	}
}

// readPump forwards inbound frames to the match until the socket closes.
func (c *connection) readPump(match *Match) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("connection closed unexpectedly",
					zap.String("connection_id", c.id),
					zap.String("remote_address", c.ws.RemoteAddr().String()),
					zap.Error(err),
				)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		req, err := dtos.DecodeActionFrame(message)
		if err != nil {
			match.protocolError(c.id, fmt.Sprintf("%s: %s", ErrStatusParse, err))
			continue
		}
		match.fromClient(c.id, req)
	}
}
