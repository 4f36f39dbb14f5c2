package server

import (
	"sync"
	"time"

	"coinvest/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096 // client commands are small
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is the websocket side of one session. It implements
// interfaces.IClientSink: Send is a non-blocking push into the buffered
// outbound channel, so one stalled client never delays a fan-out.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan models.MServerMessage
	connID string

	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

// Send queues a message for the write pump. False means the buffer was full
// and the message dropped; the registry disconnects such clients.
func (c *Client) Send(msg models.MServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// Close signals the write pump to finish. Idempotent: the registry calls it
// on disconnect, and readPump-triggered disconnects race with slow-consumer
// drops.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming commands from the client
// Acts as the watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.server.Registry.Disconnect(c.connID)
		c.conn.Close()
		c.server.Logger.Debug("Client %s read pump finished", c.connID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.Logger.Info("WebSocket error on %s: %v", c.connID, err)
			}
			break
		}
		c.server.handleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Registry closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.server.Logger.Info("Write error on %s: %v", c.connID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
