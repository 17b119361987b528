package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// ConnectionWrapper adapts a gorilla/websocket connection to Connection
type ConnectionWrapper struct {
	conn *websocket.Conn
}

// NewConnectionWrapper wraps conn
func NewConnectionWrapper(conn *websocket.Conn) Connection {
	return &ConnectionWrapper{conn: conn}
}

// WriteMessage writes a message to the connection
func (c *ConnectionWrapper) WriteMessage(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage reads the next message from the connection
func (c *ConnectionWrapper) ReadMessage() (int, []byte, error) {
	return c.conn.ReadMessage()
}

// Close closes the connection
func (c *ConnectionWrapper) Close() error { return c.conn.Close() }

// SetReadDeadline sets the read deadline on the connection
func (c *ConnectionWrapper) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline on the connection
func (c *ConnectionWrapper) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

// SetReadLimit caps the size of an inbound message
func (c *ConnectionWrapper) SetReadLimit(limit int64) { c.conn.SetReadLimit(limit) }

// SetPongHandler sets the handler for pong messages
func (c *ConnectionWrapper) SetPongHandler(h func(string) error) { c.conn.SetPongHandler(h) }

// RemoteAddr returns the peer address, or "" when it is unknown
func (c *ConnectionWrapper) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
