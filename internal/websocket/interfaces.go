package websocket

import (
	"context"
	"time"

	"seriesdash/internal/series"
	"seriesdash/internal/services"
)

// Connection defines the part of a WebSocket connection a session uses.
// It allows sessions to be driven by a fake connection in tests.
type Connection interface {
	// WriteMessage writes a message with the given message type and payload
	WriteMessage(messageType int, data []byte) error

	// ReadMessage reads the next message from the connection
	ReadMessage() (messageType int, p []byte, err error)

	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)

	// RemoteAddr returns the remote network address
	RemoteAddr() string
}

// SeriesRunner runs the series pipeline for one dataset selection
type SeriesRunner interface {
	HasDataset(name string) bool
	Series(ctx context.Context, dataset string, req services.SeriesRequest) (series.Result, error)
}
