package websocket

import (
	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/services"
)

// Message types
const (
	TypeSeries    = "series"
	TypeError     = "error"
	TypeHeartbeat = "heartbeat"
)

// Request is an inbound message. A message without a type is a series
// request; its selection fields sit at the top level:
//
//	{"id": "1", "key": "2330", "min": 500, "max": 600}
type Request struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	services.Selection
}

// Response is an outbound message. Data carries the same document as the
// series endpoint; Error carries an RFC 7807 problem.
type Response struct {
	Type  string                    `json:"type"`
	ID    string                    `json:"id,omitempty"`
	Data  *services.SeriesResponse  `json:"data,omitempty"`
	Error *apierrors.ProblemDetails `json:"error,omitempty"`
}
