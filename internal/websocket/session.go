package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/middleware"
	"seriesdash/internal/services"
	httptransport "seriesdash/internal/transport/http"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 << 10

	// Replies waiting for the write pump.
	sendBuffer = 16
)

// Options tunes session keepalive and limits
type Options struct {
	PingPeriod     time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (o Options) withDefaults() Options {
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	return o
}

// Session is one client connection bound to a dataset. Selections are read
// and answered one at a time, so pipeline runs on a session never overlap.
type Session struct {
	id      string
	dataset string
	traceID string

	conn      Connection
	send      chan []byte
	done      chan struct{}
	writeDone chan struct{}

	runner    SeriesRunner
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
	request   *http.Request
	opts      Options
	metrics   *Metrics
	logger    *slog.Logger

	connectedAt      time.Time
	messagesReceived int64
	bytesReceived    int64
	messagesSent     int64
	bytesSent        int64
}

// SessionDeps are the collaborators a session answers selections with
type SessionDeps struct {
	Runner    SeriesRunner
	Validator *middleware.Validator
	Errors    *apierrors.ErrorHandler
	Metrics   *Metrics
	Logger    *slog.Logger
}

// NewSession creates a session for dataset on conn. r is the upgrade
// request; problem documents use its path as their instance.
func NewSession(conn Connection, r *http.Request, dataset string, deps SessionDeps, opts Options) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	errs := deps.Errors
	if errs == nil {
		errs = apierrors.NewErrorHandler(logger, false)
	}

	id := uuid.New().String()
	traceID := infrastructure.GetTraceID(r.Context())
	logger = logger.With(
		slog.String("component", "websocket.session"),
		slog.String("session_id", id),
		slog.String("dataset", dataset),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Session{
		id:          id,
		dataset:     dataset,
		traceID:     traceID,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		writeDone:   make(chan struct{}),
		runner:      deps.Runner,
		validator:   deps.Validator,
		errors:      errs,
		request:     r,
		opts:        opts.withDefaults(),
		metrics:     deps.Metrics,
		logger:      logger,
		connectedAt: time.Now(),
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Run serves the session until the peer goes away or ctx is done. The
// connection is closed when Run returns.
func (s *Session) Run(ctx context.Context) {
	s.metrics.RecordSessionStart(ctx, s.dataset)
	s.logger.InfoContext(ctx, "websocket session opened",
		slog.String("remote_addr", s.conn.RemoteAddr()))

	go func() {
		defer close(s.writeDone)
		s.writePump(ctx)
	}()

	// unblock the reader; the write pump then sends the close frame
	stop := context.AfterFunc(ctx, func() { s.conn.SetReadDeadline(time.Now()) })
	s.readPump(ctx)
	stop()

	close(s.done)
	<-s.writeDone
	s.conn.Close()

	d := time.Since(s.connectedAt)
	s.metrics.RecordSessionEnd(context.WithoutCancel(ctx), s.dataset, d)
	s.logger.InfoContext(ctx, "websocket session closed",
		slog.Duration("connection_duration", d),
		slog.Int64("messages_received", s.messagesReceived),
		slog.Int64("bytes_received", s.bytesReceived),
		slog.Int64("messages_sent", s.messagesSent),
		slog.Int64("bytes_sent", s.bytesSent))
}

// readPump reads selections and queues one reply per selection
func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(s.opts.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		if ctx.Err() != nil {
			return nil
		}
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.WarnContext(ctx, "unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		message = bytes.TrimSpace(message)
		s.messagesReceived++
		s.bytesReceived += int64(len(message))
		s.metrics.RecordMessage(ctx, "in", len(message))

		resp, ok := s.handle(ctx, message)
		if !ok {
			continue
		}
		payload, err := s.encode(ctx, resp)
		if err != nil {
			continue
		}

		select {
		case s.send <- payload:
		case <-s.writeDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// encode marshals resp. A reply that cannot be encoded is replaced by an
// error envelope carrying the same id, so the client still gets an answer.
func (s *Session) encode(ctx context.Context, resp Response) ([]byte, error) {
	payload, err := json.Marshal(resp)
	if err == nil {
		return payload, nil
	}
	s.logger.ErrorContext(ctx, "cannot encode reply", slog.String("error", err.Error()))

	fallback := s.errorResponse(ctx, resp.ID,
		apierrors.NewParsingError("reply could not be encoded", err))
	payload, ferr := json.Marshal(fallback)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	return payload, nil
}

// handle answers one inbound message. It reports false for messages that
// get no reply.
func (s *Session) handle(ctx context.Context, message []byte) (Response, bool) {
	var req Request
	if err := json.Unmarshal(message, &req); err != nil {
		return s.errorResponse(ctx, "", apierrors.InvalidRequestWithError(fmt.Errorf("invalid message: %w", err))), true
	}

	switch req.Type {
	case TypeHeartbeat:
		s.logger.DebugContext(ctx, "heartbeat received")
		return Response{}, false
	case "", TypeSeries:
	default:
		return s.errorResponse(ctx, req.ID,
			apierrors.InvalidParameter("type", fmt.Errorf("unknown message type %q", req.Type))), true
	}

	start := time.Now()
	if s.validator != nil {
		if err := s.validator.ValidateStruct(req.Selection); err != nil {
			s.metrics.RecordReply(ctx, s.dataset, time.Since(start), true)
			return s.errorResponse(ctx, req.ID, err), true
		}
	}

	res, err := s.runner.Series(ctx, s.dataset, req.Selection.Request())
	s.metrics.RecordReply(ctx, s.dataset, time.Since(start), err != nil)
	if err != nil {
		return s.errorResponse(ctx, req.ID, httptransport.ToAPIError(err, s.dataset)), true
	}

	data := services.NewSeriesResponse(s.dataset, res)
	return Response{Type: TypeSeries, ID: req.ID, Data: &data}, true
}

func (s *Session) errorResponse(ctx context.Context, id string, err error) Response {
	problem := s.errors.ErrorToProblem(err, s.request)
	if s.traceID != "" {
		problem.WithExtension("trace_id", s.traceID)
	}

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "selection failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("message_id", id))

	return Response{Type: TypeError, ID: id, Error: problem}
}

// writePump writes queued replies and keeps the connection alive with pings
func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-s.send:
			if err := s.write(ctx, message); err != nil {
				s.conn.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.DebugContext(ctx, "failed to send ping", slog.String("error", err.Error()))
				s.conn.Close()
				return
			}
		case <-s.done:
			// flush replies queued before the reader stopped
			for len(s.send) > 0 {
				if err := s.write(ctx, <-s.send); err != nil {
					return
				}
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) write(ctx context.Context, message []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		s.logger.ErrorContext(ctx, "error writing websocket message", slog.String("error", err.Error()))
		return err
	}
	s.messagesSent++
	s.bytesSent += int64(len(message))
	s.metrics.RecordMessage(ctx, "out", len(message))
	return nil
}
