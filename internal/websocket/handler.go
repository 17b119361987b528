package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/middleware"
)

// HandlerConfig configures the upgrader and the sessions it creates
type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	// AllowedOrigins limits browser origins; requests without an Origin
	// header are always accepted.
	AllowedOrigins []string
	Session        Options
}

// Handler upgrades dataset requests to WebSocket sessions and tracks the
// open ones.
type Handler struct {
	upgrader websocket.Upgrader
	deps     SessionDeps
	opts     Options
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler creates a WebSocket handler
func NewHandler(cfg HandlerConfig, deps SessionDeps) *Handler {
	if deps.Logger == nil {
		deps.Logger = infrastructure.GetLogger()
	}
	if deps.Errors == nil {
		deps.Errors = apierrors.NewErrorHandler(deps.Logger, false)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		deps:     deps,
		opts:     cfg.Session,
		logger:   deps.Logger.With(slog.String("handler", "websocket")),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(cfg.AllowedOrigins, origin)
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.deps.Metrics.RecordUpgradeError(r.Context())
			h.deps.Errors.HandleError(w, r, apierrors.NewWithDetails(status,
				apierrors.CodeWebSocketUpgrade, apierrors.ErrWebSocketUpgrade.Message, reason.Error()))
		},
	}
	return h
}

// Routes returns the WebSocket routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/datasets/{dataset}", h.ServeDataset)
	return r
}

// ServeDataset upgrades the request and serves a session until the peer
// disconnects or the handler is closed.
func (h *Handler) ServeDataset(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")
	if !h.deps.Runner.HasDataset(dataset) {
		h.deps.Errors.HandleError(w, r, apierrors.DatasetNotFound(dataset))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		return
	}

	session := NewSession(NewConnectionWrapper(conn), r, dataset, h.deps, h.opts)
	if !h.add(session) {
		conn.Close()
		return
	}
	defer h.remove(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	session.Run(ctx)
}

// SessionCount returns the number of open sessions
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every open session and refuses new ones
func (h *Handler) Close() {
	h.cancel()
	h.logger.Info("websocket handler closed", slog.Int("sessions", h.SessionCount()))
}

func (h *Handler) add(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.sessions[s.ID()] = s
	return true
}

func (h *Handler) remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s.ID())
}
