package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"seriesdash/internal/config"
	apierrors "seriesdash/internal/errors"
	"seriesdash/internal/exporter"
	"seriesdash/internal/infrastructure"
	"seriesdash/internal/middleware"
	"seriesdash/internal/services"
	"seriesdash/internal/sources"
	handlers "seriesdash/internal/transport/http"
	ws "seriesdash/internal/websocket"
)

var (
	// Version is set at build time with -ldflags "-X seriesdash/internal/app.Version=..."
	Version = config.AppVersion
	// BuildTime is set at build time
	BuildTime = ""
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Sources       *sources.Registry
	SeriesService *services.SeriesService
	HealthService *services.HealthService
	WebSocket     *ws.Handler

	errorHandler *apierrors.ErrorHandler
	validator    *middleware.Validator
}

// NewApplication loads the configuration and logger and builds the
// application from them.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	logger, err := infrastructure.InitializeLogger(cfg.Logging, paths.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return New(cfg, logger)
}

// New builds the application with dependency injection
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.Int("datasets", len(cfg.Datasets)))

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		app.shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.setupRouter(); err != nil {
		app.Sources.Close()
		app.shutdownTelemetry(context.Background())
		return nil, fmt.Errorf("failed to set up router: %w", err)
	}
	app.createServer()

	return app, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices() error {
	registry, err := sources.NewRegistry(a.Config.Datasets, a.Paths, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build dataset sources: %w", err)
	}
	a.Sources = registry
	a.Logger.Info("Datasets registered", slog.Any("names", registry.Names()))

	pipelineMetrics, err := infrastructure.NewPipelineMetrics(a.OTelProviders.Meter)
	if err != nil {
		registry.Close()
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		registry.Close()
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}

	a.SeriesService = services.NewSeriesService(services.SeriesDeps{
		Sources:  registry,
		Datasets: a.Config.Datasets,
		Exports:  exporter.NewCSVWriter(a.Paths),
		Tracer:   a.OTelProviders.Tracer,
		Metrics:  pipelineMetrics,
		Logger:   a.Logger,
	})

	a.errorHandler = apierrors.NewErrorHandler(a.Logger, false)
	a.validator = middleware.NewValidator(a.Logger)
	a.validator.RegisterStructValidation(services.SelectionStructLevel, services.Selection{})

	wsc := a.Config.WebSocket
	a.WebSocket = ws.NewHandler(ws.HandlerConfig{
		ReadBufferSize:  wsc.ReadBufferSize,
		WriteBufferSize: wsc.WriteBufferSize,
		AllowedOrigins:  a.Config.Security.AllowedOrigins,
		Session: ws.Options{
			PingPeriod:     wsc.PingPeriod,
			PongWait:       wsc.PongWait,
			MaxMessageSize: wsc.MaxMessageSize,
		},
	}, ws.SessionDeps{
		Runner:    a.SeriesService,
		Validator: a.validator,
		Errors:    a.errorHandler,
		Metrics:   wsMetrics,
		Logger:    a.Logger,
	})

	a.HealthService = services.NewHealthService(
		Version,
		BuildTime,
		a.Paths.DataDir,
		a.SeriesService,
		a.WebSocket,
		a.Logger,
	)
	return nil
}

// setupRouter configures the HTTP router with all routes.
// Ordering: RequestID → RealIP → StripSlashes → OTel → Logger → Recoverer,
// then the API-only middleware. WebSocket sessions skip the timeout and
// compression.
func (a *Application) setupRouter() error {
	r := chi.NewRouter()

	otelMiddleware, err := middleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StripSlashes)
	r.Use(otelMiddleware.Handler)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(middleware.Recoverer(a.errorHandler))

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.Mount(config.WebSocketEndpoint, a.WebSocket.Routes())

	r.Group(func(r chi.Router) {
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.CORS(a.corsConfig()))
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}
		r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
		r.Use(middleware.Compress(5))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)
		r.Get("/health/stats", healthHandler.SystemStats)

		datasetHandler := handlers.NewDatasetHandler(a.SeriesService, a.validator, a.Logger, a.errorHandler)
		r.Mount("/datasets", datasetHandler.Routes())

		r.Post("/logs", handlers.NewClientLogHandler(a.validator, a.Logger, a.errorHandler).Handle)
	})
}

func (a *Application) corsConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.Logger.InfoContext(ctx, "Starting server",
		slog.String("address", ln.Addr().String()),
		slog.String("version", Version),
		slog.String("level", a.Config.Logging.Level))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	a.WebSocket.Close()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if err := a.Sources.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sources: %w", err))
	}
	a.shutdownTelemetry(shutdownCtx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) shutdownTelemetry(ctx context.Context) {
	if a.OTelProviders == nil {
		return
	}
	if err := a.OTelProviders.Shutdown(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}
}

// Run listens on the configured port and serves until SIGINT or SIGTERM
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}

	start := time.Now()
	err = a.Serve(ctx, ln)
	a.Logger.Info("Server stopped", slog.Duration("uptime", time.Since(start)))
	return errors.Join(err, infrastructure.CloseLogFile())
}
