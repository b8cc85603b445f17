package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"markscope/internal/chartcache"
	"markscope/internal/charts"
	"markscope/internal/config"
	"markscope/internal/errors"
	"markscope/internal/infrastructure"
	customMiddleware "markscope/internal/middleware"
	rendering "markscope/internal/render"
	"markscope/internal/services"
	"markscope/internal/snapshot"
	handlers "markscope/internal/transport/http"
	"markscope/internal/validation"
)

// AppName names the service in telemetry and logs
const AppName = "markscope"

var (
	// Version is set at link time
	Version = "dev"
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
	// BuildID is a unique identifier for this build
	BuildID = generateBuildID()
)

func generateBuildID() string {
	h := sha256.New()
	h.Write([]byte(Version))
	h.Write([]byte(time.Now().Format("2006-01-02")))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	Runtime       *infrastructure.RuntimeCollector
	Services      *ServiceContainer

	errorHandler *errors.ErrorHandler
}

// ServiceContainer holds the wired domain components
type ServiceContainer struct {
	Loader *snapshot.Loader
	Cache  chartcache.Store
	Chart  *services.ChartService
	Export *services.ExportService
	Health *services.HealthService
}

// Option configures NewApplication
type Option func(*Application)

// WithLogger uses logger instead of initialising the global one
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) { a.Logger = logger }
}

// NewApplication creates a new application instance with dependency injection.
// A nil cfg is loaded from the usual files and environment.
func NewApplication(cfg *config.Config, opts ...Option) (*Application, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}

	app := &Application{Config: cfg, Paths: paths}
	for _, opt := range opts {
		opt(app)
	}

	if app.Logger == nil {
		if app.Logger, err = infrastructure.InitializeLogger(cfg.Logging, paths.LogsDir); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	app.Logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("build_id", BuildID))

	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(app.Logger)

	if app.OTelProviders, err = infrastructure.InitializeOTel(otelConfig(cfg.Telemetry), app.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	if app.Metrics, err = infrastructure.CreateBusinessMetrics(app.OTelProviders.Meter); err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	if app.Runtime, err = infrastructure.NewRuntimeCollector(app.OTelProviders.Meter, 15*time.Second); err != nil {
		return nil, fmt.Errorf("failed to create runtime collector: %w", err)
	}

	app.Services = BuildServices(context.Background(), cfg, paths, app.Logger, app.OTelProviders, app.Metrics)
	app.Services.Health = services.NewHealthService(
		services.BuildInfo{Version: Version, BuildTime: BuildTime, BuildID: BuildID},
		app.Services.Loader,
		app.Logger,
		services.WithCacheCheck(app.Services.Cache),
		services.WithRuntimeStats(app.Runtime),
	)

	app.errorHandler = errors.NewErrorHandler(app.Logger, cfg.Telemetry.Environment == "development")
	app.setupRouter()
	app.createServer()

	return app, nil
}

// BuildServices wires the snapshot loader, chart pipeline, cache and export
// service. It is shared by the web server and the offline renderer.
func BuildServices(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger, providers *infrastructure.OTelProviders, metrics *infrastructure.BusinessMetrics) *ServiceContainer {
	loader := snapshot.NewLoader(snapshot.Config{
		AssignmentsPath: paths.AssignmentsFile,
		MemberPath:      paths.MemberFile,
	}, logger,
		snapshot.WithTracer(providers.Tracer),
		snapshot.WithLoadObserver(func(ctx context.Context, err error) {
			infrastructure.RecordSnapshotLoad(ctx, metrics, err)
		}),
	)

	chartOpts := charts.DefaultOptions()
	if cfg.Charts.CurveSamples > 0 {
		chartOpts.CurveSamples = cfg.Charts.CurveSamples
	}
	assembler := charts.NewAssembler(chartOpts, logger,
		charts.WithTracer(providers.Tracer),
		charts.WithTrimObserver(func(ctx context.Context, variant string, dropped int) {
			infrastructure.RecordFitTrim(ctx, metrics, variant, dropped)
		}),
	)

	renderer := rendering.NewRenderer(rendering.Size{Width: cfg.Charts.Width, Height: cfg.Charts.Height}, logger,
		rendering.WithTracer(providers.Tracer))

	cache := newCache(ctx, cfg.Cache, logger)

	return &ServiceContainer{
		Loader: loader,
		Cache:  cache,
		Chart: services.NewChartService(loader, assembler, renderer, logger,
			services.WithCache(cache, cfg.Cache.TTL),
			services.WithMetrics(metrics),
		),
		Export: services.NewExportService(loader, paths, logger),
	}
}

// newCache connects to Redis when enabled. An unreachable server is not
// fatal: charts are then cached in process.
func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) chartcache.Store {
	if cfg.Enabled {
		redisCfg := chartcache.DefaultRedisConfig(cfg.Addr())
		redisCfg.Password = cfg.Password
		redisCfg.DB = cfg.DB

		store, err := chartcache.NewRedisStore(ctx, redisCfg)
		if err == nil {
			logger.Info("Chart cache connected", slog.String("backend", "redis"), slog.String("addr", cfg.Addr()))
			return store
		}
		logger.Warn("Chart cache unavailable, using memory",
			slog.String("addr", cfg.Addr()),
			slog.String("error", err.Error()))
	}
	return chartcache.NewMemoryStore(chartcache.DefaultMemoryEntries)
}

func otelConfig(t config.TelemetryConfig) *infrastructure.OTelConfig {
	cfg := infrastructure.DefaultOTelConfig()
	cfg.ServiceVersion = Version
	cfg.Environment = t.Environment
	cfg.EnableTracing = t.EnableTracing
	cfg.EnableMetrics = t.EnableMetrics
	cfg.TraceExporter = t.TraceExporter
	cfg.MetricExporter = t.MetricExporter
	cfg.SampleRatio = t.SampleRatio
	return cfg
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → CORS → RateLimiter
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	httpTelemetry, err := customMiddleware.NewHTTPTelemetry(a.OTelProviders, a.Metrics)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(httpTelemetry.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
			Logger:         a.Logger,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))
		handlers.NewPageHandler(a.Services.Chart, a.Logger, a.errorHandler).Routes(r)
		a.setupAPIRoutes(r)
	})

	r.Mount("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP).Routes())

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	validation := customMiddleware.NewValidationMiddleware(a.Logger, a.errorHandler)
	queries := customMiddleware.NewQueryParamValidator(a.Logger, a.errorHandler)

	chartHandler := handlers.NewChartHandler(a.Services.Chart, validation, a.Logger, a.errorHandler)
	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(validation.ValidateRequest)

		r.Get("/pages", chartHandler.ListPages)
		r.Mount("/charts", chartHandler.Routes())
		r.Mount("/export", handlers.NewExportHandler(a.Services.Export, queries, a.Logger, a.errorHandler).Routes())
		r.Mount("/snapshot", handlers.NewSnapshotHandler(a.Services.Chart, a.Logger, a.errorHandler).Routes())
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)
	})
}

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

// Start starts background collection and the HTTP server. A listen failure
// calls cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	files := validation.NewFileValidator(a.Logger)
	if err := files.ValidateDataFiles(a.Paths.AssignmentsFile, a.Paths.MemberFile); err != nil {
		msg := "Source data is invalid"
		if validation.IsMissing(err) {
			msg = "Source data not found; pages will fail until it is present"
		}
		a.Logger.WarnContext(ctx, msg, slog.String("error", err.Error()))
	}
	if err := files.ValidateOutputDirectory(a.Paths.ExportDir); err != nil {
		return err
	}

	go a.Runtime.Start(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop drains the server and releases every resource
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Runtime.Stop()

	if err := a.Services.Cache.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing chart cache", slog.String("error", err.Error()))
	}

	if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return infrastructure.CloseLogFile()
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(ctx)
}
